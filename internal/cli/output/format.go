// Package output renders ftlsim command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the value of the -o flag.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

var formatNames = map[string]Format{
	"":      FormatTable,
	"table": FormatTable,
	"json":  FormatJSON,
	"yaml":  FormatYAML,
	"yml":   FormatYAML,
}

// ParseFormat accepts table, json, yaml or yml in any case. Empty means
// table.
func ParseFormat(s string) (Format, error) {
	f, ok := formatNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
	return f, nil
}

func (f Format) String() string { return string(f) }

// encoders serve the machine-readable formats and the table fallback.
var encoders = map[Format]func(io.Writer, any) error{
	FormatJSON: PrintJSON,
	FormatYAML: PrintYAML,
}

// Printer writes command results in one Format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

// Print renders data. In table format a TableRenderer becomes a table and a
// PairsRenderer an aligned key/value list; other values are printed as
// JSON.
func (p *Printer) Print(data any) error {
	if p.format == FormatTable {
		switch r := data.(type) {
		case TableRenderer:
			return PrintTable(p.out, r)
		case PairsRenderer:
			return SimpleTable(p.out, r.Pairs())
		}
		return PrintJSON(p.out, data)
	}
	enc, ok := encoders[p.format]
	if !ok {
		return fmt.Errorf("unknown format: %s", p.format)
	}
	return enc(p.out, data)
}

// Section prints a heading between tables. JSON and YAML output get none.
func (p *Printer) Section(title string) {
	if p.format != FormatTable {
		return
	}
	p.Println()
	p.line("1", title)
}

func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Success prints msg in green.
func (p *Printer) Success(msg string) { p.line("32", msg) }

// Warning prints msg in yellow.
func (p *Printer) Warning(msg string) { p.line("33", msg) }

// line prints msg wrapped in the SGR code when color is on.
func (p *Printer) line(sgr, msg string) {
	if p.color {
		msg = "\033[" + sgr + "m" + msg + "\033[0m"
	}
	p.Println(msg)
}

// PrintJSON writes data as JSON indented by two spaces.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
