package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results listed one row per item, such as
// runs or per-die status.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PairsRenderer is implemented by single results shown as key/value lines,
// such as a run report.
type PairsRenderer interface {
	Pairs() [][2]string
}

// PrintTable writes a borderless table with upper-cased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	t := plainTable(w, "")
	t.SetHeader(data.Headers())
	t.SetAutoFormatHeaders(true)
	t.AppendBulk(data.Rows())
	t.Render()
	return nil
}

// SimpleTable writes "key: value" lines with aligned values.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	t := plainTable(w, ":")
	for _, kv := range pairs {
		t.Append(kv[:])
	}
	t.Render()
	return nil
}

func plainTable(w io.Writer, sep string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetRowSeparator("")
	t.SetColumnSeparator(sep)
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

// TableData is a TableRenderer built row by row.
type TableData struct {
	headers []string
	rows    [][]string
}

func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers, rows: [][]string{}}
}

func (t *TableData) AddRow(row ...string) { t.rows = append(t.rows, row) }

func (t *TableData) Headers() []string { return t.headers }

func (t *TableData) Rows() [][]string { return t.rows }

// KeyValues is a PairsRenderer literal.
type KeyValues [][2]string

func (kv KeyValues) Pairs() [][2]string { return kv }
