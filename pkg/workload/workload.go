// Package workload generates host command streams for the simulator.
//
// Every generator is deterministic for a given seed, so two runs that differ
// only in GC policy see exactly the same sequence of writes.
package workload

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
)

// Generator names.
const (
	KindUniform    = "uniform"
	KindHotCold    = "hotcold"
	KindSequential = "sequential"
	KindZipf       = "zipf"
)

// Config selects and tunes a generator.
type Config struct {
	// Kind is one of uniform, hotcold, sequential, zipf.
	Kind string `mapstructure:"kind" validate:"required,oneof=uniform hotcold sequential zipf" yaml:"kind"`

	// Seed makes the stream reproducible.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`

	// HotFraction is the share of the address space that is hot (hotcold).
	// Default: 0.2
	HotFraction float64 `mapstructure:"hot_fraction" validate:"gte=0,lte=1" yaml:"hot_fraction"`

	// HotProbability is the share of accesses that go to the hot region
	// (hotcold). Default: 0.8
	HotProbability float64 `mapstructure:"hot_probability" validate:"gte=0,lte=1" yaml:"hot_probability"`

	// ZipfExponent is the skew of the zipf generator; must be > 1.
	// Default: 1.2
	ZipfExponent float64 `mapstructure:"zipf_exponent" validate:"omitempty,gt=1" yaml:"zipf_exponent"`

	// TrimRatio is the probability that a command is a trim.
	TrimRatio float64 `mapstructure:"trim_ratio" validate:"gte=0,lte=1" yaml:"trim_ratio"`

	// ReadRatio is the probability that a command is a read of a written
	// slice.
	ReadRatio float64 `mapstructure:"read_ratio" validate:"gte=0,lte=1" yaml:"read_ratio"`
}

// DefaultConfig returns an 80/20 hot/cold write-only workload.
func DefaultConfig() Config {
	return Config{
		Kind:           KindHotCold,
		Seed:           1,
		HotFraction:    0.2,
		HotProbability: 0.8,
		ZipfExponent:   1.2,
	}
}

// Generator produces host commands.
type Generator interface {
	// Name returns the generator kind.
	Name() string

	// Next returns the next command.
	Next() ftl.Command
}

// Kinds returns the generator names in sorted order.
func Kinds() []string {
	kinds := []string{KindUniform, KindHotCold, KindSequential, KindZipf}
	sort.Strings(kinds)
	return kinds
}

// New creates a generator over logical slices [0, logical).
func New(cfg Config, logical uint32) (Generator, error) {
	if logical == 0 {
		return nil, fmt.Errorf("workload: logical space is empty")
	}
	if cfg.TrimRatio+cfg.ReadRatio > 1 {
		return nil, fmt.Errorf("workload: trim ratio %.2f and read ratio %.2f exceed 1", cfg.TrimRatio, cfg.ReadRatio)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	m := &mixer{rng: rng, trim: cfg.TrimRatio, read: cfg.ReadRatio}

	var addr addresser
	switch cfg.Kind {
	case KindUniform:
		addr = &uniform{rng: rng, n: logical}
	case KindHotCold:
		hc, err := newHotCold(rng, logical, cfg.HotFraction, cfg.HotProbability)
		if err != nil {
			return nil, err
		}
		addr = hc
	case KindSequential:
		addr = &sequential{n: logical}
	case KindZipf:
		exp := cfg.ZipfExponent
		if exp == 0 {
			exp = DefaultConfig().ZipfExponent
		}
		if exp <= 1 {
			return nil, fmt.Errorf("workload: zipf exponent %.2f must be > 1", exp)
		}
		addr = newZipf(rng, logical, exp)
	default:
		return nil, fmt.Errorf("workload: unknown kind %q (valid: %v)", cfg.Kind, Kinds())
	}

	return &generator{name: cfg.Kind, addr: addr, mix: m}, nil
}

// Precondition returns commands that write every logical slice once in
// order, the usual way to bring a simulated drive to steady state.
func Precondition(logical uint32) []ftl.Command {
	cmds := make([]ftl.Command, logical)
	for i := range cmds {
		cmds[i] = ftl.Command{Op: ftl.CmdWrite, LSA: flash.LSA(i)}
	}
	return cmds
}

// ============================================================================
// Generators
// ============================================================================

type addresser interface {
	next() flash.LSA
}

type generator struct {
	name string
	addr addresser
	mix  *mixer
}

func (g *generator) Name() string { return g.name }

func (g *generator) Next() ftl.Command {
	lsa := g.addr.next()
	return ftl.Command{Op: g.mix.op(lsa), LSA: lsa}
}

// mixer picks the command type. Reads and trims only target slices the
// stream has written, so a read never hits an unmapped address.
type mixer struct {
	rng     *rand.Rand
	trim    float64
	read    float64
	written map[flash.LSA]struct{}
}

func (m *mixer) op(lsa flash.LSA) ftl.CommandOp {
	if m.trim == 0 && m.read == 0 {
		return ftl.CmdWrite
	}
	if m.written == nil {
		m.written = make(map[flash.LSA]struct{})
	}
	if _, ok := m.written[lsa]; ok {
		r := m.rng.Float64()
		switch {
		case r < m.trim:
			delete(m.written, lsa)
			return ftl.CmdTrim
		case r < m.trim+m.read:
			return ftl.CmdRead
		}
	}
	m.written[lsa] = struct{}{}
	return ftl.CmdWrite
}

type uniform struct {
	rng *rand.Rand
	n   uint32
}

func (u *uniform) next() flash.LSA {
	return u.rng.Uint32N(u.n)
}

type sequential struct {
	n   uint32
	pos uint32
}

func (s *sequential) next() flash.LSA {
	lsa := s.pos
	s.pos = (s.pos + 1) % s.n
	return lsa
}

// hotCold sends hotProb of accesses to the first hot slices.
type hotCold struct {
	rng     *rand.Rand
	hot     uint32
	n       uint32
	hotProb float64
}

func newHotCold(rng *rand.Rand, n uint32, fraction, prob float64) (*hotCold, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, fmt.Errorf("workload: hot fraction %.2f must be in (0, 1)", fraction)
	}
	if prob < 0 || prob > 1 {
		return nil, fmt.Errorf("workload: hot probability %.2f must be in [0, 1]", prob)
	}
	hot := uint32(float64(n) * fraction)
	if hot == 0 {
		hot = 1
	}
	if hot >= n {
		hot = n - 1
	}
	if hot == 0 {
		return nil, fmt.Errorf("workload: %d slices are too few to split hot and cold", n)
	}
	return &hotCold{rng: rng, hot: hot, n: n, hotProb: prob}, nil
}

func (h *hotCold) next() flash.LSA {
	if h.rng.Float64() < h.hotProb {
		return h.rng.Uint32N(h.hot)
	}
	return h.hot + h.rng.Uint32N(h.n-h.hot)
}

// zipf draws ranks from a Zipf distribution by inverse CDF lookup.
type zipf struct {
	rng *rand.Rand
	cdf []float64
}

func newZipf(rng *rand.Rand, n uint32, s float64) *zipf {
	cdf := make([]float64, n)
	sum := 0.0
	for k := uint32(0); k < n; k++ {
		sum += 1 / math.Pow(float64(k+1), s)
		cdf[k] = sum
	}
	for k := range cdf {
		cdf[k] /= sum
	}
	return &zipf{rng: rng, cdf: cdf}
}

func (z *zipf) next() flash.LSA {
	i := sort.SearchFloat64s(z.cdf, z.rng.Float64())
	if i >= len(z.cdf) {
		i = len(z.cdf) - 1
	}
	return flash.LSA(i)
}
