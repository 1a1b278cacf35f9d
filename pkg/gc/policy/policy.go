// Package policy implements the victim scoring policies used by the garbage
// collector.
//
// A policy is a pure function of a block's counters and the die's aging
// state. Scores are unsigned fixed-width integers, higher is better; the
// selector keeps the first block it sees with the highest score, so ties go
// to the higher invalid-count bucket and then to list order.
//
// Three policies are provided:
//
//	greedy        no scoring; the selector pops the head of the fullest bucket
//	cost-benefit  invalid*(age+1)*ppb / (valid+1); age measured from last erase
//	cat           (invalid+1)(age+1) / ((valid+1)(wear+1)); age measured from
//	              the last dirtying event
//
// Cost-Benefit and CAT deliberately disagree on when the age baseline is
// stamped and on whether wear counts. They are separate named policies.
package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Candidate is the block state a policy scores.
type Candidate struct {
	// Invalid is the number of superseded slices in the block.
	Invalid uint32
	// Valid is the number of slices that would need migrating.
	Valid uint32
	// Age is the number of aging ticks since the block's baseline.
	Age uint32
	// Wear is the block's erase count.
	Wear uint32
	// PagesPerBlock is the block size in slices.
	PagesPerBlock uint32
}

// Policy scores GC candidates.
type Policy interface {
	// Name is the registry name of the policy.
	Name() string

	// Scored reports whether selection should scan and score every
	// candidate. Unscored policies take the head of the fullest bucket.
	Scored() bool

	// Score returns the profitability of reclaiming c. Only called when
	// Scored is true.
	Score(c Candidate) uint32

	// StampOnDirty reports whether the age baseline is re-stamped every time
	// the block gains an invalid slice, in addition to at erase time.
	StampOnDirty() bool
}

// Names of the built-in policies.
const (
	NameGreedy      = "greedy"
	NameCostBenefit = "cost-benefit"
	NameCAT         = "cat"
)

var builtin = map[string]func() Policy{
	NameGreedy:      func() Policy { return Greedy{} },
	NameCostBenefit: func() Policy { return CostBenefit{} },
	NameCAT:         func() Policy { return CAT{} },
}

// aliases accepted by Lookup in addition to the canonical names.
var aliases = map[string]string{
	"cb":                NameCostBenefit,
	"cost_benefit":      NameCostBenefit,
	"cost-age-tradeoff": NameCAT,
}

// Lookup returns the policy registered under name (case-insensitive).
func Lookup(name string) (Policy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	ctor, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("unknown GC policy %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names returns the canonical policy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line description of a policy for CLI listings.
func Describe(p Policy) string {
	switch p.Name() {
	case NameGreedy:
		return "pop the oldest block of the highest invalid-count bucket"
	case NameCostBenefit:
		return "invalid*(age+1)*ppb/(valid+1), age since last erase"
	case NameCAT:
		return "(invalid+1)(age+1)/((valid+1)(wear+1)), age since last invalidation"
	default:
		return ""
	}
}
