package policy

// Greedy picks the head of the highest non-empty bucket. It never scores.
type Greedy struct{}

func (Greedy) Name() string             { return NameGreedy }
func (Greedy) Scored() bool             { return false }
func (Greedy) StampOnDirty() bool       { return false }
func (Greedy) Score(c Candidate) uint32 { return c.Invalid }

// CostBenefit weighs reclaimed space and staleness against migration cost:
//
//	score = invalid * (age+1) * pagesPerBlock / (valid+1)
//
// Age counts ticks since the block was last erased.
type CostBenefit struct{}

func (CostBenefit) Name() string       { return NameCostBenefit }
func (CostBenefit) Scored() bool       { return true }
func (CostBenefit) StampOnDirty() bool { return false }

// Score computes the cost-benefit ratio with 64-bit intermediates.
func (CostBenefit) Score(c Candidate) uint32 {
	benefit := uint64(c.Invalid) * (uint64(c.Age) + 1) * uint64(c.PagesPerBlock)
	cost := uint64(c.Valid) + 1

	if cost == 0 || benefit == 0 {
		return uint32(benefit)
	}
	return uint32(benefit / cost)
}

// CAT (cost-age-tradeoff) adds the erase count to the cost term so worn
// blocks are deferred in favour of equally stale, less worn ones:
//
//	score = (invalid+1)(age+1) / ((valid+1)(wear+1))
//
// Age counts ticks since the block last gained an invalid slice.
type CAT struct{}

func (CAT) Name() string       { return NameCAT }
func (CAT) Scored() bool       { return true }
func (CAT) StampOnDirty() bool { return true }

// Score computes the CAT ratio with 64-bit intermediates.
func (CAT) Score(c Candidate) uint32 {
	numerator := (uint64(c.Invalid) + 1) * (uint64(c.Age) + 1)
	denominator := (uint64(c.Valid) + 1) * (uint64(c.Wear) + 1)

	if denominator == 0 {
		return uint32(numerator)
	}
	return uint32(numerator / denominator)
}
