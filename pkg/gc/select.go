package gc

import (
	"time"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/flash"
)

// selection is the outcome of one victim search.
type selection struct {
	block   flash.BlockID
	invalid uint32
	score   uint32
	age     uint32
	scanned int
}

// SelectVictim detaches and returns the best victim on die under the active
// policy. The block is left in the Reclaiming state; the caller owns it
// until it is erased.
//
// Returns a KindExhausted FatalError when no block on die has an invalid
// slice.
func (c *Collector) SelectVictim(die flash.DieID) (flash.BlockID, error) {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()

	sel, err := c.selectLocked(die)
	if err != nil {
		return flash.NoBlock, c.fatal(err)
	}
	if err := c.verify(die); err != nil {
		return flash.NoBlock, err
	}
	return sel.block, nil
}

// selectLocked runs selection with the die lock held.
func (c *Collector) selectLocked(die flash.DieID) (selection, error) {
	start := time.Now()

	var sel selection
	if c.policy.Scored() {
		sel = c.scan(die)
	} else {
		sel = c.greedy(die)
	}

	if sel.block == flash.NoBlock {
		return sel, exhausted(die)
	}

	if err := c.registry.Detach(die, sel.block); err != nil {
		return sel, structural(die, sel.block, err)
	}
	c.table.Get(die, sel.block).State = flash.StateReclaiming

	if c.metrics != nil {
		c.metrics.ObserveSelection(die, c.policy.Name(), sel.invalid, sel.score, sel.scanned, time.Since(start))
		c.metrics.SetCandidates(die, c.registry.Candidates(die))
	}

	logger.Debug("GC: victim selected",
		logger.KeyDie, die,
		logger.KeyBlock, sel.block,
		logger.KeyPolicy, c.policy.Name(),
		logger.KeyInvalid, sel.invalid,
		logger.KeyScore, sel.score,
		logger.KeyAge, sel.age,
		logger.KeyScanned, sel.scanned)

	return sel, nil
}

// greedy takes the head of the highest non-empty bucket above zero. Within a
// bucket the oldest insertion wins.
func (c *Collector) greedy(die flash.DieID) selection {
	invalid, ok := c.registry.Highest(die)
	if !ok {
		return selection{block: flash.NoBlock}
	}
	block := c.registry.Head(die, invalid)
	return selection{
		block:   block,
		invalid: invalid,
		score:   invalid,
		age:     c.clock.Age(die, block),
		scanned: 1,
	}
}

// scan scores every candidate, highest bucket first, and keeps the first
// block that strictly beats the running best. The first candidate seen is
// taken even when it scores zero, so a die with candidates never reports
// exhaustion because every score truncated to zero.
func (c *Collector) scan(die flash.DieID) selection {
	best := selection{block: flash.NoBlock}

	c.registry.Walk(die, func(block flash.BlockID, invalid uint32) bool {
		best.scanned++
		cand := c.candidate(die, block, invalid)
		score := c.policy.Score(cand)
		if best.block == flash.NoBlock || score > best.score {
			best.block = block
			best.invalid = invalid
			best.score = score
			best.age = cand.Age
		}
		return true
	})

	return best
}
