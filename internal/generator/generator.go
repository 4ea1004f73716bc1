// Package generator enumerates every admissible shell configuration under a
// module budget.
package generator

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sync/atomic"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

// DefaultBudgetCeiling is the module capacity of one shell.
const DefaultBudgetCeiling = 20

// Space describes what the generator enumerates.
type Space struct {
	// Heads are catalogue indices of the allowed head modules.
	Heads []int
	// FixedCounts is indexed by catalogue module index; its length fixes the
	// length of every generated BodyCounts.
	FixedCounts []int
	// VariableSlots are catalogue indices whose counts vary. Repeated indices
	// are varied only at their first position.
	VariableSlots []int
	BudgetCeiling int
	// MaxFineCasing is in casing units with 0.01 resolution.
	MaxFineCasing   float64
	MaxCoarseCasing int
}

// Generator yields configurations lazily. Each sequence it hands out can be
// consumed once.
type Generator struct {
	space    Space
	caps     []int
	budget   int
	fineCap  int
	consumed atomic.Bool
}

// New validates the space and prepares the slot caps.
func New(space Space) (*Generator, error) {
	if len(space.Heads) == 0 {
		return nil, fmt.Errorf("at least one head is required")
	}
	if space.BudgetCeiling <= 0 {
		space.BudgetCeiling = DefaultBudgetCeiling
	}
	if space.MaxFineCasing < 0 || space.MaxCoarseCasing < 0 {
		return nil, fmt.Errorf("casing caps must be non-negative")
	}

	fixed := 0
	for i, n := range space.FixedCounts {
		if n < 0 {
			return nil, fmt.Errorf("fixed count for module %d is negative", i)
		}
		fixed += n
	}
	if fixed > space.BudgetCeiling {
		return nil, fmt.Errorf("fixed modules (%d) exceed budget ceiling (%d)", fixed, space.BudgetCeiling)
	}

	budget := space.BudgetCeiling - fixed
	caps := make([]int, len(space.VariableSlots))
	for i, slot := range space.VariableSlots {
		if slot < 0 || slot >= len(space.FixedCounts) {
			return nil, fmt.Errorf("variable slot %d refers to module %d outside %d body slots", i, slot, len(space.FixedCounts))
		}
		if slices.Contains(space.VariableSlots[:i], slot) {
			caps[i] = 0
			continue
		}
		caps[i] = budget
	}

	return &Generator{
		space:   space,
		caps:    caps,
		budget:  budget,
		fineCap: int(math.Round(space.MaxFineCasing * 100)),
	}, nil
}

// Budget is the capacity left for variable modules and casings.
func (g *Generator) Budget() int { return g.budget }

// Compositions yields every tuple of non-negative counts, one per cap, whose sum is
// at most budget and where no count exceeds its cap. Tuples are produced in
// depth-first order with the first slot outermost. The yielded slice is reused
// between iterations.
func Compositions(budget int, caps []int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if budget < 0 {
			return
		}
		counts := make([]int, len(caps))
		var walk func(slot, remaining int) bool
		walk = func(slot, remaining int) bool {
			if slot == len(caps) {
				return yield(counts)
			}
			limit := min(caps[slot], remaining)
			for n := 0; n <= limit; n++ {
				counts[slot] = n
				if !walk(slot+1, remaining-n) {
					return false
				}
			}
			counts[slot] = 0
			return true
		}
		walk(0, budget)
	}
}

// CountCompositions is the number of tuples Compositions yields for k uncapped
// slots: C(budget+k, k).
func CountCompositions(budget, k int) uint64 {
	return utils.Binomial(budget+k, k)
}

// casing is one admissible (fine hundredths, coarse) pair.
type casing struct {
	fine, coarse int
}

// casings yields the casing pairs that fit in remaining whole modules.
func (g *Generator) casings(remaining int) iter.Seq[casing] {
	return func(yield func(casing) bool) {
		room := remaining * 100
		fineMax := min(g.fineCap, room)
		for f := 0; f <= fineMax; f++ {
			coarseMax := min(g.space.MaxCoarseCasing, (room-f)/100)
			for c := 0; c <= coarseMax; c++ {
				if !yield(casing{fine: f, coarse: c}) {
					return
				}
			}
		}
	}
}

func (g *Generator) casingCount(remaining int) uint64 {
	var n uint64
	room := remaining * 100
	for f := 0; f <= min(g.fineCap, room); f++ {
		n += uint64(min(g.space.MaxCoarseCasing, (room-f)/100) + 1)
	}
	return n
}

// Count is the exact number of configurations All yields.
func (g *Generator) Count() uint64 {
	free := 0
	for _, c := range g.caps {
		if c > 0 {
			free++
		}
	}
	var perHead uint64
	for used := 0; used <= g.budget; used++ {
		var tuples uint64
		switch {
		case free == 0 && used == 0:
			tuples = 1
		case free == 0:
			tuples = 0
		default:
			tuples = utils.Binomial(used+free-1, free-1)
		}
		perHead += tuples * g.casingCount(g.budget-used)
	}
	return perHead * uint64(len(g.space.Heads))
}

// Partition is an independent range of the generator's outer dimension: one head
// crossed with one count of the outermost variable slot.
type Partition struct {
	ID        int
	Head      int
	OuterSlot int
	g         *Generator
	consumed  atomic.Bool
}

// Partitions splits the space. Concatenating the partitions' sequences in order
// reproduces All.
func (g *Generator) Partitions() []*Partition {
	outer := 1
	if len(g.caps) > 0 {
		outer = min(g.caps[0], g.budget) + 1
	}
	parts := make([]*Partition, 0, len(g.space.Heads)*outer)
	for _, head := range g.space.Heads {
		for n := 0; n < outer; n++ {
			parts = append(parts, &Partition{ID: len(parts), Head: head, OuterSlot: n, g: g})
		}
	}
	return parts
}

// All yields every configuration exactly once. A second call yields nothing.
func (g *Generator) All() iter.Seq[models.Configuration] {
	return func(yield func(models.Configuration) bool) {
		if g.consumed.Swap(true) {
			return
		}
		for _, p := range g.Partitions() {
			for cfg := range p.All() {
				if !yield(cfg) {
					return
				}
			}
		}
	}
}

// All yields the partition's configurations in generator order. A second call
// yields nothing.
func (p *Partition) All() iter.Seq[models.Configuration] {
	return func(yield func(models.Configuration) bool) {
		if p.consumed.Swap(true) {
			return
		}
		g := p.g
		var index uint64
		emit := func(counts []int, outer int) bool {
			used := outer
			for _, n := range counts {
				used += n
			}
			body := slices.Clone(g.space.FixedCounts)
			if len(g.space.VariableSlots) > 0 {
				body[g.space.VariableSlots[0]] += outer
				for i, n := range counts {
					body[g.space.VariableSlots[i+1]] += n
				}
			}
			for c := range g.casings(g.budget - used) {
				cfg := models.Configuration{
					Head:         p.Head,
					BodyCounts:   slices.Clone(body),
					FineCasing:   c.fine,
					CoarseCasing: c.coarse,
					Ordinal:      models.Ordinal{Partition: p.ID, Index: index},
				}
				index++
				if !yield(cfg) {
					return false
				}
			}
			return true
		}

		if len(g.caps) == 0 {
			emit(nil, 0)
			return
		}
		for counts := range Compositions(g.budget-p.OuterSlot, g.caps[1:]) {
			if !emit(counts, p.OuterSlot) {
				return
			}
		}
	}
}
