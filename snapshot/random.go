package snapshot

import (
	"math/rand/v2"

	"github.com/samber/lo"

	"go-vjctl/param"
)

// Candidate is a control eligible for randomize
type Candidate struct {
	Name string
	Spec param.Spec
}

// Targets samples a uniformly distributed, range-respecting destination for
// every candidate not in exclude.
func Targets(cands []Candidate, exclude map[string]bool, r *rand.Rand) []Target {
	kept := lo.Filter(cands, func(c Candidate, _ int) bool {
		return !exclude[c.Name]
	})
	return lo.Map(kept, func(c Candidate, _ int) Target {
		return Target{Name: c.Name, Spec: c.Spec, To: c.Spec.Random(r)}
	})
}

// Recall builds the batch for restoring a snapshot table: one target per
// candidate present in the table, coerced into the candidate's domain.
func Recall(cands []Candidate, table Table) []Target {
	var out []Target
	for _, c := range cands {
		v, ok := table[c.Name]
		if !ok {
			continue
		}
		to, ok := c.Spec.Coerce(v)
		if !ok {
			continue
		}
		out = append(out, Target{Name: c.Name, Spec: c.Spec, To: to})
	}
	return out
}
