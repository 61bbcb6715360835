package fuzzy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// noSet marks a factor a rule does not constrain
const noSet = -1

// DecisionMatrix is the dense form of a rule set.
//
// Sets has one row per rule and one column per factor; each cell holds the
// index of the factor's membership function the rule uses, or -1 when the
// rule ignores that factor. Consequents holds one tunable cell per rule.
type DecisionMatrix struct {
	Sets        *mat.Dense
	Consequents *mat.VecDense
}

func buildDecisionMatrix(factors []Factor, rules []Rule) (*DecisionMatrix, error) {
	for r, rule := range rules {
		for name := range rule.Antecedent {
			if !hasFactor(factors, name) {
				return nil, fmt.Errorf("rule %d: unknown factor %q", r, name)
			}
		}
	}
	if len(factors) == 0 || len(rules) == 0 {
		return nil, nil
	}

	sets := mat.NewDense(len(rules), len(factors), nil)
	consequents := mat.NewVecDense(len(rules), nil)
	for r, rule := range rules {
		for f, factor := range factors {
			setName, ok := rule.Antecedent[factor.Name]
			if !ok {
				sets.Set(r, f, noSet)
				continue
			}
			idx := factor.setIndex(setName)
			if idx < 0 {
				return nil, fmt.Errorf("rule %d: factor %s has no set %q", r, factor.Name, setName)
			}
			sets.Set(r, f, float64(idx))
		}
		consequents.SetVec(r, rule.Consequent)
	}
	return &DecisionMatrix{Sets: sets, Consequents: consequents}, nil
}

// activations computes the min t-norm firing strength of every rule given
// per-factor membership degrees.
func (d *DecisionMatrix) activations(degrees [][]float64) *mat.VecDense {
	rows, cols := d.Sets.Dims()
	act := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		strength := 1.0
		for f := 0; f < cols; f++ {
			idx := int(d.Sets.At(r, f))
			if idx == noSet {
				continue
			}
			if mu := degrees[f][idx]; mu < strength {
				strength = mu
			}
		}
		act.SetVec(r, strength)
	}
	return act
}

// aggregate combines rule activations into the weighted average of the
// consequents.
func (d *DecisionMatrix) aggregate(act *mat.VecDense) (float64, error) {
	total := mat.Sum(act)
	if total <= 0 {
		return 0, models.ErrNoActivation
	}
	return mat.Dot(act, d.Consequents) / total, nil
}

func hasFactor(factors []Factor, name string) bool {
	for _, f := range factors {
		if f.Name == name {
			return true
		}
	}
	return false
}
