// Package fuzzy implements the rule-based inference scheme that maps named
// agricultural factors to an emission response.
//
// Rules are combined zero-order Takagi-Sugeno style: each rule's firing
// strength is the minimum membership degree over its conditions, and the
// response is the strength-weighted average of the rule consequents.
package fuzzy

import (
	"fmt"
	"maps"
	"math"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/kvmap"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// Factor is a named input variable with its fuzzy partition
type Factor struct {
	Name string
	Min  float64
	Max  float64
	Sets []MembershipFunction
}

func (f Factor) setIndex(name string) int {
	for i, s := range f.Sets {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// clamp limits x to the factor range when one is declared
func (f Factor) clamp(x float64) float64 {
	if f.Max <= f.Min {
		return x
	}
	if x < f.Min {
		return f.Min
	}
	if x > f.Max {
		return f.Max
	}
	return x
}

func (f Factor) validate() error {
	if f.Name == "" {
		return fmt.Errorf("factor name cannot be empty")
	}
	if f.Max < f.Min {
		return fmt.Errorf("factor %s: max %g is below min %g", f.Name, f.Max, f.Min)
	}
	if len(f.Sets) == 0 {
		return fmt.Errorf("factor %s: at least one membership function is required", f.Name)
	}
	seen := make(map[string]bool, len(f.Sets))
	for _, s := range f.Sets {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("factor %s: %w", f.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("factor %s: duplicate set %s", f.Name, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func (f Factor) clone() Factor {
	sets := make([]MembershipFunction, len(f.Sets))
	for i, s := range f.Sets {
		sets[i] = s.clone()
	}
	f.Sets = sets
	return f
}

// Rule maps factor names to set names and carries a crisp consequent
type Rule struct {
	Antecedent map[string]string
	Consequent float64
}

func (r Rule) clone() Rule {
	r.Antecedent = maps.Clone(r.Antecedent)
	return r
}

// Scheme is a fuzzy inference scheme.
//
// ComputeResponse only reads the scheme, so concurrent evaluations are safe
// as long as no mutation runs at the same time.
type Scheme struct {
	name    string
	factors []Factor
	rules   []Rule
	matrix  *DecisionMatrix
}

// NewScheme creates an empty scheme
func NewScheme(name string) *Scheme {
	return &Scheme{name: name}
}

// Name returns the scheme name
func (s *Scheme) Name() string {
	return s.name
}

// SetName renames the scheme
func (s *Scheme) SetName(name string) {
	s.name = name
}

// NumFactors returns the number of declared factors
func (s *Scheme) NumFactors() int {
	return len(s.factors)
}

// NumRules returns the number of rules
func (s *Scheme) NumRules() int {
	return len(s.rules)
}

// Factors returns a copy of the declared factors
func (s *Scheme) Factors() []Factor {
	out := make([]Factor, len(s.factors))
	for i, f := range s.factors {
		out[i] = f.clone()
	}
	return out
}

// Rules returns a copy of the rules with their current consequents
func (s *Scheme) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.clone()
	}
	return out
}

// AddFactor declares a new factor and rebuilds the decision matrix
func (s *Scheme) AddFactor(f Factor) error {
	if err := f.validate(); err != nil {
		return err
	}
	if hasFactor(s.factors, f.Name) {
		return fmt.Errorf("duplicate factor %s", f.Name)
	}
	s.factors = append(s.factors, f.clone())
	return s.ComputeDecisionMatrix()
}

// AddRule appends a rule and rebuilds the decision matrix
func (s *Scheme) AddRule(r Rule) error {
	s.rules = append(s.rules, r.clone())
	if err := s.ComputeDecisionMatrix(); err != nil {
		s.rules = s.rules[:len(s.rules)-1]
		if rerr := s.ComputeDecisionMatrix(); rerr != nil {
			return fmt.Errorf("%w (rebuild after rollback: %v)", err, rerr)
		}
		return err
	}
	return nil
}

// ComputeDecisionMatrix derives the dense decision matrix from the current
// factors and rules. Every structural mutation calls it, so evaluation never
// sees a stale matrix.
func (s *Scheme) ComputeDecisionMatrix() error {
	m, err := buildDecisionMatrix(s.factors, s.rules)
	if err != nil {
		return err
	}
	s.matrix = m
	return nil
}

// DecisionMatrix returns the current decision matrix, nil while the scheme
// has no factors or no rules.
func (s *Scheme) DecisionMatrix() *DecisionMatrix {
	return s.matrix
}

// ComputeResponse evaluates the scheme for one set of factor values.
// Every declared factor must be present in factors and finite.
func (s *Scheme) ComputeResponse(factors *kvmap.Map) (float64, error) {
	if s.matrix == nil {
		return 0, fmt.Errorf("scheme %s has no rules or factors", s.name)
	}
	if factors == nil {
		return 0, fmt.Errorf("%w: no factor values", models.ErrMissingFactor)
	}

	degrees := make([][]float64, len(s.factors))
	for i, f := range s.factors {
		x, ok := factors.Lookup(f.Name)
		if !ok {
			return 0, fmt.Errorf("%w: %s", models.ErrMissingFactor, f.Name)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: factor %s = %v", models.ErrNonFinite, f.Name, x)
		}
		x = f.clamp(x)
		mu := make([]float64, len(f.Sets))
		for j, set := range f.Sets {
			mu[j] = set.Degree(x)
		}
		degrees[i] = mu
	}

	response, err := s.matrix.aggregate(s.matrix.activations(degrees))
	if err != nil {
		return 0, fmt.Errorf("scheme %s: %w", s.name, err)
	}
	return response, nil
}

// NumConsequents returns the number of tunable decision-matrix cells
func (s *Scheme) NumConsequents() int {
	return len(s.rules)
}

// Consequent returns the consequent of rule i
func (s *Scheme) Consequent(i int) (float64, error) {
	if i < 0 || i >= len(s.rules) {
		return 0, fmt.Errorf("%w: consequent %d (rules %d)", models.ErrIndexOutOfRange, i, len(s.rules))
	}
	return s.rules[i].Consequent, nil
}

// SetConsequent updates the consequent of rule i. Only a magnitude changes,
// so the matrix cell is refreshed in place.
func (s *Scheme) SetConsequent(i int, v float64) error {
	if i < 0 || i >= len(s.rules) {
		return fmt.Errorf("%w: consequent %d (rules %d)", models.ErrIndexOutOfRange, i, len(s.rules))
	}
	s.rules[i].Consequent = v
	if s.matrix != nil {
		s.matrix.Consequents.SetVec(i, v)
	}
	return nil
}

// Consequents returns a copy of all rule consequents
func (s *Scheme) Consequents() []float64 {
	out := make([]float64, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Consequent
	}
	return out
}

// SetConsequents replaces all rule consequents
func (s *Scheme) SetConsequents(values []float64) error {
	if len(values) != len(s.rules) {
		return fmt.Errorf("%w: got %d consequents for %d rules", models.ErrIndexOutOfRange, len(values), len(s.rules))
	}
	for i, v := range values {
		if err := s.SetConsequent(i, v); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the scheme
func (s *Scheme) Clone() *Scheme {
	c := &Scheme{
		name:    s.name,
		factors: s.Factors(),
		rules:   s.Rules(),
	}
	// The source matrix was built from identical structure.
	_ = c.ComputeDecisionMatrix()
	return c
}
