package annealing

import "math"

// Schedule returns the temperature after k cooling steps. Implementations
// must be monotonically non-increasing in k.
type Schedule interface {
	Temperature(k int) float64
	Name() string
}

// Geometric cools as Start * Alpha^k
type Geometric struct {
	Start float64
	Alpha float64
}

func (g Geometric) Temperature(k int) float64 {
	return g.Start * math.Pow(g.Alpha, float64(k))
}

func (g Geometric) Name() string {
	return string(ScheduleGeometric)
}

// Linear cools by a fixed Step per iteration and never drops below zero
type Linear struct {
	Start float64
	Step  float64
}

func (l Linear) Temperature(k int) float64 {
	return math.Max(0, l.Start-float64(k)*l.Step)
}

func (l Linear) Name() string {
	return string(ScheduleLinear)
}

// AcceptanceProbability is the Metropolis criterion: 1 for non-worsening
// moves, exp(-delta/T) otherwise.
func AcceptanceProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1
	}
	if temperature <= 0 {
		return 0
	}
	return math.Exp(-delta / temperature)
}
