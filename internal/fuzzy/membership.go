package fuzzy

import (
	"fmt"
	"math"
)

// MembershipKind identifies the shape of a membership function
type MembershipKind string

const (
	// Triangular takes params a <= b <= c with peak at b
	Triangular MembershipKind = "triangular"
	// Trapezoidal takes params a <= b <= c <= d with plateau on [b, c]
	Trapezoidal MembershipKind = "trapezoidal"
	// Gaussian takes params mean, sigma (sigma > 0)
	Gaussian MembershipKind = "gaussian"
)

// MembershipFunction is a named fuzzy set over one factor
type MembershipFunction struct {
	Name   string
	Kind   MembershipKind
	Params []float64
}

// NewTriangular creates a triangular fuzzy set
func NewTriangular(name string, a, b, c float64) MembershipFunction {
	return MembershipFunction{Name: name, Kind: Triangular, Params: []float64{a, b, c}}
}

// NewTrapezoidal creates a trapezoidal fuzzy set
func NewTrapezoidal(name string, a, b, c, d float64) MembershipFunction {
	return MembershipFunction{Name: name, Kind: Trapezoidal, Params: []float64{a, b, c, d}}
}

// NewGaussian creates a gaussian fuzzy set
func NewGaussian(name string, mean, sigma float64) MembershipFunction {
	return MembershipFunction{Name: name, Kind: Gaussian, Params: []float64{mean, sigma}}
}

// Validate checks the parameter count and ordering for the kind
func (m MembershipFunction) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("membership function name cannot be empty")
	}
	p := m.Params
	switch m.Kind {
	case Triangular:
		if len(p) != 3 {
			return fmt.Errorf("set %s: triangular requires 3 params, got %d", m.Name, len(p))
		}
		if !(p[0] <= p[1] && p[1] <= p[2]) {
			return fmt.Errorf("set %s: triangular params must satisfy a <= b <= c", m.Name)
		}
	case Trapezoidal:
		if len(p) != 4 {
			return fmt.Errorf("set %s: trapezoidal requires 4 params, got %d", m.Name, len(p))
		}
		if !(p[0] <= p[1] && p[1] <= p[2] && p[2] <= p[3]) {
			return fmt.Errorf("set %s: trapezoidal params must satisfy a <= b <= c <= d", m.Name)
		}
	case Gaussian:
		if len(p) != 2 {
			return fmt.Errorf("set %s: gaussian requires 2 params, got %d", m.Name, len(p))
		}
		if p[1] <= 0 {
			return fmt.Errorf("set %s: gaussian sigma must be positive", m.Name)
		}
	default:
		return fmt.Errorf("set %s: unknown membership kind %q", m.Name, m.Kind)
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("set %s: params must be finite", m.Name)
		}
	}
	return nil
}

// Degree returns the membership degree of x in [0, 1].
// A zero-width rising or falling edge is treated as a shoulder.
func (m MembershipFunction) Degree(x float64) float64 {
	p := m.Params
	switch m.Kind {
	case Triangular:
		return trapezoid(x, p[0], p[1], p[1], p[2])
	case Trapezoidal:
		return trapezoid(x, p[0], p[1], p[2], p[3])
	case Gaussian:
		d := (x - p[0]) / p[1]
		return math.Exp(-0.5 * d * d)
	}
	return 0
}

func trapezoid(x, a, b, c, d float64) float64 {
	switch {
	case x < a || x > d:
		return 0
	case x < b:
		return (x - a) / (b - a)
	case x <= c:
		return 1
	default:
		return (d - x) / (d - c)
	}
}

func (m MembershipFunction) clone() MembershipFunction {
	m.Params = append([]float64(nil), m.Params...)
	return m
}
