package annealing

import (
	"sort"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/utils"
)

// picker chooses the parameter index and dimension to perturb next
type picker interface {
	next() (param, dim int)
}

func newPicker(sel Selection, params *calibration.Collection, rng *utils.RandSource) picker {
	if sel == SelectionSequential {
		return &sequentialPicker{cursor: params.Cursor(), dim: -1}
	}
	return newRandomPicker(params, rng)
}

// sequentialPicker walks every dimension of every parameter in order and
// wraps around.
type sequentialPicker struct {
	cursor *calibration.Cursor
	cur    calibration.Parameter
	dim    int
}

func (s *sequentialPicker) next() (int, int) {
	if s.cur != nil && s.dim+1 < s.cur.NumParameters() {
		s.dim++
		return s.cursor.Index(), s.dim
	}
	for {
		p, ok := s.cursor.Next()
		if !ok {
			s.cursor.Reset()
			continue
		}
		if p.NumParameters() > 0 {
			s.cur, s.dim = p, 0
			return s.cursor.Index(), 0
		}
	}
}

// randomPicker samples uniformly over all dimensions of all parameters
type randomPicker struct {
	rng *utils.RandSource
	// ends[i] is the cumulative dimension count up to and including parameter i
	ends []int
}

func newRandomPicker(params *calibration.Collection, rng *utils.RandSource) *randomPicker {
	ends := make([]int, 0, params.Len())
	total := 0
	for _, p := range params.All() {
		total += p.NumParameters()
		ends = append(ends, total)
	}
	return &randomPicker{rng: rng, ends: ends}
}

func (r *randomPicker) next() (int, int) {
	n := r.rng.Intn(r.ends[len(r.ends)-1])
	i := sort.SearchInts(r.ends, n+1)
	start := 0
	if i > 0 {
		start = r.ends[i-1]
	}
	return i, n - start
}
