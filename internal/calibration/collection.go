package calibration

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// Collection is the ordered set of parameters taking part in one run
type Collection struct {
	params []Parameter
}

// NewCollection creates a collection holding params in order
func NewCollection(params ...Parameter) *Collection {
	c := &Collection{}
	for _, p := range params {
		c.Add(p)
	}
	return c
}

// Add appends p unless it is already a member
func (c *Collection) Add(p Parameter) {
	if p == nil || c.indexOf(p) >= 0 {
		return
	}
	c.params = append(c.params, p)
}

// Remove drops p from the collection if present
func (c *Collection) Remove(p Parameter) {
	if i := c.indexOf(p); i >= 0 {
		c.params = slices.Delete(c.params, i, i+1)
	}
}

func (c *Collection) indexOf(p Parameter) int {
	for i, q := range c.params {
		if q == p {
			return i
		}
	}
	return -1
}

// Len returns the number of parameters
func (c *Collection) Len() int {
	return len(c.params)
}

// At returns the i-th parameter
func (c *Collection) At(i int) (Parameter, error) {
	if i < 0 || i >= len(c.params) {
		return nil, fmt.Errorf("%w: parameter %d (len %d)", models.ErrIndexOutOfRange, i, len(c.params))
	}
	return c.params[i], nil
}

// TotalDimensions returns the sum of NumParameters over all members
func (c *Collection) TotalDimensions() int {
	n := 0
	for _, p := range c.params {
		n += p.NumParameters()
	}
	return n
}

// All iterates over the members in order
func (c *Collection) All() iter.Seq2[int, Parameter] {
	return func(yield func(int, Parameter) bool) {
		for i, p := range c.params {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Cursor returns a new independent cursor positioned before the first member.
// Cursors hold only a position, so any number can walk the same collection.
func (c *Collection) Cursor() *Cursor {
	return &Cursor{c: c, pos: -1}
}

// Snapshot captures the coefficients of every member, in order
func (c *Collection) Snapshot() [][]float64 {
	out := make([][]float64, len(c.params))
	for i, p := range c.params {
		out[i] = p.Snapshot()
	}
	return out
}

// Restore applies a snapshot taken by Snapshot. Every member is restored
// even if one fails; the errors are joined.
func (c *Collection) Restore(snapshot [][]float64) error {
	if len(snapshot) != len(c.params) {
		return fmt.Errorf("%w: snapshot has %d entries for %d parameters", models.ErrIndexOutOfRange, len(snapshot), len(c.params))
	}
	var errs []error
	for i, p := range c.params {
		if err := p.Restore(snapshot[i]); err != nil {
			errs = append(errs, fmt.Errorf("parameter %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Cursor walks a Collection. The position is resolved against the
// collection's current members on every call.
type Cursor struct {
	c   *Collection
	pos int
}

// Next advances the cursor and returns the parameter at the new position
func (cur *Cursor) Next() (Parameter, bool) {
	if cur.pos+1 >= len(cur.c.params) {
		cur.pos = len(cur.c.params)
		return nil, false
	}
	cur.pos++
	return cur.c.params[cur.pos], true
}

// Index returns the current position, -1 before the first call to Next
func (cur *Cursor) Index() int {
	return cur.pos
}

// Reset moves the cursor back before the first member
func (cur *Cursor) Reset() {
	cur.pos = -1
}
