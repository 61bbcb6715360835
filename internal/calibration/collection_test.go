package calibration

import (
	"context"
	"errors"
	"testing"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

type stubParameter struct {
	values []float64
}

func (s *stubParameter) NumParameters() int { return len(s.values) }

func (s *stubParameter) ChangeParameter(idx int) error {
	if idx < 0 || idx >= len(s.values) {
		return models.ErrIndexOutOfRange
	}
	s.values[idx]++
	return nil
}

func (s *stubParameter) Fitness(context.Context) (float64, error) { return 0, nil }

func (s *stubParameter) Snapshot() []float64 { return append([]float64(nil), s.values...) }

func (s *stubParameter) Restore(snapshot []float64) error {
	if len(snapshot) != len(s.values) {
		return models.ErrIndexOutOfRange
	}
	copy(s.values, snapshot)
	return nil
}

func TestCollectionMembership(t *testing.T) {
	a := &stubParameter{values: []float64{1, 2}}
	b := &stubParameter{values: []float64{3}}
	c := NewCollection(a, b)

	c.Add(a) // already a member
	if c.Len() != 2 {
		t.Fatalf("expected 2 members, got %d", c.Len())
	}
	if c.TotalDimensions() != 3 {
		t.Fatalf("expected 3 dimensions, got %d", c.TotalDimensions())
	}

	p, err := c.At(1)
	if err != nil || p != b {
		t.Fatalf("At(1) = %v, %v", p, err)
	}
	if _, err := c.At(2); !errors.Is(err, models.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	c.Remove(a)
	if c.Len() != 1 {
		t.Fatalf("expected 1 member after remove, got %d", c.Len())
	}
	if p, _ := c.At(0); p != b {
		t.Fatalf("expected b to remain")
	}
}

func TestCursorsAreIndependent(t *testing.T) {
	params := []*stubParameter{{values: []float64{1}}, {values: []float64{2}}, {values: []float64{3}}}
	c := NewCollection(params[0], params[1], params[2])

	first := c.Cursor()
	second := c.Cursor()

	if p, ok := first.Next(); !ok || p != params[0] {
		t.Fatalf("first cursor should start at member 0")
	}
	if p, ok := first.Next(); !ok || p != params[1] {
		t.Fatalf("first cursor should advance to member 1")
	}
	// The second cursor is unaffected by the first.
	if p, ok := second.Next(); !ok || p != params[0] {
		t.Fatalf("second cursor should start at member 0")
	}
	if first.Index() != 1 || second.Index() != 0 {
		t.Fatalf("unexpected positions %d %d", first.Index(), second.Index())
	}

	count := 1
	for _, ok := first.Next(); ok; _, ok = first.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected one remaining member, walked %d", count)
	}
	if _, ok := first.Next(); ok {
		t.Fatalf("exhausted cursor must stay exhausted")
	}

	first.Reset()
	if p, ok := first.Next(); !ok || p != params[0] {
		t.Fatalf("reset cursor should restart at member 0")
	}

	n := 0
	for range c.All() {
		n++
	}
	if n != 3 {
		t.Fatalf("All yielded %d members", n)
	}
}

func TestCollectionSnapshotRestore(t *testing.T) {
	a := &stubParameter{values: []float64{1, 2}}
	b := &stubParameter{values: []float64{3}}
	c := NewCollection(a, b)

	snap := c.Snapshot()
	_ = a.ChangeParameter(0)
	_ = b.ChangeParameter(0)

	if err := c.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if a.values[0] != 1 || b.values[0] != 3 {
		t.Fatalf("restore did not apply: %v %v", a.values, b.values)
	}
	if err := c.Restore(snap[:1]); !errors.Is(err, models.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for short snapshot, got %v", err)
	}
}
