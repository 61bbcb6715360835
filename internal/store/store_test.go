package store

import (
	"errors"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testScheme(t *testing.T, name string, consequent float64) *fuzzy.Scheme {
	t.Helper()
	s := fuzzy.NewScheme(name)
	if err := s.AddFactor(fuzzy.Factor{
		Name: "N_input",
		Min:  0,
		Max:  100,
		Sets: []fuzzy.MembershipFunction{fuzzy.NewTriangular("any", 0, 50, 100)},
	}); err != nil {
		t.Fatalf("AddFactor: %v", err)
	}
	if err := s.AddRule(fuzzy.Rule{Antecedent: map[string]string{"N_input": "any"}, Consequent: consequent}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatalf("expected error for persistent store without path")
	}
}

func TestSchemeRoundTrip(t *testing.T) {
	s := openInMemory(t)
	if err := s.SaveScheme(testScheme(t, "n2o", 12.3)); err != nil {
		t.Fatalf("SaveScheme: %v", err)
	}
	if err := s.SaveScheme(testScheme(t, "ch4", 1.5)); err != nil {
		t.Fatalf("SaveScheme: %v", err)
	}

	got, err := s.LoadScheme("n2o")
	if err != nil {
		t.Fatalf("LoadScheme: %v", err)
	}
	if got.Name() != "n2o" || got.Consequents()[0] != 12.3 {
		t.Fatalf("unexpected scheme %s %v", got.Name(), got.Consequents())
	}

	names, err := s.ListSchemes()
	if err != nil {
		t.Fatalf("ListSchemes: %v", err)
	}
	if len(names) != 2 || names[0] != "ch4" || names[1] != "n2o" {
		t.Fatalf("unexpected names %v", names)
	}

	// Overwrite keeps one entry.
	if err := s.SaveScheme(testScheme(t, "n2o", 7)); err != nil {
		t.Fatalf("SaveScheme: %v", err)
	}
	got, _ = s.LoadScheme("n2o")
	if got.Consequents()[0] != 7 {
		t.Fatalf("overwrite not applied: %v", got.Consequents())
	}

	if err := s.DeleteScheme("ch4"); err != nil {
		t.Fatalf("DeleteScheme: %v", err)
	}
	if _, err := s.SchemeDocument("ch4"); !errors.Is(err, models.ErrSchemeNotFound) {
		t.Fatalf("expected ErrSchemeNotFound, got %v", err)
	}
}

func TestSaveSchemeRequiresName(t *testing.T) {
	s := openInMemory(t)
	if err := s.SaveScheme(testScheme(t, "", 1)); !errors.Is(err, models.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRunRecords(t *testing.T) {
	s := openInMemory(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := []*models.Run{
		{ID: "run-b", Status: models.RunStatusCompleted, SchemeName: "n2o", CreatedAt: base.Add(time.Minute)},
		{ID: "run-a", Status: models.RunStatusFailed, SchemeName: "n2o", CreatedAt: base, Error: "boom"},
	}
	for _, r := range runs {
		if err := s.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	got, err := s.GetRun("run-a")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != models.RunStatusFailed || got.Error != "boom" {
		t.Fatalf("unexpected run %+v", got)
	}
	if _, err := s.GetRun("missing"); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := s.SaveRun(&models.Run{}); !errors.Is(err, models.ErrRunIDMissing) {
		t.Fatalf("expected ErrRunIDMissing, got %v", err)
	}

	list, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list) != 2 || list[0].ID != "run-a" || list[1].ID != "run-b" {
		t.Fatalf("expected runs oldest first, got %v", list)
	}
}

func TestPersistentStoreReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveScheme(testScheme(t, "n2o", 3.6)); err != nil {
		t.Fatalf("SaveScheme: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.LoadScheme("n2o")
	if err != nil {
		t.Fatalf("LoadScheme: %v", err)
	}
	if got.Consequents()[0] != 3.6 {
		t.Fatalf("unexpected consequents %v", got.Consequents())
	}
}
