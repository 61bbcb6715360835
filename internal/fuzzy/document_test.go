package fuzzy

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

func TestReadFile(t *testing.T) {
	s, err := LoadScheme(filepath.Join("testdata", "n2o_scheme.xml"))
	if err != nil {
		t.Fatalf("LoadScheme: %v", err)
	}
	if s.Name() != "n2o_direct" {
		t.Fatalf("expected name n2o_direct, got %s", s.Name())
	}
	if s.NumFactors() != 2 || s.NumRules() != 4 {
		t.Fatalf("expected 2 factors and 4 rules, got %d and %d", s.NumFactors(), s.NumRules())
	}

	// Corner of the grid fires exactly one rule.
	got, err := s.ComputeResponse(factors(map[string]float64{"N_input": 200, "precipitation": 1500}))
	if err != nil {
		t.Fatalf("ComputeResponse: %v", err)
	}
	if math.Abs(got-3.6) > 1e-12 {
		t.Fatalf("expected 3.6, got %f", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	original, err := LoadScheme(filepath.Join("testdata", "n2o_scheme.xml"))
	if err != nil {
		t.Fatalf("LoadScheme: %v", err)
	}
	if err := original.SetConsequent(2, 2.123456789012345); err != nil {
		t.Fatalf("SetConsequent: %v", err)
	}

	var buf bytes.Buffer
	if err := original.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), `numberOfFactors="2"`) {
		t.Fatalf("expected factor count attribute in document:\n%s", buf.String())
	}

	restored := NewScheme("")
	if err := restored.Read(&buf); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if restored.Name() != original.Name() {
		t.Fatalf("name mismatch: %s vs %s", restored.Name(), original.Name())
	}
	wantRules, gotRules := original.Rules(), restored.Rules()
	if len(gotRules) != len(wantRules) {
		t.Fatalf("rule count mismatch: %d vs %d", len(gotRules), len(wantRules))
	}
	for i := range wantRules {
		if math.Abs(gotRules[i].Consequent-wantRules[i].Consequent) > 1e-12 {
			t.Fatalf("rule %d consequent %v, want %v", i, gotRules[i].Consequent, wantRules[i].Consequent)
		}
		for f, set := range wantRules[i].Antecedent {
			if gotRules[i].Antecedent[f] != set {
				t.Fatalf("rule %d factor %s: set %s, want %s", i, f, gotRules[i].Antecedent[f], set)
			}
		}
	}
	wantFactors, gotFactors := original.Factors(), restored.Factors()
	for i := range wantFactors {
		if gotFactors[i].Name != wantFactors[i].Name || gotFactors[i].Min != wantFactors[i].Min || gotFactors[i].Max != wantFactors[i].Max {
			t.Fatalf("factor %d mismatch: %+v vs %+v", i, gotFactors[i], wantFactors[i])
		}
		for j, set := range wantFactors[i].Sets {
			got := gotFactors[i].Sets[j]
			if got.Name != set.Name || got.Kind != set.Kind || len(got.Params) != len(set.Params) {
				t.Fatalf("factor %d set %d mismatch: %+v vs %+v", i, j, got, set)
			}
			for k := range set.Params {
				if got.Params[k] != set.Params[k] {
					t.Fatalf("factor %d set %d param %d: %v vs %v", i, j, k, got.Params[k], set.Params[k])
				}
			}
		}
	}

	in := factors(map[string]float64{"N_input": 120, "precipitation": 650})
	a, _ := original.ComputeResponse(in)
	b, _ := restored.ComputeResponse(in)
	if math.Abs(a-b) > 1e-12 {
		t.Fatalf("round-tripped scheme responds differently: %v vs %v", a, b)
	}
}

func TestReadFailureLeavesSchemeUnmodified(t *testing.T) {
	s := newNitrogenScheme(t, 1, 2, 3)

	docs := []string{
		`<FuzzyInferenceScheme name="broken"`,
		`<FuzzyInferenceScheme name="x" numberOfFactors="2"><Factor name="a" min="0" max="1"><Set name="s" type="triangular" params="0 0 1"/></Factor></FuzzyInferenceScheme>`,
		`<FuzzyInferenceScheme name="x" numberOfFactors="1"><Factor name="a" min="zero" max="1"><Set name="s" type="triangular" params="0 0 1"/></Factor></FuzzyInferenceScheme>`,
		`<FuzzyInferenceScheme name="x" numberOfFactors="1"><Factor name="a" min="0" max="1"><Set name="s" type="triangular" params="0 0 1"/></Factor><Rules><Rule consequent="1"><Condition factor="a" set="missing"/></Rule></Rules></FuzzyInferenceScheme>`,
		`<FuzzyInferenceScheme numberOfFactors="0"></FuzzyInferenceScheme>`,
		`<FuzzyInferenceScheme name="x" numberOfFactors="1"><Factor name="a" min="0" max="Inf"><Set name="s" type="triangular" params="0 0 1"/></Factor></FuzzyInferenceScheme>`,
		`<FuzzyInferenceScheme name="x" numberOfFactors="1"><Factor name="a" min="0" max="1"><Set name="s" type="triangular" params="0 NaN 1"/></Factor></FuzzyInferenceScheme>`,
		`<FuzzyInferenceScheme name="x" numberOfFactors="1" numberOfRules="1"><Factor name="a" min="0" max="1"><Set name="s" type="triangular" params="0 0 1"/></Factor><Rules><Rule consequent="NaN"><Condition factor="a" set="s"/></Rule></Rules></FuzzyInferenceScheme>`,
	}
	for i, doc := range docs {
		err := s.Read(strings.NewReader(doc))
		if !errors.Is(err, models.ErrParseFailure) {
			t.Fatalf("doc %d: expected ErrParseFailure, got %v", i, err)
		}
		if s.Name() != "n2o" || s.NumRules() != 3 {
			t.Fatalf("doc %d: scheme was modified by a failed read", i)
		}
	}

	if err := s.ReadFile(filepath.Join("testdata", "does_not_exist.xml")); !errors.Is(err, models.ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure for missing file, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	s := newNitrogenScheme(t, 4, 12.3, 20)
	path := filepath.Join(t.TempDir(), "scheme.xml")
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := LoadScheme(path)
	if err != nil {
		t.Fatalf("LoadScheme: %v", err)
	}
	if got := loaded.Consequents(); got[1] != 12.3 {
		t.Fatalf("expected consequent 12.3 after reload, got %v", got)
	}
}
