// Package dataset loads observed samples for calibration from CSV files.
//
// The header row names the columns. The target column holds the observed
// response; every other column whose first value is numeric is a factor.
// Non-numeric columns are labels, and the first of them names each row.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/kvmap"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// Dataset is a loaded table of samples
type Dataset struct {
	Factors []string
	Target  string
	Samples []calibration.Sample
	// Labels holds the row label per sample, empty when no label column exists
	Labels []string
}

// Len returns the number of samples
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Label returns the label of row i, or its 1-based row number
func (d *Dataset) Label(i int) string {
	if i < len(d.Labels) && d.Labels[i] != "" {
		return d.Labels[i]
	}
	return strconv.Itoa(i + 1)
}

// LoadFile reads a CSV dataset from path
func LoadFile(path, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()
	ds, err := Read(f, target)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Read parses a CSV dataset. An empty target loads factors only, leaving
// Observed at zero; this is how rows are read for evaluation.
func Read(r io.Reader, target string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty dataset", models.ErrParseFailure)
		}
		return nil, fmt.Errorf("%w: header: %v", models.ErrParseFailure, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	targetCol := -1
	if target != "" {
		for i, name := range header {
			if name == target {
				targetCol = i
			}
		}
		if targetCol < 0 {
			return nil, fmt.Errorf("%w: target column %q not found", models.ErrParseFailure, target)
		}
	}

	ds := &Dataset{Target: target}
	var factorCols []int
	labelCol := -1
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrParseFailure, line, err)
		}

		if factorCols == nil {
			factorCols, labelCol = classify(header, record, targetCol)
			if len(factorCols) == 0 {
				return nil, fmt.Errorf("%w: no numeric factor columns", models.ErrParseFailure)
			}
			for _, c := range factorCols {
				ds.Factors = append(ds.Factors, header[c])
			}
		}

		factors := kvmap.New()
		for _, c := range factorCols {
			v, err := parseFloat(record[c])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", models.ErrParseFailure, line, header[c], err)
			}
			factors.Add(header[c], v)
		}
		sample := calibration.Sample{Factors: factors}
		if targetCol >= 0 {
			v, err := parseFloat(record[targetCol])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", models.ErrParseFailure, line, target, err)
			}
			sample.Observed = v
		}
		ds.Samples = append(ds.Samples, sample)
		if labelCol >= 0 {
			ds.Labels = append(ds.Labels, record[labelCol])
		}
	}
	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", models.ErrParseFailure)
	}
	return ds, nil
}

// classify splits columns into numeric factors and the first label column
// using the first data row.
func classify(header, first []string, targetCol int) ([]int, int) {
	factors := []int{}
	label := -1
	for i := range header {
		if i == targetCol {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(first[i]), 64); err == nil {
			factors = append(factors, i)
		} else if label < 0 {
			label = i
		}
	}
	return factors, label
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
