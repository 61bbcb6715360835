package fuzzy

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

type schemeDocument struct {
	XMLName         xml.Name         `xml:"FuzzyInferenceScheme"`
	Name            string           `xml:"name,attr"`
	NumberOfFactors int              `xml:"numberOfFactors,attr"`
	NumberOfRules   int              `xml:"numberOfRules,attr"`
	Factors         []factorDocument `xml:"Factor"`
	Rules           []ruleDocument   `xml:"Rules>Rule"`
}

type factorDocument struct {
	Name string        `xml:"name,attr"`
	Min  string        `xml:"min,attr"`
	Max  string        `xml:"max,attr"`
	Sets []setDocument `xml:"Set"`
}

type setDocument struct {
	Name   string `xml:"name,attr"`
	Type   string `xml:"type,attr"`
	Params string `xml:"params,attr"`
}

type ruleDocument struct {
	Consequent string              `xml:"consequent,attr"`
	Conditions []conditionDocument `xml:"Condition"`
}

type conditionDocument struct {
	Factor string `xml:"factor,attr"`
	Set    string `xml:"set,attr"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: non-finite value %q", field, s)
	}
	return v, nil
}

// Read replaces the scheme with the document read from r. On any failure the
// scheme is left unmodified and the error wraps models.ErrParseFailure.
func (s *Scheme) Read(r io.Reader) error {
	var doc schemeDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}
	parsed, err := fromDocument(&doc)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}
	*s = *parsed
	return nil
}

// ReadFile reads a scheme document from path
func (s *Scheme) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}
	defer f.Close()
	return s.Read(f)
}

// LoadScheme reads a new scheme from path
func LoadScheme(path string) (*Scheme, error) {
	s := NewScheme("")
	if err := s.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to load scheme %s: %w", path, err)
	}
	return s, nil
}

// ParseScheme reads a new scheme from document bytes
func ParseScheme(data []byte) (*Scheme, error) {
	s := NewScheme("")
	if err := s.Read(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return s, nil
}

// Write serializes the scheme as an indented XML document
func (s *Scheme) Write(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(s.toDocument()); err != nil {
		return fmt.Errorf("failed to encode scheme %s: %w", s.name, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile writes the scheme document to path
func (s *Scheme) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create scheme file %s: %w", path, err)
	}
	if err := s.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MarshalText returns the scheme document as bytes
func (s *Scheme) MarshalText() ([]byte, error) {
	var sb strings.Builder
	if err := s.Write(&sb); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func (s *Scheme) toDocument() *schemeDocument {
	doc := &schemeDocument{
		Name:            s.name,
		NumberOfFactors: len(s.factors),
		NumberOfRules:   len(s.rules),
	}
	for _, f := range s.factors {
		fd := factorDocument{Name: f.Name, Min: formatFloat(f.Min), Max: formatFloat(f.Max)}
		for _, set := range f.Sets {
			params := make([]string, len(set.Params))
			for i, p := range set.Params {
				params[i] = formatFloat(p)
			}
			fd.Sets = append(fd.Sets, setDocument{
				Name:   set.Name,
				Type:   string(set.Kind),
				Params: strings.Join(params, " "),
			})
		}
		doc.Factors = append(doc.Factors, fd)
	}
	for _, r := range s.rules {
		rd := ruleDocument{Consequent: formatFloat(r.Consequent)}
		// Conditions follow factor declaration order for a stable document.
		for _, f := range s.factors {
			if set, ok := r.Antecedent[f.Name]; ok {
				rd.Conditions = append(rd.Conditions, conditionDocument{Factor: f.Name, Set: set})
			}
		}
		doc.Rules = append(doc.Rules, rd)
	}
	return doc
}

func fromDocument(doc *schemeDocument) (*Scheme, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("scheme name attribute is required")
	}
	if doc.NumberOfFactors != len(doc.Factors) {
		return nil, fmt.Errorf("numberOfFactors is %d but %d factors are declared", doc.NumberOfFactors, len(doc.Factors))
	}
	if doc.NumberOfRules != 0 && doc.NumberOfRules != len(doc.Rules) {
		return nil, fmt.Errorf("numberOfRules is %d but %d rules are declared", doc.NumberOfRules, len(doc.Rules))
	}

	s := NewScheme(doc.Name)
	for _, fd := range doc.Factors {
		lo, err := parseFloat("factor "+fd.Name+" min", fd.Min)
		if err != nil {
			return nil, err
		}
		hi, err := parseFloat("factor "+fd.Name+" max", fd.Max)
		if err != nil {
			return nil, err
		}
		f := Factor{Name: fd.Name, Min: lo, Max: hi}
		for _, sd := range fd.Sets {
			fields := strings.Fields(sd.Params)
			params := make([]float64, len(fields))
			for i, field := range fields {
				if params[i], err = parseFloat("set "+sd.Name+" params", field); err != nil {
					return nil, err
				}
			}
			f.Sets = append(f.Sets, MembershipFunction{
				Name:   sd.Name,
				Kind:   MembershipKind(strings.ToLower(sd.Type)),
				Params: params,
			})
		}
		if err := s.AddFactor(f); err != nil {
			return nil, err
		}
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		c, err := parseFloat(fmt.Sprintf("rule %d consequent", i), rd.Consequent)
		if err != nil {
			return nil, err
		}
		r := Rule{Antecedent: make(map[string]string, len(rd.Conditions)), Consequent: c}
		for _, cd := range rd.Conditions {
			if _, dup := r.Antecedent[cd.Factor]; dup {
				return nil, fmt.Errorf("rule %d: factor %s appears twice", i, cd.Factor)
			}
			r.Antecedent[cd.Factor] = cd.Set
		}
		rules = append(rules, r)
	}
	s.rules = rules
	if err := s.ComputeDecisionMatrix(); err != nil {
		return nil, err
	}
	return s, nil
}
