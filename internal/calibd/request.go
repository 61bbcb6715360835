package calibd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/dataset"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/store"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/kvmap"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// RunRequest describes a calibration run. The scheme comes either inline
// (SchemeXML) or from the scheme store (SchemeName); samples come either
// inline or as CSV text with a target column.
type RunRequest struct {
	RunID      string `json:"run_id,omitempty"`
	SchemeName string `json:"scheme_name,omitempty"`
	SchemeXML  string `json:"scheme_xml,omitempty"`
	// OutputName stores the calibrated scheme under this name; defaults to
	// the scheme's own name.
	OutputName  string             `json:"output_name,omitempty"`
	Samples     []SampleInput      `json:"samples,omitempty"`
	DatasetCSV  string             `json:"dataset_csv,omitempty"`
	Target      string             `json:"target,omitempty"`
	Annealing   config.Annealing   `json:"annealing"`
	Calibration config.Calibration `json:"calibration"`
	Metadata    map[string]string  `json:"metadata,omitempty"`

	// CallbackURL receives a POST when the run reaches a final status.
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// SampleInput is one inline observation
type SampleInput struct {
	Factors  map[string]float64 `json:"factors"`
	Observed float64            `json:"observed"`
}

// EvaluateRequest asks for scheme responses to a batch of factor maps
type EvaluateRequest struct {
	SchemeName string               `json:"scheme_name,omitempty"`
	SchemeXML  string               `json:"scheme_xml,omitempty"`
	Inputs     []map[string]float64 `json:"inputs"`
}

// EvaluateResponse holds one response per input, in order
type EvaluateResponse struct {
	Scheme    string    `json:"scheme"`
	Responses []float64 `json:"responses"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// resolveScheme parses the inline document or loads the named scheme
func resolveScheme(name, doc string, schemes *store.Store) (*fuzzy.Scheme, error) {
	switch {
	case doc != "" && name != "":
		return nil, invalid("set only one of scheme_xml and scheme_name")
	case doc != "":
		return fuzzy.ParseScheme([]byte(doc))
	case name != "":
		if schemes == nil {
			return nil, fmt.Errorf("%w: %s (no scheme store configured)", models.ErrSchemeNotFound, name)
		}
		return schemes.LoadScheme(name)
	default:
		return nil, invalid("scheme_xml or scheme_name is required")
	}
}

// resolve validates the request and builds its scheme and samples
func (r *RunRequest) resolve(schemes *store.Store) (*fuzzy.Scheme, []calibration.Sample, error) {
	if err := config.ValidateAnnealing(r.Annealing); err != nil {
		return nil, nil, err
	}
	if err := calibration.OptionsFromConfig(r.Calibration).Validate(); err != nil {
		return nil, nil, err
	}

	if r.CallbackURL != "" {
		u, err := url.Parse(r.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, nil, invalid("callback_url must be an absolute http(s) URL")
		}
	}

	scheme, err := resolveScheme(r.SchemeName, r.SchemeXML, schemes)
	if err != nil {
		return nil, nil, err
	}

	var samples []calibration.Sample
	switch {
	case len(r.Samples) > 0 && r.DatasetCSV != "":
		return nil, nil, invalid("set only one of samples and dataset_csv")
	case len(r.Samples) > 0:
		samples = make([]calibration.Sample, 0, len(r.Samples))
		for _, in := range r.Samples {
			samples = append(samples, calibration.Sample{Factors: kvmap.FromMap(in.Factors), Observed: in.Observed})
		}
	case r.DatasetCSV != "":
		if r.Target == "" {
			return nil, nil, invalid("target is required with dataset_csv")
		}
		ds, err := dataset.Read(strings.NewReader(r.DatasetCSV), r.Target)
		if err != nil {
			return nil, nil, err
		}
		samples = ds.Samples
	default:
		return nil, nil, invalid("samples or dataset_csv is required")
	}
	return scheme, samples, nil
}

// Evaluate computes scheme responses for every input. The first failing
// input aborts the batch.
func Evaluate(req *EvaluateRequest, schemes *store.Store) (*EvaluateResponse, error) {
	if req == nil || len(req.Inputs) == 0 {
		return nil, invalid("inputs are required")
	}
	scheme, err := resolveScheme(req.SchemeName, req.SchemeXML, schemes)
	if err != nil {
		return nil, err
	}
	out := &EvaluateResponse{Scheme: scheme.Name(), Responses: make([]float64, 0, len(req.Inputs))}
	for i, in := range req.Inputs {
		y, err := scheme.ComputeResponse(kvmap.FromMap(in))
		if err != nil {
			evaluations.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out.Responses = append(out.Responses, y)
	}
	evaluations.WithLabelValues("ok").Add(float64(len(out.Responses)))
	return out, nil
}
