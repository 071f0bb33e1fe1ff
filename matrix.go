package jobpoll

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// MatrixJob is one expanded entry of a job matrix: a submit-ready
// request plus a label identifying the dimension combination it was
// generated from.
type MatrixJob struct {
	// Label holds the combination's values joined as "v1/v2", ordered
	// by sorted dimension names. Useful for naming and reporting.
	Label string

	// Request is the expanded job request.
	Request JobRequest
}

// NewJobMatrix creates multiple job requests from a payload template
// and dimensions using cartesian product expansion.
//
// String values in the payload template use Go's text/template syntax
// with dimension names as variables. Missing template keys cause an
// error (fail-fast). Non-string values are copied through unchanged,
// and nested maps and slices are walked recursively.
//
// Dimension values are also added to each payload under their dimension
// names; template entries take precedence on collision.
//
// Example:
//
//	jobs, err := jobpoll.NewJobMatrix("extract",
//	    jobpoll.WithMatrixPayload(map[string]any{
//	        "query": "companies in {{.region}}",
//	        "limit": 50,
//	    }),
//	    jobpoll.WithMatrixDimensions(map[string][]string{
//	        "region": {"us-east", "eu-west"},
//	    }),
//	)
//	// Returns 2 entries, one per region, each submittable on its own
//	// or through a Gate.
func NewJobMatrix(mode string, opts ...MatrixOption) ([]MatrixJob, error) {
	if strings.TrimSpace(mode) == "" {
		return nil, errors.New("mode cannot be empty")
	}

	cfg := &matrixConfig{}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	combinations := cartesianProduct(cfg.dimensions)
	if len(combinations) == 0 {
		return nil, nil
	}

	jobs := make([]MatrixJob, 0, len(combinations))
	for _, combo := range combinations {
		rendered, err := renderPayload(cfg.payload, combo)
		if err != nil {
			return nil, fmt.Errorf("payload template failed for combination %q: %w", comboLabel(combo), err)
		}

		// dimension values first, template entries override
		payload := make(map[string]any, len(combo)+len(rendered))
		for k, v := range combo {
			payload[k] = v
		}
		for k, v := range rendered {
			payload[k] = v
		}

		jobs = append(jobs, MatrixJob{
			Label: comboLabel(combo),
			Request: JobRequest{
				Payload:  payload,
				Priority: cfg.priority,
				Mode:     mode,
			},
		})
	}

	return jobs, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	// sort keys for deterministic iteration
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// defensive check for empty dimensions (also validated in WithMatrixDimensions)
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
	}

	// calculate total combinations
	total := 1
	for _, k := range keys {
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)

	// cartesian product
	indices := make([]int, len(keys))
	for {
		// combo is like our position in grid
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// increment indices (rightmost first)
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}

	}
}

// renderPayload walks the payload template and renders every string
// value against the combination. Maps and slices are walked
// recursively; other values are copied through unchanged.
func renderPayload(payload map[string]any, combo map[string]string) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	rendered, err := renderValue(payload, combo)
	if err != nil {
		return nil, err
	}
	return rendered.(map[string]any), nil
}

func renderValue(v any, combo map[string]string) (any, error) {
	switch val := v.(type) {
	case string:
		return renderString(val, combo)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			r, err := renderValue(inner, combo)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			r, err := renderValue(inner, combo)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// renderString renders one template string with missingkey=error for
// fail-fast behaviour. Strings without template actions pass through
// without parsing.
func renderString(s string, combo map[string]string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("payload").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", s, err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, combo); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// comboLabel formats a combination as "v1/v2".
// Values are ordered by sorted keys for consistent naming.
func comboLabel(combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return strings.Join(parts, "/")
}
