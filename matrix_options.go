package jobpoll

import (
	"errors"
	"fmt"
)

// matrixConfig holds configuration during job matrix construction.
type matrixConfig struct {
	payload    map[string]any
	dimensions map[string][]string
	priority   Priority
}

// MatrixOption configures job matrix generation.
// MatrixOption implements the functional options pattern for [NewJobMatrix].
type MatrixOption func(*matrixConfig) error

// WithMatrixPayload sets the payload template shared by all generated
// requests. String values use Go's text/template syntax with dimension
// names as variables.
//
// Example:
//
//	WithMatrixPayload(map[string]any{
//	    "query":  "{{.sector}} companies in {{.region}}",
//	    "limit":  25,
//	})
//
// A nil payload is valid; the generated payloads then carry only the
// dimension values.
func WithMatrixPayload(payload map[string]any) MatrixOption {
	return func(cfg *matrixConfig) error {
		cfg.payload = payload
		return nil
	}
}

// WithMatrixDimensions sets the dimension values for cartesian product
// expansion. Each key in the map becomes a template variable, and the
// cartesian product of all values generates the request combinations.
//
// Example:
//
//	WithMatrixDimensions(map[string][]string{
//	    "sector": {"fintech", "biotech"},
//	    "region": {"us-east", "eu-west"},
//	})
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithMatrixDimensions(dims map[string][]string) MatrixOption {
	return func(cfg *matrixConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithMatrixPriority sets the priority on all generated requests.
//
// Returns an error if the value is not a defined [Priority].
func WithMatrixPriority(p Priority) MatrixOption {
	return func(cfg *matrixConfig) error {
		if !p.valid() {
			return fmt.Errorf("invalid priority %q (must be %q or %q)", p, PriorityNormal, PriorityHigh)
		}
		cfg.priority = p
		return nil
	}
}
