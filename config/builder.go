package config

import (
	"fmt"

	"github.com/stillriver/jobpoll"
)

// NamedRequest pairs a submit-ready job request with the name it will
// carry in reports.
//
// Direct job entries keep their configured name; matrix entries expand
// into one NamedRequest per dimension combination, named
// "<entry name>/<combination label>".
type NamedRequest struct {
	// Name identifies the request in summaries and logs.
	Name string

	// Request is the expanded job request.
	Request jobpoll.JobRequest
}

// ClientOptions converts the server and poll blocks of a parsed
// configuration into SDK client options.
//
// The returned options carry the per-call timeout, poll interval, max
// wait, and any configured headers. Pass them to [jobpoll.New] together
// with the config's base URL:
//
//	client, err := jobpoll.New(cfg.Server.BaseURL, config.ClientOptions(cfg)...)
func ClientOptions(cfg *Config) []jobpoll.Option {
	opts := []jobpoll.Option{
		jobpoll.WithTimeout(cfg.Server.Timeout.Duration()),
		jobpoll.WithPollInterval(cfg.Poll.Interval.Duration()),
		jobpoll.WithMaxWait(cfg.Poll.MaxWait.Duration()),
	}

	if len(cfg.Server.Headers) > 0 {
		opts = append(opts, jobpoll.WithHeaders(cfg.Server.Headers))
	}

	return opts
}

// BuildRequests converts parsed configuration into submit-ready SDK
// requests.
//
// It processes both direct job entries and matrix entries, returning a
// combined slice in file order. Matrix dimensions are expanded via
// cartesian product, so one matrix entry can yield many requests.
func BuildRequests(cfg *Config) ([]NamedRequest, error) {
	var requests []NamedRequest

	for _, jc := range cfg.Jobs {
		if jc.Matrix == nil {
			requests = append(requests, NamedRequest{
				Name: jc.Name,
				Request: jobpoll.JobRequest{
					Payload:  jc.Payload,
					Priority: jobpoll.Priority(jc.Priority),
					Mode:     jc.Mode,
				},
			})
			continue
		}

		expanded, err := buildMatrixRequests(jc)
		if err != nil {
			return nil, err
		}
		requests = append(requests, expanded...)
	}

	return requests, nil
}

// buildMatrixRequests expands one matrix entry into its combinations.
func buildMatrixRequests(jc JobConfig) ([]NamedRequest, error) {
	opts := []jobpoll.MatrixOption{
		jobpoll.WithMatrixDimensions(jc.Matrix.Dimensions),
	}
	if jc.Matrix.Payload != nil {
		opts = append(opts, jobpoll.WithMatrixPayload(jc.Matrix.Payload))
	}
	if jc.Priority != "" {
		opts = append(opts, jobpoll.WithMatrixPriority(jobpoll.Priority(jc.Priority)))
	}

	jobs, err := jobpoll.NewJobMatrix(jc.Mode, opts...)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", jc.Name, err)
	}

	requests := make([]NamedRequest, 0, len(jobs))
	for _, job := range jobs {
		requests = append(requests, NamedRequest{
			Name:    jc.Name + "/" + job.Label,
			Request: job.Request,
		})
	}
	return requests, nil
}
