package thehive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mkivela/go-thehive/internal/api"
)

// JobService reads and polls Cortex jobs. All methods return ErrNoCortex
// when the client was built without a Cortex endpoint; jobs launched
// through the TheHive connector are polled via ConnectorService instead.
type JobService interface {
	// Get retrieves the current state of a job.
	Get(ctx context.Context, id string, opts ...RequestOption) (*Job, error)

	// Report retrieves the report of a terminal job.
	Report(ctx context.Context, id string, opts ...RequestOption) (*JobReport, error)

	// Poll queries the job status at a fixed interval until the job
	// reaches a terminal status or the wait budget is exhausted.
	Poll(ctx context.Context, id string, opts PollOptions) (*PollResult, error)

	// Delete removes a job.
	Delete(ctx context.Context, id string, opts ...RequestOption) error
}

// jobService implements JobService against Cortex. transport is nil when
// Cortex is not configured.
type jobService struct {
	transport *api.Transport
}

func newJobService(transport *api.Transport) *jobService {
	return &jobService{transport: transport}
}

// Get retrieves the current state of a job.
func (s *jobService) Get(ctx context.Context, id string, opts ...RequestOption) (*Job, error) {
	if s.transport == nil {
		return nil, ErrNoCortex
	}
	if err := validateID("job", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Job
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/job/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "job not found"},
			ResourceType: "job",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// Report retrieves the report of a terminal job.
func (s *jobService) Report(ctx context.Context, id string, opts ...RequestOption) (*JobReport, error) {
	if s.transport == nil {
		return nil, ErrNoCortex
	}
	if err := validateID("job", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Job
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/job/%s/report", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "job not found"},
			ResourceType: "job",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	if len(result.Report) == 0 {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "job has no report yet"},
			ResourceType: "report",
			ResourceID:   id,
		}
	}

	var report JobReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		return nil, fmt.Errorf("thehive: unmarshaling job report: %w", err)
	}
	return &report, nil
}

// Poll queries the job status at a fixed interval until the job reaches a
// terminal status or the wait budget is exhausted.
func (s *jobService) Poll(ctx context.Context, id string, opts PollOptions) (*PollResult, error) {
	if s.transport == nil {
		return nil, ErrNoCortex
	}
	return pollJob(ctx, s, id, opts)
}

// Delete removes a job.
func (s *jobService) Delete(ctx context.Context, id string, opts ...RequestOption) error {
	if s.transport == nil {
		return ErrNoCortex
	}
	if err := validateID("job", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("/api/job/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "job not found"},
			ResourceType: "job",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}
