package thehive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mkivela/go-thehive/internal/api"
)

// RunArtifactRequest submits an artifact to a Cortex analyzer.
type RunArtifactRequest struct {
	Data     string `json:"data"`
	DataType string `json:"dataType"`
	TLP      TLP    `json:"tlp"`
	Message  string `json:"message,omitempty"`
}

// AnalyzerService talks to Cortex directly. All methods return ErrNoCortex
// when the client was built without a Cortex endpoint.
type AnalyzerService interface {
	// List returns the analyzers enabled on the Cortex instance.
	List(ctx context.Context, opts ...RequestOption) ([]*Analyzer, error)

	// ListForType returns the analyzers accepting the given data type.
	ListForType(ctx context.Context, dataType string, opts ...RequestOption) ([]*Analyzer, error)

	// Run submits an artifact to an analyzer and returns the created job.
	Run(ctx context.Context, analyzerID string, req *RunArtifactRequest, opts ...RequestOption) (*Job, error)
}

// analyzerService implements AnalyzerService. transport is nil when Cortex
// is not configured.
type analyzerService struct {
	transport *api.Transport
}

func newAnalyzerService(transport *api.Transport) *analyzerService {
	return &analyzerService{transport: transport}
}

// List returns the analyzers enabled on the Cortex instance.
func (s *analyzerService) List(ctx context.Context, opts ...RequestOption) ([]*Analyzer, error) {
	if s.transport == nil {
		return nil, ErrNoCortex
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result []*Analyzer
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    "/api/analyzer",
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return result, nil
}

// ListForType returns the analyzers accepting the given data type.
func (s *analyzerService) ListForType(ctx context.Context, dataType string, opts ...RequestOption) ([]*Analyzer, error) {
	if s.transport == nil {
		return nil, ErrNoCortex
	}
	if dataType == "" {
		return nil, validationErr("dataType cannot be empty")
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result []*Analyzer
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/analyzer/type/%s", url.PathEscape(dataType)),
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return result, nil
}

// Run submits an artifact to an analyzer and returns the created job.
func (s *analyzerService) Run(ctx context.Context, analyzerID string, req *RunArtifactRequest, opts ...RequestOption) (*Job, error) {
	if s.transport == nil {
		return nil, ErrNoCortex
	}
	if err := validateID("analyzer", analyzerID); err != nil {
		return nil, err
	}
	if req == nil || req.Data == "" || req.DataType == "" {
		return nil, validationErr("artifact data and dataType are required")
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Job
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("/api/analyzer/%s/run", url.PathEscape(analyzerID)),
		Body:    req,
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "analyzer not found"},
			ResourceType: "analyzer",
			ResourceID:   analyzerID,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}
