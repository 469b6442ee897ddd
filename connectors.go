package thehive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mkivela/go-thehive/internal/api"
)

// Entity kinds accepted by RespondersFor.
const (
	EntityCase         = "case"
	EntityAlert        = "alert"
	EntityObservable   = "observable"
	EntityCaseArtifact = "case_artifact"
)

// RunAnalyzerRequest launches an analyzer on a case observable through the
// Cortex connector.
type RunAnalyzerRequest struct {
	AnalyzerID   string `json:"analyzerId"`
	CortexID     string `json:"cortexId"`
	ObservableID string `json:"artifactId"`
}

// RunResponderRequest launches a responder on an entity through the Cortex
// connector.
type RunResponderRequest struct {
	ResponderID string `json:"responderId"`
	CortexID    string `json:"cortexId,omitempty"`
	ObjectType  string `json:"objectType"`
	ObjectID    string `json:"objectId"`
}

// ConnectorService lists and launches Cortex analyzers and responders
// through TheHive's Cortex connector.
type ConnectorService interface {
	// ListAnalyzers returns every analyzer known to the connected Cortex
	// instances.
	ListAnalyzers(ctx context.Context, opts ...RequestOption) ([]*Analyzer, error)

	// AnalyzersFor returns the analyzers applicable to a data type.
	AnalyzersFor(ctx context.Context, dataType string, opts ...RequestOption) ([]*Analyzer, error)

	// RespondersFor returns the responders applicable to an entity.
	//
	// Observable entities are exposed under different paths depending on
	// the server version; each known variant is tried in order and the
	// first successful response wins.
	RespondersFor(ctx context.Context, entityKind, entityID string, opts ...RequestOption) ([]*Responder, error)

	// RunAnalyzer launches an analyzer on a case observable and returns
	// the created job.
	RunAnalyzer(ctx context.Context, req *RunAnalyzerRequest, opts ...RequestOption) (*Job, error)

	// RunResponder launches a responder on an entity.
	RunResponder(ctx context.Context, req *RunResponderRequest, opts ...RequestOption) (*Action, error)

	// GetJob retrieves a connector-launched job by ID.
	GetJob(ctx context.Context, id string, opts ...RequestOption) (*Job, error)

	// JobReport retrieves the report of a terminal connector-launched job.
	JobReport(ctx context.Context, id string, opts ...RequestOption) (*JobReport, error)

	// PollJob polls a connector-launched job until it reaches a terminal
	// status or the wait budget is exhausted. See JobService.Poll.
	PollJob(ctx context.Context, id string, opts PollOptions) (*PollResult, error)
}

// connectorService implements ConnectorService.
type connectorService struct {
	transport *api.Transport
}

func newConnectorService(transport *api.Transport) *connectorService {
	return &connectorService{transport: transport}
}

// ListAnalyzers returns every analyzer known to the connected Cortex instances.
func (s *connectorService) ListAnalyzers(ctx context.Context, opts ...RequestOption) ([]*Analyzer, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result []*Analyzer
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    "/api/connector/cortex/analyzer",
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

// AnalyzersFor returns the analyzers applicable to a data type.
func (s *connectorService) AnalyzersFor(ctx context.Context, dataType string, opts ...RequestOption) ([]*Analyzer, error) {
	if dataType == "" {
		return nil, validationErr("dataType cannot be empty")
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result []*Analyzer
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/connector/cortex/analyzer/type/%s", url.PathEscape(dataType)),
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

// responderPaths returns the endpoint variants to try for an entity kind,
// oldest first. Observables have appeared under four different paths across
// server versions.
func responderPaths(entityKind, entityID string) []string {
	id := url.PathEscape(entityID)
	if entityKind == EntityObservable || entityKind == EntityCaseArtifact {
		return []string{
			"/api/connector/cortex/responder/case_artifact/" + id,
			"/api/v1/connector/cortex/responder/case_artifact/" + id,
			"/api/connector/cortex/responder/observable/" + id,
			"/api/v1/connector/cortex/responder/observable/" + id,
		}
	}
	kind := url.PathEscape(entityKind)
	return []string{
		"/api/connector/cortex/responder/" + kind + "/" + id,
		"/api/v1/connector/cortex/responder/" + kind + "/" + id,
	}
}

func validEntityKind(kind string) bool {
	switch kind {
	case EntityCase, EntityAlert, EntityObservable, EntityCaseArtifact:
		return true
	default:
		return false
	}
}

// RespondersFor returns the responders applicable to an entity.
func (s *connectorService) RespondersFor(ctx context.Context, entityKind, entityID string, opts ...RequestOption) ([]*Responder, error) {
	if !validEntityKind(entityKind) {
		return nil, validationErr("entity kind must be one of case, alert, observable, case_artifact; got %q", entityKind)
	}
	if err := validateID("entity", entityID); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var attempts []error
	for _, path := range responderPaths(entityKind, entityID) {
		var result []*Responder
		resp, err := s.transport.DoJSON(ctx, &api.Request{
			Method:  http.MethodGet,
			Path:    path,
			Headers: reqCfg.headers,
		}, &result)

		if err != nil {
			attempts = append(attempts, fmt.Errorf("%s: %w", path, err))
			continue
		}

		if resp.StatusCode >= http.StatusBadRequest {
			attempts = append(attempts, fmt.Errorf("%s: %w", path, parseError(resp.StatusCode, resp.Body, resp.Headers)))
			continue
		}

		return result, nil
	}

	return nil, fmt.Errorf("thehive: no responder endpoint accepted %s %s: %w", entityKind, entityID, errors.Join(attempts...))
}

// RunAnalyzer launches an analyzer on a case observable.
func (s *connectorService) RunAnalyzer(ctx context.Context, req *RunAnalyzerRequest, opts ...RequestOption) (*Job, error) {
	if req == nil {
		return nil, validationErr("run request cannot be nil")
	}
	if req.AnalyzerID == "" || req.ObservableID == "" {
		return nil, validationErr("analyzerId and artifactId are required")
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Job
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/api/connector/cortex/job",
		Body:    req,
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// RunResponder launches a responder on an entity.
func (s *connectorService) RunResponder(ctx context.Context, req *RunResponderRequest, opts ...RequestOption) (*Action, error) {
	if req == nil {
		return nil, validationErr("run request cannot be nil")
	}
	if req.ResponderID == "" || req.ObjectType == "" || req.ObjectID == "" {
		return nil, validationErr("responderId, objectType and objectId are required")
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Action
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/api/connector/cortex/action",
		Body:    req,
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// GetJob retrieves a connector-launched job by ID.
func (s *connectorService) GetJob(ctx context.Context, id string, opts ...RequestOption) (*Job, error) {
	if err := validateID("job", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Job
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/connector/cortex/job/%s", url.PathEscape(id)),
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

// JobReport retrieves the report of a terminal connector-launched job. The
// connector inlines the report in the job document.
func (s *connectorService) JobReport(ctx context.Context, id string, opts ...RequestOption) (*JobReport, error) {
	job, err := s.GetJob(ctx, id, opts...)
	if err != nil {
		return nil, err
	}

	if len(job.Report) == 0 {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "job has no report yet"},
			ResourceType: "report",
			ResourceID:   id,
		}
	}

	var report JobReport
	if err := json.Unmarshal(job.Report, &report); err != nil {
		return nil, fmt.Errorf("thehive: unmarshaling job report: %w", err)
	}
	return &report, nil
}

// PollJob polls a connector-launched job until terminal status or timeout.
func (s *connectorService) PollJob(ctx context.Context, id string, opts PollOptions) (*PollResult, error) {
	return pollJob(ctx, s, id, opts)
}
