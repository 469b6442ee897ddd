package thehive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mkivela/go-thehive/internal/api"
)

// CreateObservableRequest contains data for adding an observable to a case.
type CreateObservableRequest struct {
	DataType string   `json:"dataType"`
	Data     string   `json:"data,omitempty"`
	Message  string   `json:"message,omitempty"`
	TLP      TLP      `json:"tlp,omitempty"`
	IOC      bool     `json:"ioc,omitempty"`
	Sighted  bool     `json:"sighted,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ObservableService provides operations on case observables.
type ObservableService interface {
	// Create adds a data observable (hash, domain, ip, url, ...) to a case.
	Create(ctx context.Context, caseID string, req *CreateObservableRequest, opts ...RequestOption) (*Observable, error)

	// CreateFile adds a file observable to a case via multipart upload.
	// The request's DataType must be "file" and Data is ignored; the
	// returned observable carries the server-computed attachment hashes.
	CreateFile(ctx context.Context, caseID string, req *CreateObservableRequest, filename string, content io.Reader, opts ...RequestOption) (*Observable, error)

	// Get retrieves a single observable by ID.
	Get(ctx context.Context, id string, opts ...RequestOption) (*Observable, error)

	// List returns all observables attached to a case.
	List(ctx context.Context, caseID string, opts ...RequestOption) ([]*Observable, error)

	// Delete removes an observable by ID.
	Delete(ctx context.Context, id string, opts ...RequestOption) error
}

// observableService implements ObservableService.
type observableService struct {
	transport *api.Transport
}

func newObservableService(transport *api.Transport) *observableService {
	return &observableService{transport: transport}
}

func validateCreateObservable(req *CreateObservableRequest) error {
	if req == nil {
		return validationErr("create request cannot be nil")
	}
	if req.DataType == "" {
		return validationErr("observable dataType is required")
	}
	return nil
}

// Create adds a data observable to a case.
//
// The server responds with the created observables as an array, even for a
// single value.
func (s *observableService) Create(ctx context.Context, caseID string, req *CreateObservableRequest, opts ...RequestOption) (*Observable, error) {
	if err := validateID("case", caseID); err != nil {
		return nil, err
	}
	if err := validateCreateObservable(req); err != nil {
		return nil, err
	}
	if req.Data == "" {
		return nil, validationErr("observable data is required for dataType %q", req.DataType)
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result []*Observable
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("/api/v1/case/%s/observable", url.PathEscape(caseID)),
		Body:    req,
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	if len(result) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "server returned no observable"}
	}

	return result[0], nil
}

// CreateFile adds a file observable to a case via multipart upload.
func (s *observableService) CreateFile(ctx context.Context, caseID string, req *CreateObservableRequest, filename string, content io.Reader, opts ...RequestOption) (*Observable, error) {
	if err := validateID("case", caseID); err != nil {
		return nil, err
	}
	if err := validateCreateObservable(req); err != nil {
		return nil, err
	}
	if req.DataType != "file" {
		return nil, validationErr("file observables require dataType \"file\", got %q", req.DataType)
	}
	if filename == "" || content == nil {
		return nil, validationErr("file observables require a filename and content")
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result []*Observable
	resp, err := s.transport.DoMultipart(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("/api/v1/case/%s/observable", url.PathEscape(caseID)),
		Body:    req,
		Headers: reqCfg.headers,
	}, []api.File{{
		FieldName: "attachment",
		Name:      filename,
		Content:   content,
	}}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	if len(result) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "server returned no observable"}
	}

	return result[0], nil
}

// Get retrieves a single observable by ID.
func (s *observableService) Get(ctx context.Context, id string, opts ...RequestOption) (*Observable, error) {
	if err := validateID("observable", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Observable
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/v1/observable/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "observable not found"},
			ResourceType: "observable",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// List returns all observables attached to a case.
func (s *observableService) List(ctx context.Context, caseID string, opts ...RequestOption) ([]*Observable, error) {
	if err := validateID("case", caseID); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	body := &queryBody{Query: []map[string]any{
		{"_name": "getCase", "idOrName": caseID},
		{"_name": "observables"},
	}}

	var result []*Observable
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/api/v1/query",
		Body:    body,
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

// Delete removes an observable by ID.
func (s *observableService) Delete(ctx context.Context, id string, opts ...RequestOption) error {
	if err := validateID("observable", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("/api/v1/observable/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "observable not found"},
			ResourceType: "observable",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}
