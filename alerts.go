package thehive

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/mkivela/go-thehive/internal/api"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// CreateAlertRequest contains data for creating a new alert.
type CreateAlertRequest struct {
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	SourceRef   string    `json:"sourceRef"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    Severity  `json:"severity,omitempty"`
	TLP         TLP       `json:"tlp,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Date        Timestamp `json:"date,omitzero"`

	// Observables are attached to the alert at creation time.
	Observables []Observable `json:"observables,omitempty"`

	CustomFields map[string]any `json:"customFields,omitempty"`
}

// UpdateAlertRequest contains data for updating an alert. Nil fields are
// left unchanged.
type UpdateAlertRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	TLP         *TLP      `json:"tlp,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// AlertFilter defines search criteria for alerts.
type AlertFilter struct {
	Type     string
	Source   string
	Status   []AlertStatus
	Severity []Severity
}

// AlertService provides operations on TheHive alerts.
type AlertService interface {
	// Search returns an iterator over all alerts matching the filter.
	// The iterator fetches pages lazily as you iterate.
	Search(ctx context.Context, filter *AlertFilter, opts ...RequestOption) iter.Seq2[*Alert, error]

	// SearchPage returns a single page of alerts.
	// Use this for manual pagination control.
	SearchPage(ctx context.Context, filter *AlertFilter, page *PageOptions, opts ...RequestOption) ([]*Alert, error)

	// Get retrieves a single alert by ID.
	Get(ctx context.Context, id string, opts ...RequestOption) (*Alert, error)

	// Create creates a new alert.
	Create(ctx context.Context, req *CreateAlertRequest, opts ...RequestOption) (*Alert, error)

	// Update modifies an existing alert.
	Update(ctx context.Context, id string, req *UpdateAlertRequest, opts ...RequestOption) error

	// Promote converts an alert into a case and returns the new case.
	Promote(ctx context.Context, id string, opts ...RequestOption) (*Case, error)

	// Delete removes an alert by ID.
	Delete(ctx context.Context, id string, opts ...RequestOption) error
}

// alertService implements AlertService.
type alertService struct {
	transport *api.Transport
}

func newAlertService(transport *api.Transport) *alertService {
	return &alertService{transport: transport}
}

// validateID checks that a resource ID is not empty.
func validateID(kind, id string) error {
	if id == "" {
		return validationErr("%s ID cannot be empty", kind)
	}
	return nil
}

func validateCreateAlert(req *CreateAlertRequest) error {
	if req == nil {
		return validationErr("create request cannot be nil")
	}
	if req.Title == "" {
		return validationErr("alert title is required")
	}
	if req.Type == "" || req.Source == "" || req.SourceRef == "" {
		return validationErr("alert type, source and sourceRef are required")
	}
	return nil
}

// Search returns an iterator over all alerts matching the filter.
func (s *alertService) Search(ctx context.Context, filter *AlertFilter, opts ...RequestOption) iter.Seq2[*Alert, error] {
	return func(yield func(*Alert, error) bool) {
		offset := 0

		for {
			alerts, err := s.SearchPage(ctx, filter, &PageOptions{
				Offset: offset,
				Limit:  defaultPageSize,
			}, opts...)

			if err != nil {
				yield(nil, err)
				return
			}

			for _, alert := range alerts {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(alert, nil) {
					return
				}
			}

			// A short page means the server ran out of results.
			if len(alerts) < defaultPageSize {
				return
			}

			offset += len(alerts)
		}
	}
}

// SearchPage returns a single page of alerts.
func (s *alertService) SearchPage(ctx context.Context, filter *AlertFilter, page *PageOptions, opts ...RequestOption) ([]*Alert, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	body := buildQuery("listAlert", alertFilterClauses(filter), page)

	var result []*Alert
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

// Get retrieves a single alert by ID.
func (s *alertService) Get(ctx context.Context, id string, opts ...RequestOption) (*Alert, error) {
	if err := validateID("alert", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Alert
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/v1/alert/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "alert not found"},
			ResourceType: "alert",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// Create creates a new alert.
func (s *alertService) Create(ctx context.Context, req *CreateAlertRequest, opts ...RequestOption) (*Alert, error) {
	if err := validateCreateAlert(req); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Alert
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/api/v1/alert",
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

// Update modifies an existing alert.
func (s *alertService) Update(ctx context.Context, id string, req *UpdateAlertRequest, opts ...RequestOption) error {
	if err := validateID("alert", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPatch,
		Path:    fmt.Sprintf("/api/v1/alert/%s", url.PathEscape(id)),
		Body:    req,
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "alert not found"},
			ResourceType: "alert",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// Promote converts an alert into a case.
func (s *alertService) Promote(ctx context.Context, id string, opts ...RequestOption) (*Case, error) {
	if err := validateID("alert", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Case
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("/api/v1/alert/%s/case", url.PathEscape(id)),
		Body:    map[string]any{},
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "alert not found"},
			ResourceType: "alert",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// Delete removes an alert by ID.
func (s *alertService) Delete(ctx context.Context, id string, opts ...RequestOption) error {
	if err := validateID("alert", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("/api/v1/alert/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "alert not found"},
			ResourceType: "alert",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// alertFilterClauses translates an AlertFilter into query filter clauses.
func alertFilterClauses(filter *AlertFilter) []map[string]any {
	if filter == nil {
		return nil
	}

	var clauses []map[string]any
	if filter.Type != "" {
		clauses = append(clauses, eqClause("type", filter.Type))
	}
	if filter.Source != "" {
		clauses = append(clauses, eqClause("source", filter.Source))
	}
	if len(filter.Status) > 0 {
		values := make([]any, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		clauses = append(clauses, inClause("status", values))
	}
	if len(filter.Severity) > 0 {
		values := make([]any, len(filter.Severity))
		for i, s := range filter.Severity {
			values[i] = int(s)
		}
		clauses = append(clauses, inClause("severity", values))
	}
	return clauses
}
