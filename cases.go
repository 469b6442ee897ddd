package thehive

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/mkivela/go-thehive/internal/api"
)

// CreateCaseRequest contains data for creating a new case.
type CreateCaseRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    Severity  `json:"severity,omitempty"`
	TLP         TLP       `json:"tlp,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Flag        bool      `json:"flag,omitempty"`
	StartDate   Timestamp `json:"startDate,omitzero"`

	CustomFields map[string]any `json:"customFields,omitempty"`
}

// UpdateCaseRequest contains data for updating a case. Nil fields are left
// unchanged.
type UpdateCaseRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	TLP         *TLP      `json:"tlp,omitempty"`
	Assignee    *string   `json:"assignee,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// CloseCaseRequest contains data for resolving a case.
type CloseCaseRequest struct {
	// Status of the resolution, e.g. "TruePositive" or "FalsePositive".
	ResolutionStatus string `json:"resolutionStatus,omitempty"`
	Summary          string `json:"summary,omitempty"`
}

// CaseFilter defines search criteria for cases.
type CaseFilter struct {
	Status   []CaseStatus
	Severity []Severity
	Assignee string
}

// CaseService provides operations on TheHive cases.
type CaseService interface {
	// Search returns an iterator over all cases matching the filter.
	Search(ctx context.Context, filter *CaseFilter, opts ...RequestOption) iter.Seq2[*Case, error]

	// SearchPage returns a single page of cases.
	SearchPage(ctx context.Context, filter *CaseFilter, page *PageOptions, opts ...RequestOption) ([]*Case, error)

	// Get retrieves a single case by ID.
	Get(ctx context.Context, id string, opts ...RequestOption) (*Case, error)

	// Create creates a new case.
	Create(ctx context.Context, req *CreateCaseRequest, opts ...RequestOption) (*Case, error)

	// Update modifies an existing case.
	Update(ctx context.Context, id string, req *UpdateCaseRequest, opts ...RequestOption) error

	// Close resolves a case.
	Close(ctx context.Context, id string, req *CloseCaseRequest, opts ...RequestOption) error

	// Delete removes a case by ID.
	Delete(ctx context.Context, id string, opts ...RequestOption) error
}

// caseService implements CaseService.
type caseService struct {
	transport *api.Transport
}

func newCaseService(transport *api.Transport) *caseService {
	return &caseService{transport: transport}
}

func validateCreateCase(req *CreateCaseRequest) error {
	if req == nil {
		return validationErr("create request cannot be nil")
	}
	if req.Title == "" {
		return validationErr("case title is required")
	}
	return nil
}

// Search returns an iterator over all cases matching the filter.
func (s *caseService) Search(ctx context.Context, filter *CaseFilter, opts ...RequestOption) iter.Seq2[*Case, error] {
	return func(yield func(*Case, error) bool) {
		offset := 0

		for {
			cases, err := s.SearchPage(ctx, filter, &PageOptions{
				Offset: offset,
				Limit:  defaultPageSize,
			}, opts...)

			if err != nil {
				yield(nil, err)
				return
			}

			for _, c := range cases {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(c, nil) {
					return
				}
			}

			if len(cases) < defaultPageSize {
				return
			}

			offset += len(cases)
		}
	}
}

// SearchPage returns a single page of cases.
func (s *caseService) SearchPage(ctx context.Context, filter *CaseFilter, page *PageOptions, opts ...RequestOption) ([]*Case, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	body := buildQuery("listCase", caseFilterClauses(filter), page)

	var result []*Case
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

// Get retrieves a single case by ID.
func (s *caseService) Get(ctx context.Context, id string, opts ...RequestOption) (*Case, error) {
	if err := validateID("case", id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Case
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/v1/case/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, &result)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "case not found"},
			ResourceType: "case",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// Create creates a new case.
func (s *caseService) Create(ctx context.Context, req *CreateCaseRequest, opts ...RequestOption) (*Case, error) {
	if err := validateCreateCase(req); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Case
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/api/v1/case",
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

// Update modifies an existing case.
func (s *caseService) Update(ctx context.Context, id string, req *UpdateCaseRequest, opts ...RequestOption) error {
	if err := validateID("case", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPatch,
		Path:    fmt.Sprintf("/api/v1/case/%s", url.PathEscape(id)),
		Body:    req,
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "case not found"},
			ResourceType: "case",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// Close resolves a case.
func (s *caseService) Close(ctx context.Context, id string, req *CloseCaseRequest, opts ...RequestOption) error {
	if err := validateID("case", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	body := map[string]any{
		"status": CaseResolved,
	}
	if req != nil {
		if req.ResolutionStatus != "" {
			body["resolutionStatus"] = req.ResolutionStatus
		}
		if req.Summary != "" {
			body["summary"] = req.Summary
		}
	}

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPatch,
		Path:    fmt.Sprintf("/api/v1/case/%s", url.PathEscape(id)),
		Body:    body,
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "case not found"},
			ResourceType: "case",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// Delete removes a case by ID.
func (s *caseService) Delete(ctx context.Context, id string, opts ...RequestOption) error {
	if err := validateID("case", id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("/api/v1/case/%s", url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, nil)

	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "case not found"},
			ResourceType: "case",
			ResourceID:   id,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// caseFilterClauses translates a CaseFilter into query filter clauses.
func caseFilterClauses(filter *CaseFilter) []map[string]any {
	if filter == nil {
		return nil
	}

	var clauses []map[string]any
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
	if filter.Assignee != "" {
		clauses = append(clauses, eqClause("assignee", filter.Assignee))
	}
	return clauses
}
