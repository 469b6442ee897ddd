// Package workflow sequences the end-to-end incident-handling flow: alert,
// case, observables, analysis jobs, and an optional responder. It is pure
// sequencing; every remote interaction goes through the client services.
package workflow

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	thehive "github.com/mkivela/go-thehive"
)

// Service runs incident-handling workflows. Each Run invocation is a single
// logical thread of control; a Service holds no mutable state, so
// independent workflows may run concurrently.
type Service struct {
	Client *thehive.Client
	Logger *slog.Logger

	// Analyzers are the analyzer IDs to launch against matching
	// observables. Empty means the analysis stage is skipped.
	Analyzers []string

	// Responder is launched on the case when at least one analysis
	// succeeded. Empty means the responder stage is skipped.
	Responder string

	// Poll configures job polling for the analysis stage.
	Poll thehive.PollOptions
}

// ObservableInput is one piece of evidence to attach to the case.
type ObservableInput struct {
	DataType string
	Data     string
	Message  string
}

// Input describes one incident to handle.
type Input struct {
	Title       string
	Description string
	Severity    thehive.Severity
	Source      string
	// SourceRef uniquely identifies the event at its source. Generated
	// when empty.
	SourceRef   string
	Tags        []string
	Observables []ObservableInput
	// FilePath optionally attaches a file observable; its SHA-256 is
	// recorded on the observable message.
	FilePath string
}

// JobOutcome records one analysis job, including non-error outcomes such
// as timeouts.
type JobOutcome struct {
	ObservableID string
	AnalyzerID   string
	JobID        string
	Result       *thehive.PollResult
	Err          error
}

// Succeeded reports whether the job finished with a Success status.
func (o *JobOutcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil && !o.Result.TimedOut && o.Result.Status == thehive.JobSuccess
}

// Summary is the result of one workflow run.
type Summary struct {
	AlertID       string
	CaseID        string
	ObservableIDs []string
	Jobs          []JobOutcome
	ActionID      string
	ResponderRan  bool
}

// Run executes the workflow. It fails only when the mandatory spine (alert
// and case creation) fails; optional stages degrade to logged outcomes.
func (s *Service) Run(ctx context.Context, in *Input) (*Summary, error) {
	if in == nil || in.Title == "" {
		return nil, fmt.Errorf("workflow: input title is required")
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	source := in.Source
	if source == "" {
		source = "hivectl"
	}
	sourceRef := in.SourceRef
	if sourceRef == "" {
		sourceRef = uuid.NewString()
	}

	alert, err := s.Client.Alerts.Create(ctx, &thehive.CreateAlertRequest{
		Type:        "external",
		Source:      source,
		SourceRef:   sourceRef,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Tags:        in.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: creating alert: %w", err)
	}
	logger.InfoContext(ctx, "alert created", "alert_id", alert.ID, "source_ref", sourceRef)

	kase, err := s.Client.Alerts.Promote(ctx, alert.ID)
	if err != nil {
		return nil, fmt.Errorf("workflow: promoting alert %s: %w", alert.ID, err)
	}
	logger.InfoContext(ctx, "alert promoted to case", "case_id", kase.ID, "case_number", kase.Number)

	summary := &Summary{AlertID: alert.ID, CaseID: kase.ID}

	observables := s.addObservables(ctx, logger, kase.ID, in, summary)

	s.runAnalysis(ctx, logger, observables, summary)

	s.runResponder(ctx, logger, kase.ID, summary)

	return summary, nil
}

// addObservables attaches the inputs and the optional file to the case.
// Individual failures are logged and skipped.
func (s *Service) addObservables(ctx context.Context, logger *slog.Logger, caseID string, in *Input, summary *Summary) []*thehive.Observable {
	var created []*thehive.Observable

	for _, o := range in.Observables {
		obs, err := s.Client.Observables.Create(ctx, caseID, &thehive.CreateObservableRequest{
			DataType: o.DataType,
			Data:     o.Data,
			Message:  o.Message,
		})
		if err != nil {
			logger.WarnContext(ctx, "skipping observable",
				"data_type", o.DataType, "data", o.Data, "error", err)
			continue
		}
		created = append(created, obs)
		summary.ObservableIDs = append(summary.ObservableIDs, obs.ID)
	}

	if in.FilePath != "" {
		obs, err := s.uploadFile(ctx, caseID, in.FilePath)
		if err != nil {
			logger.WarnContext(ctx, "skipping file observable", "path", in.FilePath, "error", err)
		} else {
			created = append(created, obs)
			summary.ObservableIDs = append(summary.ObservableIDs, obs.ID)
		}
	}

	return created
}

func (s *Service) uploadFile(ctx context.Context, caseID, path string) (*thehive.Observable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	sum := sha256.Sum256(data)

	return s.Client.Observables.CreateFile(ctx, caseID, &thehive.CreateObservableRequest{
		DataType: "file",
		Message:  "sha256:" + hex.EncodeToString(sum[:]),
	}, filepath.Base(path), bytes.NewReader(data))
}

// runAnalysis launches the configured analyzers against matching
// observables and polls every job. Timeouts and failures become recorded
// outcomes, never workflow aborts.
func (s *Service) runAnalysis(ctx context.Context, logger *slog.Logger, observables []*thehive.Observable, summary *Summary) {
	if len(s.Analyzers) == 0 || len(observables) == 0 {
		return
	}

	available, err := s.Client.Connectors.ListAnalyzers(ctx)
	if err != nil {
		logger.WarnContext(ctx, "skipping analysis, cannot list analyzers", "error", err)
		return
	}

	byID := make(map[string]*thehive.Analyzer, len(available))
	for _, a := range available {
		byID[a.ID] = a
	}

	for _, obs := range observables {
		for _, analyzerID := range s.Analyzers {
			analyzer, ok := byID[analyzerID]
			if !ok {
				logger.WarnContext(ctx, "analyzer not available", "analyzer_id", analyzerID)
				continue
			}
			if !analyzer.SupportsDataType(obs.DataType) {
				continue
			}

			outcome := JobOutcome{ObservableID: obs.ID, AnalyzerID: analyzerID}

			job, err := s.Client.Connectors.RunAnalyzer(ctx, &thehive.RunAnalyzerRequest{
				AnalyzerID:   analyzerID,
				CortexID:     analyzer.CortexID,
				ObservableID: obs.ID,
			})
			if err != nil {
				outcome.Err = err
				logger.WarnContext(ctx, "analyzer launch failed",
					"analyzer_id", analyzerID, "observable_id", obs.ID, "error", err)
				summary.Jobs = append(summary.Jobs, outcome)
				continue
			}

			outcome.JobID = job.ID
			result, err := s.Client.Connectors.PollJob(ctx, job.ID, s.Poll)
			outcome.Result = result
			outcome.Err = err
			summary.Jobs = append(summary.Jobs, outcome)

			switch {
			case err != nil:
				logger.WarnContext(ctx, "job polling aborted", "job_id", job.ID, "error", err)
			case result.TimedOut:
				logger.WarnContext(ctx, "job did not finish within budget",
					"job_id", job.ID, "last_status", result.Status, "elapsed", result.Elapsed)
			default:
				logger.InfoContext(ctx, "job finished",
					"job_id", job.ID, "status", result.Status, "elapsed", result.Elapsed)
			}
		}
	}
}

// runResponder launches the configured responder on the case, but only
// when at least one analysis succeeded.
func (s *Service) runResponder(ctx context.Context, logger *slog.Logger, caseID string, summary *Summary) {
	if s.Responder == "" {
		return
	}

	anySuccess := false
	for i := range summary.Jobs {
		if summary.Jobs[i].Succeeded() {
			anySuccess = true
			break
		}
	}
	if !anySuccess {
		logger.InfoContext(ctx, "skipping responder, no successful analysis", "responder_id", s.Responder)
		return
	}

	action, err := s.Client.Connectors.RunResponder(ctx, &thehive.RunResponderRequest{
		ResponderID: s.Responder,
		ObjectType:  "case",
		ObjectID:    caseID,
	})
	if err != nil {
		logger.WarnContext(ctx, "responder launch failed", "responder_id", s.Responder, "error", err)
		return
	}

	summary.ActionID = action.ID
	summary.ResponderRan = true
	logger.InfoContext(ctx, "responder launched", "responder_id", s.Responder, "action_id", action.ID)
}
