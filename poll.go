package thehive

import (
	"context"
	"log/slog"
	"time"
)

// Default polling knobs, used when the corresponding PollOptions field is
// zero. Two seconds suits the short-lived analyzers that dominate this
// domain; slower analyzers should raise the interval.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// PollOptions configures job polling. Interval and MaxWait are the only
// required knobs; there is no backoff, the interval is fixed.
type PollOptions struct {
	// Interval between status queries. Defaults to DefaultPollInterval.
	Interval time.Duration

	// MaxWait bounds the total time spent polling. Defaults to
	// DefaultPollTimeout. A budget smaller than one interval still issues
	// exactly one status query before timing out.
	MaxWait time.Duration

	// Logger receives transient-failure and unknown-status events.
	// Nil disables logging.
	Logger *slog.Logger
}

// jobReader abstracts where job state is read from: Cortex directly, or
// TheHive's Cortex connector.
type jobReader interface {
	readJob(ctx context.Context, id string) (*Job, error)
	readReport(ctx context.Context, id string) (*JobReport, error)
}

func (s *jobService) readJob(ctx context.Context, id string) (*Job, error) {
	return s.Get(ctx, id)
}

func (s *jobService) readReport(ctx context.Context, id string) (*JobReport, error) {
	return s.Report(ctx, id)
}

func (s *connectorService) readJob(ctx context.Context, id string) (*Job, error) {
	return s.GetJob(ctx, id)
}

func (s *connectorService) readReport(ctx context.Context, id string) (*JobReport, error) {
	return s.JobReport(ctx, id)
}

// pollJob converts an asynchronous remote job into a synchronous result,
// bounded by opts.MaxWait.
//
// Remote errors during polling are transient: they are logged and retried
// until the budget runs out. An exhausted budget is reported through
// PollResult.TimedOut, not as an error, so the caller can decide whether to
// proceed without analysis results. The only error returns are violated
// preconditions and context cancellation.
func pollJob(ctx context.Context, r jobReader, id string, opts PollOptions) (*PollResult, error) {
	if id == "" {
		return nil, validationErr("job ID cannot be empty")
	}
	if opts.Interval < 0 || opts.MaxWait < 0 {
		return nil, validationErr("poll interval and max wait cannot be negative")
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxWait == 0 {
		opts.MaxWait = DefaultPollTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	start := time.Now()
	attempts := 0
	lastStatus := JobUnknown

	for {
		job, err := r.readJob(ctx, id)
		attempts++

		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			// Transient: connection failures and remote 4xx/5xx during
			// polling are retried within the budget.
			logger.WarnContext(ctx, "job status query failed, retrying",
				"job_id", id, "attempt", attempts, "error", err)
		default:
			status := ParseJobStatus(string(job.Status))
			lastStatus = status

			if status.Terminal() {
				report, rerr := r.readReport(ctx, id)
				if rerr != nil {
					logger.WarnContext(ctx, "job finished but report fetch failed",
						"job_id", id, "status", status, "error", rerr)
				}
				return &PollResult{
					Status:   status,
					Report:   report,
					Elapsed:  time.Since(start),
					Attempts: attempts,
				}, nil
			}

			if status == JobUnknown {
				logger.WarnContext(ctx, "job reported unrecognized status, continuing",
					"job_id", id, "raw_status", string(job.Status), "attempt", attempts)
			}
		}

		// Stop before issuing a poll that could not be acted upon.
		if time.Since(start)+opts.Interval > opts.MaxWait {
			return &PollResult{
				Status:   lastStatus,
				Elapsed:  time.Since(start),
				Attempts: attempts,
				TimedOut: true,
			}, nil
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
