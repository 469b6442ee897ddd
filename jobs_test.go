package thehive_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	thehive "github.com/mkivela/go-thehive"
)

// jobScript serves a scripted sequence of job-status responses. Once the
// script is exhausted the last entry repeats. The entry "HIJACK" simulates a
// connection failure, a numeric entry is served as that HTTP status code,
// anything else is served as the job's status field.
type jobScript struct {
	mu       sync.Mutex
	statuses []string
	report   string

	statusCalls int
	reportCalls int
}

func (s *jobScript) handler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-cortex-key", r.Header.Get("Authorization"))

		s.mu.Lock()
		defer s.mu.Unlock()

		if strings.HasSuffix(r.URL.Path, "/report") {
			s.reportCalls++
			fmt.Fprintf(w, `{"id":"job-1","status":"Success","report":%s}`, s.report)
			return
		}

		s.statusCalls++
		idx := s.statusCalls - 1
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}

		switch entry := s.statuses[idx]; entry {
		case "HIJACK":
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			_ = conn.Close()
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		case "503":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
		default:
			fmt.Fprintf(w, `{"id":"job-1","status":%q}`, entry)
		}
	}
}

func (s *jobScript) calls() (status, report int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls, s.reportCalls
}

func newJobScript(report string, statuses ...string) *jobScript {
	if report == "" {
		report = `{"success":true,"summary":{"taxonomies":[]}}`
	}
	return &jobScript{statuses: statuses, report: report}
}

func TestJobService_Get(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/job/job-42", r.URL.Path)
			fmt.Fprint(w, `{"id":"job-42","analyzerId":"Abuse_Finder_3_0","status":"InProgress"}`)
		})

		job, err := client.Jobs.Get(t.Context(), "job-42")
		require.NoError(t, err)
		assert.Equal(t, "job-42", job.ID)
		assert.Equal(t, thehive.JobInProgress, job.Status)
	})

	t.Run("empty ID is rejected", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Jobs.Get(t.Context(), "")
		var valErr *thehive.ValidationError
		require.ErrorAs(t, err, &valErr)
	})

	t.Run("not found", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.Jobs.Get(t.Context(), "job-42")
		var notFound *thehive.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestJobService_Report(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/job/job-42/report", r.URL.Path)
			fmt.Fprint(w, `{"id":"job-42","status":"Success","report":{"success":true,"summary":{"level":"safe"}}}`)
		})

		report, err := client.Jobs.Report(t.Context(), "job-42")
		require.NoError(t, err)
		assert.True(t, report.Success)
		assert.Equal(t, "safe", report.Summary["level"])
	})

	t.Run("no report yet", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"job-42","status":"InProgress"}`)
		})

		_, err := client.Jobs.Report(t.Context(), "job-42")
		var notFound *thehive.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

// Poll timing constants. Production intervals are seconds; tests use a
// 20ms base to keep the suite fast while staying above scheduler jitter.
const (
	testInterval = 20 * time.Millisecond
	testBudget   = 200 * time.Millisecond
)

func TestJobService_Poll(t *testing.T) {
	t.Run("already terminal returns within one round trip", func(t *testing.T) {
		script := newJobScript("", "Success")
		client := setupTestServer(t, script.handler(t))

		start := time.Now()
		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: testInterval,
			MaxWait:  testBudget,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		assert.False(t, result.TimedOut)
		assert.Equal(t, 1, result.Attempts)
		require.NotNil(t, result.Report)
		assert.True(t, result.Report.Success)

		// No sleep: well under one interval.
		assert.Less(t, time.Since(start), testInterval)

		statusCalls, reportCalls := script.calls()
		assert.Equal(t, 1, statusCalls)
		assert.Equal(t, 1, reportCalls)
	})

	t.Run("waits through transitions with fixed interval", func(t *testing.T) {
		// Scaled spec example: interval=2s, timeout=10s, sequence
		// [Waiting, Waiting, InProgress, Success] -> Success at ~t=6-8s.
		script := newJobScript("", "Waiting", "Waiting", "InProgress", "Success")
		client := setupTestServer(t, script.handler(t))

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: testInterval,
			MaxWait:  10 * testInterval,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		assert.False(t, result.TimedOut)
		assert.Equal(t, 4, result.Attempts)
		// Three sleeps happened, the fourth query short-circuited.
		assert.GreaterOrEqual(t, result.Elapsed, 3*testInterval)
		assert.Less(t, result.Elapsed, 10*testInterval)

		statusCalls, reportCalls := script.calls()
		assert.Equal(t, 4, statusCalls)
		assert.Equal(t, 1, reportCalls)
	})

	t.Run("never-terminal job times out without overshooting the budget", func(t *testing.T) {
		script := newJobScript("", "Waiting")
		client := setupTestServer(t, script.handler(t))

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: testInterval,
			MaxWait:  testBudget,
		})
		require.NoError(t, err)

		assert.True(t, result.TimedOut)
		assert.Equal(t, thehive.JobWaiting, result.Status)
		assert.Nil(t, result.Report)

		// Polling stops as soon as another interval cannot fit in the
		// budget: the last sleep ends no earlier than budget-interval and
		// no further sleep is taken.
		assert.GreaterOrEqual(t, result.Elapsed, testBudget-testInterval)
		assert.Less(t, result.Elapsed, testBudget+testInterval)

		statusCalls, reportCalls := script.calls()
		assert.GreaterOrEqual(t, statusCalls, int(testBudget/testInterval)-1)
		assert.Zero(t, reportCalls)
	})

	t.Run("budget smaller than one interval issues exactly one query", func(t *testing.T) {
		// Scaled spec example: interval=5s, timeout=3s -> one query, then
		// immediate timeout.
		script := newJobScript("", "Waiting")
		client := setupTestServer(t, script.handler(t))

		start := time.Now()
		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: 50 * time.Millisecond,
			MaxWait:  30 * time.Millisecond,
		})
		require.NoError(t, err)

		assert.True(t, result.TimedOut)
		assert.Equal(t, 1, result.Attempts)
		// Immediate: no sleep was taken.
		assert.Less(t, time.Since(start), 50*time.Millisecond)

		statusCalls, _ := script.calls()
		assert.Equal(t, 1, statusCalls)
	})

	t.Run("transient server errors are retried within the budget", func(t *testing.T) {
		script := newJobScript("", "500", "503", "Success")
		client := setupTestServer(t, script.handler(t))

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: 10 * time.Millisecond,
			MaxWait:  500 * time.Millisecond,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		assert.False(t, result.TimedOut)
		assert.Equal(t, 3, result.Attempts)
	})

	t.Run("connection failures are retried within the budget", func(t *testing.T) {
		script := newJobScript("", "HIJACK", "HIJACK", "Success")
		client := setupTestServer(t, script.handler(t))

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: 10 * time.Millisecond,
			MaxWait:  500 * time.Millisecond,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		assert.Equal(t, 3, result.Attempts)
	})

	t.Run("unknown status is transient", func(t *testing.T) {
		script := newJobScript("", "Queued", "Success")
		client := setupTestServer(t, script.handler(t))

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: 10 * time.Millisecond,
			MaxWait:  500 * time.Millisecond,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		assert.Equal(t, 2, result.Attempts)
	})

	t.Run("failure is a terminal outcome, not an error", func(t *testing.T) {
		script := newJobScript(`{"success":false,"errorMessage":"analyzer crashed"}`, "Failure")
		client := setupTestServer(t, script.handler(t))

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: testInterval,
			MaxWait:  testBudget,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobFailure, result.Status)
		assert.False(t, result.TimedOut)
		require.NotNil(t, result.Report)
		assert.Equal(t, "analyzer crashed", result.Report.ErrorMessage)
	})

	t.Run("report fetch failure does not mask the terminal status", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/report") {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"id":"job-1","status":"Success"}`)
		})

		result, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: testInterval,
			MaxWait:  testBudget,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		assert.Nil(t, result.Report)
	})

	t.Run("empty job ID is rejected", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Jobs.Poll(t.Context(), "", thehive.PollOptions{})
		var valErr *thehive.ValidationError
		require.ErrorAs(t, err, &valErr)
	})

	t.Run("negative durations are rejected", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Jobs.Poll(t.Context(), "job-1", thehive.PollOptions{
			Interval: -time.Second,
		})
		var valErr *thehive.ValidationError
		require.ErrorAs(t, err, &valErr)
	})

	t.Run("context cancellation interrupts the sleep", func(t *testing.T) {
		script := newJobScript("", "Waiting")
		client := setupTestServer(t, script.handler(t))

		ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
		defer cancel()

		_, err := client.Jobs.Poll(ctx, "job-1", thehive.PollOptions{
			Interval: time.Second,
			MaxWait:  time.Minute,
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestConnectorService_PollJob(t *testing.T) {
	t.Run("polls a connector job and extracts the inline report", func(t *testing.T) {
		calls := 0
		client := setupHiveOnlyServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/connector/cortex/job/job-9", r.URL.Path)
			assert.Equal(t, "Bearer test-hive-key", r.Header.Get("Authorization"))

			calls++
			if calls < 2 {
				fmt.Fprint(w, `{"id":"job-9","status":"InProgress"}`)
				return
			}
			fmt.Fprint(w, `{"id":"job-9","status":"Success","report":{"success":true,"summary":{"verdict":"malicious"}}}`)
		})

		result, err := client.Connectors.PollJob(t.Context(), "job-9", thehive.PollOptions{
			Interval: 10 * time.Millisecond,
			MaxWait:  500 * time.Millisecond,
		})
		require.NoError(t, err)

		assert.Equal(t, thehive.JobSuccess, result.Status)
		require.NotNil(t, result.Report)
		assert.Equal(t, "malicious", result.Report.Summary["verdict"])
		// One extra read fetches the report after the terminal status.
		assert.Equal(t, 3, calls)
	})
}
