package workflow_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	thehive "github.com/mkivela/go-thehive"
	"github.com/mkivela/go-thehive/internal/workflow"
)

// hiveFake is a scripted server covering every endpoint one workflow run
// touches. Counters let tests assert which stages ran.
type hiveFake struct {
	mu sync.Mutex

	alertCreated   bool
	promoted       bool
	observables    []map[string]any
	jobsLaunched   []map[string]any
	actionLaunched bool

	// jobStatus is returned for every connector job read.
	jobStatus string
	jobReport string
}

func (f *hiveFake) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/alert":
			f.alertCreated = true
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body["sourceRef"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"_id":"~100","title":"intrusion","type":"external"}`)

		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/alert/~100/case":
			f.promoted = true
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"_id":"~200","number":42,"title":"intrusion"}`)

		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/case/~200/observable":
			var body map[string]any
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				require.NoError(t, r.ParseMultipartForm(1<<20))
				require.NoError(t, json.Unmarshal([]byte(r.FormValue("_json")), &body))
				body["dataType"] = "file"
			} else {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			}
			f.observables = append(f.observables, body)
			id := fmt.Sprintf("~3%02d", len(f.observables))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `[{"_id":%q,"dataType":%q}]`, id, body["dataType"])

		case r.Method == http.MethodGet && r.URL.Path == "/api/connector/cortex/analyzer":
			fmt.Fprint(w, `[
				{"id":"VT_3_1","name":"VirusTotal","cortexId":"local","dataTypeList":["ip","domain"]},
				{"id":"FileInfo_8_0","name":"FileInfo","cortexId":"local","dataTypeList":["file"]}
			]`)

		case r.Method == http.MethodPost && r.URL.Path == "/api/connector/cortex/job":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.jobsLaunched = append(f.jobsLaunched, body)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"job-%d","status":"Waiting"}`, len(f.jobsLaunched))

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/connector/cortex/job/"):
			if f.jobStatus == "Success" || f.jobStatus == "Failure" {
				fmt.Fprintf(w, `{"id":"job-1","status":%q,"report":%s}`, f.jobStatus, f.jobReport)
				return
			}
			fmt.Fprintf(w, `{"id":"job-1","status":%q}`, f.jobStatus)

		case r.Method == http.MethodPost && r.URL.Path == "/api/connector/cortex/action":
			f.actionLaunched = true
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"_id":"act-7","responderId":"Block_IP_1_0","objectType":"case","objectId":"~200"}`)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newWorkflowClient(t *testing.T, fake *hiveFake) *thehive.Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := thehive.NewClient(
		thehive.WithHiveURL(server.URL),
		thehive.WithHiveAPIKey("test-hive-key"),
	)
	require.NoError(t, err)
	return client
}

func TestServiceRun(t *testing.T) {
	t.Run("full flow with responder", func(t *testing.T) {
		fake := &hiveFake{jobStatus: "Success", jobReport: `{"success":true,"summary":{"verdict":"malicious"}}`}
		svc := &workflow.Service{
			Client:    newWorkflowClient(t, fake),
			Analyzers: []string{"VT_3_1"},
			Responder: "Block_IP_1_0",
			Poll:      thehive.PollOptions{Interval: 10 * time.Millisecond, MaxWait: 200 * time.Millisecond},
		}

		summary, err := svc.Run(t.Context(), &workflow.Input{
			Title:    "intrusion",
			Severity: thehive.SeverityHigh,
			Observables: []workflow.ObservableInput{
				{DataType: "ip", Data: "203.0.113.7"},
				{DataType: "domain", Data: "evil.example.com"},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "~100", summary.AlertID)
		assert.Equal(t, "~200", summary.CaseID)
		assert.Len(t, summary.ObservableIDs, 2)

		require.Len(t, summary.Jobs, 2)
		for _, job := range summary.Jobs {
			assert.True(t, job.Succeeded())
			require.NotNil(t, job.Result)
			assert.Equal(t, "malicious", job.Result.Report.Summary["verdict"])
		}

		assert.True(t, summary.ResponderRan)
		assert.Equal(t, "act-7", summary.ActionID)
		assert.True(t, fake.actionLaunched)
	})

	t.Run("responder skipped when no analysis succeeded", func(t *testing.T) {
		fake := &hiveFake{jobStatus: "Failure", jobReport: `{"success":false,"errorMessage":"rate limited"}`}
		svc := &workflow.Service{
			Client:    newWorkflowClient(t, fake),
			Analyzers: []string{"VT_3_1"},
			Responder: "Block_IP_1_0",
			Poll:      thehive.PollOptions{Interval: 10 * time.Millisecond, MaxWait: 200 * time.Millisecond},
		}

		summary, err := svc.Run(t.Context(), &workflow.Input{
			Title:       "intrusion",
			Observables: []workflow.ObservableInput{{DataType: "ip", Data: "203.0.113.7"}},
		})
		require.NoError(t, err)

		require.Len(t, summary.Jobs, 1)
		assert.False(t, summary.Jobs[0].Succeeded())
		assert.False(t, summary.ResponderRan)
		assert.False(t, fake.actionLaunched)
	})

	t.Run("analyzer skipped for unsupported data type", func(t *testing.T) {
		fake := &hiveFake{jobStatus: "Success", jobReport: `{"success":true}`}
		svc := &workflow.Service{
			Client:    newWorkflowClient(t, fake),
			Analyzers: []string{"VT_3_1"},
			Poll:      thehive.PollOptions{Interval: 10 * time.Millisecond, MaxWait: 200 * time.Millisecond},
		}

		summary, err := svc.Run(t.Context(), &workflow.Input{
			Title:       "intrusion",
			Observables: []workflow.ObservableInput{{DataType: "mail", Data: "a@b.example"}},
		})
		require.NoError(t, err)

		assert.Empty(t, summary.Jobs)
		assert.Empty(t, fake.jobsLaunched)
	})

	t.Run("file observable carries its digest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sample.bin")
		require.NoError(t, os.WriteFile(path, []byte("malware bytes"), 0o600))

		fake := &hiveFake{}
		svc := &workflow.Service{Client: newWorkflowClient(t, fake)}

		summary, err := svc.Run(t.Context(), &workflow.Input{
			Title:    "intrusion",
			FilePath: path,
		})
		require.NoError(t, err)

		require.Len(t, summary.ObservableIDs, 1)
		require.Len(t, fake.observables, 1)
		msg, _ := fake.observables[0]["message"].(string)
		assert.True(t, strings.HasPrefix(msg, "sha256:"))
		assert.Len(t, strings.TrimPrefix(msg, "sha256:"), 64)
	})

	t.Run("failed observable is skipped, run continues", func(t *testing.T) {
		fake := &hiveFake{}
		svc := &workflow.Service{Client: newWorkflowClient(t, fake)}

		summary, err := svc.Run(t.Context(), &workflow.Input{
			Title: "intrusion",
			Observables: []workflow.ObservableInput{
				{DataType: "ip"}, // no data, rejected client side
				{DataType: "ip", Data: "203.0.113.7"},
			},
		})
		require.NoError(t, err)
		assert.Len(t, summary.ObservableIDs, 1)
	})

	t.Run("missing title", func(t *testing.T) {
		svc := &workflow.Service{Client: newWorkflowClient(t, &hiveFake{})}
		_, err := svc.Run(t.Context(), &workflow.Input{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "title is required")
	})
}
