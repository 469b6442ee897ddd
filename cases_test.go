package thehive_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	thehive "github.com/mkivela/go-thehive"
)

func TestCaseService_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := setupHiveOnlyServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/case", r.URL.Path)

			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"_id":"~2001","number":7,"title":"Phishing campaign","status":"Open","severity":2}`)
		})

		kase, err := client.Cases.Create(t.Context(), &thehive.CreateCaseRequest{
			Title:    "Phishing campaign",
			Severity: thehive.SeverityMedium,
		})
		require.NoError(t, err)
		assert.Equal(t, "~2001", kase.ID)
		assert.Equal(t, 7, kase.Number)
	})

	t.Run("missing title", func(t *testing.T) {
		client := setupHiveOnlyServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Cases.Create(t.Context(), &thehive.CreateCaseRequest{})
		var valErr *thehive.ValidationError
		require.ErrorAs(t, err, &valErr)
	})
}

func TestCaseService_Close(t *testing.T) {
	client := setupHiveOnlyServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/case/~2001", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Resolved", body["status"])
		assert.Equal(t, "TruePositive", body["resolutionStatus"])
		assert.Equal(t, "contained", body["summary"])

		w.WriteHeader(http.StatusNoContent)
	})

	err := client.Cases.Close(t.Context(), "~2001", &thehive.CloseCaseRequest{
		ResolutionStatus: "TruePositive",
		Summary:          "contained",
	})
	require.NoError(t, err)
}

func TestCaseService_SearchPage(t *testing.T) {
	client := setupHiveOnlyServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query []map[string]any `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "listCase", body.Query[0]["_name"])

		fmt.Fprint(w, `[{"_id":"~2001","title":"a","status":"Open"},{"_id":"~2002","title":"b","status":"Open"}]`)
	})

	cases, err := client.Cases.SearchPage(t.Context(),
		&thehive.CaseFilter{Status: []thehive.CaseStatus{thehive.CaseOpen}}, nil)
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestCaseService_Delete(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		client := setupHiveOnlyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		err := client.Cases.Delete(t.Context(), "~2001")
		var notFound *thehive.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}
