package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsnapshots "github.com/bryanwahyu/analysis-vault/internal/application/snapshots"
	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
	"github.com/bryanwahyu/analysis-vault/internal/infra/db/memory"
)

func newTestServer(t *testing.T) (http.Handler, *appsnapshots.Service) {
	t.Helper()
	svc := appsnapshots.NewService(memory.NewAnalysisRepository(nil), nil)
	return NewRouter(svc, nil, nil), svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createBody(snapshotID int64, title string) map[string]any {
	return map[string]any{
		"snapshot_id": snapshotID,
		"author":      "alice",
		"title":       title,
		"notes":       "all clear",
		"items": []map[string]any{
			{"label": "latency", "score": 3, "payload": map[string]any{"p99_ms": 120.5}},
			{"label": "errors", "score": 1},
		},
	}
}

func TestCreateAnalysisEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/admin/analysis", createBody(7, "weekly report"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.AnalysisID(1), created.ID)
	assert.Equal(t, int64(7), created.SnapshotID)
	assert.Equal(t, "weekly report", created.Title)
	require.Len(t, created.Items, 2)
	assert.Equal(t, domain.ItemID(1), created.Items[0].ID)
	assert.Equal(t, 120.5, created.Items[0].Payload["p99_ms"])
}

func TestCreateAnalysisBadRequests(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing snapshot_id", map[string]any{
			"author": "a", "title": "t", "items": []map[string]any{},
		}},
		{"missing items", map[string]any{
			"snapshot_id": 1, "author": "a", "title": "t",
		}},
		{"missing item score", map[string]any{
			"snapshot_id": 1, "author": "a", "title": "t",
			"items": []map[string]any{{"label": "x"}},
		}},
		{"empty author", map[string]any{
			"snapshot_id": 1, "author": "  ", "title": "t",
			"items": []map[string]any{},
		}},
		{"empty title", map[string]any{
			"snapshot_id": 1, "author": "a", "title": "",
			"items": []map[string]any{},
		}},
		{"empty item label", map[string]any{
			"snapshot_id": 1, "author": "a", "title": "t",
			"items": []map[string]any{{"label": " ", "score": 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/admin/analysis", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}

	// malformed JSON body
	req := httptest.NewRequest(http.MethodPost, "/admin/analysis", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAnalysisScoreTypeMismatch(t *testing.T) {
	h, _ := newTestServer(t)

	body := map[string]any{
		"snapshot_id": 1, "author": "a", "title": "t",
		"items": []map[string]any{{"label": "x", "score": "high"}},
	}
	rec := doJSON(t, h, http.MethodPost, "/admin/analysis", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAnalysisEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/admin/analysis", createBody(1, "report"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "report", got.Title)

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAnalysisEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	for i, snapshot := range []int64{1, 2, 1} {
		rec := doJSON(t, h, http.MethodPost, "/admin/analysis",
			createBody(snapshot, fmt.Sprintf("report-%d", i)))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/admin/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var all []domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)
	// newest first; equal timestamps fall back to descending id
	assert.True(t, all[0].ID > all[1].ID && all[1].ID > all[2].ID)

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis?snapshot_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered []domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	require.Len(t, filtered, 2)
	for _, a := range filtered {
		assert.Equal(t, int64(1), a.SnapshotID)
	}

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis?snapshot_id=9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis?snapshot_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/admin/analysis", createBody(1, "report"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/admin/analysis", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/admin/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestStateExportImportEndpoints(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/admin/analysis", createBody(1, "report"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/admin/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state domain.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, domain.AnalysisID(2), state.NextAnalysisID)
	require.Len(t, state.Analysis, 1)

	// import into a fresh server and compare
	h2, _ := newTestServer(t)
	rec = doJSON(t, h2, http.MethodPost, "/admin/state", &state)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h2, http.MethodGet, "/admin/analysis/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "report", got.Title)
}

func TestImportStateRejectsMalformed(t *testing.T) {
	h, _ := newTestServer(t)

	bad := map[string]any{
		"next_analysis_id": 0,
		"next_item_id":     1,
		"analysis":         []any{},
	}
	rec := doJSON(t, h, http.MethodPost, "/admin/state", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewEndpointUnconfigured(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/admin/analysis", createBody(1, "report"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/admin/analysis/1/review", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
