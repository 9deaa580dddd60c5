package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
	"github.com/paperdex/paperdex/internal/models"
)

func newTestServer(t *testing.T) (*WebServer, *database.Database) {
	t.Helper()
	db, err := database.OpenDatabase(filepath.Join(t.TempDir(), "papers.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.NewDefaultConfig()
	client := llm.NewClient("http://127.0.0.1:1", cfg.LLM.Sampling)
	server, err := NewServer(db, cfg, client)
	require.NoError(t, err)
	return server, db
}

func seedPaper(t *testing.T, db *database.Database, id string) {
	t.Helper()
	features, _ := json.Marshal(models.DefaultFeatures())
	technique, _ := json.Marshal(models.DefaultTechnique())
	inserted, err := db.InsertPaper(&models.Paper{
		ID:        id,
		Type:      "article",
		Title:     "Solder inspection study",
		Authors:   "Doe, A.",
		Year:      2023,
		Journal:   "IEEE Access",
		Abstract:  "abstract",
		Keywords:  "PCB",
		Features:  string(features),
		Technique: string(technique),
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func doRequest(server *WebServer, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(server, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestPapersPageRenders(t *testing.T) {
	server, db := newTestServer(t)
	seedPaper(t, db, "doe2023")

	w := doRequest(server, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Solder inspection study")
}

func TestStatsPageRenders(t *testing.T) {
	server, db := newTestServer(t)
	seedPaper(t, db, "doe2023")

	w := doRequest(server, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Total papers")
}

func TestGetPaperAPI(t *testing.T) {
	server, db := newTestServer(t)
	seedPaper(t, db, "doe2023")

	w := doRequest(server, http.MethodGet, "/api/v1/papers/doe2023", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Paper
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "doe2023", p.ID)

	w = doRequest(server, http.MethodGet, "/api/v1/papers/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePaperAttributesWebApp(t *testing.T) {
	server, db := newTestServer(t)
	seedPaper(t, db, "doe2023")

	w := doRequest(server, http.MethodPost, "/api/v1/papers/doe2023",
		`{"is_survey": true, "research_area": "computer sciences"}`)
	require.Equal(t, http.StatusOK, w.Code)

	p, err := db.GetPaperByID("doe2023")
	require.NoError(t, err)
	require.NotNil(t, p.IsSurvey)
	assert.True(t, *p.IsSurvey)
	assert.Equal(t, models.ChangedByWebApp, p.ChangedBy, "manual edits are attributed to the web app")
}

func TestUpdatePaperRejectsBadBody(t *testing.T) {
	server, db := newTestServer(t)
	seedPaper(t, db, "doe2023")

	w := doRequest(server, http.MethodPost, "/api/v1/papers/doe2023", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(server, http.MethodPost, "/api/v1/papers/doe2023", "{}")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(server, http.MethodPost, "/api/v1/papers/ghost", `{"is_survey": true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsAPI(t *testing.T) {
	server, db := newTestServer(t)
	seedPaper(t, db, "a")
	seedPaper(t, db, "b")

	w := doRequest(server, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats database.CatalogStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.Classified)
}

func TestBatchStatusIdle(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(server, http.MethodGet, "/api/v1/batch/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status BatchStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Running)
}

func TestBatchCancelWithoutRun(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(server, http.MethodPost, "/api/v1/batch/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchStartRejectsBadMode(t *testing.T) {
	server, _ := newTestServer(t)
	w := doRequest(server, http.MethodPost, "/api/v1/batch/classify", `{"mode": "everything"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(server, http.MethodPost, "/api/v1/batch/classify", `{"mode": "id"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "mode id needs a paper_id")
}
