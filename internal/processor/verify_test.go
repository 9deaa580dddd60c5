package processor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/batch"
	"github.com/paperdex/paperdex/internal/database"
)

const verifierTemplate = `Check this classification.
Title: {title}
Abstract: {abstract}
is_survey: {is_survey}
features: {features}
technique: {technique}
Answer with JSON: {{"verified": bool, "estimated_score": 0-100}}`

func writeTemplate(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verifier_template.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func classify(t *testing.T, db *database.Database, id string) {
	t.Helper()
	fields := make(map[string]json.RawMessage)
	require.NoError(t, json.Unmarshal([]byte(`{"is_survey": false, "is_smt": true}`), &fields))
	_, err := db.ApplyClassification(id, fields, "classifier-model")
	require.NoError(t, err)
}

func TestVerifierUpdatesVerdict(t *testing.T) {
	db := openTestDB(t)
	insertTestPaper(t, db, "v1")
	classify(t, db, "v1")

	var gotPrompt string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{{"id": "verifier-7b"}}})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.Unmarshal(body, &req)
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "verifier-7b",
			"choices": []map[string]interface{}{
				{"message": map[string]string{
					"content":           `{"verified": true, "estimated_score": 91}`,
					"reasoning_content": "The classification is consistent.",
				}},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	verifier, err := NewVerifier(db, newTestClient(server.URL), writeTemplate(t, verifierTemplate), "", batch.NewShutdownFlag())
	require.NoError(t, err)

	assert.Equal(t, batch.OutcomeUpdated, verifier.Process("v1"))

	assert.Contains(t, gotPrompt, "Title: Automated optical inspection of solder joints")
	assert.Contains(t, gotPrompt, "is_survey: false", "stored tri-state flags render as JSON literals")
	assert.Contains(t, gotPrompt, `"solder"`, "grouped flags render as indented JSON")
	assert.Contains(t, gotPrompt, `{"verified": bool`, "escaped braces render literally")

	p, err := db.GetPaperByID("v1")
	require.NoError(t, err)
	require.NotNil(t, p.Verified)
	assert.True(t, *p.Verified)
	require.NotNil(t, p.EstimatedScore)
	assert.Equal(t, 91, *p.EstimatedScore)
	assert.Equal(t, "verifier-7b", p.VerifiedBy)
	assert.True(t, strings.HasPrefix(p.VerifierTrace, "As verified by verifier-7b"))
	assert.Contains(t, p.VerifierTrace, "The classification is consistent.")
	assert.Equal(t, "classifier-model", p.ChangedBy, "verification leaves the classification audit alone")
}

func TestVerifierBadTemplateFailsUpFront(t *testing.T) {
	db := openTestDB(t)
	server := fakeLLM(t, "m", `{}`)

	path := writeTemplate(t, "Title: {titel}")
	_, err := NewVerifier(db, newTestClient(server.URL), path, "", batch.NewShutdownFlag())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "titel")
}

func TestVerifierMissingTemplateFails(t *testing.T) {
	db := openTestDB(t)
	server := fakeLLM(t, "m", `{}`)

	_, err := NewVerifier(db, newTestClient(server.URL), filepath.Join(t.TempDir(), "absent.txt"), "", batch.NewShutdownFlag())
	assert.Error(t, err)
}

func TestVerifierUnreadableGrammarIsTolerated(t *testing.T) {
	db := openTestDB(t)
	server := fakeLLM(t, "m", `{}`)

	verifier, err := NewVerifier(db, newTestClient(server.URL),
		writeTemplate(t, verifierTemplate),
		filepath.Join(t.TempDir(), "absent.gbnf"),
		batch.NewShutdownFlag())
	assert.NoError(t, err, "verification runs unconstrained when the grammar is unreadable")
	assert.NotNil(t, verifier)
}

func TestVerifierParseError(t *testing.T) {
	db := openTestDB(t)
	insertTestPaper(t, db, "v2")
	classify(t, db, "v2")

	server := fakeLLM(t, "m", "not json")
	verifier, err := NewVerifier(db, newTestClient(server.URL), writeTemplate(t, verifierTemplate), "", batch.NewShutdownFlag())
	require.NoError(t, err)

	assert.Equal(t, batch.OutcomeParseError, verifier.Process("v2"))
	p, _ := db.GetPaperByID("v2")
	assert.Empty(t, p.VerifiedBy)
}
