package database

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "papers.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testPaper(id string) *models.Paper {
	features, _ := json.Marshal(models.DefaultFeatures())
	technique, _ := json.Marshal(models.DefaultTechnique())
	return &models.Paper{
		ID:        id,
		Type:      "article",
		Title:     "Solder joint defect detection on PCBs",
		Authors:   "Smith, J.; Doe, A.",
		Year:      2023,
		Journal:   "IEEE Transactions on Industrial Informatics",
		Abstract:  "We detect solder defects.",
		Keywords:  "PCB; AOI; solder",
		Pages:     "100--112",
		PageCount: 13,
		Features:  string(features),
		Technique: string(technique),
	}
}

func mustInsert(t *testing.T, db *Database, p *models.Paper) {
	t.Helper()
	inserted, err := db.InsertPaper(p)
	require.NoError(t, err)
	require.True(t, inserted)
}

func rawReply(t *testing.T, jsonText string) map[string]json.RawMessage {
	t.Helper()
	fields := make(map[string]json.RawMessage)
	require.NoError(t, json.Unmarshal([]byte(jsonText), &fields))
	return fields
}

func TestInsertAndGetPaper(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("smith2023pcb"))

	p, err := db.GetPaperByID("smith2023pcb")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Solder joint defect detection on PCBs", p.Title)
	assert.Equal(t, 2023, p.Year)
	assert.Equal(t, 13, p.PageCount)
	assert.Nil(t, p.IsSurvey, "flags start unknown")
	assert.Empty(t, p.ChangedBy, "never classified")
}

func TestGetPaperMissingIsNotAnError(t *testing.T) {
	db := openTestDB(t)
	p, err := db.GetPaperByID("nonexistent")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestInsertDuplicateIgnored(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("dup2021"))

	again := testPaper("dup2021")
	again.Title = "A different title"
	inserted, err := db.InsertPaper(again)
	require.NoError(t, err)
	assert.False(t, inserted)

	p, err := db.GetPaperByID("dup2021")
	require.NoError(t, err)
	assert.Equal(t, "Solder joint defect detection on PCBs", p.Title, "first insert wins")
}

func TestApplyClassificationSetsAndStamps(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("p1"))

	reply := rawReply(t, `{
		"is_survey": false,
		"is_offtopic": false,
		"is_smt": true,
		"research_area": "electrical engineering"
	}`)
	changed, err := db.ApplyClassification("p1", reply, "llama-3.1-8b")
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := db.GetPaperByID("p1")
	require.NoError(t, err)
	require.NotNil(t, p.IsSurvey)
	assert.False(t, *p.IsSurvey)
	require.NotNil(t, p.IsSMT)
	assert.True(t, *p.IsSMT)
	assert.Nil(t, p.IsXRay, "absent field stays unknown")
	assert.Equal(t, "electrical engineering", p.ResearchArea)
	assert.Equal(t, "llama-3.1-8b", p.ChangedBy)
	assert.NotEmpty(t, p.Changed)
}

func TestApplyClassificationAbsentFieldUntouchedNullClears(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("p2"))

	_, err := db.ApplyClassification("p2", rawReply(t, `{"is_survey": true, "is_smt": true}`), "model-a")
	require.NoError(t, err)

	// second pass: is_survey absent (untouched), is_smt null (cleared)
	_, err = db.ApplyClassification("p2", rawReply(t, `{"is_smt": null}`), "model-b")
	require.NoError(t, err)

	p, err := db.GetPaperByID("p2")
	require.NoError(t, err)
	require.NotNil(t, p.IsSurvey)
	assert.True(t, *p.IsSurvey, "absent field must keep its stored value")
	assert.Nil(t, p.IsSMT, "explicit null must clear to unknown")
	assert.Equal(t, "model-b", p.ChangedBy, "audit stamp follows the latest merge")
}

func TestApplyClassificationMergesGroupsKeyByKey(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("p3"))

	_, err := db.ApplyClassification("p3",
		rawReply(t, `{"features": {"solder": true, "holes": false}}`), "model-a")
	require.NoError(t, err)

	// partial group update: solder cleared, holes untouched, tracks added
	_, err = db.ApplyClassification("p3",
		rawReply(t, `{"features": {"solder": null, "tracks": true}}`), "model-b")
	require.NoError(t, err)

	p, err := db.GetPaperByID("p3")
	require.NoError(t, err)
	features := p.FeaturesMap()
	assert.Nil(t, features["solder"])
	assert.Equal(t, false, features["holes"], "key absent from the reply keeps its value")
	assert.Equal(t, true, features["tracks"])
}

func TestApplyClassificationMissingPaper(t *testing.T) {
	db := openTestDB(t)
	changed, err := db.ApplyClassification("ghost", rawReply(t, `{"is_survey": true}`), "m")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApplyVerification(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("v1"))
	_, err := db.ApplyClassification("v1", rawReply(t, `{"is_survey": false}`), "classifier-model")
	require.NoError(t, err)

	verified := true
	score := 87.4
	changed, err := db.ApplyVerification("v1",
		&models.VerificationResult{Verified: &verified, EstimatedScore: &score},
		"verifier-model", "As verified by verifier-model")
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := db.GetPaperByID("v1")
	require.NoError(t, err)
	require.NotNil(t, p.Verified)
	assert.True(t, *p.Verified)
	require.NotNil(t, p.EstimatedScore)
	assert.Equal(t, 87, *p.EstimatedScore)
	assert.Equal(t, "verifier-model", p.VerifiedBy)
	assert.Equal(t, "As verified by verifier-model", p.VerifierTrace)
	assert.Equal(t, "classifier-model", p.ChangedBy, "verification never touches the classification audit")
}

func TestApplyVerificationClampsScore(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("v2"))

	high := 250.0
	_, err := db.ApplyVerification("v2", &models.VerificationResult{EstimatedScore: &high}, "m", "")
	require.NoError(t, err)
	p, _ := db.GetPaperByID("v2")
	require.NotNil(t, p.EstimatedScore)
	assert.Equal(t, 100, *p.EstimatedScore)

	low := -5.0
	_, err = db.ApplyVerification("v2", &models.VerificationResult{EstimatedScore: &low}, "m", "")
	require.NoError(t, err)
	p, _ = db.GetPaperByID("v2")
	assert.Equal(t, 0, *p.EstimatedScore)
}

func TestListClassifyIDs(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("a"))
	mustInsert(t, db, testPaper("b"))
	mustInsert(t, db, testPaper("c"))
	_, err := db.ApplyClassification("b", rawReply(t, `{"is_survey": false}`), "m")
	require.NoError(t, err)

	all, err := db.ListClassifyIDs(SelectAll, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, all)

	remaining, err := db.ListClassifyIDs(SelectRemaining, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, remaining)

	byID, err := db.ListClassifyIDs(SelectByID, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, byID)

	missing, err := db.ListClassifyIDs(SelectByID, "ghost")
	require.NoError(t, err)
	assert.Empty(t, missing, "selecting a missing id is a no-op, not an error")
}

func TestListVerifyIDsRequireClassification(t *testing.T) {
	db := openTestDB(t)
	mustInsert(t, db, testPaper("a")) // never classified
	mustInsert(t, db, testPaper("b")) // classified
	mustInsert(t, db, testPaper("c")) // classified and verified
	_, err := db.ApplyClassification("b", rawReply(t, `{"is_survey": false}`), "m")
	require.NoError(t, err)
	_, err = db.ApplyClassification("c", rawReply(t, `{"is_survey": false}`), "m")
	require.NoError(t, err)
	v := true
	_, err = db.ApplyVerification("c", &models.VerificationResult{Verified: &v}, "m", "")
	require.NoError(t, err)

	all, err := db.ListVerifyIDs(SelectAll, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, all, "unclassified papers are never verification candidates")

	remaining, err := db.ListVerifyIDs(SelectRemaining, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, remaining)
}

func TestValidSelectMode(t *testing.T) {
	assert.True(t, ValidSelectMode(SelectAll))
	assert.True(t, ValidSelectMode(SelectRemaining))
	assert.True(t, ValidSelectMode(SelectByID))
	assert.False(t, ValidSelectMode("everything"))
}

func TestGetGroupFieldRejectsUnknownColumn(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetGroupField("x", "title")
	assert.Error(t, err, "only the grouped JSON columns are addressable")
}

func TestBrowseFilterAndStats(t *testing.T) {
	db := openTestDB(t)

	old := testPaper("old2010")
	old.Year = 2010
	mustInsert(t, db, old)

	offtopic := testPaper("off2023")
	mustInsert(t, db, offtopic)
	_, err := db.ApplyClassification("off2023", rawReply(t, `{"is_offtopic": true}`), "m")
	require.NoError(t, err)

	ontopic := testPaper("on2023")
	mustInsert(t, db, ontopic)
	_, err = db.ApplyClassification("on2023", rawReply(t, `{"is_offtopic": false, "is_survey": true}`), "m")
	require.NoError(t, err)

	papers, err := db.ListPapers(BrowseFilter{HideOfftopic: true, YearFrom: 2020})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "on2023", papers[0].ID)

	papers, err = db.ListPapers(BrowseFilter{Search: "solder"})
	require.NoError(t, err)
	assert.Len(t, papers, 3, "search matches titles across the catalog")

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Classified)
	assert.Equal(t, 1, stats.Offtopic)
	assert.Equal(t, 1, stats.Surveys)
	assert.Equal(t, 0, stats.Verified)
}
