package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paperdex/paperdex/internal/models"
)

// SelectMode picks which papers a batch run targets. Modes are mutually
// exclusive.
type SelectMode string

const (
	SelectAll       SelectMode = "all"       // every eligible paper, re-processing allowed
	SelectRemaining SelectMode = "remaining" // never-yet-processed only
	SelectByID      SelectMode = "id"        // exactly one paper; zero matches is a no-op
)

// ValidSelectMode reports whether mode is one of the known modes.
func ValidSelectMode(mode SelectMode) bool {
	switch mode {
	case SelectAll, SelectRemaining, SelectByID:
		return true
	}
	return false
}

const paperColumns = `id, type, title, authors, year, month, journal, volume, pages, doi, issn,
	abstract, keywords, page_count, research_area,
	is_survey, is_offtopic, is_through_hole, is_smt, is_x_ray, available_dataset,
	features, technique, changed, changed_by,
	verified, estimated_score, verified_by, verifier_trace`

// GetPaperByID fetches a single paper by its BibTeX key. A missing row is
// (nil, nil), not an error: ids can vanish between selection and processing.
func (db *Database) GetPaperByID(paperID string) (*models.Paper, error) {
	query := "SELECT " + paperColumns + " FROM papers WHERE id = ?"

	p := &models.Paper{}
	var (
		year, pageCount, estScore              sql.NullInt64
		typ, title, authors, month             sql.NullString
		journal, volume, pages, doi, issn      sql.NullString
		abstract, keywords, researchArea       sql.NullString
		features, technique                    sql.NullString
		changed, changedBy, verifiedBy, vtrace sql.NullString
		isSurvey, isOfftopic, isTH             sql.NullInt64
		isSMT, isXRay, availDS, verified       sql.NullInt64
	)

	err := retryableQueryRowScan(db.db, query, []interface{}{paperID},
		&p.ID, &typ, &title, &authors, &year, &month, &journal, &volume, &pages, &doi, &issn,
		&abstract, &keywords, &pageCount, &researchArea,
		&isSurvey, &isOfftopic, &isTH, &isSMT, &isXRay, &availDS,
		&features, &technique, &changed, &changedBy,
		&verified, &estScore, &verifiedBy, &vtrace,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paper '%s': %w", paperID, err)
	}

	p.Type = typ.String
	p.Title = title.String
	p.Authors = authors.String
	p.Year = int(year.Int64)
	p.Month = month.String
	p.Journal = journal.String
	p.Volume = volume.String
	p.Pages = pages.String
	p.DOI = doi.String
	p.ISSN = issn.String
	p.Abstract = abstract.String
	p.Keywords = keywords.String
	p.PageCount = int(pageCount.Int64)
	p.ResearchArea = researchArea.String
	p.IsSurvey = triState(isSurvey)
	p.IsOfftopic = triState(isOfftopic)
	p.IsThroughHole = triState(isTH)
	p.IsSMT = triState(isSMT)
	p.IsXRay = triState(isXRay)
	p.AvailableDataset = triState(availDS)
	p.Features = features.String
	p.Technique = technique.String
	p.Changed = changed.String
	p.ChangedBy = changedBy.String
	p.Verified = triState(verified)
	if estScore.Valid {
		score := int(estScore.Int64)
		p.EstimatedScore = &score
	}
	p.VerifiedBy = verifiedBy.String
	p.VerifierTrace = vtrace.String
	return p, nil
}

func triState(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}

// ListClassifyIDs returns the ids eligible for a classification run.
func (db *Database) ListClassifyIDs(mode SelectMode, paperID string) ([]string, error) {
	switch mode {
	case SelectAll:
		return db.queryIDs("SELECT id FROM papers ORDER BY id")
	case SelectRemaining:
		return db.queryIDs("SELECT id FROM papers WHERE changed_by IS NULL OR changed_by = '' ORDER BY id")
	case SelectByID:
		return db.queryIDs("SELECT id FROM papers WHERE id = ?", paperID)
	}
	return nil, fmt.Errorf("unknown selection mode '%s'", mode)
}

// ListVerifyIDs returns the ids eligible for a verification run. Only
// classified papers are candidates: verifying an unclassified paper is
// meaningless.
func (db *Database) ListVerifyIDs(mode SelectMode, paperID string) ([]string, error) {
	switch mode {
	case SelectAll:
		return db.queryIDs("SELECT id FROM papers WHERE changed_by IS NOT NULL AND changed_by != '' ORDER BY id")
	case SelectRemaining:
		return db.queryIDs(`SELECT id FROM papers
			WHERE (changed_by IS NOT NULL AND changed_by != '')
			AND (verified_by IS NULL OR verified_by = '') ORDER BY id`)
	case SelectByID:
		return db.queryIDs("SELECT id FROM papers WHERE id = ?", paperID)
	}
	return nil, fmt.Errorf("unknown selection mode '%s'", mode)
}

func (db *Database) queryIDs(query string, args ...interface{}) ([]string, error) {
	rows, err := retryableQuery(db.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paper ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetGroupField loads one grouped-flags JSON column for merge-before-write.
// Missing rows and malformed JSON both yield an empty map.
func (db *Database) GetGroupField(paperID, field string) (map[string]interface{}, error) {
	if !validGroupField(field) {
		return nil, fmt.Errorf("unknown group field '%s'", field)
	}
	var raw sql.NullString
	err := retryableQueryRowScan(db.db, "SELECT "+field+" FROM papers WHERE id = ?", []interface{}{paperID}, &raw)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to fetch %s for '%s': %w", field, paperID, err)
	}
	current := make(map[string]interface{})
	if raw.Valid && raw.String != "" {
		if jerr := json.Unmarshal([]byte(raw.String), &current); jerr != nil {
			current = make(map[string]interface{})
		}
	}
	return current, nil
}

func validGroupField(field string) bool {
	for _, f := range models.GroupFields {
		if f == field {
			return true
		}
	}
	return false
}

// nowISO returns the audit timestamp in the catalog's ISO-8601 UTC form.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

// ApplyClassification merges a structured classification reply into a
// paper row. Partial-update semantics: a field absent from the reply
// leaves the stored value untouched; a field present with null clears it.
// Grouped fields are merged key-by-key against the stored object so a
// partial reply never wipes previously recorded flags. The audit fields
// are stamped on every merge.
func (db *Database) ApplyClassification(paperID string, reply map[string]json.RawMessage, changedBy string) (bool, error) {
	var updateFields []string
	var updateValues []interface{}

	for _, field := range models.BoolFields {
		raw, ok := reply[field]
		if !ok {
			continue
		}
		var v *bool
		// anything non-boolean (including null) clears to NULL
		_ = json.Unmarshal(raw, &v)
		updateFields = append(updateFields, field+" = ?")
		if v == nil {
			updateValues = append(updateValues, nil)
		} else if *v {
			updateValues = append(updateValues, 1)
		} else {
			updateValues = append(updateValues, 0)
		}
	}

	if raw, ok := reply["research_area"]; ok {
		var s *string
		_ = json.Unmarshal(raw, &s)
		updateFields = append(updateFields, "research_area = ?")
		if s == nil {
			updateValues = append(updateValues, nil)
		} else {
			updateValues = append(updateValues, *s)
		}
	}

	for _, field := range models.GroupFields {
		raw, ok := reply[field]
		if !ok {
			continue
		}
		incoming := make(map[string]interface{})
		if err := json.Unmarshal(raw, &incoming); err != nil {
			continue // not an object, leave the stored group alone
		}
		current, err := db.GetGroupField(paperID, field)
		if err != nil {
			return false, err
		}
		for k, v := range incoming {
			current[k] = v
		}
		merged, err := json.Marshal(current)
		if err != nil {
			return false, fmt.Errorf("failed to encode merged %s: %w", field, err)
		}
		updateFields = append(updateFields, field+" = ?")
		updateValues = append(updateValues, string(merged))
	}

	// audit stamp accompanies every merge
	updateFields = append(updateFields, "changed = ?", "changed_by = ?")
	updateValues = append(updateValues, nowISO(), changedBy)

	query := "UPDATE papers SET "
	for i, f := range updateFields {
		if i > 0 {
			query += ", "
		}
		query += f
	}
	query += " WHERE id = ?"
	updateValues = append(updateValues, paperID)

	result, err := retryableExec(db.db, query, updateValues...)
	if err != nil {
		return false, fmt.Errorf("failed to update paper '%s': %w", paperID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ApplyVerification persists a verification reply. It never touches the
// classification audit fields (changed/changed_by).
func (db *Database) ApplyVerification(paperID string, result *models.VerificationResult, verifiedBy, reasoningTrace string) (bool, error) {
	var verified interface{}
	if result.Verified != nil {
		if *result.Verified {
			verified = 1
		} else {
			verified = 0
		}
	}

	var score interface{}
	if result.EstimatedScore != nil {
		s := int(*result.EstimatedScore)
		if s < 0 {
			s = 0
		}
		if s > 100 {
			s = 100
		}
		score = s
	}

	updateFields := "verified = ?, estimated_score = ?, verified_by = ?"
	updateValues := []interface{}{verified, score, verifiedBy}
	if reasoningTrace != "" {
		updateFields += ", verifier_trace = ?"
		updateValues = append(updateValues, reasoningTrace)
	}
	updateValues = append(updateValues, paperID)

	res, err := retryableExec(db.db, "UPDATE papers SET "+updateFields+" WHERE id = ?", updateValues...)
	if err != nil {
		return false, fmt.Errorf("failed to update verification for '%s': %w", paperID, err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// InsertPaper inserts an imported paper, ignoring duplicates by BibTeX key.
// Reports whether a new row was created.
func (db *Database) InsertPaper(p *models.Paper) (bool, error) {
	query := `INSERT OR IGNORE INTO papers
		(id, type, title, authors, year, month, journal, volume, pages, doi, issn,
		 abstract, keywords, page_count, features, technique)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := retryableExec(db.db, query,
		p.ID, p.Type, p.Title, p.Authors, p.Year, p.Month, p.Journal, p.Volume,
		p.Pages, p.DOI, p.ISSN, p.Abstract, p.Keywords, p.PageCount,
		p.Features, p.Technique)
	if err != nil {
		return false, fmt.Errorf("failed to insert paper '%s': %w", p.ID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
