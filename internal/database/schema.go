package database

// papersSchema mirrors the layout the BibTeX importer established.
// Tri-state flags are INTEGER 1/0/NULL; grouped flags are JSON text.
const papersSchema = `
CREATE TABLE IF NOT EXISTS papers (
	id TEXT PRIMARY KEY,               -- BibTeX key
	type TEXT,                         -- Publication type (article, inproceedings, etc.)
	title TEXT,
	authors TEXT,                      -- Semicolon-separated list
	year INTEGER,
	month TEXT,
	journal TEXT,                      -- Journal or conference name
	volume TEXT,
	pages TEXT,
	doi TEXT,
	issn TEXT,
	abstract TEXT,
	keywords TEXT,                     -- Semicolon-separated list
	page_count INTEGER,
	-- Classification fields
	research_area TEXT,                -- NULL = unknown
	is_survey INTEGER,                 -- 1=true, 0=false, NULL=unknown
	is_offtopic INTEGER,
	is_through_hole INTEGER,
	is_smt INTEGER,
	is_x_ray INTEGER,
	available_dataset INTEGER,
	-- Grouped flags (stored as JSON)
	features TEXT,
	technique TEXT,
	-- Audit fields
	changed TEXT,                      -- ISO 8601 timestamp, NULL if never changed
	changed_by TEXT,                   -- Identity of the last writer
	-- Verification fields
	verified INTEGER,                  -- 1=true, 0=false, NULL=unverified
	estimated_score INTEGER,           -- 0-100
	verified_by TEXT,
	verifier_trace TEXT
)`

func (db *Database) createSchema() error {
	_, err := retryableExec(db.db, papersSchema)
	return err
}
