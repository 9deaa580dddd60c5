package database

import (
	"fmt"

	"github.com/paperdex/paperdex/internal/models"
)

// BrowseFilter narrows the papers listing in the web UI.
type BrowseFilter struct {
	HideOfftopic bool
	YearFrom     int // 0 = unset
	YearTo       int // 0 = unset
	MinPageCount int // 0 = unset
	Search       string
}

// ListPapers returns papers matching the filter, newest first.
func (db *Database) ListPapers(filter BrowseFilter) ([]*models.Paper, error) {
	query := "SELECT id FROM papers"
	var conditions []string
	var params []interface{}

	if filter.HideOfftopic {
		conditions = append(conditions, "(is_offtopic IS NULL OR is_offtopic = 0)")
	}
	if filter.YearFrom > 0 {
		conditions = append(conditions, "year >= ?")
		params = append(params, filter.YearFrom)
	}
	if filter.YearTo > 0 {
		conditions = append(conditions, "year <= ?")
		params = append(params, filter.YearTo)
	}
	if filter.MinPageCount > 0 {
		// papers with unknown page counts stay visible
		conditions = append(conditions, "(page_count IS NULL OR page_count = 0 OR page_count > ?)")
		params = append(params, filter.MinPageCount)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR abstract LIKE ? OR keywords LIKE ?)")
		like := "%" + filter.Search + "%"
		params = append(params, like, like, like)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY year DESC, id ASC"

	ids, err := db.queryIDs(query, params...)
	if err != nil {
		return nil, err
	}

	papers := make([]*models.Paper, 0, len(ids))
	for _, id := range ids {
		p, err := db.GetPaperByID(id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// CatalogStats summarizes classification progress across the catalog.
type CatalogStats struct {
	Total      int `json:"total"`
	Classified int `json:"classified"`
	Verified   int `json:"verified"`
	Offtopic   int `json:"offtopic"`
	Surveys    int `json:"surveys"`
}

// GetStats returns catalog-wide counters for the stats page.
func (db *Database) GetStats() (*CatalogStats, error) {
	stats := &CatalogStats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM papers", &stats.Total},
		{"SELECT COUNT(*) FROM papers WHERE changed_by IS NOT NULL AND changed_by != ''", &stats.Classified},
		{"SELECT COUNT(*) FROM papers WHERE verified_by IS NOT NULL AND verified_by != ''", &stats.Verified},
		{"SELECT COUNT(*) FROM papers WHERE is_offtopic = 1", &stats.Offtopic},
		{"SELECT COUNT(*) FROM papers WHERE is_survey = 1", &stats.Surveys},
	}
	for _, c := range counts {
		if err := retryableQueryRowScan(db.db, c.query, nil, c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute catalog stats: %w", err)
		}
	}
	return stats, nil
}
