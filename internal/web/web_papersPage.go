package web

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/models"
)

// Default filter values for the papers table.
const (
	defaultYearFrom     = 2020
	defaultYearTo       = 2025
	defaultMinPageCount = 4
)

// PaperRow is one line of the papers table, preformatted for display.
type PaperRow struct {
	ID         string
	TypeEmoji  string
	Title      string
	Authors    string
	Year       int
	Journal    string
	Changed    string
	ChangedBy  string
	VerifiedBy string
	Offtopic   bool
}

// PapersPageData feeds the papers table template.
type PapersPageData struct {
	Papers       []PaperRow
	Total        int
	HideOfftopic bool
	YearFrom     int
	YearTo       int
	MinPageCount int
	Search       string
	AppVersion   string
}

// typeEmojis maps publication types to their table marker.
var typeEmojis = map[string]string{
	"article":       "📄",
	"inproceedings": "📚",
	"incollection":  "📖",
	"inbook":        "📘",
	"phdthesis":     "🎓",
	"mastersthesis": "🎓",
	"techreport":    "📋",
	"misc":          "📁",
}

func typeEmoji(pubType string) string {
	if e, ok := typeEmojis[strings.ToLower(pubType)]; ok {
		return e
	}
	return "📄"
}

// truncateAuthors shortens long author lists for the table view.
func truncateAuthors(authors string, max int) string {
	parts := strings.Split(authors, ";")
	if len(parts) <= max {
		return authors
	}
	kept := make([]string, 0, max)
	for _, p := range parts[:max] {
		kept = append(kept, strings.TrimSpace(p))
	}
	return strings.Join(kept, "; ") + " et al."
}

// formatChanged renders the audit timestamp as dd/mm/yy hh:mm:ss.
func formatChanged(changed string) string {
	if changed == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, strings.Replace(changed, "Z", "+00:00", 1))
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05.000000Z", changed)
	}
	if err != nil {
		return changed
	}
	return t.Format("02/01/06 15:04:05")
}

// parseFilter extracts the browse filter from query parameters.
func parseFilter(c *gin.Context) database.BrowseFilter {
	filter := database.BrowseFilter{
		HideOfftopic: c.DefaultQuery("hide_offtopic", "1") != "0",
		YearFrom:     intQuery(c, "year_from", defaultYearFrom),
		YearTo:       intQuery(c, "year_to", defaultYearTo),
		MinPageCount: intQuery(c, "min_page_count", defaultMinPageCount),
		Search:       strings.TrimSpace(c.Query("q")),
	}
	return filter
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// papersPage renders the filterable papers table.
func (s *WebServer) papersPage(c *gin.Context) {
	filter := parseFilter(c)
	papers, err := s.DB.ListPapers(filter)
	if err != nil {
		log.Printf("[WEB] failed to list papers: %v", err)
		c.String(http.StatusInternalServerError, "database error")
		return
	}

	rows := make([]PaperRow, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, paperRow(p))
	}

	c.HTML(http.StatusOK, "papers.html", PapersPageData{
		Papers:       rows,
		Total:        len(rows),
		HideOfftopic: filter.HideOfftopic,
		YearFrom:     filter.YearFrom,
		YearTo:       filter.YearTo,
		MinPageCount: filter.MinPageCount,
		Search:       filter.Search,
		AppVersion:   s.Config.AppVersion,
	})
}

func paperRow(p *models.Paper) PaperRow {
	return PaperRow{
		ID:         p.ID,
		TypeEmoji:  typeEmoji(p.Type),
		Title:      p.Title,
		Authors:    truncateAuthors(p.Authors, 2),
		Year:       p.Year,
		Journal:    p.Journal,
		Changed:    formatChanged(p.Changed),
		ChangedBy:  p.ChangedBy,
		VerifiedBy: p.VerifiedBy,
		Offtopic:   p.IsOfftopic != nil && *p.IsOfftopic,
	}
}

// StatsPageData feeds the stats template.
type StatsPageData struct {
	Stats      *database.CatalogStats
	AppVersion string
	Uptime     string
}

// statsPage renders catalog-wide counters.
func (s *WebServer) statsPage(c *gin.Context) {
	stats, err := s.DB.GetStats()
	if err != nil {
		log.Printf("[WEB] failed to compute stats: %v", err)
		c.String(http.StatusInternalServerError, "database error")
		return
	}
	c.HTML(http.StatusOK, "stats.html", StatsPageData{
		Stats:      stats,
		AppVersion: s.Config.AppVersion,
		Uptime:     time.Since(s.StartTime).Round(time.Second).String(),
	})
}
