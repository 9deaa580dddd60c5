// Package bibtex imports .bib files into the papers catalog.
package bibtex

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/nickng/bibtex"
	"golang.org/x/text/unicode/norm"

	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/models"
)

var (
	unescapedBrace = regexp.MustCompile(`(^|[^\\])[{}]`)
	pageRange      = regexp.MustCompile(`^(\d+)\s*-{1,2}\s*(\d+)$`)
)

// cleanBraces removes unescaped curly brace groups that BibTeX uses for
// case protection, commonly left inside titles.
func cleanBraces(text string) string {
	for unescapedBrace.MatchString(text) {
		text = unescapedBrace.ReplaceAllString(text, "$1")
	}
	return text
}

// cleanField normalizes one imported value: brace cleanup, whitespace
// collapse and Unicode NFC so accented author names compare and search
// consistently regardless of how the .bib encoded them.
func cleanField(text string) string {
	text = cleanBraces(text)
	text = strings.Join(strings.Fields(text), " ")
	return norm.NFC.String(text)
}

// parseAuthors turns BibTeX "A and B and C" into "A; B; C".
func parseAuthors(authors string) string {
	if authors == "" {
		return ""
	}
	parts := strings.Split(authors, " and ")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "; ")
}

// parseKeywords turns comma-separated keywords into "k1; k2; k3".
func parseKeywords(keywords string) string {
	if keywords == "" {
		return ""
	}
	parts := strings.Split(keywords, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "; ")
}

// countPages derives a page count from a "123--145" style range. Unknown
// formats yield 0 (unknown), never an error.
func countPages(pages string) int {
	m := pageRange.FindStringSubmatch(strings.TrimSpace(pages))
	if m == nil {
		return 0
	}
	first, err1 := strconv.Atoi(m[1])
	last, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || last < first {
		return 0
	}
	return last - first + 1
}

// ImportResult reports what an import run did.
type ImportResult struct {
	Parsed     int
	Imported   int
	Duplicates int
}

// Import parses a .bib stream and inserts one paper per entry. Duplicate
// BibTeX keys are skipped with a warning; grouped classification flags
// are seeded with the all-unknown defaults.
func Import(r io.Reader, db *database.Database) (*ImportResult, error) {
	bib, err := bibtex.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse BibTeX: %w", err)
	}

	features, err := encodeGroup(models.DefaultFeatures())
	if err != nil {
		return nil, err
	}
	technique, err := encodeGroup(models.DefaultTechnique())
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Parsed: len(bib.Entries)}
	for _, entry := range bib.Entries {
		paper := entryToPaper(entry)
		paper.Features = features
		paper.Technique = technique

		inserted, err := db.InsertPaper(paper)
		if err != nil {
			log.Printf("[IMPORT] failed to insert entry '%s': %v", paper.ID, err)
			continue
		}
		if !inserted {
			log.Printf("[IMPORT] WARN: skipping duplicate ID '%s'", paper.ID)
			result.Duplicates++
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ImportFile imports one .bib file into the catalog at dbFile.
func ImportFile(bibFile string, db *database.Database) (*ImportResult, error) {
	f, err := os.Open(bibFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", bibFile, err)
	}
	defer f.Close()

	result, err := Import(f, db)
	if err != nil {
		return nil, err
	}
	log.Printf("[IMPORT] imported %d/%d records from '%s' (%d duplicates)",
		result.Imported, result.Parsed, bibFile, result.Duplicates)
	return result, nil
}

func entryToPaper(entry *bibtex.BibEntry) *models.Paper {
	field := func(name string) string {
		if v, ok := entry.Fields[name]; ok {
			return cleanField(v.String())
		}
		return ""
	}

	year := 0
	if y, err := strconv.Atoi(strings.TrimSpace(field("year"))); err == nil {
		year = y
	}

	journal := field("journal")
	if journal == "" {
		journal = field("booktitle")
	}

	pages := field("pages")
	return &models.Paper{
		ID:        entry.CiteName,
		Type:      entry.Type,
		Title:     field("title"),
		Authors:   parseAuthors(field("author")),
		Year:      year,
		Month:     field("month"),
		Journal:   journal,
		Volume:    field("volume"),
		Pages:     pages,
		DOI:       field("doi"),
		ISSN:      field("issn"),
		Abstract:  field("abstract"),
		Keywords:  parseKeywords(field("keywords")),
		PageCount: countPages(pages),
	}
}

func encodeGroup(group map[string]interface{}) (string, error) {
	data, err := json.Marshal(group)
	if err != nil {
		return "", fmt.Errorf("failed to encode default group: %w", err)
	}
	return string(data), nil
}
