package bibtex

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/database"
)

const sampleBib = `
@article{smith2023solder,
    title = {A {Deep} {Learning} Approach to Solder   Joint Inspection},
    author = {Smith, John and Doe, Alice and Roe, Bob},
    journal = {IEEE Access},
    year = {2023},
    pages = {1001--1015},
    keywords = {PCB, AOI, deep learning},
    doi = {10.1109/EXAMPLE.2023},
    abstract = {We propose a method.},
}

@inproceedings{doe2021xray,
    title = {X-ray Inspection of BGA Packages},
    author = {Doe, Alice},
    booktitle = {Proc. of the Example Conference},
    year = {2021},
    pages = {55--60},
}
`

func openTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.OpenDatabase(filepath.Join(t.TempDir(), "papers.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestImportEntries(t *testing.T) {
	db := openTestDB(t)
	result, err := Import(strings.NewReader(sampleBib), db)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Parsed)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Duplicates)

	p, err := db.GetPaperByID("smith2023solder")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "article", p.Type)
	assert.Equal(t, "A Deep Learning Approach to Solder Joint Inspection", p.Title,
		"braces stripped, whitespace collapsed")
	assert.Equal(t, "Smith, John; Doe, Alice; Roe, Bob", p.Authors)
	assert.Equal(t, "PCB; AOI; deep learning", p.Keywords)
	assert.Equal(t, "IEEE Access", p.Journal)
	assert.Equal(t, 2023, p.Year)
	assert.Equal(t, 15, p.PageCount)
	assert.Equal(t, "10.1109/EXAMPLE.2023", p.DOI)

	// grouped flags seeded all-unknown
	features := p.FeaturesMap()
	assert.Contains(t, features, "solder")
	assert.Nil(t, features["solder"])
}

func TestImportBooktitleFallsBackToJournal(t *testing.T) {
	db := openTestDB(t)
	_, err := Import(strings.NewReader(sampleBib), db)
	require.NoError(t, err)

	p, err := db.GetPaperByID("doe2021xray")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "inproceedings", p.Type)
	assert.Equal(t, "Proc. of the Example Conference", p.Journal)
	assert.Equal(t, 6, p.PageCount)
}

func TestImportSkipsDuplicates(t *testing.T) {
	db := openTestDB(t)
	_, err := Import(strings.NewReader(sampleBib), db)
	require.NoError(t, err)

	result, err := Import(strings.NewReader(sampleBib), db)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Parsed)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Duplicates)
}

func TestCleanBraces(t *testing.T) {
	assert.Equal(t, "Deep Learning for PCB", cleanBraces("{Deep} {Learning} for {PCB}"))
	assert.Equal(t, "plain", cleanBraces("plain"))
}

func TestCountPages(t *testing.T) {
	assert.Equal(t, 23, countPages("123--145"))
	assert.Equal(t, 23, countPages("123-145"))
	assert.Equal(t, 1, countPages("7--7"))
	assert.Equal(t, 0, countPages("e2023"), "unparseable ranges mean unknown, not an error")
	assert.Equal(t, 0, countPages("145--123"), "reversed ranges mean unknown")
	assert.Equal(t, 0, countPages(""))
}

func TestParseAuthorsAndKeywords(t *testing.T) {
	assert.Equal(t, "A; B; C", parseAuthors("A and B and C"))
	assert.Equal(t, "Solo, One", parseAuthors("Solo, One"))
	assert.Equal(t, "", parseAuthors(""))
	assert.Equal(t, "a; b", parseKeywords("a , b"))
}
