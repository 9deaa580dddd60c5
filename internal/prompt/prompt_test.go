package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/models"
)

func TestRenderSubstitutes(t *testing.T) {
	out, err := Render("Title: {title}\nYear: {year}", map[string]string{
		"title": "PCB inspection",
		"year":  "2023",
	})
	require.NoError(t, err)
	assert.Equal(t, "Title: PCB inspection\nYear: 2023", out)
}

func TestRenderEscapedBraces(t *testing.T) {
	out, err := Render(`JSON looks like {{"key": "value"}}, title is {title}`, map[string]string{
		"title": "x",
	})
	require.NoError(t, err)
	assert.Equal(t, `JSON looks like {"key": "value"}, title is x`, out)
}

func TestRenderUnknownPlaceholder(t *testing.T) {
	_, err := Render("Title: {titel}", map[string]string{"title": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "titel", "the error must name the bad placeholder")
}

func TestRenderUnclosedPlaceholder(t *testing.T) {
	_, err := Render("Title: {title", map[string]string{"title": "x"})
	assert.Error(t, err)
}

func TestRenderEmptyValueIsFine(t *testing.T) {
	out, err := Render("Abstract: {abstract}", map[string]string{"abstract": ""})
	require.NoError(t, err)
	assert.Equal(t, "Abstract: ", out)
}

func TestBuildClassificationContainsPaperAndSkeleton(t *testing.T) {
	p := &models.Paper{
		Title:    "Defect detection with YOLO",
		Abstract: "An abstract.",
		Keywords: "PCB; SMT",
		Authors:  "Doe, A.",
		Year:     2022,
		Type:     "article",
		Journal:  "Some Journal",
	}
	out := BuildClassification(p)
	assert.Contains(t, out, "Title: Defect detection with YOLO")
	assert.Contains(t, out, "Abstract: An abstract.")
	assert.Contains(t, out, "Publication Year: 2022")
	assert.Contains(t, out, "research_area:")
	assert.Contains(t, out, "is_through_hole:")
	assert.Contains(t, out, "machine_learning_based:")
	assert.Contains(t, out, "Output in JSON format")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpl.txt")
	require.NoError(t, os.WriteFile(path, []byte("Verify {title}"), 0o644))

	text, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Verify {title}", text)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
