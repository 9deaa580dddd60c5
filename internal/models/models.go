// Package models defines core data structures for paperdex
package models

import (
	"encoding/json"
)

// Attribution identities recorded in changed_by / verified_by.
const (
	ChangedByWebApp = "Web app"
)

// Paper represents one catalog record, keyed by its BibTeX key.
// Tri-state classification flags are *bool: nil = unknown (NULL in the
// store), matching the 1/0/NULL column encoding.
type Paper struct {
	ID       string `json:"id" db:"id"` // BibTeX key
	Type     string `json:"type" db:"type"`
	Title    string `json:"title" db:"title"`
	Authors  string `json:"authors" db:"authors"` // semicolon-separated
	Year     int    `json:"year" db:"year"`
	Month    string `json:"month" db:"month"`
	Journal  string `json:"journal" db:"journal"`
	Volume   string `json:"volume" db:"volume"`
	Pages    string `json:"pages" db:"pages"`
	DOI      string `json:"doi" db:"doi"`
	ISSN     string `json:"issn" db:"issn"`
	Abstract string `json:"abstract" db:"abstract"`
	Keywords string `json:"keywords" db:"keywords"` // semicolon-separated

	PageCount int `json:"page_count" db:"page_count"`

	// Classification fields
	ResearchArea     string `json:"research_area" db:"research_area"`
	IsSurvey         *bool  `json:"is_survey" db:"is_survey"`
	IsOfftopic       *bool  `json:"is_offtopic" db:"is_offtopic"`
	IsThroughHole    *bool  `json:"is_through_hole" db:"is_through_hole"`
	IsSMT            *bool  `json:"is_smt" db:"is_smt"`
	IsXRay           *bool  `json:"is_x_ray" db:"is_x_ray"`
	AvailableDataset *bool  `json:"available_dataset" db:"available_dataset"`

	// Grouped flags, stored as JSON text columns
	Features  string `json:"features" db:"features"`
	Technique string `json:"technique" db:"technique"`

	// Audit fields
	Changed   string `json:"changed" db:"changed"` // ISO-8601 UTC, empty if never
	ChangedBy string `json:"changed_by" db:"changed_by"`

	// Verification fields
	Verified       *bool  `json:"verified" db:"verified"`
	EstimatedScore *int   `json:"estimated_score" db:"estimated_score"` // 0-100
	VerifiedBy     string `json:"verified_by" db:"verified_by"`
	VerifierTrace  string `json:"verifier_trace" db:"verifier_trace"`
}

// DefaultFeatures is the all-unknown feature group seeded on import.
func DefaultFeatures() map[string]interface{} {
	return map[string]interface{}{
		"solder":            nil,
		"polarity":          nil,
		"wrong_component":   nil,
		"missing_component": nil,
		"tracks":            nil,
		"holes":             nil,
		"other":             nil,
	}
}

// DefaultTechnique is the all-unknown technique group seeded on import.
func DefaultTechnique() map[string]interface{} {
	return map[string]interface{}{
		"classic_computer_graphics_based": nil,
		"machine_learning_based":          nil,
		"hybrid":                          nil,
		"model":                           nil,
		"available_dataset":               nil,
	}
}

// FeaturesMap decodes the stored features JSON. A missing or malformed
// column decodes to an empty map so merges never fail on legacy rows.
func (p *Paper) FeaturesMap() map[string]interface{} {
	return decodeGroup(p.Features)
}

// TechniqueMap decodes the stored technique JSON.
func (p *Paper) TechniqueMap() map[string]interface{} {
	return decodeGroup(p.Technique)
}

func decodeGroup(raw string) map[string]interface{} {
	m := make(map[string]interface{})
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return make(map[string]interface{})
	}
	return m
}

// ClassificationResult is the structured reply decoded from a
// classification completion. Field presence matters: absent fields leave
// stored values untouched, explicit nulls clear them, so everything
// scalar is decoded through RawFields.
type ClassificationResult struct {
	// RawFields preserves presence/absence of every top-level key.
	RawFields map[string]json.RawMessage
}

// VerificationResult is the structured reply decoded from a verification
// completion.
type VerificationResult struct {
	Verified       *bool    `json:"verified"`
	EstimatedScore *float64 `json:"estimated_score"`
}

// BoolFields are the tri-state scalar columns a classification reply may
// carry, in store column order.
var BoolFields = []string{"is_survey", "is_offtopic", "is_through_hole", "is_smt", "is_x_ray", "available_dataset"}

// GroupFields are the nested JSON-object columns merged key-by-key.
var GroupFields = []string{"features", "technique"}
