// Package prompt renders LLM prompts from paper records and template
// files. Templates use {field} placeholders; a placeholder with no
// matching field is a configuration error, never silently dropped.
package prompt

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paperdex/paperdex/internal/models"
)

// yamlSkeleton is the answer structure the model is asked to fill in.
// The inline comments are instructions to the model, not to us.
const yamlSkeleton = `research_area: null #broad area: electrical engineering, computer sciences, medical, finances, etc, can be inferred by journal or conference name as well as contents.
is_survey: false #true for survey/review/etc., false for implementations, new research, etc.
is_offtopic: false #true if paper seems entirely unrelated to the field (e.g. an exobiology paper that got through by mistake).  If offtopic, answer null for all fields following this one.
is_through_hole: true #true for papers that specify PTH, THT, etc., through-hole component mounting
is_smt: true #true for papers that specify surface-mount compoent mounting (SMD, SMT)
is_x_ray: null  #true for X-ray inspection, false for standard optical (visible light) inspection
features:  # true, false, null for unknown
    solder: null
    polarity: null
    wrong_component: null
    missing_component: null
    tracks: null	#any track error detection: split, short, etc.
    holes: null
    other: null 	#"string with other types of error detection"
technique:
    classic_computer_graphics_based: null
    machine_learning_based: null
    hybrid: null
    model: "name"	#comma-separated list if multiple models are used (YOLO, ResNet, DETR, etc.), null if not ML, "in-house" if unnamed ML model is developed in the paper itself.
available_dataset: null #true if authors provide the datasets for the public, false if there are no datasets or if they're not provided
`

// BuildClassification builds the classification prompt for one paper.
func BuildClassification(p *models.Paper) string {
	lines := []string{
		"Read the following paper title, abstract and keywords:",
		"Title: " + p.Title,
		"Abstract: " + p.Abstract,
		"Keywords: " + p.Keywords,
		"Authors: " + p.Authors,
		"Publication Year: " + strconv.Itoa(p.Year),
		"Publication Type: " + p.Type,
		"Publication Name: " + p.Journal,
		"Given the contents of the paper, fill in the following YAML structure exactly and convert it to JSON. Do not add, remove or move any fields.",
		"Only write 'true' or 'false' if the contents above make it clear that it is the case. If unsure, fill the field with null:",
		"The example below is not related to the paper above, use it only as a reference for the structure itself.",
		"",
		strings.TrimSpace(yamlSkeleton),
		"",
		"Your response is not being read by a human, it is grammar-locked via GBNF and goes directly to an automated parser. Answer with nothing but the structure itself directly. Output in JSON format",
	}
	return strings.Join(lines, "\n")
}

// Render substitutes {name} placeholders in templateText with values from
// fields. Doubled braces escape to literal braces. A placeholder missing
// from fields fails with an error naming it: that is a broken template or
// an incomplete field map, and retrying cannot fix either.
func Render(templateText string, fields map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(templateText))

	for i := 0; i < len(templateText); i++ {
		ch := templateText[i]
		switch ch {
		case '{':
			if i+1 < len(templateText) && templateText[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(templateText[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("template has unclosed placeholder at offset %d", i)
			}
			name := templateText[i+1 : i+end]
			value, ok := fields[name]
			if !ok {
				return "", fmt.Errorf("template references unknown placeholder '{%s}'", name)
			}
			out.WriteString(value)
			i += end
		case '}':
			if i+1 < len(templateText) && templateText[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			out.WriteByte('}')
		default:
			out.WriteByte(ch)
		}
	}
	return out.String(), nil
}

// LoadFile reads a template or grammar file. Missing files surface the
// path so the operator can fix the configuration.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return string(data), nil
}
