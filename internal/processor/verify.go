package processor

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/paperdex/paperdex/internal/batch"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
	"github.com/paperdex/paperdex/internal/models"
	"github.com/paperdex/paperdex/internal/prompt"
)

// verifierFields is every placeholder a verification template may
// reference. Templates are validated against this set before the batch
// starts so a broken template aborts with zero jobs run.
var verifierFields = []string{
	"title", "abstract", "keywords", "authors", "year", "type", "journal",
	"research_area", "is_survey", "is_offtopic", "is_through_hole",
	"is_smt", "is_x_ray", "available_dataset", "features", "technique",
}

// Verifier re-checks stored classifications against the model and
// persists a verdict plus confidence score. It never touches the
// classification audit fields.
type Verifier struct {
	db         *database.Database
	client     *llm.Client
	template   string
	grammar    string
	modelAlias string
	shutdown   *batch.ShutdownFlag
}

// NewVerifier loads and validates the verification template and the
// optional grammar. A template referencing an unknown placeholder is a
// configuration error surfaced here, before any job runs. An unreadable
// grammar file is tolerated with a warning: verification can run
// unconstrained.
func NewVerifier(db *database.Database, client *llm.Client, templateFile, grammarFile string, shutdown *batch.ShutdownFlag) (*Verifier, error) {
	template, err := prompt.LoadFile(templateFile)
	if err != nil {
		return nil, fmt.Errorf("verification template: %w", err)
	}
	log.Printf("[BATCH] loaded verification template from '%s'", templateFile)

	// validate placeholders with a dummy complete field map
	probe := make(map[string]string, len(verifierFields))
	for _, f := range verifierFields {
		probe[f] = ""
	}
	if _, err := prompt.Render(template, probe); err != nil {
		return nil, fmt.Errorf("verification template '%s': %w", templateFile, err)
	}

	grammar := ""
	if grammarFile != "" {
		grammar, err = prompt.LoadFile(grammarFile)
		if err != nil {
			log.Printf("[VERIFY] WARN: %v, verifying without grammar constraint", err)
			grammar = ""
		} else {
			log.Printf("[BATCH] loaded GBNF grammar from '%s' for verification", grammarFile)
		}
	}

	alias := client.DiscoverModelAlias()

	return &Verifier{
		db:         db,
		client:     client,
		template:   template,
		grammar:    grammar,
		modelAlias: alias,
		shutdown:   shutdown,
	}, nil
}

// ModelAlias returns the attribution identity this batch writes.
func (v *Verifier) ModelAlias() string {
	return v.modelAlias
}

// Process verifies one paper's stored classification.
func (v *Verifier) Process(paperID string) batch.Outcome {
	paper, err := v.db.GetPaperByID(paperID)
	if err != nil {
		log.Printf("[VERIFY] failed to load paper '%s': %v", paperID, err)
		return batch.OutcomeNotFound
	}
	if paper == nil {
		log.Printf("[VERIFY] paper '%s' not found (removed since selection?)", paperID)
		return batch.OutcomeNotFound
	}

	promptText, err := v.buildPrompt(paper)
	if err != nil {
		// the template was validated up front, so this is a bug worth a
		// loud log, but still only costs this one item
		log.Printf("[VERIFY] failed to render prompt for paper '%s': %v", paperID, err)
		return batch.OutcomeParseError
	}

	reply, err := v.client.SendPrompt(promptText, v.grammar, v.modelAlias, v.shutdown.IsSet)
	if err != nil {
		logInferenceError("VERIFY", paperID, err)
		return batch.OutcomeInferenceFailure
	}
	if reply == nil {
		return batch.OutcomeInferenceFailure
	}

	var result models.VerificationResult
	if err := json.Unmarshal([]byte(reply.Content), &result); err != nil {
		log.Printf("[VERIFY] failed to parse reply for paper '%s': %v", paperID, err)
		log.Printf("[VERIFY] raw reply was: %s", reply.Content)
		return batch.OutcomeParseError
	}

	trace := "As verified by " + reply.ModelUsed
	if reply.Reasoning != "" {
		trace += "\n\n" + reply.Reasoning
	}

	changed, err := v.db.ApplyVerification(paperID, &result, reply.ModelUsed, trace)
	if err != nil {
		log.Printf("[VERIFY] failed to persist verification for paper '%s': %v", paperID, err)
		return batch.OutcomeNoChange
	}
	if !changed {
		return batch.OutcomeNoChange
	}
	return batch.OutcomeUpdated
}

// buildPrompt renders the verification template over the paper and its
// stored classification. Grouped flags go in as indented JSON so the
// model sees the same structure it originally emitted.
func (v *Verifier) buildPrompt(paper *models.Paper) (string, error) {
	features, err := json.MarshalIndent(paper.FeaturesMap(), "", "  ")
	if err != nil {
		return "", err
	}
	technique, err := json.MarshalIndent(paper.TechniqueMap(), "", "  ")
	if err != nil {
		return "", err
	}

	fields := map[string]string{
		"title":             paper.Title,
		"abstract":          paper.Abstract,
		"keywords":          paper.Keywords,
		"authors":           paper.Authors,
		"year":              strconv.Itoa(paper.Year),
		"type":              paper.Type,
		"journal":           paper.Journal,
		"research_area":     paper.ResearchArea,
		"is_survey":         boolToJSON(paper.IsSurvey),
		"is_offtopic":       boolToJSON(paper.IsOfftopic),
		"is_through_hole":   boolToJSON(paper.IsThroughHole),
		"is_smt":            boolToJSON(paper.IsSMT),
		"is_x_ray":          boolToJSON(paper.IsXRay),
		"available_dataset": boolToJSON(paper.AvailableDataset),
		"features":          string(features),
		"technique":         string(technique),
	}
	return prompt.Render(v.template, fields)
}

// boolToJSON renders a tri-state flag the way the templates expect.
func boolToJSON(v *bool) string {
	if v == nil {
		return "null"
	}
	if *v {
		return "true"
	}
	return "false"
}

var _ batch.Processor = (*Verifier)(nil)
