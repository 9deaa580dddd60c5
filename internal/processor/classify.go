// Package processor implements the per-paper classification and
// verification logic behind the batch pool.
package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/paperdex/paperdex/internal/batch"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
	"github.com/paperdex/paperdex/internal/models"
	"github.com/paperdex/paperdex/internal/prompt"
)

// classifierFields is every placeholder a custom classification template
// may reference: the paper's bibliographic metadata. Classification runs
// before any flags exist, so only metadata is available.
var classifierFields = []string{
	"title", "abstract", "keywords", "authors", "year", "type", "journal",
}

// Classifier processes one paper per call: load, prompt, inference,
// parse, partial-merge. Safe for concurrent use by the worker pool.
type Classifier struct {
	db         *database.Database
	client     *llm.Client
	template   string // empty = built-in prompt
	grammar    string
	modelAlias string
	shutdown   *batch.ShutdownFlag
}

// NewClassifier resolves everything the classification batch needs up
// front. templateFile may be empty, selecting the built-in prompt; a named
// template is validated here so a broken one aborts with zero jobs run.
// grammarFile may be empty (no output constraint); a named but unreadable
// grammar file is a configuration error.
func NewClassifier(db *database.Database, client *llm.Client, templateFile, grammarFile string, shutdown *batch.ShutdownFlag) (*Classifier, error) {
	template := ""
	if templateFile != "" {
		var err error
		template, err = prompt.LoadFile(templateFile)
		if err != nil {
			return nil, fmt.Errorf("classification template: %w", err)
		}
		probe := make(map[string]string, len(classifierFields))
		for _, f := range classifierFields {
			probe[f] = ""
		}
		if _, err := prompt.Render(template, probe); err != nil {
			return nil, fmt.Errorf("classification template '%s': %w", templateFile, err)
		}
		log.Printf("[BATCH] loaded classification template from '%s'", templateFile)
	}

	grammar := ""
	if grammarFile != "" {
		var err error
		grammar, err = prompt.LoadFile(grammarFile)
		if err != nil {
			return nil, err
		}
		log.Printf("[BATCH] loaded GBNF grammar from '%s'", grammarFile)
	}

	// discovered once per batch; degrades to a placeholder, never aborts
	alias := client.DiscoverModelAlias()

	return &Classifier{
		db:         db,
		client:     client,
		template:   template,
		grammar:    grammar,
		modelAlias: alias,
		shutdown:   shutdown,
	}, nil
}

// ModelAlias returns the attribution identity this batch writes.
func (c *Classifier) ModelAlias() string {
	return c.modelAlias
}

// Process classifies one paper. Every per-item failure resolves to an
// Outcome; nothing here may take the worker down.
func (c *Classifier) Process(paperID string) batch.Outcome {
	paper, err := c.db.GetPaperByID(paperID)
	if err != nil {
		log.Printf("[CLASSIFY] failed to load paper '%s': %v", paperID, err)
		return batch.OutcomeNotFound
	}
	if paper == nil {
		log.Printf("[CLASSIFY] paper '%s' not found (removed since selection?)", paperID)
		return batch.OutcomeNotFound
	}

	promptText, err := c.buildPrompt(paper)
	if err != nil {
		// the template was validated up front, so this is a bug worth a
		// loud log, but still only costs this one item
		log.Printf("[CLASSIFY] failed to render prompt for paper '%s': %v", paperID, err)
		return batch.OutcomeParseError
	}

	reply, err := c.client.SendPrompt(promptText, c.grammar, c.modelAlias, c.shutdown.IsSet)
	if err != nil {
		logInferenceError("CLASSIFY", paperID, err)
		return batch.OutcomeInferenceFailure
	}
	if reply == nil {
		// shutdown observed around the network call; not an error, the
		// paper stays unmarked for a later 'remaining' run
		return batch.OutcomeInferenceFailure
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(reply.Content), &fields); err != nil {
		log.Printf("[CLASSIFY] failed to parse reply for paper '%s': %v", paperID, err)
		log.Printf("[CLASSIFY] raw reply was: %s", reply.Content)
		return batch.OutcomeParseError
	}

	changed, err := c.db.ApplyClassification(paperID, fields, reply.ModelUsed)
	if err != nil {
		log.Printf("[CLASSIFY] failed to persist classification for paper '%s': %v", paperID, err)
		return batch.OutcomeNoChange
	}
	if !changed {
		return batch.OutcomeNoChange
	}
	return batch.OutcomeUpdated
}

// buildPrompt renders the custom template when one was configured, the
// built-in prompt otherwise.
func (c *Classifier) buildPrompt(paper *models.Paper) (string, error) {
	if c.template == "" {
		return prompt.BuildClassification(paper), nil
	}
	return prompt.Render(c.template, map[string]string{
		"title":    paper.Title,
		"abstract": paper.Abstract,
		"keywords": paper.Keywords,
		"authors":  paper.Authors,
		"year":     strconv.Itoa(paper.Year),
		"type":     paper.Type,
		"journal":  paper.Journal,
	})
}

// logInferenceError distinguishes the failure kinds from the client so
// transport trouble and protocol trouble are tellable apart in the log.
func logInferenceError(tag, paperID string, err error) {
	switch {
	case errors.Is(err, llm.ErrTransport):
		log.Printf("[%s] transport failure for paper '%s': %v", tag, paperID, err)
	case errors.Is(err, llm.ErrStatus):
		log.Printf("[%s] server error for paper '%s': %v", tag, paperID, err)
	case errors.Is(err, llm.ErrEnvelope), errors.Is(err, llm.ErrNoChoices):
		log.Printf("[%s] malformed response for paper '%s': %v", tag, paperID, err)
	default:
		log.Printf("[%s] inference failure for paper '%s': %v", tag, paperID, err)
	}
}

var _ batch.Processor = (*Classifier)(nil)
