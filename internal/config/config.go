// Package config provides configuration management for paperdex.
package config

import (
	"log"
	"time"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// DefaultWorkers should mirror the inference server's slot count.
	// Oversubscribing only queues requests server-side; undersubscribing
	// leaves slots idle. Tune per deployment.
	DefaultWorkers = 8

	// DefaultRequestTimeout bounds a single completion request. Local LLM
	// inference over long contexts can legitimately take minutes; a short
	// timeout here silently kills slow generations.
	DefaultRequestTimeout = 300 * time.Second

	// DefaultDiscoveryTimeout bounds the /v1/models probe.
	DefaultDiscoveryTimeout = 30 * time.Second

	// DequeueTimeout is how long a worker blocks on an empty queue before
	// re-checking the shutdown flag.
	DequeueTimeout = 1 * time.Second

	// DrainTimeout bounds how long the dispatcher waits for in-flight
	// workers after the queue is drained or shutdown was requested.
	DrainTimeout = 60 * time.Second

	// FallbackModelAlias is recorded as attribution when /v1/models
	// discovery fails.
	FallbackModelAlias = "Unknown_LLM"
)

// MainConfig holds the main configuration for paperdex.
type MainConfig struct {
	// LLM server settings
	LLM LLMConfig `json:"llm"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	// Web interface settings
	Web WebConfig `json:"web"`

	// Batch driver settings
	Batch BatchConfig `json:"batch"`

	AppVersion string `json:"app_version"` // Application version, set at build time
}

// LLMConfig holds inference server settings.
type LLMConfig struct {
	ServerURL string         `json:"server_url"` // base URL, e.g. http://localhost:8080
	Sampling  SamplingConfig `json:"sampling"`
}

// SamplingConfig names the sampling parameter set sent with every
// completion request. These are configuration, not protocol: the values
// below match what the catalog was originally classified with.
type SamplingConfig struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
	MinP        float64 `json:"min_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// DatabaseConfig holds catalog database configuration.
type DatabaseConfig struct {
	DBFile string `json:"db_file"` // Path to the papers SQLite database
}

// WebConfig holds web interface configuration.
type WebConfig struct {
	ListenPort int    `json:"listen_port"`
	SSL        bool   `json:"ssl"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
}

// BatchConfig holds batch driver configuration.
type BatchConfig struct {
	Workers        int    `json:"workers"`
	GrammarFile    string `json:"grammar_file"`    // optional GBNF grammar
	PromptTemplate string `json:"prompt_template"` // optional classification template, empty = built-in prompt
	VerifyTemplate string `json:"verify_template"` // verification template
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *MainConfig {
	maincfg := &MainConfig{
		AppVersion: AppVersion,
		LLM: LLMConfig{
			ServerURL: "http://localhost:8080",
			Sampling: SamplingConfig{
				Temperature: 0.0, // deterministic output for classification
				TopP:        0.95,
				TopK:        40,
				MinP:        0.05,
				MaxTokens:   1000,
			},
		},
		Database: DatabaseConfig{
			DBFile: "all.sqlite",
		},
		Web: WebConfig{
			ListenPort: 11980,
			SSL:        false,
		},
		Batch: BatchConfig{
			Workers:        DefaultWorkers,
			VerifyTemplate: "verifier_template.txt",
		},
	}
	log.Printf("[CONFIG] defaults initialized: server=%s workers=%d db=%s",
		maincfg.LLM.ServerURL, maincfg.Batch.Workers, maincfg.Database.DBFile)
	return maincfg
}
