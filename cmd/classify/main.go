// Batch classification driver for the paperdex catalog
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/paperdex/paperdex/internal/batch"
	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
	"github.com/paperdex/paperdex/internal/processor"
)

func showUsageExamples() {
	fmt.Println("\n=== paperdex classify - Usage Examples ===")
	fmt.Println("Classify every unprocessed paper against the local LLM server:")
	fmt.Println("  ./classify -mode remaining")
	fmt.Println()
	fmt.Println("Re-classify the whole catalog:")
	fmt.Println("  ./classify -mode all")
	fmt.Println()
	fmt.Println("Classify a single paper by its BibTeX key:")
	fmt.Println("  ./classify -mode id -paper-id smith2023pcb")
	fmt.Println()
	fmt.Println("Constrain the model output with a GBNF grammar:")
	fmt.Println("  ./classify -mode remaining -grammar-file classify.gbnf")
	fmt.Println()
	fmt.Println("Let workers finish their in-flight paper on Ctrl-C:")
	fmt.Println("  ./classify -mode all -graceful")
	fmt.Println()
}

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("Starting paperdex classify (version %s)", config.AppVersion)

	cfg := config.NewDefaultConfig()
	var (
		mode         = flag.String("mode", "remaining", "Selection mode: all, remaining or id")
		paperID      = flag.String("paper-id", "", "Paper BibTeX key (required with -mode id)")
		dbFile       = flag.String("db-file", cfg.Database.DBFile, "Path to the papers SQLite database")
		serverURL    = flag.String("server-url", cfg.LLM.ServerURL, "Base URL of the OpenAI-compatible inference server")
		templateFile = flag.String("prompt-template", cfg.Batch.PromptTemplate, "Optional classification template with {field} placeholders (default: built-in prompt)")
		grammarFile  = flag.String("grammar-file", cfg.Batch.GrammarFile, "Optional GBNF grammar file constraining the model output")
		workers      = flag.Int("workers", cfg.Batch.Workers, "Number of concurrent workers (match the server's slot count)")
		graceful     = flag.Bool("graceful", false, "On interrupt, let workers finish their in-flight paper instead of exiting immediately")
		showHelp     = flag.Bool("help", false, "Show usage examples and exit")
	)
	flag.Parse()

	if *showHelp {
		showUsageExamples()
		os.Exit(0)
	}

	selectMode := database.SelectMode(*mode)
	if !database.ValidSelectMode(selectMode) {
		log.Printf("[CLASSIFY] unknown mode '%s' (want all, remaining or id)", *mode)
		os.Exit(1)
	}
	if selectMode == database.SelectByID && *paperID == "" {
		log.Printf("[CLASSIFY] -mode id requires -paper-id")
		os.Exit(1)
	}

	db, err := database.OpenDatabase(*dbFile)
	if err != nil {
		log.Printf("[CLASSIFY] failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	client := llm.NewClient(*serverURL, cfg.LLM.Sampling)

	// interactive default is the fastest possible Ctrl-C response
	policy := batch.Immediate
	if *graceful {
		policy = batch.Cooperative
	}
	shutdown := batch.NewShutdownFlag()
	batch.HandleInterrupt(shutdown, policy)

	classifier, err := processor.NewClassifier(db, client, *templateFile, *grammarFile, shutdown)
	if err != nil {
		log.Printf("[CLASSIFY] configuration error: %v", err)
		os.Exit(1)
	}
	log.Printf("[CLASSIFY] classifying as '%s' via %s", classifier.ModelAlias(), client.BaseURL())

	_, err = batch.Run(batch.RunOptions{
		Label: "classification",
		Select: func() ([]string, error) {
			return db.ListClassifyIDs(selectMode, *paperID)
		},
		Processor: classifier,
		Workers:   *workers,
		Shutdown:  shutdown,
	})
	if err != nil {
		log.Printf("[CLASSIFY] %v", err)
		os.Exit(1)
	}
}
