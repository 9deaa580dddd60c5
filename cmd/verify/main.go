// Batch verification driver for the paperdex catalog
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
	fmt.Println("\n=== paperdex verify - Usage Examples ===")
	fmt.Println("Verify every classified-but-unverified paper:")
	fmt.Println("  ./verify -mode remaining")
	fmt.Println()
	fmt.Println("Re-verify every classified paper:")
	fmt.Println("  ./verify -mode all")
	fmt.Println()
	fmt.Println("Verify a single paper by its BibTeX key:")
	fmt.Println("  ./verify -mode id -paper-id smith2023pcb")
	fmt.Println()
	fmt.Println("Use a custom verification template:")
	fmt.Println("  ./verify -mode remaining -template-file my_verifier.txt")
	fmt.Println()
}

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("Starting paperdex verify (version %s)", config.AppVersion)

	cfg := config.NewDefaultConfig()
	var (
		mode         = flag.String("mode", "remaining", "Selection mode: all, remaining or id")
		paperID      = flag.String("paper-id", "", "Paper BibTeX key (required with -mode id)")
		dbFile       = flag.String("db-file", cfg.Database.DBFile, "Path to the papers SQLite database")
		serverURL    = flag.String("server-url", cfg.LLM.ServerURL, "Base URL of the OpenAI-compatible inference server")
		templateFile = flag.String("template-file", cfg.Batch.VerifyTemplate, "Verification prompt template with {field} placeholders")
		grammarFile  = flag.String("grammar-file", cfg.Batch.GrammarFile, "Optional GBNF grammar file constraining the model output")
		workers      = flag.Int("workers", cfg.Batch.Workers, "Number of concurrent workers (match the server's slot count)")
		immediate    = flag.Bool("immediate", false, "On interrupt, exit at once instead of letting workers finish their in-flight paper")
		showHelp     = flag.Bool("help", false, "Show usage examples and exit")
	)
	flag.Parse()

	if *showHelp {
		showUsageExamples()
		os.Exit(0)
	}

	selectMode := database.SelectMode(*mode)
	if !database.ValidSelectMode(selectMode) {
		log.Printf("[VERIFY] unknown mode '%s' (want all, remaining or id)", *mode)
		os.Exit(1)
	}
	if selectMode == database.SelectByID && *paperID == "" {
		log.Printf("[VERIFY] -mode id requires -paper-id")
		os.Exit(1)
	}

	db, err := database.OpenDatabase(*dbFile)
	if err != nil {
		log.Printf("[VERIFY] failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	client := llm.NewClient(*serverURL, cfg.LLM.Sampling)

	// verification writes a reasoning trace per paper, losing one to an
	// instant exit costs a whole inference. Drain by default.
	policy := batch.Cooperative
	if *immediate {
		policy = batch.Immediate
	}
	shutdown := batch.NewShutdownFlag()
	batch.HandleInterrupt(shutdown, policy)

	verifier, err := processor.NewVerifier(db, client, *templateFile, *grammarFile, shutdown)
	if err != nil {
		log.Printf("[VERIFY] configuration error: %v", err)
		os.Exit(1)
	}
	log.Printf("[VERIFY] verifying as '%s' via %s", verifier.ModelAlias(), client.BaseURL())

	_, err = batch.Run(batch.RunOptions{
		Label: "verification",
		Select: func() ([]string, error) {
			return db.ListVerifyIDs(selectMode, *paperID)
		},
		Processor: verifier,
		Workers:   *workers,
		Shutdown:  shutdown,
	})
	if err != nil {
		log.Printf("[VERIFY] %v", err)
		os.Exit(1)
	}
}
