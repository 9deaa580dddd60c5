// Web interface for browsing and editing the paperdex catalog
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
	"github.com/paperdex/paperdex/internal/web"
)

func showUsageExamples() {
	fmt.Println("\n=== paperdex web - Usage Examples ===")
	fmt.Println("Serve the catalog on the default port:")
	fmt.Println("  ./web -db-file all.sqlite")
	fmt.Println()
	fmt.Println("Custom port and inference server:")
	fmt.Println("  ./web -port 8081 -server-url http://gpu-box:8080")
	fmt.Println()
	fmt.Println("With TLS:")
	fmt.Println("  ./web -ssl -cert-file cert.pem -key-file key.pem")
	fmt.Println()
	fmt.Println("Batch runs triggered from the UI cancel cooperatively; the")
	fmt.Println("server itself never exits on a batch interrupt.")
	fmt.Println()
}

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("Starting paperdex web (version %s)", config.AppVersion)

	cfg := config.NewDefaultConfig()
	var (
		dbFile       = flag.String("db-file", cfg.Database.DBFile, "Path to the papers SQLite database")
		port         = flag.Int("port", cfg.Web.ListenPort, "HTTP listen port")
		serverURL    = flag.String("server-url", cfg.LLM.ServerURL, "Base URL of the OpenAI-compatible inference server")
		grammarFile  = flag.String("grammar-file", cfg.Batch.GrammarFile, "Optional GBNF grammar file for UI-triggered batch runs")
		promptFile   = flag.String("prompt-template", cfg.Batch.PromptTemplate, "Optional classification template for UI-triggered batch runs (default: built-in prompt)")
		templateFile = flag.String("template-file", cfg.Batch.VerifyTemplate, "Verification template for UI-triggered batch runs")
		workers      = flag.Int("workers", cfg.Batch.Workers, "Workers for UI-triggered batch runs")
		ssl          = flag.Bool("ssl", false, "Serve HTTPS")
		certFile     = flag.String("cert-file", "", "TLS certificate file (required with -ssl)")
		keyFile      = flag.String("key-file", "", "TLS key file (required with -ssl)")
		showHelp     = flag.Bool("help", false, "Show usage examples and exit")
	)
	flag.Parse()

	if *showHelp {
		showUsageExamples()
		os.Exit(0)
	}

	cfg.Database.DBFile = *dbFile
	cfg.Web.ListenPort = *port
	cfg.Web.SSL = *ssl
	cfg.Web.CertFile = *certFile
	cfg.Web.KeyFile = *keyFile
	cfg.LLM.ServerURL = *serverURL
	cfg.Batch.GrammarFile = *grammarFile
	cfg.Batch.PromptTemplate = *promptFile
	cfg.Batch.VerifyTemplate = *templateFile
	cfg.Batch.Workers = *workers

	if cfg.Web.SSL && (cfg.Web.CertFile == "" || cfg.Web.KeyFile == "") {
		log.Printf("[WEB] -ssl requires -cert-file and -key-file")
		os.Exit(1)
	}

	db, err := database.OpenDatabase(cfg.Database.DBFile)
	if err != nil {
		log.Printf("[WEB] failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	client := llm.NewClient(cfg.LLM.ServerURL, cfg.LLM.Sampling)

	server, err := web.NewServer(db, cfg, client)
	if err != nil {
		log.Printf("[WEB] failed to create server: %v", err)
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		log.Printf("[WEB] server stopped: %v", err)
		os.Exit(1)
	}
}
