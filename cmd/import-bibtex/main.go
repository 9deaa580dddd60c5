// BibTeX importer for the paperdex catalog
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/paperdex/paperdex/internal/bibtex"
	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/database"
)

func showUsageExamples() {
	fmt.Println("\n=== paperdex import-bibtex - Usage Examples ===")
	fmt.Println("Import a .bib file into a fresh or existing catalog:")
	fmt.Println("  ./import-bibtex -bib-file library.bib")
	fmt.Println()
	fmt.Println("Import into a specific database file:")
	fmt.Println("  ./import-bibtex -bib-file library.bib -db-file all.sqlite")
	fmt.Println()
	fmt.Println("Duplicate BibTeX keys are skipped with a warning, so importing")
	fmt.Println("the same file twice never clobbers existing classifications.")
	fmt.Println()
}

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("Starting paperdex import-bibtex (version %s)", config.AppVersion)

	cfg := config.NewDefaultConfig()
	var (
		bibFile  = flag.String("bib-file", "", "Path to the .bib file to import (required)")
		dbFile   = flag.String("db-file", cfg.Database.DBFile, "Path to the papers SQLite database")
		showHelp = flag.Bool("help", false, "Show usage examples and exit")
	)
	flag.Parse()

	if *showHelp {
		showUsageExamples()
		os.Exit(0)
	}
	if *bibFile == "" {
		log.Printf("[IMPORT] -bib-file is required")
		os.Exit(1)
	}

	db, err := database.OpenDatabase(*dbFile)
	if err != nil {
		log.Printf("[IMPORT] failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := bibtex.ImportFile(*bibFile, db); err != nil {
		log.Printf("[IMPORT] %v", err)
		os.Exit(1)
	}
}
