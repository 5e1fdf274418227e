// Command auth serves the tokenguard HTTP API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aussiebroadwan/tokenguard/internal/auth/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		guardsFile  = flag.String("guards", "", "Path to the guards YAML file (overrides AUTH_GUARDS_FILE)")
		checkOnly   = flag.Bool("check", false, "Validate configuration and storage, then exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tokenguard %s\n", app.BuildVersion)
		return nil
	}

	cfg := app.LoadConfig()
	if *guardsFile != "" {
		cfg.GuardsFile = *guardsFile
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	if *checkOnly {
		fmt.Println("configuration ok")
		return application.Close()
	}

	return application.Run()
}
