package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"alertstate/internal/app"
	"alertstate/internal/clock"
	"alertstate/internal/config"
)

// main starts the alert state service using file or directory config source.
// Params: CLI flags (--config-file or --config-dir, optional --check).
// Returns: process exit code by startup/run result.
func main() {
	var (
		configFile = flag.String("config-file", "", "path to one TOML config file")
		configDir  = flag.String("config-dir", "", "path to directory with TOML config fragments")
		checkOnly  = flag.Bool("check", false, "validate configuration and exit")
	)
	flag.Parse()

	source, err := config.FromCLI(*configFile, *configDir)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if *checkOnly {
		cfg, err := config.LoadSnapshot(source)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "config invalid:", err.Error())
			os.Exit(2)
		}
		_, _ = fmt.Fprintf(os.Stdout, "config ok: mode=%s rules=%d\n", cfg.Service.Mode, len(cfg.Rule))
		return
	}

	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service init failed:", err.Error())
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service run failed:", err.Error())
		os.Exit(1)
	}
}
