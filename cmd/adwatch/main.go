// Command adwatch runs the listing watcher service: the watch scheduler,
// the rescrape job workers and the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"adwatch/internal/app"
	"adwatch/internal/config"
	"adwatch/internal/logger"
)

func main() {
	defaultPath := os.Getenv("ADWATCH_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yml"
	}
	var configPath string
	flag.StringVar(&configPath, "config", defaultPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("initialize application", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "close application: %v\n", closeErr)
		}
	}()

	if runErr := application.Run(context.Background()); runErr != nil {
		log.Error("application error", logger.Error(runErr))
		os.Exit(1)
	}
}
