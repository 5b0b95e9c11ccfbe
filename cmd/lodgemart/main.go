package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lodgemart/internal/config"
	"lodgemart/internal/metrics"
	"lodgemart/internal/metrics/datadog"
	"lodgemart/internal/pipeline"
	"lodgemart/internal/warehouse"

	_ "lodgemart/internal/warehouse/mssql"
	_ "lodgemart/internal/warehouse/postgres"
	_ "lodgemart/internal/warehouse/sqlite"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to pipeline config JSON")
	flag.Parse()

	if cfgPath == "" {
		fmt.Fprintln(os.Stderr, "usage: lodgemart -config path/to/pipeline.json")
		os.Exit(2)
	}

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := log.New(os.Stderr, cfg.Job+" ", log.LstdFlags|log.LUTC)

	repo, err := warehouse.New(ctx, warehouse.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	var mets metrics.Backend = metrics.Nop{}
	if cfg.Metrics.Backend == "datadog" {
		dd, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       cfg.Metrics.Tags,
			FlushEvery: time.Duration(cfg.Metrics.FlushSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("metrics init: %w", err)
		}
		defer func() {
			if err := dd.Close(); err != nil {
				logger.Printf("metrics flush error: %v", err)
			}
		}()
		mets = dd
	}

	p := &pipeline.Pipeline{Cfg: cfg, Repo: repo, Logger: logger, Metrics: mets}
	_, err = p.Run(ctx)
	return err
}
