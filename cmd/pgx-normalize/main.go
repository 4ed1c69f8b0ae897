// Package main provides the batch command-line interface: read a JSON
// batch of tool call records, run the normalization pipeline, and write
// the consensus calls as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/pgx-consensus-server/internal/config"
	"github.com/pgx-consensus-server/internal/setup"
	"github.com/pgx-consensus-server/pkg/pharmvar"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "fetch-nomenclature" {
		if err := fetchNomenclature(os.Args[2:]); err != nil {
			log.Fatalf("Fetching nomenclature failed: %v", err)
		}
		return
	}

	if err := runBatch(os.Args[1:]); err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}
}

// runBatch processes one batch file through the full pipeline.
func runBatch(args []string) error {
	flags := flag.NewFlagSet("pgx-normalize", flag.ExitOnError)
	inputPath := flags.String("input", "-", "input batch file, or - for stdin")
	outputPath := flags.String("output", "-", "output file, or - for stdout")
	store := flags.Bool("store", false, "persist consensus calls to the configured database")
	if err := flags.Parse(args); err != nil {
		return err
	}

	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configManager.GetConfig()
	logger := setup.NewLogger(cfg.Logging)

	ctx := context.Background()

	engine, _, err := setup.BuildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	data, err := readInput(*inputPath)
	if err != nil {
		return err
	}

	result, err := engine.ProcessBatch(ctx, data)
	if err != nil {
		return err
	}

	if *store {
		repo, db, err := setup.OpenRepository(ctx, configManager, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		if db != nil {
			defer db.Close()
		}

		for i := range result.Calls {
			if err := repo.Save(ctx, &result.Calls[i]); err != nil {
				return fmt.Errorf("storing consensus call for %s/%s: %w",
					result.Calls[i].SampleID, result.Calls[i].Gene, err)
			}
		}
		logger.WithField("calls", len(result.Calls)).Info("Consensus calls stored")
	}

	return writeOutput(*outputPath, result)
}

// fetchNomenclature builds a nomenclature table from the PharmVar API
// and writes it as JSON, ready for the reference loader.
func fetchNomenclature(args []string) error {
	flags := flag.NewFlagSet("fetch-nomenclature", flag.ExitOnError)
	genes := flags.String("genes", "", "comma-separated gene symbols, empty for all PharmVar genes")
	outputPath := flags.String("output", "-", "output file, or - for stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configManager.GetConfig()
	logger := setup.NewLogger(cfg.Logging)

	var cache *pharmvar.Cache
	if cfg.PharmVar.RedisURL != "" {
		cache, err = pharmvar.NewCache(cfg.PharmVar.RedisURL, cfg.PharmVar.CacheTTL)
		if err != nil {
			logger.WithError(err).Warn("PharmVar cache unavailable, fetching uncached")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	client := pharmvar.NewClient(pharmvar.Config{
		BaseURL:    cfg.PharmVar.BaseURL,
		Timeout:    cfg.PharmVar.Timeout,
		RetryCount: cfg.PharmVar.RetryCount,
	}, cache, logger)

	var symbols []string
	if *genes != "" {
		for _, g := range strings.Split(*genes, ",") {
			if g = strings.TrimSpace(g); g != "" {
				symbols = append(symbols, g)
			}
		}
	}

	table, err := client.BuildNomenclature(context.Background(), symbols)
	if err != nil {
		return err
	}

	return writeOutput(*outputPath, table)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(path string, v interface{}) error {
	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
