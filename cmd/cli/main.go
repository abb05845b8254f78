package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/app"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/config"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/logger"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const usage = "expected 'export', 'import' or 'purge' subcommands"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one subcommand and returns the process exit code, so that
// storage is closed and pending clicks drained on every path.
func run(args []string) int {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	purgeCmd := flag.NewFlagSet("purge", flag.ExitOnError)
	dryRun := purgeCmd.Bool("dry-run", false, "only list orphaned aggregates")

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}
	switch args[0] {
	case "export":
		_ = exportCmd.Parse(args[1:])
	case "import":
		_ = importCmd.Parse(args[1:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			return 1
		}
	case "purge":
		_ = purgeCmd.Parse(args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}

	cfg := config.Load()
	log := logger.NewWithWriter(os.Stderr, logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return 1
	}
	defer func() {
		if err := application.Close(ctx); err != nil {
			log.Warn("close", "error", err)
		}
	}()

	switch args[0] {
	case "export":
		err = doExport(ctx, application.Repo)
	case "import":
		err = doImport(ctx, application.Repo, *importFile, log)
	case "purge":
		err = doPurge(ctx, application.Repo, application.Aggregates, *dryRun, os.Stdout, log)
	}
	if err != nil {
		log.Error(args[0]+" failed", "error", err)
		return 1
	}
	return 0
}

func doExport(ctx context.Context, repo ports.LinkRepository) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

// doImport inserts exported links, skipping slugs that already exist.
func doImport(ctx context.Context, repo ports.LinkRepository, filename string, log *slog.Logger) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var links []domain.Link
	if err := json.NewDecoder(file).Decode(&links); err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}

	count := 0
	for i := range links {
		l := &links[i]
		exists, err := repo.SlugExists(ctx, l.Slug)
		if err != nil {
			return err
		}
		if exists {
			log.Info("skipping existing slug", "slug", l.Slug)
			continue
		}
		if err := repo.Create(ctx, l); err != nil {
			log.Warn("import failed", "slug", l.Slug, "error", err)
			continue
		}
		count++
	}
	log.Info("import finished", "imported", count, "total", len(links))
	return nil
}

// doPurge drops aggregates whose link no longer exists. Hard deletes purge in
// the background, so this catches buckets left by a crash or a late click.
func doPurge(ctx context.Context, repo ports.LinkRepository, agg ports.AggregateStore, dryRun bool, out io.Writer, log *slog.Logger) error {
	ids, err := agg.LinkIDs(ctx)
	if err != nil {
		return err
	}

	purged := 0
	for _, id := range ids {
		_, err := repo.GetByID(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if dryRun {
			fmt.Fprintln(out, id)
			continue
		}
		if err := agg.PurgeLink(ctx, id); err != nil {
			return fmt.Errorf("purge %s: %w", id, err)
		}
		purged++
	}
	log.Info("purge finished", "scanned", len(ids), "purged", purged, "dry_run", dryRun)
	return nil
}
