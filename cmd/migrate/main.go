// Package main is the schema migration and sequence maintenance CLI.
//
//	migrate up
//	migrate down [--all]
//	migrate version
//	migrate force <version>
//	migrate resync <entity-type> <yyyy-mm>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"stockkeeper/internal/app"
	"stockkeeper/internal/config"
	"stockkeeper/internal/core/code"
	"stockkeeper/internal/infrastructure/migration"
	"stockkeeper/internal/infrastructure/numerator"
	"stockkeeper/internal/infrastructure/storage/postgres"
	"stockkeeper/migrations"
)

func main() {
	all := flag.Bool("all", false, "roll back every migration with down")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	command := args[0]

	if command == "resync" {
		if err := resync(ctx, cfg, args[1:]); err != nil {
			log.Fatalw("resync failed", "error", err)
		}
		return
	}

	m, err := migration.New(migrations.FS, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalw("failed to initialize migrator", "error", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnw("failed to close migrator", "error", err)
		}
	}()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down(*all)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version: %d, dirty: %v\n", version, dirty)
		}
	case "force":
		if len(args) < 2 {
			log.Fatal("usage: migrate force <version>")
		}
		var v int
		v, err = strconv.Atoi(args[1])
		if err == nil {
			err = m.Force(v)
		}
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalw("migration command failed", "command", command, "error", err)
	}
}

// resync raises a sequence counter to the highest code already stored,
// after legacy data was imported.
func resync(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: migrate resync <entity-type> <yyyy-mm>")
	}
	entityType, err := code.ParseEntityType(args[0])
	if err != nil {
		return err
	}
	bucket, err := code.ParseBucket(args[1])
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer pool.Close()

	last, err := numerator.NewStatic(pool).Resync(ctx, entityType, bucket)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: last index %d\n", entityType, bucket, last)
	return nil
}

func printUsage() {
	fmt.Println(`Usage: migrate [--all] <command> [args]

Commands:
  up                             apply pending migrations
  down                           roll back one migration (--all rolls back everything)
  version                        print the current version
  force <version>                set the version without running migrations
  resync <entity-type> <yyyy-mm> raise a code counter to the highest stored code`)
}
