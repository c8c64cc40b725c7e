// Package main implements the storefront accounts operator CLI. It wires the
// account lifecycle service against PostgreSQL, the configured mail transport
// and the optional Kafka event publisher, then runs one subcommand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/storefront-accounts/internal/config"
	"github.com/phrazzld/storefront-accounts/internal/platform/logger"
	"github.com/phrazzld/storefront-accounts/internal/platform/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "accounts: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run parses flags, loads configuration and executes a single subcommand.
// Command results are written to stdout as JSON; logs go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("accounts", flag.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading configuration")
	flags.Usage = func() { printUsage(flags, stderr) }

	if err := flags.Parse(args); err != nil {
		return usageError{err: err}
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return usageError{err: errors.New("missing command")}
	}

	if err := loadEnvFile(*envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.SetupWithWriter(cfg.Server, stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	ctx = logger.WithLogger(ctx, log)

	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	name, rest := flags.Arg(0), flags.Args()[1:]
	if name == "migrate" {
		defer func() { _ = db.Close() }()
		if len(rest) != 1 {
			return usageError{err: fmt.Errorf("migrate expects one of %v", postgres.MigrationCommands())}
		}
		return postgres.Migrate(ctx, db, rest[0], log)
	}

	app, err := newApplication(cfg, log, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	log.Debug("running command", slog.String("command", name))
	return runCommand(ctx, app.accounts, name, rest, stdout)
}

// loadEnvFile loads path into the process environment. A missing file is
// not an error; variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func printUsage(flags *flag.FlagSet, out io.Writer) {
	fmt.Fprintln(out, "usage: accounts [-env-file path] <command> [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  migrate <up|down|reset|status|version>")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-40s %s\n", c.name+" "+c.args, c.summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "flags:")
	flags.PrintDefaults()
}
