// apikeys manages client credentials for the query service.
//
// Usage:
//
//	apikeys create --name "catalog-ui" [--rate-limit 100] [--expires-in 720h]
//	apikeys revoke --key <raw-key>
//	apikeys list
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kavyarao/streamfilter/internal/auth/apikey"
	"github.com/kavyarao/streamfilter/pkg/config"
	"github.com/kavyarao/streamfilter/pkg/logger"
	"github.com/kavyarao/streamfilter/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	validator := apikey.NewValidator(db)
	ctx := context.Background()

	switch args[0] {
	case "create":
		return cmdCreate(ctx, validator, args[1:])
	case "revoke":
		return cmdRevoke(ctx, validator, args[1:])
	case "list":
		return cmdList(ctx, validator)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdCreate(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "name for the api key")
	rateLimit := fs.Int("rate-limit", 100, "requests per minute")
	expiresIn := fs.Duration("expires-in", 0, "expiry duration, e.g. 720h (0 = never)")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	var expiresAt *time.Time
	if *expiresIn > 0 {
		t := time.Now().Add(*expiresIn)
		expiresAt = &t
	}

	key, err := v.CreateKey(ctx, *name, *rateLimit, expiresAt)
	if err != nil {
		return fmt.Errorf("creating key: %w", err)
	}

	fmt.Println("API key created. Store it securely; it cannot be shown again.")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", key)
	fmt.Printf("  Name:       %s\n", *name)
	fmt.Printf("  Rate Limit: %d req/min\n", *rateLimit)
	fmt.Printf("  Expires:    %s\n", formatExpiry(expiresAt))
	return nil
}

func cmdRevoke(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	key := fs.String("key", "", "raw api key to revoke")
	fs.Parse(args)

	if *key == "" {
		return fmt.Errorf("--key is required")
	}
	if err := v.RevokeKey(ctx, *key); err != nil {
		return fmt.Errorf("revoking key: %w", err)
	}

	fmt.Println("API key revoked.")
	return nil
}

func cmdList(ctx context.Context, v *apikey.Validator) error {
	keys, err := v.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No active API keys.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-10s  %s\n", "ID", "NAME", "RATE/MIN", "EXPIRES")
	for _, k := range keys {
		fmt.Printf("%-36s  %-20s  %-10d  %s\n", k.ID, k.Name, k.RateLimit, formatExpiry(k.ExpiresAt))
	}
	fmt.Printf("\n%d active key(s)\n", len(keys))
	return nil
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: apikeys <command> [flags]

Commands:
  create   Create a new API key
  revoke   Revoke an existing API key
  list     List all active API keys

Examples:
  apikeys create --name "catalog-ui" --rate-limit 100 --expires-in 720h
  apikeys revoke --key "sf_abc123..."
  apikeys list
`)
}
