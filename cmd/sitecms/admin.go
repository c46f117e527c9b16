package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/sitecms/internal/adapter/postgres"
	"github.com/Strob0t/sitecms/internal/config"
	"github.com/Strob0t/sitecms/internal/service"
)

// runAdmin dispatches admin subcommands (hash-token, list-admins, migrate).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "hash-token":
		return runAdminHashToken(args[1:])
	case "list-admins":
		return runAdminListAdmins(args[1:])
	case "migrate":
		return runAdminMigrate(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: sitecms admin <command> [options]

Commands:
  hash-token    Hash a custom sign-in token for the admins config
  list-admins   List configured admin identities
  migrate       Apply, inspect or roll back database migrations
  help          Show this help message

Examples:
  sitecms admin hash-token
  sitecms admin hash-token --cost 10
  sitecms admin list-admins
  sitecms admin migrate --action version
  sitecms admin migrate --action rollback --steps 1
`)
}

func runAdminHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	token := fs.String("token", "", "token to hash (prompted if not provided)") //nolint:gosec // CLI flag
	cost := fs.Int("cost", 0, "bcrypt cost (defaults to auth.bcrypt_cost)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *cost == 0 {
		*cost = config.Defaults().Auth.BcryptCost
		if cfg, err := config.Load(); err == nil {
			*cost = cfg.Auth.BcryptCost
		}
	}

	tok := *token
	if tok == "" {
		var err error
		tok, err = promptPassword("Token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		confirm, err := promptPassword("Confirm token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if tok != confirm {
			return fmt.Errorf("tokens do not match")
		}
	}

	hash, err := service.HashToken(tok, *cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runAdminListAdmins(args []string) error {
	fs := flag.NewFlagSet("list-admins", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Auth.Admins) == 0 {
		fmt.Println("No admins configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSITES")
	for _, a := range cfg.Auth.Admins {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", a.ID, strings.Join(a.Sites, ","))
	}
	return w.Flush()
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	action := fs.String("action", "up", "up | version | rollback")
	steps := fs.Int("steps", 1, "migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	dsn := cfg.Postgres.DSN
	switch *action {
	case "up":
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			return err
		}
	case "rollback":
		if *steps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		if err := postgres.RollbackMigrations(ctx, dsn, *steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action: %s", *action)
	}

	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Migration version: %d\n", v)
	return nil
}

// promptPassword reads a secret from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
