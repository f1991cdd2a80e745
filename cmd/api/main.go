package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/infra/app"
	"github.com/arklim/account-auth/internal/infra/config"
)

const usage = `usage: api [command] [flags]

commands:
  serve                              run the HTTP API (default)
  ticket  [--purpose P] [--ttl D]    print a new single-use system ticket
  promote --username U               grant the admin type
  demote  --username U               revoke the admin type
`

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Printf("api: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	command := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	var (
		purpose  string
		ttl      time.Duration
		username string
	)
	flags := pflag.NewFlagSet(command, pflag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	switch command {
	case "ticket":
		flags.StringVar(&purpose, "purpose", domain.TicketPurposeNewUser, "ticket purpose")
		flags.DurationVar(&ttl, "ttl", 0, "ticket lifetime (default tickets.system_ticket_ttl)")
	case "promote", "demote":
		flags.StringVar(&username, "username", "", "account to change")
	case "serve":
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	if command == "serve" {
		return application.Run(ctx)
	}
	defer application.Close(context.Background())

	auth := application.Auth()
	switch command {
	case "ticket":
		ticket, err := auth.GenerateSystemTicket(ctx, purpose, ttl)
		if err != nil {
			return err
		}
		fmt.Println(ticket.Value)
		return nil
	default:
		if username == "" {
			return errors.New("--username is required")
		}
		user, err := auth.FindUser(ctx, username)
		if err != nil {
			return fmt.Errorf("find %s: %w", username, err)
		}
		if command == "promote" {
			return auth.Promote(ctx, user)
		}
		return auth.Demote(ctx, user)
	}
}
