package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/recipe-box/app/internal/auth"
	"github.com/recipe-box/app/internal/config"
	"github.com/recipe-box/app/internal/database"
	"github.com/recipe-box/app/internal/logging"
	"github.com/recipe-box/app/internal/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var errInvalidCredentials = errors.New("invalid credentials")

// newApp builds the command tree. Command output goes to out.
func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "recipebox",
		Usage:   "Recipe, tag and ingredient API",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML, TOML or JSON config file",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serveAction,
			},
			{
				Name:  "create-user",
				Usage: "Create an API user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "Login email"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "Password (at least 5 characters)"},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return createUserAction(ctx, cmd, out)
				},
			},
			{
				Name:  "token",
				Usage: "Issue a bearer token for an existing user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "Login email"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "Password"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return tokenAction(ctx, cmd, out)
				},
			},
		},
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	logger.Info("starting recipebox",
		zap.String("version", version),
		zap.String("database", cfg.Database.Path),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	return server.New(cfg, logger, db, tokens).Run(ctx)
}

func createUserAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	password := cmd.String("password")
	if len(password) < 5 {
		return errors.New("password must be at least 5 characters")
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	user, err := database.CreateUser(ctx, db, cmd.String("email"), password, cmd.String("name"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "created user %d (%s)\n", user.ID, user.Email)
	return err
}

func tokenAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	user, err := database.GetUserByEmail(ctx, db, cmd.String("email"))
	if err != nil {
		return errInvalidCredentials
	}
	if !user.IsActive || database.VerifyPassword(user.PasswordHash, cmd.String("password")) != nil {
		return errInvalidCredentials
	}

	token, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).Issue(user.ID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
