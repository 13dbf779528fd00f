package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrezinsky/standings/internal/app"
	"github.com/abrezinsky/standings/internal/auth"
	"github.com/abrezinsky/standings/internal/config"
	"github.com/abrezinsky/standings/internal/logger"
)

var (
	version = "dev"
)

const usage = `Standings - season leaderboards and World Finals qualification

Usage:
  standings [options]

Options:
  -port int           HTTP server port (default 8080, env PORT)
  -db string          SQLite database path (default "standings.db", env DB_PATH)
  -admintoken str     Admin bearer token, generated if not set (env ADMIN_TOKEN)
  -loglevel str       Log level: debug, info, warn, error (env LOG_LEVEL)
  -logformat str      Log format: text, json (env LOG_FORMAT)
  -baseurl str        Public base URL for email links (env BASE_URL)
  -cachettl dur       Standings cache TTL (default 5m, env STANDINGS_CACHE_TTL)
  -warminterval dur   Cache warm interval (default 5m, env STANDINGS_WARM_INTERVAL)
  -formats list       Formats to summarize and warm (env STANDINGS_FORMATS)
  -mailerurl str      Mail relay URL, emails are logged when unset (env MAILER_URL)
  -mailertoken str    Mail relay token (env MAILER_TOKEN)
  -mailerfrom str     Sender address (env MAILER_FROM)
  -nowarm             Disable the periodic cache warm
  -version            Show version and exit

Settings are also read from a .env file in the working directory.
`

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal("Failed to read .env:", err)
	}

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Print(usage)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	}

	if cfg.ShowVersion {
		fmt.Printf("standings %s\n", version)
		os.Exit(0)
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
	})

	token := cfg.AdminToken
	if token == "" {
		token = auth.GenerateToken()
		appLog.Info("Admin token generated", "token", token)
	}

	a, err := app.New(appLog, cfg, auth.New(token))
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		appLog.Error("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}
