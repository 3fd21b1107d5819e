package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/pflag"

	"github.com/seanharte/mnemo/internal/config"
	"github.com/seanharte/mnemo/internal/deck"
	"github.com/seanharte/mnemo/internal/fsrs"
	"github.com/seanharte/mnemo/internal/importer"
	"github.com/seanharte/mnemo/internal/mastery"
	"github.com/seanharte/mnemo/internal/selector"
	"github.com/seanharte/mnemo/internal/session"
	"github.com/seanharte/mnemo/internal/settings"
	"github.com/seanharte/mnemo/internal/storage"
	"github.com/seanharte/mnemo/internal/study"
	"github.com/seanharte/mnemo/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("mnemo", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to a yaml config file")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("db_path", "mnemo.db", "Path to the SQLite database file")
	flags.String("repos_dir", "repos", "Directory for imported git checkouts")
	flags.Int("cleanup_interval_minutes", 10, "Minutes between expired-session sweeps")
	flags.Int("new_cards_per_day", 20, "Global default for new cards per day")
	flags.Int("cards_per_session", 50, "Global default for cards per session")
	flags.Float64("desired_retention", 0.9, "Scheduler target retention rate")
	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	params := fsrs.DefaultParams()
	params.DesiredRetention = cfg.DesiredRetention

	resolver := settings.NewResolver(db, settings.Defaults{
		NewCardsPerDay:  cfg.NewCardsPerDay,
		CardsPerSession: cfg.CardsPerSession,
	})
	sel := selector.NewSelector(db)
	sessions := session.NewManager(db)
	aggregator := mastery.NewAggregator(db)
	decks := deck.NewService(db)
	studySvc := study.NewService(db, params, resolver, sel, sessions, aggregator)
	imp := importer.NewImporter(db, decks, cfg.ReposDir)

	// Expired-session sweep. The operation is an explicitly invoked,
	// idempotent maintenance call; the schedule just keeps invoking it.
	sweeper := gocron.NewScheduler(time.UTC)
	_, err = sweeper.Every(cfg.CleanupIntervalMinutes).Minutes().Do(func() {
		if _, err := sessions.CleanupExpiredSessions(context.Background()); err != nil {
			slog.Error("session sweep failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("failed to schedule session sweep", "error", err)
		os.Exit(1)
	}
	sweeper.StartAsync()
	defer sweeper.Stop()

	server := web.NewServer(decks, sessions, studySvc, aggregator, resolver, sel, imp)
	slog.Info("listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
