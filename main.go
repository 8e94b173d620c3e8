package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const version = "0.1.0"

// exit codes: 1 — setup/credentials/state, 2 — параллельный прогон держит lock
const (
	exitOK     = 0
	exitFatal  = 1
	exitLocked = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	setup := flag.Bool("setup", false, "execute setup mode")
	profile := flag.String("profile", "default", "profile name")
	dryRun := flag.Bool("dry-run", false, "classify and log without posting or recording pairings")
	advanceCursors := flag.Bool("advance-cursors", false, "advance cursors even during dry run")
	debug := flag.Bool("debug", false, "show debug messages")
	quiet := flag.Bool("quiet", false, "show less messages")
	logFile := flag.String("log", "", "output messages to FILE (with rotation)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName + " " + version)
		return exitOK
	}

	logger := newLogger(*debug, *quiet, *logFile)

	dir, err := profileDir(*profile)
	if err != nil {
		logger.Error("profile dir", "err", err)
		return exitFatal
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *setup || !configExists(dir) {
		if err := runSetup(ctx, dir, logger); err != nil {
			logger.Error("setup failed", "err", err)
			return exitFatal
		}
		// зеркалирование начнётся со следующего запуска; первый прогон
		// только установит курсоры (cold start)
		return exitOK
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		logger.Error("config load failed", "err", err)
		return exitFatal
	}

	// lock — до первого обращения к состоянию
	lock, acquired, err := acquireRunLock(dir)
	if err != nil {
		logger.Error("run lock failed", "err", err)
		return exitFatal
	}
	if !acquired {
		logger.Debug("another run is active, exiting", "profile", *profile)
		return exitLocked
	}
	defer lock.Release()

	var repo Repository
	if cfg.DatabaseURL != "" {
		repo, err = NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			logger.Error("PostgreSQL error", "err", err)
			return exitFatal
		}
		logger.Debug("state: PostgreSQL")
	} else {
		dbPath := filepath.Join(dir, "state.db")
		repo, err = NewSQLiteRepo(dbPath)
		if err != nil {
			logger.Error("SQLite error", "err", err)
			return exitFatal
		}
		logger.Debug("state: SQLite", "path", dbPath)
	}
	defer repo.Close()

	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	httpClient := &http.Client{Timeout: timeout}

	engine := NewEngine(
		repo,
		NewMastodonClient(cfg.Mastodon, httpClient, logger),
		NewTwitterClient(cfg.Twitter, timeout, logger),
		httpClient,
		logger,
		EngineOptions{
			DryRun:         *dryRun,
			AdvanceCursors: *advanceCursors,
			MaxPairs:       cfg.MaxPairs,
		},
	)

	if err := engine.Run(ctx); err != nil {
		logger.Error("run aborted", "err", err)
		return exitFatal
	}
	return exitOK
}

func newLogger(debug, quiet bool, logFile string) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    5, // MB
			MaxBackups: 9,
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
