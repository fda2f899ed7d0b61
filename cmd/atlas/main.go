package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"atlas/internal/core/app"
	"atlas/internal/core/config"
	"atlas/internal/data/cache"
	"atlas/internal/fetch"
	"atlas/internal/server"
	"atlas/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./atlas.toml", "Path to config file")
	serve      = flag.Bool("serve", false, "Start the analysis and observability servers")
	owner      = flag.String("owner", "", "Repository owner for a one-shot analysis")
	repo       = flag.String("repo", "", "Repository name for a one-shot analysis")
	branch     = flag.String("branch", "", "Branch to analyze (default main)")
	all        = flag.Bool("all", false, "Analyze every file instead of only JS-family sources")
	fresh      = flag.Bool("fresh", false, "Skip the cache and force a fresh analysis")
	archive    = flag.Bool("archive", false, "Download a repository archive instead of per-file fetches")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("atlas v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !flagWasSet("config") && errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, VERSION)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	store, err := cache.Open(cachePath(cfg), cfg.Cache.TTL, cfg.Cache.MaxBytes)
	if err != nil {
		slog.Error("failed to open cache", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	svc, err := app.NewService(cfg, store)
	if err != nil {
		slog.Error("failed to initialize analysis service", "error", err)
		os.Exit(1)
	}

	switch {
	case *serve:
		runServers(ctx, cfg, svc, store)
	case *owner != "" && *repo != "":
		if err := runOnce(ctx, svc); err != nil {
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -serve, or -owner and -repo for a one-shot analysis")
		flag.Usage()
		os.Exit(2)
	}
}

func runServers(ctx context.Context, cfg *config.Config, svc *app.Service, store *cache.Store) {
	obs := server.NewObservabilityServer(cfg.Server.ObservabilityAddress)
	if err := obs.Start(ctx); err != nil {
		slog.Error("failed to start observability server", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Stop(shutdownCtx)
	}()

	srv := server.New(cfg.Server.Address, svc, store)
	if err := srv.Start(ctx); err != nil {
		slog.Error("analysis server failed", "error", err)
		os.Exit(1)
	}
}

// runOnce executes one analysis and prints each event as a JSON line.
func runOnce(ctx context.Context, svc *app.Service) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false

	svc.Analyze(ctx, app.Request{
		Coords:     fetch.Coords{Owner: *owner, Repo: *repo, Branch: *branch},
		IncludeAll: *all,
		SkipCache:  *fresh,
		UseArchive: *archive,
	}, app.EmitterFunc(func(ctx context.Context, event app.Event) error {
		switch data := event.Data.(type) {
		case app.CompletePayload:
			return enc.Encode(data)
		case app.ErrorPayload:
			failed = true
			slog.Error("analysis failed", "error", data.Message)
		case app.StatusPayload:
			slog.Info(data.Message)
		case app.FilesPayload:
			slog.Debug("listed repository tree", "files", len(data.Files))
		case app.ProgressPayload:
			slog.Debug("analyzing", "path", data.Path, "current", data.Current, "total", data.Total)
		case app.ComponentPayload:
			slog.Debug("classified", "name", data.Entity.Name, "role", data.Entity.Role)
		}
		return nil
	}))

	if failed {
		return fmt.Errorf("analysis failed")
	}
	return nil
}

func cachePath(cfg *config.Config) string {
	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Path) {
		return filepath.Join(cfg.Cache.Dir, cfg.Cache.Path)
	}
	return cfg.Cache.Path
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
