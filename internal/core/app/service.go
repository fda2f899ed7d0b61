package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"atlas/internal/core/config"
	"atlas/internal/core/errors"
	"atlas/internal/data/cache"
	"atlas/internal/engine/classify"
	"atlas/internal/engine/resolve"
	"atlas/internal/fetch"
	"atlas/internal/shared/observability"
	"atlas/internal/shared/util"
)

// Request describes one analysis run.
type Request struct {
	Coords     fetch.Coords
	IncludeAll bool // analyze every blob instead of only JS-family files
	SkipCache  bool
	UseArchive bool
}

// Run is the transient progress state of one analysis. Analyzed counts
// candidates that were fetched and parsed cleanly, entity or not; fetch and
// parse failures show up as the gap between Total and Analyzed.
type Run struct {
	Processed int
	Analyzed  int
	Total     int
}

// FetcherFactory builds a fetcher bound to one repository snapshot.
type FetcherFactory func(ctx context.Context, coords fetch.Coords, archive bool) (fetch.Fetcher, error)

// Service coordinates fetch, classification, resolution, caching and event
// streaming for analysis runs. Multiple runs may execute concurrently; the
// cache store is the only shared mutable state.
type Service struct {
	cfg      *config.Config
	store    *cache.Store
	analyzer *classify.Analyzer
	fetchers FetcherFactory
}

func NewService(cfg *config.Config, store *cache.Store) (*Service, error) {
	analyzer, err := classify.New(classify.Options{
		StructuralDirs: cfg.Classify.StructuralDirs,
		ExcludeFiles:   cfg.Classify.ExcludeFiles,
		IncludeTests:   cfg.Classify.IncludeTests,
	})
	if err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, store: store, analyzer: analyzer}
	s.fetchers = s.defaultFetcher
	return s, nil
}

// SetFetcherFactory overrides how fetchers are constructed.
func (s *Service) SetFetcherFactory(f FetcherFactory) {
	s.fetchers = f
}

func (s *Service) defaultFetcher(ctx context.Context, coords fetch.Coords, archive bool) (fetch.Fetcher, error) {
	if archive || s.cfg.GitHub.UseArchive {
		return fetch.NewArchiveFetcher(ctx, coords, fetch.ArchiveOptions{
			CodeLoadBase: s.cfg.GitHub.CodeLoad,
			Token:        s.cfg.GitHub.Token,
		})
	}
	return fetch.NewRemoteFetcher(coords, fetch.RemoteOptions{
		APIBase: s.cfg.GitHub.APIBase,
		RawBase: s.cfg.GitHub.RawBase,
		Token:   s.cfg.GitHub.Token,
	}), nil
}

// Analyze executes one run and streams its events through the emitter.
// Every run ends with exactly one terminal complete or error event; emitter
// failures mean the consumer disconnected and stop further delivery.
func (s *Service) Analyze(ctx context.Context, req Request, emitter Emitter) {
	ctx, span := observability.Tracer.Start(ctx, "analysis.Run", trace.WithAttributes(
		attribute.String("repo", req.Coords.Slug()),
		attribute.String("branch", req.Coords.Branch),
	))
	defer span.End()

	observability.ActiveRuns.Inc()
	defer observability.ActiveRuns.Dec()

	start := time.Now()
	sink := &guardedEmitter{inner: emitter}

	summary, err := s.run(ctx, req, sink)
	switch {
	case err != nil:
		slog.Error("analysis run failed", "repo", req.Coords.String(), "error", err)
		observability.AnalysisDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		sink.Emit(ctx, Event{Type: EventError, Data: ErrorPayload{Message: err.Error()}})
	case summary.FromCache:
		observability.AnalysisDuration.WithLabelValues("cache_hit").Observe(time.Since(start).Seconds())
		sink.Emit(ctx, Event{Type: EventComplete, Data: summary})
	default:
		observability.AnalysisDuration.WithLabelValues("complete").Observe(time.Since(start).Seconds())
		sink.Emit(ctx, Event{Type: EventComplete, Data: summary})
	}
}

func (s *Service) run(ctx context.Context, req Request, sink *guardedEmitter) (CompletePayload, error) {
	coords := req.Coords
	if err := coords.Validate(); err != nil {
		return CompletePayload{}, err
	}

	sink.Emit(ctx, Event{Type: EventStatus, Data: StatusPayload{Message: "checking cache for " + coords.String()}})
	if !req.SkipCache && s.store != nil {
		if record, ok := s.store.Get(coords); ok {
			return s.replay(ctx, record, sink), nil
		}
	}

	fetcher, err := s.fetchers(ctx, coords, req.UseArchive)
	if err != nil {
		return CompletePayload{}, errors.AddContext(err, errors.CtxOperation, "create_fetcher")
	}
	defer func() {
		if closeErr := fetcher.Close(); closeErr != nil {
			slog.Warn("fetcher close failed", "repo", coords.String(), "error", closeErr)
		}
	}()

	sink.Emit(ctx, Event{Type: EventStatus, Data: StatusPayload{Message: "listing repository tree"}})
	files, err := fetcher.ListTree(ctx)
	if err != nil {
		return CompletePayload{}, errors.AddContext(err, errors.CtxOperation, "list_tree")
	}
	sink.Emit(ctx, Event{Type: EventFiles, Data: FilesPayload{Files: files, Coords: coords}})

	candidates := selectCandidates(files, req.IncludeAll)
	run := Run{Total: len(candidates)}
	pacer := util.NewPacer(s.cfg.Pacing.Every(), s.cfg.Pacing.Rate, s.cfg.Pacing.Burst)

	entities := make([]*classify.Entity, 0, len(candidates))
	for _, file := range candidates {
		if err := pacer.Tick(ctx); err != nil {
			return CompletePayload{}, err
		}
		run.Processed++
		sink.Emit(ctx, Event{Type: EventProgress, Data: ProgressPayload{
			Current: run.Processed,
			Total:   run.Total,
			Path:    file.Path,
		}})

		content, err := fetcher.FileContent(ctx, file.Path)
		if err != nil {
			slog.Warn("file fetch failed, skipping", "path", file.Path, "error", err)
			observability.FilesSkippedTotal.WithLabelValues("fetch_error").Inc()
			continue
		}

		fileStart := time.Now()
		entity, verdict := s.analyzer.Inspect(file.Path, []byte(content))
		observability.FileAnalysisDuration.Observe(time.Since(fileStart).Seconds())

		switch verdict {
		case classify.VerdictEntity:
			run.Analyzed++
			observability.FilesAnalyzedTotal.Inc()
			entities = append(entities, entity)
			sink.Emit(ctx, Event{Type: EventComponent, Data: ComponentPayload{Entity: entity}})
		case classify.VerdictNotEntity:
			run.Analyzed++
			observability.FilesAnalyzedTotal.Inc()
			observability.FilesSkippedTotal.WithLabelValues("not_entity").Inc()
		case classify.VerdictParseFailed:
			observability.FilesSkippedTotal.WithLabelValues("parse_error").Inc()
		default:
			observability.FilesSkippedTotal.WithLabelValues("unsupported").Inc()
		}
	}

	sink.Emit(ctx, Event{Type: EventStatus, Data: StatusPayload{Message: "resolving relationships"}})
	resolve.Resolve(entities)
	observability.EntitiesDiscovered.Set(float64(len(entities)))

	if s.store != nil {
		s.store.Put(coords, entities, files, run.Total, run.Analyzed)
	}

	return CompletePayload{
		Entities:      entities,
		TotalFiles:    run.Total,
		AnalyzedFiles: run.Analyzed,
		FromCache:     false,
	}, nil
}

// replay streams a cached record as if it were freshly analyzed. The record
// carries the original run's counts, so the summary matches the fresh one.
func (s *Service) replay(ctx context.Context, record *cache.Record, sink *guardedEmitter) CompletePayload {
	sink.Emit(ctx, Event{Type: EventStatus, Data: StatusPayload{Message: "serving cached analysis"}})
	sink.Emit(ctx, Event{Type: EventFiles, Data: FilesPayload{Files: record.Files, Coords: record.Coords}})
	for _, entity := range record.Entities {
		sink.Emit(ctx, Event{Type: EventComponent, Data: ComponentPayload{Entity: entity}})
	}
	return CompletePayload{
		Entities:      record.Entities,
		TotalFiles:    record.TotalFiles,
		AnalyzedFiles: record.AnalyzedFiles,
		FromCache:     true,
	}
}

// selectCandidates keeps blobs, optionally narrowed to JS-family sources.
func selectCandidates(files []fetch.FileRecord, includeAll bool) []fetch.FileRecord {
	out := make([]fetch.FileRecord, 0, len(files))
	for _, f := range files {
		if f.Kind != "blob" {
			continue
		}
		if !includeAll && !classify.SupportedFile(f.Path) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// guardedEmitter drops every event after the first delivery failure, so a
// disconnected consumer stops the stream without interrupting the run.
type guardedEmitter struct {
	inner Emitter
	dead  bool
}

func (g *guardedEmitter) Emit(ctx context.Context, event Event) {
	if g.dead || g.inner == nil {
		return
	}
	if err := g.inner.Emit(ctx, event); err != nil {
		slog.Debug("event delivery stopped", "type", event.Type, "error", err)
		g.dead = true
	}
}
