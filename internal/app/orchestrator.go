package app

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"wayback-news/internal/archive"
	"wayback-news/internal/checksum"
	"wayback-news/internal/config"
	"wayback-news/internal/keyword"
	"wayback-news/internal/normalize"
	"wayback-news/internal/observability"
	"wayback-news/internal/scraper"
	"wayback-news/internal/sources"
	"wayback-news/internal/storage"
)

// SnapshotResolver finds the capture closest to a timestamp; *archive.Resolver satisfies it.
type SnapshotResolver interface {
	Closest(ctx context.Context, siteURL, timestamp string) (archive.Resolution, error)
}

// PageFetcher downloads a snapshot page; *archive.SnapshotFetcher satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, snapshotURL string) (string, error)
}

// Request is one pipeline invocation. Timestamp is taken as the caller sent
// it and normalised here. Empty Sources means every registered source.
type Request struct {
	Timestamp string
	Keywords  []string
	Include   string
	Sources   []string
}

type Orchestrator struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	registry *sources.Registry
	resolver SnapshotResolver
	pages    PageFetcher
	scraper  *scraper.Scraper
	history  storage.Repository
	checksum *checksum.Generator
}

// NewOrchestrator wires the pipeline. history may be nil.
func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	metrics *observability.Metrics,
	registry *sources.Registry,
	resolver SnapshotResolver,
	pages PageFetcher,
	s *scraper.Scraper,
	history storage.Repository,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		resolver: resolver,
		pages:    pages,
		scraper:  s,
		history:  history,
		checksum: checksum.NewGenerator(),
	}
}

type target struct {
	name string // as requested
	desc *sources.Descriptor
}

// Run resolves, fetches and extracts every requested source. Caller errors
// (bad mode, unknown source) fail the run before any network call; retrieval
// failures are recorded on the affected source only.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	pattern, err := keyword.Build(req.Keywords, req.Include)
	if err != nil {
		o.metrics.PipelineRuns.WithLabelValues("rejected").Inc()
		return nil, err
	}

	targets, err := o.targets(req.Sources)
	if err != nil {
		o.metrics.PipelineRuns.WithLabelValues("rejected").Inc()
		return nil, err
	}

	timestamp := normalize.Timestamp(req.Timestamp)

	o.logger.Info("Starting pipeline",
		"timestamp", timestamp,
		"keywords", strings.Join(req.Keywords, ","),
		"mode", string(pattern.Mode()),
		"sources", len(targets),
	)

	results := make([]SourceResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Pipeline.Workers)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = o.runSource(gctx, t, timestamp, pattern, req)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		o.metrics.PipelineRuns.WithLabelValues("cancelled").Inc()
		o.logger.Warn("Pipeline abandoned", "timestamp", timestamp, "error", err.Error())
		return nil, err
	}

	out := newResult(len(targets))
	for i, t := range targets {
		out.set(t.name, results[i])
	}

	o.metrics.PipelineRuns.WithLabelValues("ok").Inc()
	o.logger.Info("Pipeline completed", "timestamp", timestamp, "sources", out.Len())

	return out, nil
}

// targets looks every name up before anything runs. Repeated names collapse
// onto the first spelling.
func (o *Orchestrator) targets(names []string) ([]target, error) {
	if len(names) == 0 {
		names = o.registry.Names()
	}

	out := make([]target, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		desc, err := o.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[desc.Name]; dup {
			continue
		}
		seen[desc.Name] = struct{}{}
		out = append(out, target{name: name, desc: desc})
	}
	return out, nil
}

// runSource drives one source from lookup to extraction. It never returns an
// error; failures end up in the SourceResult.
func (o *Orchestrator) runSource(ctx context.Context, t target, timestamp string, pattern *keyword.Pattern, req Request) SourceResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.GetSourceTimeout())
	defer cancel()

	logger := o.logger.With("source", t.desc.Name)

	fail := func(stage, timestep string, err error) SourceResult {
		o.metrics.SourceOutcomes.WithLabelValues(t.desc.Name, observability.OutcomeError).Inc()
		logger.Error("Source failed", "stage", stage, "error", err.Error())
		return SourceResult{
			Timestep: timestep,
			Err:      &RetrievalError{Source: t.desc.Name, Stage: stage, Err: err},
		}
	}

	// 1. Closest capture
	start := time.Now()
	res, err := o.resolver.Closest(ctx, t.desc.Homepage, timestamp)
	o.metrics.UpstreamDuration.WithLabelValues(StageLookup).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(StageLookup, "", err)
	}
	if !res.Found {
		o.metrics.SourceOutcomes.WithLabelValues(t.desc.Name, observability.OutcomeNotFound).Inc()
		logger.Info("No snapshot found", "timestamp", timestamp)
		return SourceResult{}
	}

	// 2. Timestep from the snapshot URL
	timestep, err := archive.Timestep(res.Snapshot.URL, o.cfg.Archive.SnapshotPrefixes)
	if err != nil {
		return fail(StageLookup, "", err)
	}
	o.observeDrift(logger, timestamp, timestep)

	// 3. Archived homepage
	start = time.Now()
	html, err := o.pages.FetchPage(ctx, res.Snapshot.URL)
	o.metrics.UpstreamDuration.WithLabelValues(StageFetch).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(StageFetch, timestep, err)
	}

	// 4. Matching anchors
	articles, err := o.scraper.ExtractArticles(html, pattern, t.desc.Shape, timestep)
	if err != nil {
		return fail(StageExtract, timestep, err)
	}

	o.metrics.SourceOutcomes.WithLabelValues(t.desc.Name, observability.OutcomeFound).Inc()
	o.metrics.ArticlesExtracted.WithLabelValues(t.desc.Name).Add(float64(len(articles)))
	logger.Info("Source extracted",
		"timestep", timestep,
		"snapshot_url", res.Snapshot.URL,
		"articles", len(articles),
	)

	o.record(ctx, logger, t.desc.Name, timestamp, timestep, res.Snapshot.URL, articles, req)

	return SourceResult{Found: true, Timestep: timestep, Articles: articles}
}

func (o *Orchestrator) observeDrift(logger *observability.Logger, requested, timestep string) {
	want, err := normalize.ParseTimestamp(requested)
	if err != nil {
		logger.Debug("Requested timestamp not parseable", "timestamp", requested, "error", err.Error())
		return
	}
	got, err := normalize.ParseTimestamp(timestep)
	if err != nil {
		logger.Debug("Snapshot timestep not parseable", "timestep", timestep, "error", err.Error())
		return
	}

	drift := got.Sub(want)
	if drift < 0 {
		drift = -drift
	}
	o.metrics.SnapshotDrift.Observe(drift.Seconds())
	logger.Debug("Snapshot drift", "requested", want.Format(time.RFC3339), "captured", got.Format(time.RFC3339), "drift", drift.String())
}

// record writes the source result to the history store. Failures are logged
// and never change the response.
func (o *Orchestrator) record(
	ctx context.Context,
	logger *observability.Logger,
	source, timestamp, timestep, snapshotURL string,
	articles []scraper.Article,
	req Request,
) {
	if o.history == nil {
		return
	}

	rec := &storage.SnapshotRecord{
		Source:             source,
		RequestedTimestamp: timestamp,
		Timestep:           timestep,
		SnapshotURL:        snapshotURL,
		Keywords:           strings.Join(req.Keywords, ","),
		Mode:               req.Include,
		Articles:           articles,
		CheckSum:           o.checksum.GenerateSnapshotHash(source, timestep, articles),
	}
	if captured, err := normalize.ParseTimestamp(timestep); err == nil {
		rec.CapturedAt = captured
	}

	isNew, err := o.history.SaveSnapshot(ctx, rec)
	if err != nil {
		logger.Error("Failed to save snapshot", "error", err.Error())
		return
	}
	logger.Debug("Snapshot recorded", "checksum", rec.CheckSum, "new", isNew)
}
