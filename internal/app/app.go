// Package app builds the long-lived services of a harvest run from
// configuration and runs one task end to end.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/worklist-harvester/internal/api"
	"github.com/JakeFAU/worklist-harvester/internal/clock/system"
	"github.com/JakeFAU/worklist-harvester/internal/config"
	"github.com/JakeFAU/worklist-harvester/internal/extract"
	collyfetcher "github.com/JakeFAU/worklist-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/worklist-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	idgen "github.com/JakeFAU/worklist-harvester/internal/id/uuid"
	"github.com/JakeFAU/worklist-harvester/internal/pipeline"
	"github.com/JakeFAU/worklist-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/worklist-harvester/internal/progress"
	"github.com/JakeFAU/worklist-harvester/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/worklist-harvester/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/worklist-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/worklist-harvester/internal/rowsource"
	"github.com/JakeFAU/worklist-harvester/internal/sink"
	"github.com/JakeFAU/worklist-harvester/internal/storage/gcs"
	"github.com/JakeFAU/worklist-harvester/internal/storage/local"
	memorystore "github.com/JakeFAU/worklist-harvester/internal/storage/memory"
	"github.com/JakeFAU/worklist-harvester/internal/storage/postgres"
	"github.com/JakeFAU/worklist-harvester/internal/transform"
	"github.com/JakeFAU/worklist-harvester/internal/translate"
)

const (
	hubCloseTimeout = 10 * time.Second
	// dryRunTopic names the in-memory topic when pubsub.topic_name is unset.
	dryRunTopic = "harvest-progress"
)

// App holds the services shared by one harvest run: the fetcher, the optional
// browser, the progress hub and its sinks, and the metrics registry.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    uuid.UUID
	clock    harvest.Clock
	registry *prometheus.Registry
	status   *sinks.StatusTracker
	hub      *progress.Hub
	fetcher  harvest.Fetcher
	browser  *headless.Browser

	// Dry runs only.
	notices  *memorypublisher.Publisher
	dryStore *memorystore.BlobStore

	closers []func() error
}

// New wires the services that do not depend on the task.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var ids harvest.IDGenerator = idgen.New()
	runID, err := ids.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		clock:    system.New(),
		registry: prometheus.NewRegistry(),
		status:   sinks.NewStatusTracker(),
	}

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, err
	}
	progressSinks := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		a.status,
	}
	switch {
	case cfg.Output.DryRun:
		topic := cfg.PubSub.TopicName
		if topic == "" {
			topic = dryRunTopic
		}
		a.notices = memorypublisher.New()
		a.dryStore = memorystore.NewBlobStore()
		progressSinks = append(progressSinks, sinks.NewPublisherSink(a.notices, topic, logger))
		logger.Info("dry run: checkpoints and notifications stay in memory", zap.String("topic", topic))
	case cfg.PubSub.ProjectID != "":
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		progressSinks = append(progressSinks, sinks.NewPublisherSink(pub, cfg.PubSub.TopicName, logger))
		logger.Info("publishing checkpoints", zap.String("topic", cfg.PubSub.TopicName))
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger}, progressSinks...)

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.HTTP.PerHostRPS,
		Burst: cfg.HTTP.PerHostBurst,
		Observer: func(host string, waited time.Duration) {
			logger.Debug("rate limited", zap.String("host", host), zap.Duration("waited", waited))
		},
	})
	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		Limiter:   limiter,
	})
	return a, nil
}

// RunID identifies this run in logs, progress events and the Postgres sink.
func (a *App) RunID() uuid.UUID {
	return a.runID
}

// Status returns the live run snapshot.
func (a *App) Status() sinks.Snapshot {
	return a.status.Snapshot()
}

// Run executes task over the configured worklist. The status server, when
// enabled, serves for the duration of the run.
func (a *App) Run(ctx context.Context, task string) (*harvest.ResultTable, error) {
	preset, err := LookupPreset(task)
	if err != nil {
		return nil, err
	}
	worklist, err := rowsource.Load(ctx, preset.RowOptions(a.cfg.Input))
	if err != nil {
		return nil, err
	}
	if len(worklist.Skipped) > 0 {
		a.logger.Debug("skipped blank worklist rows", zap.Ints("rows", worklist.Skipped))
	}
	extractor, err := a.extractor(preset)
	if err != nil {
		return nil, err
	}
	resultSink, err := a.resultSink(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", harvest.ErrSinkUnwritable, err)
	}

	p, err := pipeline.New(pipeline.Config{
		Concurrency:     a.cfg.Run.Concurrency,
		CheckpointEvery: a.cfg.Run.CheckpointEvery,
		Task:            preset.Name,
		RunID:           a.runID,
	}, pipeline.Deps{
		Extractor: extractor,
		Sink:      resultSink,
		Emitter:   a.hub,
		Clock:     a.clock,
		Logger:    a.logger.Named("pipeline"),
	})
	if err != nil {
		return nil, err
	}

	stopServer, err := a.startStatusServer(ctx)
	if err != nil {
		return nil, err
	}
	defer stopServer()

	return p.Run(ctx, worklist.Header, worklist.Items)
}

func (a *App) extractor(preset Preset) (harvest.Extractor, error) {
	switch preset.Name {
	case TaskHTML:
		pages, err := a.pageFetcher()
		if err != nil {
			return nil, err
		}
		return extract.NewHTML(pages, textRule(a.cfg.Extract))
	case TaskTranslate:
		pages, err := a.pageFetcher()
		if err != nil {
			return nil, err
		}
		inner, err := extract.NewHTML(pages, textRule(a.cfg.Extract))
		if err != nil {
			return nil, err
		}
		return a.translating(inner)
	case TaskChapters:
		pages, err := a.pageFetcher()
		if err != nil {
			return nil, err
		}
		return extract.NewChapters(pages, chapterPages()...)
	case TaskParLinks:
		browser, err := a.headless()
		if err != nil {
			return nil, err
		}
		return extract.NewParLink(browser, parLinkConfig(a.cfg.Extract))
	case TaskPDFPage:
		return extract.NewPDFPage(a.fetcher, pdfField(a.cfg), a.cfg.PDF.Page)
	default:
		return nil, fmt.Errorf("unknown task %q", preset.Name)
	}
}

func (a *App) translating(inner harvest.Extractor) (harvest.Extractor, error) {
	client, err := translate.New(a.fetcher, translate.Config{
		Endpoint:   a.cfg.Translate.Endpoint,
		SourceLang: a.cfg.Translate.SourceLang,
		TargetLang: a.cfg.Translate.TargetLang,
	})
	if err != nil {
		return nil, err
	}
	chunker, err := transform.New(transform.Config{
		MaxChunkSize: a.cfg.Translate.MaxChunkSize,
		MinDelay:     a.cfg.TranslateDelay(),
		Clock:        a.clock,
		Logger:       a.logger.Named("transform"),
	})
	if err != nil {
		return nil, err
	}
	source := a.cfg.Translate.Field
	if source == "" {
		source = inner.Fields()[0]
	}
	return extract.NewTranslating(inner, chunker, client.Translate, source, FieldEnglishText)
}

// pageFetcher returns the fetcher for document pages: the browser when
// headless.render is set, the HTTP fetcher otherwise. PDFs and the
// translation endpoint always go over HTTP.
func (a *App) pageFetcher() (harvest.Fetcher, error) {
	if !a.cfg.Headless.Render {
		return a.fetcher, nil
	}
	browser, err := a.headless()
	if err != nil {
		return nil, err
	}
	return browser, nil
}

func (a *App) headless() (*headless.Browser, error) {
	if a.browser != nil {
		return a.browser, nil
	}
	b, err := headless.NewChromedp(headless.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.HTTP.UserAgent,
		NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		StepTimeout:       time.Duration(a.cfg.Headless.StepTimeoutSec) * time.Second,
		ExecPath:          a.cfg.Headless.ExecPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init browser: %w", err)
	}
	a.browser = b
	a.closers = append(a.closers, func() error { b.Close(); return nil })
	return b, nil
}

// resultSink builds the workbook sink in memory (dry run), on GCS or on the
// local filesystem, plus the Postgres table sink when a DSN is configured.
func (a *App) resultSink(ctx context.Context) (harvest.ResultSink, error) {
	out := a.cfg.Output
	var (
		store  harvest.BlobStore
		object string
	)
	switch {
	case out.DryRun:
		store = a.dryStore
		object = path.Base(filepath.ToSlash(out.Path))
	case out.GCSBucket != "":
		gcsStore, err := gcs.Dial(ctx, gcs.Config{Bucket: out.GCSBucket})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcsStore.Close)
		store = gcsStore
		object = out.GCSObject
		if object == "" {
			object = path.Base(filepath.ToSlash(out.Path))
		}
	default:
		abs, err := filepath.Abs(out.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve output path: %w", err)
		}
		localStore, err := local.New(local.Config{BaseDir: filepath.Dir(abs)})
		if err != nil {
			return nil, err
		}
		store = localStore
		object = filepath.Base(abs)
	}
	workbook, err := sink.NewWorkbook(store, object, out.Sheet)
	if err != nil {
		return nil, err
	}
	if a.cfg.DB.DSN == "" || out.DryRun {
		return workbook, nil
	}

	table, err := postgres.NewTableSink(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: int32(a.cfg.DB.MaxConns),
	}, a.runID.String())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { table.Close(); return nil })
	return sink.Fanout{workbook, table}, nil
}

func (a *App) startStatusServer(ctx context.Context) (func(), error) {
	if a.cfg.Server.Port <= 0 {
		return func() {}, nil
	}
	srv, err := api.NewServer(a.status, a.registry, a.logger.Named("api"))
	if err != nil {
		return nil, err
	}
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(serveCtx, fmt.Sprintf(":%d", a.cfg.Server.Port)); err != nil {
			a.logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// Close flushes progress sinks and releases clients. It is safe to call once
// after Run returns.
func (a *App) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hubCloseTimeout)
	defer cancel()

	var errs []error
	if err := a.hub.Close(closeCtx); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
