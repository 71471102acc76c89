package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/worklist-harvester/internal/clock/system"
	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	"github.com/JakeFAU/worklist-harvester/internal/progress"
)

const (
	defaultConcurrency     = 4
	defaultCheckpointEvery = 10
)

// Config controls worker fan-out and checkpoint cadence.
type Config struct {
	Concurrency     int
	CheckpointEvery int
	// Task labels progress events (html, chapters, translate, ...).
	Task string
	// RunID tags progress events. A random one is used when unset.
	RunID uuid.UUID
}

// Deps bundles the collaborators of a Pipeline. Extractor and Sink are required.
type Deps struct {
	Extractor harvest.Extractor
	Sink      harvest.ResultSink
	Emitter   progress.Emitter
	Clock     harvest.Clock
	Logger    *zap.Logger
}

// Pipeline processes worklists. It holds no per-run state and may run
// several worklists one after another.
type Pipeline struct {
	cfg       Config
	extractor harvest.Extractor
	sink      harvest.ResultSink
	emitter   progress.Emitter
	clock     harvest.Clock
	logger    *zap.Logger
}

// New validates deps and applies defaults.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("result sink is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = defaultCheckpointEvery
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.NopEmitter{}
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		extractor: deps.Extractor,
		sink:      deps.Sink,
		emitter:   deps.Emitter,
		clock:     deps.Clock,
		logger:    deps.Logger.With(zap.String("task", cfg.Task), zap.String("run_id", cfg.RunID.String())),
	}, nil
}

type completion struct {
	outcome harvest.Outcome
	dur     time.Duration
}

// Run processes every item and returns the populated table. Row failures are
// recorded in the table and never abort the run. The returned error wraps
// harvest.ErrSinkUnwritable when the final write fails, or the context error
// when ctx was cancelled; the table is returned in both cases.
func (p *Pipeline) Run(ctx context.Context, header []string, items []harvest.WorkItem) (*harvest.ResultTable, error) {
	table, err := harvest.NewResultTable(header, p.extractor.Fields(), items)
	if err != nil {
		return nil, err
	}
	start := p.clock.Now()
	total := len(items)
	p.emit(progress.Event{Stage: progress.StageRunStart, Total: total})
	p.logger.Info("harvest started",
		zap.Int("rows", total),
		zap.Int("concurrency", p.cfg.Concurrency),
		zap.Int("checkpoint_every", p.cfg.CheckpointEvery),
	)

	// Rows already handed to a worker finish even after ctx is cancelled.
	workCtx := context.WithoutCancel(ctx)
	jobs := make(chan harvest.WorkItem)
	done := make(chan completion, p.cfg.Concurrency)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for _, item := range items {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case jobs <- item:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := 0; i < p.cfg.Concurrency; i++ {
		g.Go(func() error {
			for item := range jobs {
				done <- p.process(workCtx, item)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(done)
	}()

	c := coordinator{p: p, table: table, total: total}
	for res := range done {
		c.apply(workCtx, res)
	}

	var runErr error
	// An empty worklist still produces a header-only table.
	if c.processed > c.written || total == 0 {
		if err := c.checkpoint(workCtx); err != nil {
			runErr = fmt.Errorf("%w: final flush: %w", harvest.ErrSinkUnwritable, err)
		}
	}
	if ctx.Err() != nil {
		runErr = errors.Join(runErr, fmt.Errorf("harvest interrupted after %d of %d rows: %w", c.processed, total, ctx.Err()))
	}

	elapsed := p.clock.Now().Sub(start)
	if runErr != nil {
		p.emit(progress.Event{Stage: progress.StageRunError, Processed: c.processed, Total: total, Failures: c.failures, Dur: elapsed, Note: runErr.Error()})
		p.logger.Error("harvest finished with error", zap.Int("processed", c.processed), zap.Duration("elapsed", elapsed), zap.Error(runErr))
		return table, runErr
	}
	p.emit(progress.Event{Stage: progress.StageRunDone, Processed: c.processed, Total: total, Failures: c.failures, Dur: elapsed})
	p.logger.Info("harvest finished",
		zap.Int("processed", c.processed),
		zap.Int("field_failures", c.failures),
		zap.Duration("elapsed", elapsed),
	)
	return table, nil
}

// process runs the extractor on one item. Errors and panics become a failed
// Outcome for every declared field.
func (p *Pipeline) process(ctx context.Context, item harvest.WorkItem) (res completion) {
	start := p.clock.Now()
	fields := p.extractor.Fields()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("extractor panic", zap.String("key", item.Key), zap.Any("panic", r))
			res.outcome = harvest.FailAll(item.Key, fields, fmt.Errorf("extractor panic: %v", r))
		}
		res.dur = p.clock.Now().Sub(start)
	}()

	outcome, err := p.extractor.Extract(ctx, item)
	if err != nil {
		p.logger.Warn("row failed", zap.String("key", item.Key), zap.Error(err))
		outcome = harvest.FailAll(item.Key, fields, err)
	}
	outcome.Key = item.Key
	return completion{outcome: outcome}
}

func (p *Pipeline) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(p.cfg.RunID)
	evt.TS = p.clock.Now()
	evt.Task = p.cfg.Task
	p.emitter.Emit(evt)
}
