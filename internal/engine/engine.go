// Package engine runs the propagation pipeline as an isolated actor: one
// goroutine owns the catalog and the element cache, consumes queued triggers
// (catalog replacement, periodic tick), and runs each batch to completion in
// catalog insertion order before looking at the next trigger. Per-object
// propagation inside a batch fans out across a worker pool, but all mutable
// state is touched only by the actor goroutine.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/metrics"
	"github.com/sprett/sat-tracker/internal/propagation"
	"github.com/sprett/sat-tracker/internal/sgp4"
	"github.com/sprett/sat-tracker/internal/transform"
	"github.com/sprett/sat-tracker/internal/visibility"
)

// StructuralError invalidates a whole batch, as opposed to the recovered
// per-entry failures. It is the only error surfaced to consumers.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "engine: " + e.Reason
}

// Config holds the engine's tunables.
type Config struct {
	TickInterval  time.Duration
	Workers       int
	CacheCapacity int
	Policy        visibility.Policy
	Observer      visibility.Observer
}

// Stats is a snapshot of cumulative diagnostics since the engine started.
type Stats struct {
	BatchesCompleted  int64  `json:"batches_completed"`
	BatchesSaturated  int64  `json:"batches_saturated"`
	SamplesEmitted    int64  `json:"samples_emitted"`
	ParseFailures     int64  `json:"parse_failures"`
	PropFailures      int64  `json:"propagation_failures"`
	TransformFailures int64  `json:"transform_failures"`
	CacheSize         int    `json:"element_cache_size"`
	LastBatchDuration string `json:"last_batch_duration"`
}

// Engine is the batch scheduler. Construct with New, then run the actor loop
// with Run; triggers are delivered through ReplaceCatalog and the internal
// ticker.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	pool   *propagation.Pool

	triggers chan trigger
	out      chan Message

	// Owned by the actor goroutine; never touched from outside Run.
	cache   *propagation.ElementCache
	catalog *catalog.Catalog

	latest atomic.Pointer[Batch]

	batches     atomic.Int64
	saturations atomic.Int64
	samples     atomic.Int64
	parseFails  atomic.Int64
	propFails   atomic.Int64
	transFails  atomic.Int64
	cacheSize   atomic.Int64
	lastBatchNs atomic.Int64
}

type triggerKind int

const (
	triggerTick triggerKind = iota
	triggerCatalog
)

type trigger struct {
	kind    triggerKind
	catalog *catalog.Catalog
}

// New creates an engine. Messages are delivered on the channel returned by
// Out; the channel is buffered and a consumer that stops draining it loses
// messages rather than stalling batches (the latest batch stays readable
// through Latest).
func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		pool:     propagation.NewPool(cfg.Workers, logger),
		triggers: make(chan trigger, 64),
		out:      make(chan Message, 8),
		cache:    propagation.NewElementCache(cfg.CacheCapacity),
	}
}

// Out returns the engine's message channel.
func (e *Engine) Out() <-chan Message { return e.out }

// Latest returns the most recently completed batch, or nil before the first
// batch. The returned batch is immutable.
func (e *Engine) Latest() *Batch { return e.latest.Load() }

// TickInterval returns the configured batch cadence.
func (e *Engine) TickInterval() time.Duration { return e.cfg.TickInterval }

// Stats returns a snapshot of cumulative diagnostics.
func (e *Engine) Stats() Stats {
	return Stats{
		BatchesCompleted:  e.batches.Load(),
		BatchesSaturated:  e.saturations.Load(),
		SamplesEmitted:    e.samples.Load(),
		ParseFailures:     e.parseFails.Load(),
		PropFailures:      e.propFails.Load(),
		TransformFailures: e.transFails.Load(),
		CacheSize:         int(e.cacheSize.Load()),
		LastBatchDuration: time.Duration(e.lastBatchNs.Load()).String(),
	}
}

// ReplaceCatalog queues a wholesale catalog replacement. The in-progress
// batch, if any, finishes against the old catalog; the replacement takes
// effect on the next trigger it precedes.
func (e *Engine) ReplaceCatalog(c *catalog.Catalog) {
	e.triggers <- trigger{kind: triggerCatalog, catalog: c}
}

// Run is the actor loop. It emits Ready once, then converts every queued
// trigger into one run-to-completion batch until the context is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.emit(Ready{})
	e.logger.Info("engine ready",
		"tick_interval", e.cfg.TickInterval.String(),
		"workers", e.cfg.Workers,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case trig := <-e.triggers:
			e.handle(ctx, trig)
		case <-ticker.C:
			e.handle(ctx, trigger{kind: triggerTick})
		}
	}
}

func (e *Engine) handle(ctx context.Context, trig trigger) {
	if trig.kind == triggerCatalog {
		if trig.catalog == nil {
			e.emit(Error{Message: (&StructuralError{Reason: "nil catalog replacement"}).Error()})
			return
		}
		e.catalog = trig.catalog
		e.logger.Info("catalog replaced",
			"entries", len(trig.catalog.Entries),
			"source", trig.catalog.Source,
		)
	}

	batch := e.runBatch(ctx, time.Now().UTC())
	if batch == nil {
		return
	}
	e.latest.Store(batch)
	e.emit(Positions{Batch: batch})
}

// RunOnce performs a single batch against the given catalog and observer
// without starting the actor loop. One-shot tooling and tests use it; the
// server path goes through Run. A nil catalog is a structural failure.
func (e *Engine) RunOnce(ctx context.Context, c *catalog.Catalog, at time.Time, obs visibility.Observer) (*Batch, error) {
	if c == nil {
		return nil, &StructuralError{Reason: "nil catalog"}
	}
	e.catalog = c
	e.cfg.Observer = obs
	batch := e.runBatch(ctx, at)
	if batch == nil {
		return nil, &StructuralError{Reason: "batch interrupted: " + ctx.Err().Error()}
	}
	e.latest.Store(batch)
	return batch, nil
}

// runBatch performs one full pass over the current catalog: parse or fetch
// from cache, propagate, transform, classify. An empty or absent catalog is
// not an error; it yields zero samples. A batch interrupted by context
// cancellation returns nil and must not be published.
func (e *Engine) runBatch(ctx context.Context, at time.Time) *Batch {
	start := time.Now()

	var entries []catalog.Entry
	if e.catalog != nil {
		entries = e.catalog.Entries
	}

	var counts Counts
	jobs := make([]propagation.Job, 0, len(entries))
	meta := make([]catalog.Entry, 0, len(entries))

	for _, entry := range entries {
		rec, err := e.cache.GetOrParse(entry)
		if err != nil {
			// Element sets rejected by the theory at initialization are
			// propagation failures; everything else is malformed text.
			var perr *sgp4.PropagationError
			if errors.As(err, &perr) {
				counts.Propagation++
			} else {
				counts.Parse++
			}
			e.logger.Debug("entry skipped at parse",
				"identity", entry.Identity,
				"error", err,
			)
			continue
		}
		jobs = append(jobs, propagation.Job{Index: len(jobs), Record: rec})
		meta = append(meta, entry)
	}

	results := make([]propagation.Result, len(jobs))
	if err := e.pool.Run(ctx, jobs, at, results); err != nil {
		// An interrupted batch is discarded whole; emitting the reached
		// subset would hand consumers samples that silently stop short of
		// the catalog.
		e.logger.Warn("batch interrupted, discarding",
			"entries", len(entries),
			"error", err,
		)
		return nil
	}

	samples := make([]PositionSample, 0, len(jobs))
	for i, res := range results {
		if res.Err != nil {
			var perr *sgp4.PropagationError
			var terr *transform.TransformError
			switch {
			case errors.As(res.Err, &perr):
				counts.Propagation++
			case errors.As(res.Err, &terr):
				counts.Transform++
			default:
				counts.Propagation++
			}
			e.logger.Debug("entry skipped",
				"identity", meta[i].Identity,
				"error", res.Err,
			)
			continue
		}
		visible := visibility.Classify(e.cfg.Policy,
			res.Geodetic.LatDeg, res.Geodetic.LonDeg, res.Geodetic.AltKm,
			e.cfg.Observer)
		samples = append(samples, PositionSample{
			Identity: meta[i].Identity,
			Category: meta[i].Category,
			Position: res.Geodetic,
			Velocity: [3]float64{res.ECF.VX, res.ECF.VY, res.ECF.VZ},
			Visible:  visible,
		})
	}

	duration := time.Since(start)
	saturated := duration > e.cfg.TickInterval

	e.batches.Add(1)
	e.samples.Add(int64(len(samples)))
	e.parseFails.Add(int64(counts.Parse))
	e.propFails.Add(int64(counts.Propagation))
	e.transFails.Add(int64(counts.Transform))
	e.cacheSize.Store(int64(e.cache.Len()))
	e.lastBatchNs.Store(int64(duration))

	metrics.RecordBatch(duration, len(samples), e.cache.Len())
	metrics.RecordSkips(counts.Parse, counts.Propagation, counts.Transform)
	if saturated {
		e.saturations.Add(1)
		metrics.RecordSaturation()
		e.logger.Warn("batch saturated",
			"duration_ms", duration.Milliseconds(),
			"tick_interval_ms", e.cfg.TickInterval.Milliseconds(),
			"entries", len(entries),
		)
	}

	return &Batch{
		Samples:   samples,
		Instant:   at,
		Counts:    counts,
		Duration:  duration,
		Saturated: saturated,
	}
}

// emit delivers a message without blocking the actor. A full channel drops
// the message; Latest always reflects the newest batch regardless.
func (e *Engine) emit(m Message) {
	select {
	case e.out <- m:
	default:
		e.logger.Debug("message dropped, consumer not draining")
	}
}
