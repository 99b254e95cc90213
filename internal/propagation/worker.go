package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sprett/sat-tracker/internal/sgp4"
	"github.com/sprett/sat-tracker/internal/transform"
)

// Job is one object to propagate: an initialized record plus the index its
// result must land at.
type Job struct {
	Index  int
	Record *sgp4.Record
}

// Result is the propagated and transformed state for one Job. Exactly one of
// Err or the state fields is meaningful. A *sgp4.PropagationError marks a
// propagation failure, a *transform.TransformError a frame failure.
type Result struct {
	SatNum   int
	ECF      transform.StateECF
	Geodetic transform.Geodetic
	Err      error
}

// Pool runs per-object propagation across a fixed set of goroutines.
// Propagation and transformation are pure functions, so the pool holds no
// state between batches.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, logger: logger}
}

// Run propagates every job to the target instant and writes each result into
// results at the job's index, so output order is independent of scheduling.
// results must be at least as long as the largest job index. On cancellation
// the jobs never handed to a worker get their result slot marked with the
// context error, and the context error is returned; no slot is ever left
// zero-valued with a nil Err.
func (p *Pool) Run(ctx context.Context, jobs []Job, at time.Time, results []Result) error {
	if len(jobs) == 0 {
		return ctx.Err()
	}

	// GMST depends only on the instant; compute it once for the batch.
	gmst := transform.GMST(at)

	jobCh := make(chan Job, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				results[job.Index] = propagateOne(job.Record, at, gmst)
			}
		}()
	}

	for i, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
			for _, j := range jobs[i:] {
				results[j.Index] = Result{SatNum: j.Record.SatNum(), Err: ctx.Err()}
			}
			close(jobCh)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobCh)
	wg.Wait()
	return ctx.Err()
}

// propagateOne runs the analytic theory and the frame pipeline for a single
// record at the target instant.
func propagateOne(rec *sgp4.Record, at time.Time, gmst float64) Result {
	state, err := rec.PropagateTime(at)
	if err != nil {
		return Result{SatNum: rec.SatNum(), Err: err}
	}

	teme := transform.StateTEME{
		X: state.Position[0], Y: state.Position[1], Z: state.Position[2],
		VX: state.Velocity[0], VY: state.Velocity[1], VZ: state.Velocity[2],
	}
	ecf := transform.TEMEToECFWithGMST(teme, gmst)
	geo, err := transform.ECFToGeodetic(ecf.X, ecf.Y, ecf.Z)
	if err != nil {
		return Result{SatNum: rec.SatNum(), Err: err}
	}

	return Result{SatNum: rec.SatNum(), ECF: ecf, Geodetic: geo}
}
