// Package runner executes a parsed pipeline phase by phase, recording the
// run and its command logs through the store.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/Promptonauts/convey/pkg/cache"
	"github.com/Promptonauts/convey/pkg/models"
	"github.com/Promptonauts/convey/pkg/observability"
	"github.com/Promptonauts/convey/pkg/store"
)

type Runner struct {
	store    store.Store
	executor *Executor
	metrics  *observability.MetricsRegistry
}

func New(st store.Store, exec *Executor, metrics *observability.MetricsRegistry) *Runner {
	return &Runner{
		store:    st,
		executor: exec,
		metrics:  metrics,
	}
}

// Run executes the pipeline for one channel: commands run strictly in
// declared order, phase by phase, and the first non-zero exit aborts
// everything that remains. The returned record reflects the final state
// even when the run failed.
func (r *Runner) Run(ctx context.Context, pipeline *models.Pipeline, channel models.Channel, manifestPath string) (*models.RunRecord, error) {
	expanded := pipeline.ExpandChannel(channel)

	run := &models.RunRecord{
		ManifestPath: manifestPath,
		Channel:      channel,
		State:        models.RunPending,
		CommandTotal: expanded.CommandCount(),
		CacheHints:   cache.Collect(r.executor.Dir, expanded.CacheDirs),
	}
	if err := r.store.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	now := time.Now().UTC()
	run.State = models.RunRunning
	run.StartedAt = &now
	if err := r.store.UpdateRun(run); err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}

	r.metrics.Counter(observability.MetricRunsStarted).Inc()
	r.metrics.Gauge(observability.MetricActiveRuns).Inc()
	defer r.metrics.Gauge(observability.MetricActiveRuns).Dec()

	if err := r.runPhases(ctx, expanded, run); err != nil {
		r.metrics.Counter(observability.MetricRunsFailed).Inc()
		r.finish(run, models.RunFailed, err)
		return run, err
	}

	r.metrics.Counter(observability.MetricRunsCompleted).Inc()
	r.finish(run, models.RunCompleted, nil)
	return run, nil
}

func (r *Runner) runPhases(ctx context.Context, pipeline *models.Pipeline, run *models.RunRecord) error {
	for _, phase := range pipeline.Phases {
		run.CurrentPhase = phase.Name
		if err := r.store.UpdateRun(run); err != nil {
			return fmt.Errorf("update run: %w", err)
		}

		phaseStart := time.Now()
		for seq, command := range phase.Commands {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			output, exitCode, err := r.executor.RunCommand(ctx, command)
			latency := time.Since(start).Milliseconds()

			r.metrics.Counter(observability.MetricCommandsRun).Inc()
			logErr := r.store.AppendCommandLog(run.ID, models.CommandLog{
				Timestamp: start.UTC(),
				Phase:     phase.Name,
				Sequence:  seq,
				Command:   command,
				Output:    output,
				ExitCode:  exitCode,
				LatencyMs: latency,
			})
			if logErr != nil {
				return fmt.Errorf("append command log: %w", logErr)
			}

			if err != nil {
				r.metrics.Counter(observability.MetricCommandsFail).Inc()
				return fmt.Errorf("phase %s: command %q: %w", phase.Name, command, err)
			}

			run.CommandsRun++
			if err := r.store.UpdateRun(run); err != nil {
				return fmt.Errorf("update run: %w", err)
			}
		}
		r.metrics.Histogram(observability.PhaseDurationMetric(phase.Name)).
			Observe(float64(time.Since(phaseStart).Milliseconds()))
	}
	return nil
}

func (r *Runner) finish(run *models.RunRecord, state models.RunState, runErr error) {
	now := time.Now().UTC()
	run.State = state
	run.CurrentPhase = ""
	run.CompletedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// Best effort: the run outcome is already decided
	_ = r.store.UpdateRun(run)
}

// RunMatrix replays the pipeline once per channel. Each channel is an
// independent run: one channel failing does not stop the others, but the
// first failure is reported once all channels have run.
func (r *Runner) RunMatrix(ctx context.Context, pipeline *models.Pipeline, channels []models.Channel, manifestPath string) ([]*models.RunRecord, error) {
	var records []*models.RunRecord
	var firstErr error
	for _, channel := range channels {
		run, err := r.Run(ctx, pipeline, channel, manifestPath)
		if run != nil {
			records = append(records, run)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return records, firstErr
}
