package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/ranking"
)

// Fetcher queries the CO₂ backend for the options of one trip.
type Fetcher interface {
	SearchTransports(ctx context.Context, origin, destination string) ([]ranking.RawOption, error)
}

// ProbeJob searches every target against the backend and reports whether
// the comparison pipeline would have data for it.
type ProbeJob struct {
	config    ProbeConfig
	fetcher   Fetcher
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu    sync.RWMutex
	stats ProbeStats
}

// ProbeStats accumulates probe outcomes across runs.
type ProbeStats struct {
	TotalRuns       int64
	Successful      int64
	Failed          int64
	Empty           int64
	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// ProbeJobConfig holds configuration for creating a ProbeJob.
type ProbeJobConfig struct {
	Config    ProbeConfig
	Fetcher   Fetcher
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// NewProbeJob creates a new probe job.
func NewProbeJob(cfg ProbeJobConfig) *ProbeJob {
	config := cfg.Config
	defaults := DefaultProbeConfig()
	if len(config.Targets) == 0 {
		config.Targets = defaults.Targets
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &ProbeJob{
		config:    config,
		fetcher:   cfg.Fetcher,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// ProbeResult contains the result of one run.
type ProbeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalTargets int
	Successful   int
	Failed       int
	// Empty counts successful probes that returned no usable option.
	Empty  int
	Errors []ProbeError
}

// ProbeError represents a failed probe.
type ProbeError struct {
	Target string
	Error  string
}

// Run probes every configured target.
func (j *ProbeJob) Run(ctx context.Context) *ProbeResult {
	return j.run(ctx, j.config.Ordered())
}

// RunTargets probes only the named targets. Unknown names are ignored.
func (j *ProbeJob) RunTargets(ctx context.Context, names []string) *ProbeResult {
	if len(names) == 0 {
		return j.Run(ctx)
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var targets []ProbeTarget
	for _, t := range j.config.Ordered() {
		if want[t.Name] {
			targets = append(targets, t)
		}
	}
	return j.run(ctx, targets)
}

func (j *ProbeJob) run(ctx context.Context, targets []ProbeTarget) *ProbeResult {
	startTime := time.Now()
	result := &ProbeResult{
		StartTime:    startTime,
		TotalTargets: len(targets),
	}

	j.logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("concurrency", j.config.Concurrency).
		Msg("starting backend probe job")

	targetsChan := make(chan ProbeTarget, len(targets))
	resultsChan := make(chan probeOutcome, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.probeWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for o := range resultsChan {
		switch {
		case o.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, ProbeError{Target: o.target.Name, Error: o.err.Error()})
		case o.optionCount == 0:
			result.Successful++
			result.Empty++
		default:
			result.Successful++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateStats(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("empty", result.Empty).
		Msg("backend probe job completed")

	return result
}

type probeOutcome struct {
	target      ProbeTarget
	optionCount int
	err         error
}

func (j *ProbeJob) probeWorker(ctx context.Context, targets <-chan ProbeTarget, results chan<- probeOutcome) {
	for t := range targets {
		select {
		case <-ctx.Done():
			results <- probeOutcome{target: t, err: ctx.Err()}
		default:
			results <- j.probe(ctx, t)
		}
	}
}

func (j *ProbeJob) probe(ctx context.Context, t ProbeTarget) probeOutcome {
	probeCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := j.fetcher.SearchTransports(probeCtx, t.Origin, t.Destination)
	elapsed := time.Since(start)

	payload := events.ProbeCompleted{
		Target:     t.Name,
		DurationMs: elapsed.Milliseconds(),
	}
	out := probeOutcome{target: t, err: err}

	if err != nil {
		j.metrics.ProbeCompleted(metrics.OutcomeFailed, elapsed.Seconds())
		payload.Error = err.Error()
		j.logger.Warn().
			Err(err).
			Str("target", t.Name).
			Dur("duration", elapsed).
			Msg("probe failed")
	} else {
		result := ranking.Rank(raw)
		out.optionCount = len(result.Options)
		payload.Success = true
		payload.OptionCount = out.optionCount
		if best, ok := result.EcoFriendly(); ok {
			payload.BestCO2 = best.CO2
		}

		outcome := metrics.OutcomeOK
		if result.Empty {
			outcome = metrics.OutcomeEmpty
		}
		j.metrics.ProbeCompleted(outcome, elapsed.Seconds())
		j.logger.Debug().
			Str("target", t.Name).
			Int("options", out.optionCount).
			Dur("duration", elapsed).
			Msg("probe completed")
	}

	events.Emit(ctx, j.publisher, j.logger, events.TypeProbeCompleted, payload)
	return out
}

func (j *ProbeJob) updateStats(result *ProbeResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stats.TotalRuns++
	j.stats.Successful += int64(result.Successful)
	j.stats.Failed += int64(result.Failed)
	j.stats.Empty += int64(result.Empty)
	j.stats.LastRunAt = result.EndTime
	j.stats.LastRunDuration = result.Duration
}

// Stats returns a copy of the accumulated statistics.
func (j *ProbeJob) Stats() ProbeStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

// Healthy reports whether the last run failed less than half its probes.
func (r *ProbeResult) Healthy() bool {
	return r.Failed <= r.Successful
}
