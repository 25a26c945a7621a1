package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

// Geocoder resolves a place name.
type Geocoder interface {
	Geocode(ctx context.Context, placeName string) (*geo.Location, error)
}

// ProbeJob exercises the weather and geocoding upstreams so that their
// circuit breakers and the provider registry reflect reality before users
// hit them.
type ProbeJob struct {
	config ProbeConfig
	logger zerolog.Logger

	// Upstreams (optional, nil if not configured)
	weather      weather.Provider
	geocoder     Geocoder
	geocoderName string

	metrics *ProbeMetrics
}

// ProbeMetrics tracks probe job statistics.
type ProbeMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns        int64
	SuccessfulProbes int64
	FailedProbes     int64
	WeatherProbes    int64
	GeocodeProbes    int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// ProbeJobConfig holds configuration for creating a ProbeJob.
type ProbeJobConfig struct {
	Config   ProbeConfig
	Logger   zerolog.Logger
	Weather  weather.Provider
	Geocoder Geocoder
	// GeocoderName labels geocode failures. Default: "geocoder".
	GeocoderName string
}

// NewProbeJob creates a new probe job.
func NewProbeJob(cfg ProbeJobConfig) *ProbeJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultProbeConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	name := cfg.GeocoderName
	if name == "" {
		name = "geocoder"
	}

	return &ProbeJob{
		config:       config,
		logger:       cfg.Logger,
		weather:      cfg.Weather,
		geocoder:     cfg.Geocoder,
		geocoderName: name,
		metrics:      &ProbeMetrics{},
	}
}

// ProbeResult contains the result of one probe run.
type ProbeResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalProbes int
	Successful  int
	Failed      int
	Errors      []ProbeError
}

// ProbeError describes one failed probe.
type ProbeError struct {
	Provider string
	Target   string
	Error    string
}

type probeKind int

const (
	probeWeather probeKind = iota + 1
	probeGeocode
)

type probeTask struct {
	kind   probeKind
	target string
	point  geo.Point
}

// tasks lists every probe in target order. Probes whose upstream is not
// configured or disabled are left out.
func (j *ProbeJob) tasks() []probeTask {
	var tasks []probeTask
	for _, target := range j.config.Targets {
		if j.config.ProbeGeocode && j.geocoder != nil {
			tasks = append(tasks, probeTask{kind: probeGeocode, target: target.Name})
		}
		if j.config.ProbeWeather && j.weather != nil {
			for _, p := range target.Points {
				tasks = append(tasks, probeTask{kind: probeWeather, target: target.Name, point: p})
			}
		}
	}
	return tasks
}

// Run executes every probe on a bounded worker pool.
func (j *ProbeJob) Run(ctx context.Context) *ProbeResult {
	startTime := time.Now()
	tasks := j.tasks()
	result := &ProbeResult{
		StartTime:   startTime,
		TotalProbes: len(tasks),
	}

	j.logger.Info().
		Int("total_probes", result.TotalProbes).
		Int("concurrency", j.config.Concurrency).
		Msg("starting upstream probe job")

	// Create work channels
	tasksChan := make(chan probeTask, len(tasks))
	resultsChan := make(chan probeOutcome, len(tasks))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.probeWorker(ctx, tasksChan, resultsChan)
		}()
	}

	for _, t := range tasks {
		tasksChan <- t
	}
	close(tasksChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results
	for out := range resultsChan {
		if out.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, ProbeError{
			Provider: out.provider,
			Target:   out.task.target,
			Error:    out.err.Error(),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(tasks, result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("upstream probe job completed")

	return result
}

type probeOutcome struct {
	task     probeTask
	provider string
	err      error
}

func (j *ProbeJob) probeWorker(ctx context.Context, tasks <-chan probeTask, results chan<- probeOutcome) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.probe(ctx, task)
		}
	}
}

func (j *ProbeJob) probe(ctx context.Context, task probeTask) probeOutcome {
	probeCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	out := probeOutcome{task: task}
	switch task.kind {
	case probeWeather:
		out.provider = j.weather.Name()
		_, out.err = j.weather.CurrentWeather(probeCtx, task.point)
	case probeGeocode:
		out.provider = j.geocoderName
		_, out.err = j.geocoder.Geocode(probeCtx, task.target)
	}

	if out.err != nil {
		j.logger.Warn().
			Err(out.err).
			Str("provider", out.provider).
			Str("target", task.target).
			Msg("probe failed")
	}
	return out
}

func (j *ProbeJob) updateMetrics(tasks []probeTask, result *ProbeResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	for _, t := range tasks {
		switch t.kind {
		case probeWeather:
			j.metrics.WeatherProbes++
		case probeGeocode:
			j.metrics.GeocodeProbes++
		}
	}
	j.metrics.TotalRuns++
	j.metrics.SuccessfulProbes += int64(result.Successful)
	j.metrics.FailedProbes += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *ProbeJob) GetMetrics() ProbeMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return ProbeMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulProbes: j.metrics.SuccessfulProbes,
		FailedProbes:     j.metrics.FailedProbes,
		WeatherProbes:    j.metrics.WeatherProbes,
		GeocodeProbes:    j.metrics.GeocodeProbes,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *ProbeJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"successful_probes": m.SuccessfulProbes,
		"failed_probes":     m.FailedProbes,
		"weather_probes":    m.WeatherProbes,
		"geocode_probes":    m.GeocodeProbes,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
