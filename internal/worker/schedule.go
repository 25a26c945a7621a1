package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// ScheduleProbes runs probe right away and then every interval until ctx is
// done. A run that outlasts the interval delays the next one instead of
// overlapping it.
func ScheduleProbes(ctx context.Context, probe *ProbeJob, interval time.Duration, log zerolog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", interval)
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(interval).Do(func() {
		result := probe.Run(ctx)
		log.Debug().
			Int("failed", result.Failed).
			Int("total", result.TotalProbes).
			Msg("scheduled probe finished")
	})
	if err != nil {
		return fmt.Errorf("scheduling probes: %w", err)
	}

	s.StartAsync()
	log.Info().Dur("interval", interval).Msg("upstream probes scheduled")

	<-ctx.Done()
	s.Stop()
	return nil
}
