package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/user"
)

// Job types carried in Message.JobType.
const (
	JobProvisionProfile = "provision_profile"
	JobUpstreamProbe    = "upstream_probe"
	JobHealthCheck      = "health_check"
)

// ErrUnknownJob is returned for messages with an unrecognised job type.
// Such messages are acknowledged and dropped.
var ErrUnknownJob = errors.New("unknown job type")

// Message is the envelope of every worker job.
type Message struct {
	JobType string `json:"job_type"`

	// Profile is set for provision_profile jobs.
	Profile *ProfileJob `json:"profile,omitempty"`
}

// ProfileJob asks for a profile write. Ensure jobs come from federated
// sign-ins and only create the profile when none exists.
type ProfileJob struct {
	UserID      string `json:"user_id"`
	Ensure      bool   `json:"ensure,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// ProfileWriter is the subset of the profile service used by provisioning jobs.
type ProfileWriter interface {
	CreateProfile(ctx context.Context, userID string, in user.NewProfile) (*user.Profile, error)
	EnsureProfile(ctx context.Context, userID, email, displayName string) (*user.Profile, error)
}

// Processor executes decoded jobs. It is independent of the transport that
// delivered them.
type Processor struct {
	profiles ProfileWriter
	probe    *ProbeJob
	logger   zerolog.Logger
}

// NewProcessor creates a job processor. Either dependency may be nil, in
// which case its jobs fail.
func NewProcessor(profiles ProfileWriter, probe *ProbeJob, logger zerolog.Logger) *Processor {
	return &Processor{profiles: profiles, probe: probe, logger: logger}
}

// Process decodes and runs one job.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}

	switch msg.JobType {
	case JobProvisionProfile:
		return p.provisionProfile(ctx, msg.Profile)
	case JobUpstreamProbe:
		return p.runProbe(ctx)
	case JobHealthCheck:
		return p.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (p *Processor) provisionProfile(ctx context.Context, job *ProfileJob) error {
	if p.profiles == nil {
		return errors.New("profile provisioning not configured")
	}
	if job == nil || job.UserID == "" {
		return errors.New("provision_profile job without user id")
	}

	if job.Ensure {
		_, err := p.profiles.EnsureProfile(ctx, job.UserID, job.Email, job.DisplayName)
		return err
	}

	_, err := p.profiles.CreateProfile(ctx, job.UserID, user.NewProfile{
		Username:    job.Username,
		FullName:    job.FullName,
		DateOfBirth: job.DateOfBirth,
		Email:       job.Email,
	})
	if errors.Is(err, user.ErrProfileExists) {
		// Redelivery of a job that already succeeded.
		p.logger.Debug().Str("user_id", job.UserID).Msg("profile already provisioned")
		return nil
	}
	return err
}

func (p *Processor) runProbe(ctx context.Context) error {
	if p.probe == nil {
		return errors.New("upstream probe not configured")
	}

	result := p.probe.Run(ctx)

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many probe failures: %d/%d", result.Failed, result.TotalProbes)
	}
	return nil
}

func (p *Processor) healthCheck(ctx context.Context) error {
	if p.probe == nil {
		return nil
	}

	// Probe the first target only.
	target := p.probe.config.Targets[0]
	target.Points = target.Points[:min(1, len(target.Points))]

	check := NewProbeJob(ProbeJobConfig{
		Config: ProbeConfig{
			Targets:      []ProbeTarget{target},
			Concurrency:  1,
			Timeout:      10 * time.Second,
			ProbeWeather: true,
			ProbeGeocode: true,
		},
		Logger:       p.logger,
		Weather:      p.probe.weather,
		Geocoder:     p.probe.geocoder,
		GeocoderName: p.probe.geocoderName,
	})

	result := check.Run(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", result.Failed)
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}
