package worker

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/user"
)

// Defaults for SubscriberConfig.
const (
	DefaultMaxOutstanding = 10
	DefaultMaxExtension   = 10 * time.Minute
)

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	ProjectID    string
	Subscription string
	Processor    *Processor
	Logger       zerolog.Logger

	// MaxOutstanding bounds jobs in flight; MaxExtension bounds how long a
	// slow job keeps its lease.
	MaxOutstanding int
	MaxExtension   time.Duration
}

// Subscriber feeds jobs from a Pub/Sub subscription into a Processor.
type Subscriber struct {
	client *pubsub.Client
	sub    *pubsub.Subscriber
	proc   *Processor
	log    zerolog.Logger
}

func NewSubscriber(ctx context.Context, cfg SubscriberConfig) (*Subscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client for %s: %w", cfg.ProjectID, err)
	}

	sub := client.Subscriber(cfg.Subscription)
	sub.ReceiveSettings.MaxOutstandingMessages = cmp.Or(cfg.MaxOutstanding, DefaultMaxOutstanding)
	sub.ReceiveSettings.MaxExtension = cmp.Or(cfg.MaxExtension, DefaultMaxExtension)

	return &Subscriber{
		client: client,
		sub:    sub,
		proc:   cfg.Processor,
		log:    cfg.Logger.With().Str("subscription", cfg.Subscription).Logger(),
	}, nil
}

// Run receives until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	s.log.Info().Msg("receiving jobs")
	return s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		attempt := 0
		if msg.DeliveryAttempt != nil {
			attempt = *msg.DeliveryAttempt
		}
		if s.settle(ctx, delivery{id: msg.ID, published: msg.PublishTime, attempt: attempt, data: msg.Data}) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}

type delivery struct {
	id        string
	published time.Time
	attempt   int
	data      []byte
}

// settle runs one delivery and reports whether to ack it. Failed jobs are
// nacked for redelivery; jobs no processor understands are dropped.
func (s *Subscriber) settle(ctx context.Context, d delivery) (ack bool) {
	log := s.log.With().Str("message_id", d.id).Logger()
	if d.attempt > 0 {
		log = log.With().Int("attempt", d.attempt).Logger()
	}

	start := time.Now()
	err := s.proc.Process(ctx, d.data)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		log.Info().Dur("duration", elapsed).Dur("queued", start.Sub(d.published)).Msg("job done")
		return true
	case errors.Is(err, ErrUnknownJob):
		log.Warn().Err(err).Msg("dropping job")
		return true
	default:
		log.Error().Err(err).Dur("duration", elapsed).Msg("job failed, will be redelivered")
		return false
	}
}

// MessagePublisher publishes one encoded job.
type MessagePublisher interface {
	Publish(ctx context.Context, data []byte) error
}

// TopicPublisher publishes jobs to a Pub/Sub topic.
type TopicPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewTopicPublisher creates a publisher for topic.
func NewTopicPublisher(ctx context.Context, projectID, topic string) (*TopicPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &TopicPublisher{client: client, publisher: client.Publisher(topic)}, nil
}

// Publish implements MessagePublisher and waits for the server to accept the message.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte) error {
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing job: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *TopicPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// ProfileQueue hands profile writes to the worker instead of performing
// them during sign-up. It satisfies auth.ProfileProvisioner.
type ProfileQueue struct {
	publisher MessagePublisher
	logger    zerolog.Logger
}

// NewProfileQueue creates a ProfileQueue.
func NewProfileQueue(publisher MessagePublisher, logger zerolog.Logger) *ProfileQueue {
	return &ProfileQueue{publisher: publisher, logger: logger}
}

// CreateProfile enqueues a profile write for a new account.
func (q *ProfileQueue) CreateProfile(ctx context.Context, userID string, p user.NewProfile) error {
	return q.enqueue(ctx, &ProfileJob{
		UserID:      userID,
		Email:       p.Email,
		Username:    p.Username,
		FullName:    p.FullName,
		DateOfBirth: p.DateOfBirth,
	})
}

// EnsureProfile enqueues a profile write for a federated sign-in.
func (q *ProfileQueue) EnsureProfile(ctx context.Context, userID, email, displayName string) error {
	return q.enqueue(ctx, &ProfileJob{
		UserID:      userID,
		Ensure:      true,
		Email:       email,
		DisplayName: displayName,
	})
}

func (q *ProfileQueue) enqueue(ctx context.Context, job *ProfileJob) error {
	data, err := json.Marshal(Message{JobType: JobProvisionProfile, Profile: job})
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	if err := q.publisher.Publish(ctx, data); err != nil {
		return err
	}
	q.logger.Debug().Str("user_id", job.UserID).Bool("ensure", job.Ensure).Msg("profile job queued")
	return nil
}
