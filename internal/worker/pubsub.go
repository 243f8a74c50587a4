package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis"
)

// Job types accepted on the subscription.
const (
	JobStationSync = "station_sync"
	JobHealthCheck = "health_check"
)

// DefaultHealthCheckState is the state searched by health_check jobs.
const DefaultHealthCheckState = "RI"

var (
	// ErrMalformedMessage is returned for payloads that are not valid job JSON.
	ErrMalformedMessage = errors.New("malformed job message")

	// ErrUnknownJobType is returned for job types this worker does not run.
	ErrUnknownJobType = errors.New("unknown job type")
)

// JobMessage is the Pub/Sub payload. A station_sync job names one unit in
// unit_code, several in unit_codes, or both.
type JobMessage struct {
	JobType   string   `json:"job_type"`
	UnitCode  string   `json:"unit_code,omitempty"`
	UnitCodes []string `json:"unit_codes,omitempty"`
	BufferKM  float64  `json:"buffer_km,omitempty"`
	Elements  []string `json:"elements,omitempty"`
	State     string   `json:"state,omitempty"`
}

// Dispatcher decodes job messages and runs them.
type Dispatcher struct {
	syncJob *SyncJob
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher for syncJob.
func NewDispatcher(syncJob *SyncJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{syncJob: syncJob, logger: logger}
}

// Dispatch runs the job encoded in data.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobStationSync:
		return d.handleStationSync(ctx, msg)
	case JobHealthCheck:
		state := msg.State
		if state == "" {
			state = DefaultHealthCheckState
		}
		d.logger.Debug().Str("state", state).Msg("running health check")
		return d.syncJob.HealthCheck(ctx, state)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) handleStationSync(ctx context.Context, msg JobMessage) error {
	units := make([]string, 0, len(msg.UnitCodes)+1)
	if msg.UnitCode != "" {
		units = append(units, msg.UnitCode)
	}
	units = append(units, msg.UnitCodes...)

	result, err := d.syncJob.Run(ctx, SyncRequest{
		UnitCodes: units,
		BufferKM:  msg.BufferKM,
		Elements:  msg.Elements,
	})
	if err != nil {
		return err
	}

	// Redeliver only when most units failed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many unit sync failures: %d/%d", result.Failed, len(result.Units))
	}
	return nil
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 5
	subscriber.ReceiveSettings.MaxExtension = 15 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if Settle(ctx, h.dispatcher, h.logger, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Settle dispatches one message and reports whether it should be acked.
// Messages that can never succeed are acked to stop redelivery.
func Settle(ctx context.Context, d *Dispatcher, logger zerolog.Logger, messageID string, data []byte) bool {
	start := time.Now()
	logger = logger.With().Str("message_id", messageID).Logger()

	err := d.Dispatch(ctx, data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed successfully")
		return true
	case permanent(err):
		logger.Warn().Err(err).Msg("dropping job message")
		return true
	default:
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
		return false
	}
}

func permanent(err error) bool {
	var unsupported *acis.UnsupportedParameterError
	return errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, ErrUnknownJobType) ||
		errors.Is(err, ErrNoUnits) ||
		errors.As(err, &unsupported)
}
