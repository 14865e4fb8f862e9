package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// EventStream holds triage events.
	EventStream = "TRIAGE_EVENTS"
	// eventSubjectPrefix is followed by the activity label.
	eventSubjectPrefix = "triage.activity."
)

// ActivityEvent is published once per classified message.
type ActivityEvent struct {
	SourceKey  string    `json:"sourceKey"`
	ActivityID string    `json:"activityId"`
	Mailbox    string    `json:"mailbox"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons"`
	PolicyHash string    `json:"policyHash"`
	Degraded   bool      `json:"degraded"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Subject is the NATS subject the event is published on.
func (e ActivityEvent) Subject() string {
	return eventSubjectPrefix + strings.ToLower(e.Label)
}

// MsgID deduplicates replays of the same classification on the server. A
// relabeled message gets a new id and is published again.
func (e ActivityEvent) MsgID() string {
	return e.SourceKey + "/" + e.Label
}

// EventPublisher publishes activity events on NATS JetStream.
type EventPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewEventPublisher connects to url and ensures the event stream exists.
func NewEventPublisher(url string) (*EventPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("inbox-triage"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	p := &EventPublisher{nc: nc, js: js}
	if err := p.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *EventPublisher) ensureStream() error {
	if info, err := p.js.StreamInfo(EventStream); err == nil && info != nil {
		return nil
	}
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:       EventStream,
		Subjects:   []string{eventSubjectPrefix + ">"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: 2 * time.Hour,
		MaxAge:     30 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishActivity publishes event with its dedup id.
func (p *EventPublisher) PublishActivity(ctx context.Context, event ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(event.Subject(), payload, nats.MsgId(event.MsgID()), nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *EventPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
