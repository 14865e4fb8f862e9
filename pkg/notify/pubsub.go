package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubNotifier publishes messages to a topic a chat bridge subscribes to.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubNotifier connects to projectID. credentialsFile may be empty to
// use application default credentials; extra options are passed through.
func NewPubSubNotifier(ctx context.Context, projectID, topicName, credentialsFile string, opts ...option.ClientOption) (*PubSubNotifier, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubNotifier{client: client, topic: client.Topic(topicName)}, nil
}

func (p *PubSubNotifier) Name() string {
	return "pubsub"
}

// Notify publishes msg as JSON and waits for the server ack.
func (p *PubSubNotifier) Notify(ctx context.Context, msg Message) error {
	data, err := json.Marshal(struct {
		Title string            `json:"title"`
		Text  string            `json:"text"`
		Data  map[string]string `json:"data,omitempty"`
	}{msg.Title, msg.Text, msg.Data})
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": "outstanding_report"},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic.ID(), err)
	}
	return nil
}

func (p *PubSubNotifier) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
