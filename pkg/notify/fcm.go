package notify

import (
	"context"

	"inbox-triage/pkg/fcm"
)

// TopicSender is the part of the FCM client the notifier needs.
type TopicSender interface {
	SendToTopic(ctx context.Context, topic string, notification fcm.NotificationData) error
}

// FCMNotifier pushes a notification to every device subscribed to a topic.
type FCMNotifier struct {
	client TopicSender
	topic  string
}

func NewFCMNotifier(client TopicSender, topic string) *FCMNotifier {
	return &FCMNotifier{client: client, topic: topic}
}

func (f *FCMNotifier) Name() string {
	return "fcm"
}

func (f *FCMNotifier) Notify(ctx context.Context, msg Message) error {
	return f.client.SendToTopic(ctx, f.topic, fcm.NotificationData{
		Title: msg.Title,
		Body:  msg.Text,
		Data:  msg.Data,
	})
}
