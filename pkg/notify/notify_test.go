package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inbox-triage/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestWebhookNotifier(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), Message{Title: "Outstanding", Text: "2 stale drafts"})
	require.NoError(t, err)
	assert.Equal(t, "*Outstanding*\n2 stale drafts", got["text"])
}

func TestWebhookNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), Message{Text: "x"})
	assert.ErrorContains(t, err, "403")
}

type stubNotifier struct {
	name string
	err  error
	got  []Message
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Notify(_ context.Context, msg Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestMulti(t *testing.T) {
	ok := &stubNotifier{name: "ok"}
	broken := &stubNotifier{name: "broken", err: errors.New("boom")}
	last := &stubNotifier{name: "last"}

	m := Multi{ok, broken, last}
	err := m.Notify(context.Background(), Message{Text: "hi"})
	assert.ErrorContains(t, err, "broken: boom")
	assert.Len(t, ok.got, 1)
	assert.Len(t, last.got, 1, "a failing channel does not stop the rest")
	assert.Equal(t, []string{"ok", "broken", "last"}, m.Channels())

	assert.NoError(t, Multi{}.Notify(context.Background(), Message{}))
}

type stubTopicSender struct {
	topic string
	data  fcm.NotificationData
}

func (s *stubTopicSender) SendToTopic(_ context.Context, topic string, n fcm.NotificationData) error {
	s.topic, s.data = topic, n
	return nil
}

func TestFCMNotifier(t *testing.T) {
	sender := &stubTopicSender{}
	n := NewFCMNotifier(sender, "triage-ops")
	require.NoError(t, n.Notify(context.Background(), Message{Title: "T", Text: "B", Data: map[string]string{"k": "v"}}))
	assert.Equal(t, "triage-ops", sender.topic)
	assert.Equal(t, "B", sender.data.Body)
	assert.Equal(t, "v", sender.data.Data["k"])
}

func TestActivityEventRouting(t *testing.T) {
	e := ActivityEvent{SourceKey: "ops@example.com:m-1", Label: "Sales"}
	assert.Equal(t, "triage.activity.sales", e.Subject())
	assert.Equal(t, "ops@example.com:m-1/Sales", e.MsgID())

	relabeled := e
	relabeled.Label = "ignore"
	assert.NotEqual(t, e.MsgID(), relabeled.MsgID())
}

func TestPubSubNotifier(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	admin, err := pubsub.NewClient(ctx, "triage-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "ops-alerts")
	require.NoError(t, err)

	n, err := NewPubSubNotifier(ctx, "triage-test", "ops-alerts", "", option.WithGRPCConn(conn))
	require.NoError(t, err)
	require.NoError(t, n.Notify(ctx, Message{Title: "Outstanding", Text: "1 stale draft"}))
	n.topic.Stop()

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "outstanding_report", msgs[0].Attributes["kind"])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, "1 stale draft", payload["text"])
}
