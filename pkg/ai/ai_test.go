package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var labels = []string{"receipt", "sales", "support", "ignore"}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *Classification
		wantErr bool
	}{
		{
			name: "plain json",
			text: `{"label":"support","confidence":0.8,"reasons":["customer-reports-bug"]}`,
			want: &Classification{Label: "support", Confidence: 0.8, Reasons: []string{"customer-reports-bug"}},
		},
		{
			name: "fenced with chatter and clamped",
			text: "Sure!\n```json\n{\"label\":\"Receipt\",\"confidence\":1.7,\"reasons\":[]}\n```",
			want: &Classification{Label: "receipt", Confidence: 1, Reasons: []string{}},
		},
		{name: "unknown label", text: `{"label":"spam","confidence":0.9}`, wantErr: true},
		{name: "not json", text: "I think this is sales", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.text, labels)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply(t *testing.T) {
	got, err := ParseReply(`{"subject":" Re: Hello ","body":"Hi there"}`)
	require.NoError(t, err)
	assert.Equal(t, "Re: Hello", got.Subject)

	_, err = ParseReply(`{"subject":"Re: Hello","body":"  "}`)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestPrompts(t *testing.T) {
	p := ClassificationPrompt(ClassificationRequest{Sender: "a@b.c", Subject: "Hi", Body: "Body", Labels: labels})
	assert.Contains(t, p, "receipt, sales, support, ignore")
	assert.Contains(t, p, "(no policy excerpt available)")

	r := ReplyPrompt(ReplyRequest{SenderEmail: "a@b.c", Cues: []string{"Confirm timeline"}, Signature: "Best, Ana"})
	assert.Contains(t, r, "- Confirm timeline")
	assert.Contains(t, r, "From: a@b.c")
	assert.Contains(t, r, "Best, Ana")
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "h", truncate("hé", 2))
	assert.Equal(t, "hé", truncate("hé", 3))
}

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Generate(context.Context, string) (string, error) { return s.text, s.err }
func (s stubGenerator) Model() string                                    { return "stub-1" }

func TestLLMBackend(t *testing.T) {
	b := NewBackend(stubGenerator{text: `{"label":"ignore","confidence":0.7,"reasons":["newsletter"]}`})
	out, err := b.ClassifyEmail(context.Background(), ClassificationRequest{Labels: labels})
	require.NoError(t, err)
	assert.Equal(t, "stub-1", out.Model)
	assert.Equal(t, "stub-1", b.Name())

	reply := NewBackend(stubGenerator{text: `{"subject":"Re: x","body":"y"}`})
	draft, err := reply.ComposeReply(context.Background(), ReplyRequest{})
	require.NoError(t, err)
	assert.Equal(t, "stub-1", draft.Model)

	failing := NewBackend(stubGenerator{err: errors.New("dial tcp: connection refused")})
	_, err = failing.ClassifyEmail(context.Background(), ClassificationRequest{Labels: labels})
	assert.Error(t, err)
}

type countingBackend struct {
	name  string
	err   error
	calls int
}

func (c *countingBackend) Name() string { return c.name }
func (c *countingBackend) ClassifyEmail(context.Context, ClassificationRequest) (*Classification, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &Classification{Label: "support", Confidence: 0.9, Model: c.name}, nil
}
func (c *countingBackend) ComposeReply(context.Context, ReplyRequest) (*ReplyDraft, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &ReplyDraft{Subject: "s", Body: "b", Model: c.name}, nil
}

func TestFallbackService(t *testing.T) {
	ctx := context.Background()

	t.Run("primary success", func(t *testing.T) {
		primary, secondary := &countingBackend{name: "gemini"}, &countingBackend{name: "ollama/llama3"}
		out, err := NewFallbackService(primary, secondary, zap.NewNop()).ClassifyEmail(ctx, ClassificationRequest{})
		require.NoError(t, err)
		assert.Equal(t, "gemini", out.Model)
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("quota error falls back", func(t *testing.T) {
		primary := &countingBackend{name: "gemini", err: errors.New("gemini API error (429): RESOURCE_EXHAUSTED")}
		secondary := &countingBackend{name: "ollama/llama3"}
		f := NewFallbackService(primary, secondary, zap.NewNop())
		out, err := f.ComposeReply(ctx, ReplyRequest{})
		require.NoError(t, err)
		assert.Equal(t, "ollama/llama3", out.Model)
		assert.Equal(t, "gemini+ollama/llama3", f.Name())
	})

	t.Run("both fail", func(t *testing.T) {
		f := NewFallbackService(&countingBackend{err: errors.New("a")}, &countingBackend{err: errors.New("b")}, zap.NewNop())
		_, err := f.ClassifyEmail(ctx, ClassificationRequest{})
		assert.Error(t, err)
	})
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("429 Too Many Requests")))
	assert.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")))
	assert.False(t, isConnectionError(nil))
	assert.False(t, isQuotaError(errors.New("bad request")))
}

func TestRateLimited(t *testing.T) {
	inner := &countingBackend{name: "gemini"}
	limited := NewRateLimited(inner, rate.NewLimiter(rate.Inf, 1))
	_, err := limited.ClassifyEmail(context.Background(), ClassificationRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := NewRateLimited(inner, rate.NewLimiter(rate.Every(1e12), 0))
	_, err = blocked.ComposeReply(ctx, ReplyRequest{})
	assert.Error(t, err)
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "mistral", payload["model"])
		assert.Equal(t, "json", payload["format"])
		assert.Equal(t, false, payload["stream"])
		_, _ = w.Write([]byte(`{"response":"{\"label\":\"sales\"}","done":true}`))
	}))
	defer srv.Close()

	o := NewOllamaService(srv.URL, "mistral")
	text, err := o.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"label":"sales"}`, text)
	assert.Equal(t, "ollama/mistral", o.Model())
}

func TestNewBackendFromConfig(t *testing.T) {
	b, err := NewBackendFromConfig(Config{Provider: ProviderNone}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = NewBackendFromConfig(Config{Provider: ProviderAuto}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = NewBackendFromConfig(Config{Provider: ProviderGemini}, zap.NewNop())
	assert.Error(t, err)

	b, err = NewBackendFromConfig(Config{Provider: ProviderAuto, GeminiAPIKey: "k", OllamaBaseURL: "http://localhost:11434", RatePerMinute: 60}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "gemini-2.5-flash+ollama/llama3", b.Name())
}
