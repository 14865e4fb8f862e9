package ai

import "context"

// ClassificationRequest is what a model sees when labeling a message.
type ClassificationRequest struct {
	Sender        string
	Subject       string
	Body          string
	PolicyExcerpt string
	Labels        []string
}

// Classification is the strict structured answer expected from a model.
type Classification struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	// Model identifies the backend that produced the answer.
	Model string `json:"-"`
}

// ReplyRequest carries the inputs for a policy-guided draft reply.
type ReplyRequest struct {
	SenderName     string
	SenderEmail    string
	Subject        string
	Body           string
	PolicyGuidance string
	Cues           []string
	Signature      string
}

// ReplyDraft is the strict structured reply expected from a model.
type ReplyDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Model   string `json:"-"`
}

// Backend is a model provider able to classify messages and draft replies.
// Implement this interface to add new providers.
type Backend interface {
	ClassifyEmail(ctx context.Context, req ClassificationRequest) (*Classification, error)
	ComposeReply(ctx context.Context, req ReplyRequest) (*ReplyDraft, error)
	Name() string
}

// TextGenerator is a raw prompt-in, text-out model endpoint.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
	ProviderNone   ProviderType = "none"
)
