package ai

import (
	"fmt"
	"time"

	"inbox-triage/pkg/gemini"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"

	// RatePerMinute caps model calls across the run; 0 disables the cap.
	RatePerMinute int
}

// NewBackendFromConfig picks the provider described by cfg. It returns nil and
// no error when models are switched off, which callers treat as "model
// unavailable".
func NewBackendFromConfig(cfg Config, logger *zap.Logger) (Backend, error) {
	var backend Backend
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		backend = NewBackend(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel))

	case ProviderOllama:
		backend = NewBackend(NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel))

	default:
		// Auto: Gemini first when a key is present with Ollama behind it,
		// Ollama alone when it is explicitly configured, otherwise no model.
		switch {
		case cfg.GeminiAPIKey != "" && cfg.OllamaBaseURL != "":
			backend = NewFallbackService(
				NewBackend(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)),
				NewBackend(NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)),
				logger)
		case cfg.GeminiAPIKey != "":
			backend = NewBackend(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel))
		case cfg.OllamaBaseURL != "":
			backend = NewBackend(NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel))
		default:
			return nil, nil
		}
	}

	if cfg.RatePerMinute > 0 {
		limit := rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		backend = NewRateLimited(backend, rate.NewLimiter(limit, 1))
	}
	return backend, nil
}
