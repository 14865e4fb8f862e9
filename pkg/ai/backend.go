package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrUnparseable is returned when a model answer is not the expected JSON.
var ErrUnparseable = errors.New("unparseable model response")

// llmBackend turns a TextGenerator into a Backend by owning the prompts and
// validating the structured answers.
type llmBackend struct {
	gen TextGenerator
}

// NewBackend wraps gen with the classification and reply prompts.
func NewBackend(gen TextGenerator) Backend {
	return &llmBackend{gen: gen}
}

func (b *llmBackend) Name() string {
	return b.gen.Model()
}

func (b *llmBackend) ClassifyEmail(ctx context.Context, req ClassificationRequest) (*Classification, error) {
	text, err := b.gen.Generate(ctx, ClassificationPrompt(req))
	if err != nil {
		return nil, err
	}
	out, err := ParseClassification(text, req.Labels)
	if err != nil {
		return nil, err
	}
	out.Model = b.gen.Model()
	return out, nil
}

func (b *llmBackend) ComposeReply(ctx context.Context, req ReplyRequest) (*ReplyDraft, error) {
	text, err := b.gen.Generate(ctx, ReplyPrompt(req))
	if err != nil {
		return nil, err
	}
	out, err := ParseReply(text)
	if err != nil {
		return nil, err
	}
	out.Model = b.gen.Model()
	return out, nil
}

// ClassificationPrompt builds the labeling prompt.
func ClassificationPrompt(req ClassificationRequest) string {
	excerpt := strings.TrimSpace(req.PolicyExcerpt)
	if excerpt == "" {
		excerpt = "(no policy excerpt available)"
	}
	return fmt.Sprintf(`You triage inbound business email. Assign exactly one label from: %s.

Label meanings:
- receipt: invoices, payment confirmations, billing statements
- sales: a genuine commercial opportunity addressed to us (consulting, advisory, sponsorship, partnership, expert-network calls)
- support: someone asking us for help with a problem
- ignore: newsletters, marketing, notifications, recruiting, anything else

POLICY:
%s

EMAIL:
From: %s
Subject: %s

%s

Respond with ONLY a JSON object, no other text:
{"label": "<one label>", "confidence": <0.0-1.0>, "reasons": ["short-kebab-case-reason", ...]}`,
		strings.Join(req.Labels, ", "), excerpt, req.Sender, req.Subject, truncate(req.Body, 6000))
}

// ReplyPrompt builds the reply drafting prompt.
func ReplyPrompt(req ReplyRequest) string {
	var cues strings.Builder
	for _, c := range req.Cues {
		cues.WriteString("- " + c + "\n")
	}
	if cues.Len() == 0 {
		cues.WriteString("- (none)\n")
	}
	name := req.SenderName
	if name == "" {
		name = req.SenderEmail
	}
	return fmt.Sprintf(`You draft a first reply to an inbound business lead. A human reviews the draft before anything is sent.

POLICY GUIDANCE:
%s

KEY CUES:
%s
INBOUND EMAIL:
From: %s
Subject: %s

%s

Write a short, warm reply that thanks the sender and asks qualification questions about objective, timeline and budget or decision criteria. Sign off with:
%s

Respond with ONLY a JSON object, no other text:
{"subject": "<reply subject>", "body": "<plain text body>"}`,
		strings.TrimSpace(req.PolicyGuidance), cues.String(), name, req.Subject, truncate(req.Body, 6000), req.Signature)
}

// ParseClassification validates a model answer against the allowed labels.
func ParseClassification(text string, allowed []string) (*Classification, error) {
	var out Classification
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	out.Label = strings.ToLower(strings.TrimSpace(out.Label))
	valid := false
	for _, l := range allowed {
		if out.Label == l {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: label %q not in %v", ErrUnparseable, out.Label, allowed)
	}
	if math.IsNaN(out.Confidence) {
		return nil, fmt.Errorf("%w: confidence is NaN", ErrUnparseable)
	}
	out.Confidence = math.Max(0, math.Min(1, out.Confidence))
	return &out, nil
}

// ParseReply validates a model reply; subject and body must be non-empty.
func ParseReply(text string) (*ReplyDraft, error) {
	var out ReplyDraft
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	out.Subject = strings.TrimSpace(out.Subject)
	out.Body = strings.TrimSpace(out.Body)
	if out.Subject == "" || out.Body == "" {
		return nil, fmt.Errorf("%w: empty subject or body", ErrUnparseable)
	}
	return &out, nil
}

// extractJSONObject strips markdown fences and surrounding chatter.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
