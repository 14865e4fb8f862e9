package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	inboxdomain "inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
	"inbox-triage/pkg/ai"

	"go.uber.org/zap"
)

// Composition methods.
const (
	MethodTemplate = "template"
	methodModel    = "model:"
)

const maxCues = 8

// Composition is a reply proposal for a sales message.
type Composition struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Method  string   `json:"method"`
	Reasons []string `json:"reasons,omitempty"`
}

// Composer drafts replies, through the model when one is configured and the
// fixed template otherwise.
type Composer struct {
	model     ai.Backend
	signature string
	logger    *zap.Logger
}

// NewComposer creates a composer. model may be nil.
func NewComposer(model ai.Backend, signature string, logger *zap.Logger) *Composer {
	return &Composer{model: model, signature: signature, logger: logger.Named("composer")}
}

// Compose never fails: any model problem falls back to the template.
func (c *Composer) Compose(ctx context.Context, msg inboxdomain.InboundMessage, policy *policydomain.PolicySnapshot) Composition {
	if c.model == nil {
		return TemplateReply(msg, c.signature)
	}

	req := ai.ReplyRequest{
		SenderName:  msg.SenderName(),
		SenderEmail: msg.SenderEmail(),
		Subject:     msg.Subject,
		Body:        msg.BodyText,
		Signature:   c.signature,
	}
	if req.Body == "" {
		req.Body = msg.Snippet
	}
	if policy != nil {
		req.PolicyGuidance = policy.GuidanceText()
		req.Cues = policy.ResponseCues(maxCues)
	}

	out, err := c.model.ComposeReply(ctx, req)
	if err != nil {
		c.logger.Warn("model reply failed, using template",
			zap.String("source_key", msg.SourceKey),
			zap.Error(err))
		comp := TemplateReply(msg, c.signature)
		comp.Reasons = []string{"model-fallback-template"}
		return comp
	}

	name := out.Model
	if name == "" {
		name = c.model.Name()
	}
	return Composition{
		Subject: collapseReplyPrefix(out.Subject),
		Body:    out.Body,
		Method:  methodModel + name,
	}
}

// TemplateReply builds the deterministic qualification reply.
func TemplateReply(msg inboxdomain.InboundMessage, signature string) Composition {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", FirstName(msg.SenderName()))
	b.WriteString("Thanks for reaching out.")
	if snippet := strings.TrimSpace(msg.Snippet); snippet != "" {
		b.WriteString(" For reference, your note said:\n\n")
		for _, line := range strings.Split(snippet, "\n") {
			b.WriteString("> " + strings.TrimSpace(line) + "\n")
		}
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\nSo we can see whether this is a fit, could you share a little more about:\n\n")
	b.WriteString("1. The objective: what outcome are you hoping for?\n")
	b.WriteString("2. Timeline: when would this need to start, and is there a deadline?\n")
	b.WriteString("3. Budget and decision criteria: what range are you working with, and how will the decision be made?\n")
	if signature = strings.TrimSpace(signature); signature != "" {
		b.WriteString("\n" + signature + "\n")
	}
	return Composition{
		Subject: ReplySubject(msg.Subject),
		Body:    b.String(),
		Method:  MethodTemplate,
	}
}

var replyPrefixRe = regexp.MustCompile(`(?i)^\s*(re\s*:\s*)+`)

// ReplySubject prefixes subject with "Re: " exactly once.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(replyPrefixRe.ReplaceAllString(subject, ""))
	if subject == "" {
		return "Re: Your inquiry"
	}
	return "Re: " + subject
}

func collapseReplyPrefix(subject string) string {
	if replyPrefixRe.MatchString(subject) {
		return ReplySubject(subject)
	}
	return strings.TrimSpace(subject)
}

// FirstName picks a greeting name from a display name, accepting both
// "Ana Lima" and "Lima, Ana". It returns "there" when nothing usable is left.
func FirstName(displayName string) string {
	name := strings.Trim(strings.TrimSpace(displayName), `"'`)
	if i := strings.Index(name, ","); i >= 0 {
		name = strings.TrimSpace(name[i+1:])
	}
	fields := strings.Fields(name)
	if len(fields) == 0 || strings.Contains(fields[0], "@") {
		return "there"
	}
	first := fields[0]
	for _, r := range first {
		if unicode.IsLetter(r) {
			return first
		}
	}
	return "there"
}
