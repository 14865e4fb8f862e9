package classifier

import (
	"context"

	"inbox-triage/internal/inbox/domain"
	"inbox-triage/pkg/ai"
)

// Stage reason tags.
const (
	ReasonExplicitLead        = "rule-explicit-business-lead"
	ReasonHiringSpam          = "hard-ignore-hiring-spam"
	ReasonNewsletterOrDigest  = "hard-ignore-newsletter-or-digest"
	ReasonPromotionalCategory = "hard-ignore-promotional-category"
	ReasonAutomatedSender     = "hard-ignore-automated-sender"
	ReasonModelSalesDowngrade = "model-sales-downgraded"
	ReasonModelFallback       = "model-fallback-heuristic"
	ReasonNoModel             = "heuristic-no-model"
)

const (
	explicitLeadConfidence = 0.95
	hardIgnoreConfidence   = 0.96
)

// Input is the per-message context handed to every stage.
type Input struct {
	Message       domain.InboundMessage
	Signals       Signals
	PolicyExcerpt string
	// Model is nil when no model backend is available.
	Model ai.Backend
}

// Stage inspects an Input and either decides the result or passes.
type Stage struct {
	Name   string
	Decide func(ctx context.Context, in Input) (Result, bool)
}

// Pipeline runs its stages in order; the first decision wins.
type Pipeline []Stage

// Run returns the first stage decision. The last stage of a well-formed
// pipeline always decides.
func (p Pipeline) Run(ctx context.Context, in Input) Result {
	for _, st := range p {
		if res, ok := st.Decide(ctx, in); ok {
			res.Stage = st.Name
			return res
		}
	}
	return Result{Label: LabelIgnore, Confidence: 0.5, Reasons: []string{"no-stage-decided"}, Stage: "none"}
}

// DefaultPipeline is explicit lead, hard ignore, model, heuristic.
func DefaultPipeline() Pipeline {
	return Pipeline{
		{Name: "explicit-lead", Decide: func(_ context.Context, in Input) (Result, bool) { return ExplicitLead(in.Signals) }},
		{Name: "hard-ignore", Decide: func(_ context.Context, in Input) (Result, bool) { return HardIgnore(in.Signals) }},
		{Name: "model", Decide: modelStage},
		{Name: "heuristic", Decide: func(_ context.Context, in Input) (Result, bool) {
			return Heuristic(in.Signals, ReasonNoModel), true
		}},
	}
}

// ExplicitLead matches messages that carry unambiguous business intent.
func ExplicitLead(s Signals) (Result, bool) {
	if s.hasHiring() {
		return Result{}, false
	}
	// Expert networks mail from list-style addresses, so only they skip the
	// sender suppression.
	if !s.ExpertNetwork && (s.AutomatedSender || s.BroadcastSender) {
		return Result{}, false
	}

	var tag string
	switch {
	case s.ExpertNetwork && (s.hasIntent() || s.hasAsk() || s.hasContext()):
		tag = TagExpertNetworkOutreach
	case !s.Vendor && s.hasIntent() && (s.hasAsk() || s.hasContext()):
		tag = s.IntentTags[0]
	case !s.Vendor && s.hasAsk() && s.hasContext():
		tag = TagDirectAskWithContext
	default:
		return Result{}, false
	}

	reasons := []string{ReasonExplicitLead, tag}
	reasons = append(reasons, s.IntentTags...)
	return Result{
		Label:      LabelSales,
		Confidence: explicitLeadConfidence,
		Reasons:    finalizeReasons(reasons...),
	}, true
}

// HardIgnore matches bulk, automated and recruiting mail. It is only
// consulted after ExplicitLead passed.
func HardIgnore(s Signals) (Result, bool) {
	var reasons []string
	switch {
	case s.hasHiring():
		// Hiring spam carries only its own tag.
		return Result{Label: LabelIgnore, Confidence: hardIgnoreConfidence, Reasons: []string{ReasonHiringSpam}}, true
	case s.AutomationHits+boolToInt(s.BroadcastSender) >= 2:
		reasons = append([]string{ReasonNewsletterOrDigest}, s.AutomationTags...)
	case s.PromotionalCategory && (s.AutomationHits > 0 || s.BroadcastSender):
		reasons = append([]string{ReasonPromotionalCategory}, s.AutomationTags...)
	case s.AutomatedSender && s.AutomationHits > 0:
		reasons = append([]string{ReasonAutomatedSender}, s.AutomationTags...)
	default:
		return Result{}, false
	}
	return Result{
		Label:      LabelIgnore,
		Confidence: hardIgnoreConfidence,
		Reasons:    finalizeReasons(reasons...),
	}, true
}

// modelStage asks the model and applies the override policy. A failed or
// unparseable answer decides through the heuristic instead, tagged so the
// fallback is visible in stored reasons.
func modelStage(ctx context.Context, in Input) (Result, bool) {
	if in.Model == nil {
		return Result{}, false
	}
	out, err := in.Model.ClassifyEmail(ctx, ai.ClassificationRequest{
		Sender:        in.Message.Sender,
		Subject:       in.Message.Subject,
		Body:          messageBody(in.Message),
		PolicyExcerpt: in.PolicyExcerpt,
		Labels:        Labels,
	})
	if err != nil || out == nil || !IsLabel(out.Label) {
		return Heuristic(in.Signals, ReasonModelFallback), true
	}
	name := out.Model
	if name == "" {
		name = in.Model.Name()
	}
	return ApplyOverride(in.Signals, Result{
		Label:      out.Label,
		Confidence: out.Confidence,
		Reasons:    out.Reasons,
	}, name), true
}

func messageBody(msg domain.InboundMessage) string {
	if msg.BodyText != "" {
		return msg.BodyText
	}
	return msg.Snippet
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
