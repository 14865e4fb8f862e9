package classifier

import (
	"context"

	"inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
	"inbox-triage/pkg/ai"
)

// Classifier assigns one label per message. Its output depends only on the
// message, the policy snapshot and the model handed to Classify.
type Classifier struct {
	rules    *Rules
	pipeline Pipeline
}

// New builds a classifier over rules with the default pipeline.
func New(rules *Rules) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules, pipeline: DefaultPipeline()}
}

// Classify runs the decision pipeline for msg. policy may be nil; model nil
// means no model is available.
func (c *Classifier) Classify(ctx context.Context, msg domain.InboundMessage, policy *policydomain.PolicySnapshot, model ai.Backend) Result {
	in := Input{
		Message: msg,
		Signals: Extract(c.rules, msg),
		Model:   model,
	}
	if policy != nil {
		in.PolicyExcerpt = policy.ClassificationExcerpt()
	}
	res := c.pipeline.Run(ctx, in)
	res.Confidence = clamp01(res.Confidence)
	res.Reasons = finalizeReasons(res.Reasons...)
	return res
}

// LooksLikeBusinessLead is a label-independent second opinion used when
// auditing stored activities. It accepts everything the explicit-lead rule
// accepts plus human-sent mail that states business intent without an ask.
func (c *Classifier) LooksLikeBusinessLead(msg domain.InboundMessage) bool {
	s := Extract(c.rules, msg)
	if _, ok := ExplicitLead(s); ok {
		return true
	}
	if s.hasHiring() || s.Vendor || s.AutomatedSender || s.BroadcastSender {
		return false
	}
	return s.hasIntent() && s.AutomationHits == 0
}

// LooksLikeBusinessLead checks msg against the default rules.
func LooksLikeBusinessLead(msg domain.InboundMessage) bool {
	return New(nil).LooksLikeBusinessLead(msg)
}
