package classifier

import (
	"strings"
	"unicode/utf8"
)

const (
	downgradedSalesConfidence = 0.6
	maxReasonLen              = 64
)

// ApplyOverride reconciles a model answer with the deterministic rules.
//
// A model can never create a lead on its own: sales survives only when the
// explicit-lead rule agrees. Any other answer is checked against both rule
// stages, and a rule match replaces the model label. Receipt, support and
// ignore answers that no rule contradicts are kept as given.
func ApplyOverride(s Signals, model Result, modelName string) Result {
	modelTag := "model:" + modelName

	lead, isLead := ExplicitLead(s)
	if model.Label == LabelSales {
		if isLead {
			lead.Reasons = finalizeReasons(append([]string{modelTag}, lead.Reasons...)...)
			return lead
		}
		return Result{
			Label:      LabelIgnore,
			Confidence: downgradedSalesConfidence,
			Reasons:    finalizeReasons(modelTag, ReasonModelSalesDowngrade),
		}
	}

	if isLead {
		lead.Reasons = finalizeReasons(append([]string{modelTag}, lead.Reasons...)...)
		return lead
	}
	if ignore, ok := HardIgnore(s); ok {
		ignore.Reasons = finalizeReasons(append([]string{modelTag}, ignore.Reasons...)...)
		return ignore
	}

	reasons := []string{modelTag}
	for _, r := range model.Reasons {
		reasons = append(reasons, sanitizeReason(r))
	}
	return Result{
		Label:      model.Label,
		Confidence: clamp01(model.Confidence),
		Reasons:    finalizeReasons(reasons...),
	}
}

// sanitizeReason folds free-form model reasons into short kebab-case tags.
func sanitizeReason(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	r = strings.Join(strings.Fields(r), "-")
	if len(r) > maxReasonLen {
		cut := maxReasonLen
		for cut > 0 && !utf8.RuneStart(r[cut]) {
			cut--
		}
		r = r[:cut]
	}
	return r
}
