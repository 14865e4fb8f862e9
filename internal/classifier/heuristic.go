package classifier

import "math"

// Heuristic scores a message by raw match counts. It never returns sales:
// leads need the explicit-lead rule.
func Heuristic(s Signals, origin string) Result {
	switch {
	case s.ReceiptHits > 0 && s.ReceiptHits > s.SalesHits:
		return heuristicResult(LabelReceipt, scoreConfidence(s.ReceiptHits, 0.9), origin, "heuristic-receipt-signals", s.ReceiptTags)
	case s.SalesHits > 0 && s.SupportHits == 0:
		return heuristicResult(LabelIgnore, 0.6, origin, "heuristic-sales-signals-without-explicit-lead", s.IntentTags)
	}

	ignoreScore := s.IgnoreHits + s.AutomationHits
	switch {
	case s.SupportHits > 0 && s.SupportHits >= ignoreScore:
		return heuristicResult(LabelSupport, scoreConfidence(s.SupportHits, 0.85), origin, "heuristic-support-signals", s.SupportTags)
	case ignoreScore > 0:
		tags := append(append([]string{}, s.IgnoreTags...), s.AutomationTags...)
		return heuristicResult(LabelIgnore, scoreConfidence(ignoreScore, 0.85), origin, "heuristic-ignore-signals", tags)
	}
	return heuristicResult(LabelIgnore, 0.52, origin, "heuristic-no-signal", nil)
}

func heuristicResult(label string, confidence float64, origin, reason string, tags []string) Result {
	reasons := append([]string{origin, reason}, tags...)
	return Result{Label: label, Confidence: confidence, Reasons: finalizeReasons(reasons...)}
}

func scoreConfidence(hits int, ceiling float64) float64 {
	return math.Min(0.55+0.1*float64(hits), ceiling)
}
