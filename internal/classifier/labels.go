package classifier

import "strings"

const (
	LabelReceipt = "receipt"
	LabelSales   = "sales"
	LabelSupport = "support"
	LabelIgnore  = "ignore"
)

// Labels lists every label in the order models are shown them.
var Labels = []string{LabelReceipt, LabelSales, LabelSupport, LabelIgnore}

// MaxReasons caps the reasons attached to a single result.
const MaxReasons = 4

// Result is the outcome of classifying one message.
type Result struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	// Stage names the pipeline stage that produced the result.
	Stage string `json:"-"`
}

// IsLabel reports whether s is one of the four labels.
func IsLabel(s string) bool {
	for _, l := range Labels {
		if s == l {
			return true
		}
	}
	return false
}

// finalizeReasons trims, drops empties and duplicates, and caps the list while
// keeping first-seen order.
func finalizeReasons(reasons ...string) []string {
	out := make([]string, 0, MaxReasons)
	seen := make(map[string]bool, len(reasons))
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
		if len(out) == MaxReasons {
			break
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
