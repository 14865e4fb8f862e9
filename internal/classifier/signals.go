package classifier

import (
	"strings"

	"inbox-triage/internal/inbox/domain"
)

// Signals is everything the rule stages know about a message. It is derived
// once per message and only read afterwards.
type Signals struct {
	SenderEmail  string
	SenderDomain string

	ExpertNetwork       bool
	Vendor              bool
	AutomatedSender     bool
	BroadcastSender     bool
	PromotionalCategory bool

	IntentTags     []string
	AskTags        []string
	ContextTags    []string
	HiringTags     []string
	AutomationTags []string
	AutomationHits int

	ReceiptTags []string
	ReceiptHits int
	SupportTags []string
	SupportHits int
	IgnoreTags  []string
	IgnoreHits  int
	SalesHits   int
}

// Extract computes the signals of msg against rules.
func Extract(rules *Rules, msg domain.InboundMessage) Signals {
	email := msg.SenderEmail()
	local, dom := splitAddress(email)
	text := normalizeText(strings.Join([]string{msg.Subject, msg.Snippet, msg.BodyText, msg.Sender}, "\n"))

	s := Signals{
		SenderEmail:  email,
		SenderDomain: dom,

		ExpertNetwork:       domainMatches(dom, rules.ExpertNetworkDomains),
		Vendor:              domainMatches(dom, rules.VendorDomains),
		AutomatedSender:     isAutomatedLocalPart(local, rules.AutomatedLocalParts),
		BroadcastSender:     hasToken(local, rules.BroadcastLocalParts),
		PromotionalCategory: hasLabel(msg.Labels, rules.PromotionalLabels),

		IntentTags:     rules.LeadIntent.Tags(text),
		AskTags:        rules.DirectAsk.Tags(text),
		ContextTags:    rules.CommercialContext.Tags(text),
		HiringTags:     rules.HiringSpam.Tags(text),
		AutomationTags: rules.Automation.Tags(text),
		AutomationHits: rules.Automation.Hits(text),

		ReceiptTags: rules.Receipt.Tags(text),
		ReceiptHits: rules.Receipt.Hits(text),
		SupportTags: rules.Support.Tags(text),
		SupportHits: rules.Support.Hits(text),
		IgnoreTags:  rules.GenericIgnore.Tags(text),
		IgnoreHits:  rules.GenericIgnore.Hits(text),
	}
	s.SalesHits = rules.LeadIntent.Hits(text) + rules.DirectAsk.Hits(text) + rules.CommercialContext.Hits(text)
	return s
}

func (s Signals) hasIntent() bool  { return len(s.IntentTags) > 0 }
func (s Signals) hasAsk() bool     { return len(s.AskTags) > 0 }
func (s Signals) hasContext() bool { return len(s.ContextTags) > 0 }
func (s Signals) hasHiring() bool  { return len(s.HiringTags) > 0 }

// isAutomatedLocalPart catches no-reply style senders ("no-reply",
// "do_not_reply") as well as tokenized machine names ("alerts.billing").
func isAutomatedLocalPart(local string, tokens []string) bool {
	compact := strings.NewReplacer("-", "", "_", "", ".", "").Replace(local)
	if strings.Contains(compact, "noreply") || strings.Contains(compact, "donotreply") {
		return true
	}
	return hasToken(local, tokens)
}

func hasToken(local string, tokens []string) bool {
	for _, part := range localPartTokens(local) {
		for _, t := range tokens {
			if part == t {
				return true
			}
		}
	}
	return false
}

func hasLabel(labels, wanted []string) bool {
	for _, l := range labels {
		for _, w := range wanted {
			if strings.EqualFold(l, w) {
				return true
			}
		}
	}
	return false
}
