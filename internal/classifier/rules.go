package classifier

import (
	"regexp"
	"strings"
	"unicode"
)

// Rule is one tagged group of phrases. A rule matches when any phrase occurs
// in the text as whole words.
type Rule struct {
	Tag     string
	Phrases []string
}

// RuleSet is a named, versioned table of rules. Bump Version whenever phrases
// change so stored reasons can be traced to the table that produced them.
type RuleSet struct {
	Name    string
	Version int
	Rules   []Rule

	compiled [][]*regexp.Regexp
}

// NewRuleSet compiles rules into a RuleSet. It panics on an invalid phrase,
// which can only happen with a programming error in the tables.
func NewRuleSet(name string, version int, rules ...Rule) *RuleSet {
	s := &RuleSet{Name: name, Version: version, Rules: rules}
	s.compiled = make([][]*regexp.Regexp, len(rules))
	for i, r := range rules {
		for _, p := range r.Phrases {
			s.compiled[i] = append(s.compiled[i], regexp.MustCompile(phrasePattern(p)))
		}
	}
	return s
}

// phrasePattern anchors a phrase on word boundaries where its edges are word
// characters and lets any whitespace run stand in for a single space.
func phrasePattern(phrase string) string {
	phrase = normalizeText(phrase)
	parts := strings.Split(phrase, " ")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	pattern := strings.Join(parts, `\s+`)

	first, last := rune(phrase[0]), rune(phrase[len(phrase)-1])
	if isWordRune(first) {
		pattern = `\b` + pattern
	}
	if isWordRune(last) {
		pattern += `\b`
	}
	return pattern
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tags returns the tags of matching rules in table order. text must already be
// normalized.
func (s *RuleSet) Tags(text string) []string {
	var tags []string
	for i, patterns := range s.compiled {
		for _, re := range patterns {
			if re.MatchString(text) {
				tags = append(tags, s.Rules[i].Tag)
				break
			}
		}
	}
	return tags
}

// Hits counts distinct phrases that occur in text.
func (s *RuleSet) Hits(text string) int {
	n := 0
	for _, patterns := range s.compiled {
		for _, re := range patterns {
			if re.MatchString(text) {
				n++
			}
		}
	}
	return n
}

// Rules bundles every table the classifier consults.
type Rules struct {
	LeadIntent        *RuleSet
	DirectAsk         *RuleSet
	CommercialContext *RuleSet
	HiringSpam        *RuleSet
	Automation        *RuleSet
	Receipt           *RuleSet
	Support           *RuleSet
	GenericIgnore     *RuleSet

	// Sender domains, matched exactly or as a parent domain.
	ExpertNetworkDomains []string
	VendorDomains        []string

	// Local-part tokens marking machine senders and broadcast lists.
	AutomatedLocalParts []string
	BroadcastLocalParts []string

	// Provider labels that mark promotional mail.
	PromotionalLabels []string
}

// Rule tags used in reasons.
const (
	TagExpertNetworkOutreach = "lead-expert-network-outreach"
	TagDirectAskWithContext  = "lead-direct-ask-with-commercial-context"
)

var defaultRules = newDefaultRules()

// DefaultRules returns the built-in rule tables. The value is shared and must
// not be modified.
func DefaultRules() *Rules {
	return defaultRules
}

func newDefaultRules() *Rules {
	return &Rules{
		LeadIntent: NewRuleSet("lead-intent", 3,
			Rule{Tag: "lead-consulting-inquiry", Phrases: []string{
				"consulting engagement", "consulting project", "consulting opportunity",
				"consulting inquiry", "consultation request", "paid consultation",
				"hire you as a consultant", "fractional cto", "retain your services",
			}},
			Rule{Tag: "lead-advisory-inquiry", Phrases: []string{
				"advisory role", "advisory board", "advisory engagement", "advisor role",
				"board advisor", "advisory position",
			}},
			Rule{Tag: "lead-sponsorship-inquiry", Phrases: []string{
				"sponsorship", "sponsor your", "sponsored post", "sponsored content",
				"sponsored newsletter", "sponsored episode",
			}},
			Rule{Tag: "lead-partnership-inquiry", Phrases: []string{
				"partnership opportunity", "partner with you", "strategic partnership",
				"paid partnership", "co-marketing", "joint venture", "reseller agreement",
			}},
			Rule{Tag: TagExpertNetworkOutreach, Phrases: []string{
				"expert network", "expert call", "expert consultation", "network of experts",
				"industry expert", "paid expert", "consultation call",
			}},
			Rule{Tag: "lead-collaboration-inquiry", Phrases: []string{
				"collaborate with you", "collaboration opportunity", "work together on",
				"speaking engagement", "guest speaker", "keynote", "workshop for our team",
			}},
		),
		DirectAsk: NewRuleSet("direct-ask", 2,
			Rule{Tag: "ask-book-call", Phrases: []string{
				"book a call", "schedule a call", "set up a call", "hop on a call",
				"jump on a call", "quick call", "30-min call", "30 min call",
				"30-minute call", "30 minute call", "15-min call", "15 minute call",
				"book time", "grab time",
			}},
			Rule{Tag: "ask-interest", Phrases: []string{
				"would you be interested", "would you be open to", "are you open to",
				"are you available", "let me know if you're interested",
				"let me know if you are interested", "could we chat", "your availability",
			}},
		),
		CommercialContext: NewRuleSet("commercial-context", 2,
			Rule{Tag: "context-budget", Phrases: []string{"budget", "pricing", "quote", "proposal", "retainer"}},
			Rule{Tag: "context-deliverables", Phrases: []string{"deliverables", "scope of work", "statement of work", "sow"}},
			Rule{Tag: "context-timeline", Phrases: []string{"timeline", "start date", "deadline"}},
			Rule{Tag: "context-compensation", Phrases: []string{
				"hourly rate", "your rate", "day rate", "honorarium", "fee", "compensation",
				"paid engagement",
			}},
		),
		HiringSpam: NewRuleSet("hiring-spam", 2,
			Rule{Tag: "hiring-job-pitch", Phrases: []string{
				"we are hiring", "we're hiring", "job opening", "job opportunity",
				"open position", "career opportunity", "apply now", "job description",
			}},
			Rule{Tag: "hiring-recruiter-outreach", Phrases: []string{
				"your resume", "your cv", "recruiter", "talent acquisition", "candidate profile",
				"hiring manager", "full-time role",
			}},
		),
		Automation: NewRuleSet("automation", 3,
			Rule{Tag: "automation-unsubscribe-footer", Phrases: []string{
				"unsubscribe", "manage preferences", "manage your preferences",
				"email preferences", "update your preferences", "notification settings",
			}},
			Rule{Tag: "automation-view-in-browser", Phrases: []string{
				"view in browser", "view this email in your browser", "view online",
			}},
			Rule{Tag: "automation-digest-language", Phrases: []string{
				"this week's", "top stories", "weekly digest", "daily digest", "newsletter",
				"weekly roundup", "in this issue",
			}},
			Rule{Tag: "automation-system-notice", Phrases: []string{
				"you are receiving this", "you're receiving this", "do not reply to this",
				"automated message", "this is an automated",
			}},
		),
		Receipt: NewRuleSet("receipt", 2,
			Rule{Tag: "receipt-payment-confirmation", Phrases: []string{
				"receipt", "payment received", "payment confirmation", "thank you for your payment",
				"amount paid", "order confirmation", "you paid",
			}},
			Rule{Tag: "receipt-invoice", Phrases: []string{
				"invoice", "billing statement", "amount due", "subscription renewed",
				"has been charged", "payment of",
			}},
		),
		Support: NewRuleSet("support", 2,
			Rule{Tag: "support-problem-report", Phrases: []string{
				"not working", "doesn't work", "does not work", "issue with", "problem with",
				"error", "bug", "broken", "can't log in", "cannot log in", "cannot access",
			}},
			Rule{Tag: "support-help-request", Phrases: []string{
				"need help", "help with", "support ticket", "refund", "how do i",
				"could you help", "can you help",
			}},
		),
		GenericIgnore: NewRuleSet("generic-ignore", 2,
			Rule{Tag: "ignore-promotion", Phrases: []string{
				"limited time", "% off", "discount", "sale ends", "free trial", "special offer",
				"webinar",
			}},
			Rule{Tag: "ignore-account-notice", Phrases: []string{
				"verify your email", "password reset", "security alert", "new sign-in",
				"login attempt", "confirm your account",
			}},
			Rule{Tag: "ignore-social", Phrases: []string{
				"invited you to connect", "commented on", "liked your", "mentioned you",
			}},
		),

		ExpertNetworkDomains: []string{
			"guidepoint.com", "glgroup.com", "alphasights.com", "thirdbridge.com",
			"tegus.com", "dialecticanet.com", "colemanrg.com", "atheneum.ai",
			"capvision.com", "prosapient.com",
		},
		VendorDomains: []string{
			"stripe.com", "paypal.com", "squareup.com", "shopify.com", "intuit.com",
			"hubspot.com", "salesforce.com", "mailchimp.com", "zoom.us", "atlassian.com",
			"slack.com", "notion.so", "github.com", "linkedin.com", "amazon.com",
			"google.com", "apple.com", "microsoft.com",
		},
		AutomatedLocalParts: []string{
			"notifications", "notification", "notify", "alerts", "alert", "mailer",
			"daemon", "bounce", "bounces", "automated", "robot", "system",
		},
		BroadcastLocalParts: []string{
			"news", "newsletter", "newsletters", "digest", "marketing", "updates",
			"promo", "promotions", "offers", "deals", "announcements",
		},
		// Updates also holds receipts and bills, so only Promotions counts.
		PromotionalLabels: []string{"CATEGORY_PROMOTIONS"},
	}
}
