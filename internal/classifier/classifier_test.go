package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
	"inbox-triage/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(from, subject, body string, labels ...string) domain.InboundMessage {
	return domain.InboundMessage{
		Mailbox:    "ops@example.com",
		MessageID:  "m-1",
		Sender:     from,
		Subject:    subject,
		Snippet:    body,
		BodyText:   body,
		ReceivedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Labels:     labels,
		SourceKey:  "ops@example.com:m-1",
	}
}

// fakeModel answers with a fixed label, or fails.
type fakeModel struct {
	label string
	err   error
	calls int
	seen  ai.ClassificationRequest
}

func (f *fakeModel) Name() string { return "fake-1" }

func (f *fakeModel) ClassifyEmail(_ context.Context, req ai.ClassificationRequest) (*ai.Classification, error) {
	f.calls++
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Classification{Label: f.label, Confidence: 0.83, Reasons: []string{"Model Said So"}, Model: "fake-1"}, nil
}

func (f *fakeModel) ComposeReply(context.Context, ai.ReplyRequest) (*ai.ReplyDraft, error) {
	return nil, errors.New("not used")
}

var (
	guidepoint = msg(`"Sam Scout" <scout@guidepoint.com>`, "Paid consultation request",
		"Hi, we have a client looking for your perspective. Happy to share budget and timeline for a 30-min call.")
	dailyDigest = msg("news@dailydigest.io", "This week's top stories",
		"Here is what happened this week. unsubscribe | manage preferences")
	recruiter = msg("Jane <jane@talentfirm.io>", "Exciting job opportunity",
		"We're hiring for a consulting project lead. Would you be interested? Budget is flexible.")
)

func TestExamples(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	res := c.Classify(ctx, guidepoint, nil, nil)
	assert.Equal(t, LabelSales, res.Label)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Contains(t, res.Reasons, ReasonExplicitLead)
	assert.Contains(t, res.Reasons, TagExpertNetworkOutreach)

	res = c.Classify(ctx, dailyDigest, nil, nil)
	assert.Equal(t, LabelIgnore, res.Label)
	assert.Equal(t, 0.96, res.Confidence)
	assert.Contains(t, res.Reasons, ReasonNewsletterOrDigest)
}

func TestExplicitLead(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name    string
		msg     domain.InboundMessage
		match   bool
		wantTag string
	}{
		{
			name:    "intent with ask",
			msg:     msg("Ana <ana@acme.io>", "Sponsorship for your podcast", "Would you be interested in a sponsorship slot next quarter?"),
			match:   true,
			wantTag: "lead-sponsorship-inquiry",
		},
		{
			name:    "ask with context and no intent",
			msg:     msg("bo@startup.dev", "Quick question", "Could we book a call to go over scope of work and budget?"),
			match:   true,
			wantTag: TagDirectAskWithContext,
		},
		{
			name:    "expert network with context only",
			msg:     msg("team@alphasights.com", "Project", "Compensation is $400/hour"),
			match:   true,
			wantTag: TagExpertNetworkOutreach,
		},
		{
			name:  "expert network subdomain list sender",
			msg:   msg("newsletter@mail.glgroup.com", "Consultation call", "We'd like a quick call"),
			match: true,
		},
		{
			name:  "vendor sender",
			msg:   msg("sales@stripe.com", "Partnership opportunity", "Would you be interested in our pricing?"),
			match: false,
		},
		{
			name:  "no-reply sender",
			msg:   msg("no-reply@events.io", "Strategic partnership summit", "Book a call with our budget team"),
			match: false,
		},
		{
			name:  "hiring spam",
			msg:   recruiter,
			match: false,
		},
		{
			name:  "intent without ask or context",
			msg:   msg("ana@acme.io", "Advisory board", "We are forming an advisory board."),
			match: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := ExplicitLead(Extract(rules, tt.msg))
			require.Equal(t, tt.match, ok)
			if !ok {
				return
			}
			assert.Equal(t, LabelSales, res.Label)
			assert.Equal(t, ReasonExplicitLead, res.Reasons[0])
			if tt.wantTag != "" {
				assert.Equal(t, tt.wantTag, res.Reasons[1])
			}
			assert.LessOrEqual(t, len(res.Reasons), MaxReasons)
		})
	}
}

func TestHardIgnore(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name   string
		msg    domain.InboundMessage
		reason string
	}{
		{name: "hiring", msg: recruiter, reason: ReasonHiringSpam},
		{name: "digest", msg: dailyDigest, reason: ReasonNewsletterOrDigest},
		{
			name:   "promotional category with broadcast sender",
			msg:    msg("deals@shop.io", "Spring picks", "Fresh arrivals", "INBOX", "CATEGORY_PROMOTIONS"),
			reason: ReasonPromotionalCategory,
		},
		{
			name:   "automated sender with one automation phrase",
			msg:    msg("noreply@service.io", "Your report", "You are receiving this because you signed up."),
			reason: ReasonAutomatedSender,
		},
		{
			name: "personal mail",
			msg:  msg("friend@example.org", "Lunch?", "Are you free Thursday?"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := HardIgnore(Extract(rules, tt.msg))
			if tt.reason == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, LabelIgnore, res.Label)
			assert.Equal(t, 0.96, res.Confidence)
			assert.Equal(t, tt.reason, res.Reasons[0])
		})
	}

	res, _ := HardIgnore(Extract(rules, recruiter))
	assert.Equal(t, []string{ReasonHiringSpam}, res.Reasons)
}

func TestReceiptInUpdatesCategory(t *testing.T) {
	receipt := msg("billing@acme-saas.io", "Your receipt from Acme",
		"Thanks for your purchase. Amount paid: $49.00. You're receiving this email because you have an Acme account.",
		"INBOX", "CATEGORY_UPDATES")

	_, ignored := HardIgnore(Extract(DefaultRules(), receipt))
	assert.False(t, ignored)

	res := New(nil).Classify(context.Background(), receipt, nil, nil)
	assert.Equal(t, LabelReceipt, res.Label)
}

func TestModelOverrideAuthority(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	for _, label := range Labels {
		t.Run("lead stays sales when model says "+label, func(t *testing.T) {
			model := &fakeModel{label: label}
			res := c.Classify(ctx, guidepoint, nil, model)
			assert.Equal(t, LabelSales, res.Label)
			assert.Equal(t, 0, model.calls)
		})
		t.Run("hard ignore stays ignore when model says "+label, func(t *testing.T) {
			model := &fakeModel{label: label}
			assert.Equal(t, LabelIgnore, c.Classify(ctx, dailyDigest, nil, model).Label)
			assert.Equal(t, LabelIgnore, c.Classify(ctx, recruiter, nil, model).Label)
		})
	}
}

func TestApplyOverride(t *testing.T) {
	rules := DefaultRules()
	plain := Extract(rules, msg("ana@acme.io", "Hello", "Checking in about our order"))

	res := ApplyOverride(plain, Result{Label: LabelSales, Confidence: 0.9}, "gemini")
	assert.Equal(t, LabelIgnore, res.Label)
	assert.Equal(t, []string{"model:gemini", ReasonModelSalesDowngrade}, res.Reasons)

	res = ApplyOverride(plain, Result{Label: LabelSupport, Confidence: 1.4, Reasons: []string{"Order Question", "order question"}}, "gemini")
	assert.Equal(t, LabelSupport, res.Label)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, []string{"model:gemini", "order-question"}, res.Reasons)

	lead := Extract(rules, guidepoint)
	res = ApplyOverride(lead, Result{Label: LabelIgnore}, "gemini")
	assert.Equal(t, LabelSales, res.Label)
	assert.Equal(t, "model:gemini", res.Reasons[0])

	res = ApplyOverride(lead, Result{Label: LabelSales}, "gemini")
	assert.Equal(t, LabelSales, res.Label)
	assert.Equal(t, 0.95, res.Confidence)

	digest := Extract(rules, dailyDigest)
	res = ApplyOverride(digest, Result{Label: LabelReceipt}, "gemini")
	assert.Equal(t, LabelIgnore, res.Label)
	assert.Contains(t, res.Reasons, ReasonNewsletterOrDigest)
}

func TestModelStage(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	support := msg("Lee <lee@customer.org>", "Login broken", "I can't log in since yesterday, need help")

	model := &fakeModel{label: LabelSupport}
	policy := &policydomain.PolicySnapshot{Sections: []policydomain.Section{
		{Heading: "Lead qualification", Items: []string{"Consulting asks are leads"}},
		{Heading: "Tone", Items: []string{"Be brief"}},
	}}
	res := c.Classify(ctx, support, policy, model)
	assert.Equal(t, LabelSupport, res.Label)
	assert.Equal(t, "model", res.Stage)
	assert.Equal(t, "model:fake-1", res.Reasons[0])
	assert.Contains(t, model.seen.PolicyExcerpt, "Consulting asks are leads")
	assert.NotContains(t, model.seen.PolicyExcerpt, "Be brief")
	assert.Equal(t, Labels, model.seen.Labels)

	failing := &fakeModel{err: ai.ErrUnparseable}
	res = c.Classify(ctx, support, nil, failing)
	assert.Equal(t, LabelSupport, res.Label)
	assert.Equal(t, ReasonModelFallback, res.Reasons[0])

	res = c.Classify(ctx, support, nil, nil)
	assert.Equal(t, ReasonNoModel, res.Reasons[0])
	assert.Equal(t, "heuristic", res.Stage)
}

func TestSanitizeReasonKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("a", 63) + "é and more"
	got := sanitizeReason(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 63), got)

	assert.Equal(t, "order-question", sanitizeReason("  Order   Question "))
}

func TestHeuristic(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name       string
		msg        domain.InboundMessage
		label      string
		reason     string
		confidence float64
	}{
		{
			name:   "receipt",
			msg:    msg("billing@hosting.io", "Your invoice", "Payment received. Amount paid: $20.00"),
			label:  LabelReceipt,
			reason: "heuristic-receipt-signals",
		},
		{
			name:   "sales signals alone",
			msg:    msg("ana@acme.io", "Sponsorship", "We love your show."),
			label:  LabelIgnore,
			reason: "heuristic-sales-signals-without-explicit-lead",
		},
		{
			name:   "support",
			msg:    msg("lee@customer.org", "Export not working", "The export is broken"),
			label:  LabelSupport,
			reason: "heuristic-support-signals",
		},
		{
			name:   "generic ignore",
			msg:    msg("hello@shop.io", "Spring", "Limited time: 20% off"),
			label:  LabelIgnore,
			reason: "heuristic-ignore-signals",
		},
		{
			name:       "nothing",
			msg:        msg("friend@example.org", "Lunch?", "Thursday?"),
			label:      LabelIgnore,
			reason:     "heuristic-no-signal",
			confidence: 0.52,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Heuristic(Extract(rules, tt.msg), ReasonNoModel)
			assert.Equal(t, tt.label, res.Label)
			assert.Equal(t, []string{ReasonNoModel, tt.reason}, res.Reasons[:2])
			assert.NotEqual(t, LabelSales, res.Label)
			if tt.confidence > 0 {
				assert.Equal(t, tt.confidence, res.Confidence)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(nil)
	for _, m := range []domain.InboundMessage{guidepoint, dailyDigest, recruiter} {
		first := c.Classify(context.Background(), m, nil, nil)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, c.Classify(context.Background(), m, nil, nil))
		}
	}
}

func TestLooksLikeBusinessLead(t *testing.T) {
	assert.True(t, LooksLikeBusinessLead(guidepoint))
	assert.True(t, LooksLikeBusinessLead(msg("ana@acme.io", "Advisory board", "We are forming an advisory board.")))
	assert.False(t, LooksLikeBusinessLead(dailyDigest))
	assert.False(t, LooksLikeBusinessLead(recruiter))
	assert.False(t, LooksLikeBusinessLead(msg("friend@example.org", "Lunch?", "Thursday?")))
}

func TestFinalizeReasons(t *testing.T) {
	got := finalizeReasons("a", " a ", "", "b", "c", "d", "e")
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestPhrasePattern(t *testing.T) {
	set := NewRuleSet("t", 1,
		Rule{Tag: "fee", Phrases: []string{"fee"}},
		Rule{Tag: "off", Phrases: []string{"% off"}},
		Rule{Tag: "week", Phrases: []string{"this week's"}},
	)
	assert.Empty(t, set.Tags(normalizeText("Thanks for the feedback")))
	assert.Equal(t, []string{"fee"}, set.Tags(normalizeText("Our FEE is fixed")))
	assert.Equal(t, []string{"off"}, set.Tags(normalizeText("Save 20%   off today")))
	assert.Equal(t, []string{"week"}, set.Tags(normalizeText("This week’s picks")))
}
