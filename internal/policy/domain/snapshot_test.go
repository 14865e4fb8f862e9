package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := []Section{{Heading: "Lead Qualification", Items: []string{"Ask about budget", "Ask about timeline"}}}
	b := []Section{{Heading: "  lead   qualification ", Items: []string{"ask about BUDGET", "", "Ask about timeline  "}}}
	c := []Section{{Heading: "Lead Qualification", Items: []string{"Ask about budget"}}}

	assert.Equal(t, Fingerprint(a, ""), Fingerprint(b, "ignored when sections exist"))
	assert.NotEqual(t, Fingerprint(a, ""), Fingerprint(c, ""))
	assert.Len(t, Fingerprint(a, ""), 64)

	assert.Equal(t, Fingerprint(nil, "Line one\n\n line  two"), Fingerprint(nil, "line one\nLINE TWO\n"))
}

func TestClassificationExcerpt(t *testing.T) {
	p := &PolicySnapshot{Sections: []Section{
		{Heading: "Tone", Items: []string{"Be concise"}},
		{Heading: "Inbound Routing", Items: []string{"Receipts go to accounting"}},
		{Heading: "Lead classification", Items: []string{"Expert networks count as leads"}},
	}}
	excerpt := p.ClassificationExcerpt()
	assert.Contains(t, excerpt, "## Inbound Routing")
	assert.Contains(t, excerpt, "Expert networks count as leads")
	assert.NotContains(t, excerpt, "Be concise")

	fallback := &PolicySnapshot{Sections: []Section{
		{Heading: "General", Items: []string{"Be concise", "Sponsorship requests need a deck", "Consulting leads get a reply"}},
	}}
	assert.Equal(t, "Sponsorship requests need a deck\nConsulting leads get a reply", fallback.ClassificationExcerpt())

	var none *PolicySnapshot
	assert.Empty(t, none.ClassificationExcerpt())
}

func TestResponseCues(t *testing.T) {
	p := &PolicySnapshot{RawText: "Hello\nAlways confirm the timeline\nShare pricing only after a call\nQualify the lead first\nsign off warmly"}
	assert.Equal(t, []string{"Always confirm the timeline", "Share pricing only after a call"}, p.ResponseCues(2))
	assert.Len(t, p.ResponseCues(8), 3)
}

func TestGuidanceText(t *testing.T) {
	p := &PolicySnapshot{Sections: []Section{{Heading: "Tone", Items: []string{"Be concise"}}}}
	assert.Equal(t, "## Tone\n- Be concise", p.GuidanceText())
	assert.Equal(t, "raw", (&PolicySnapshot{RawText: " raw "}).GuidanceText())
}
