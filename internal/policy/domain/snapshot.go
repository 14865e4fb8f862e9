package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Section is one heading of the policy document and the lines under it.
type Section struct {
	Heading string   `json:"heading"`
	Items   []string `json:"items"`
}

// PolicySnapshot is the classification and response policy used for a run.
type PolicySnapshot struct {
	SourceID   string    `json:"sourceId"`
	SourceOK   bool      `json:"sourceOk"`
	Degraded   bool      `json:"degraded"`
	PolicyHash string    `json:"policyHash"`
	Sections   []Section `json:"sections"`
	RawText    string    `json:"rawText,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// Fingerprint hashes the normalized content: case, surrounding and repeated
// whitespace, and empty lines do not change the result. Raw text only
// contributes when there are no sections.
func Fingerprint(sections []Section, rawText string) string {
	type normalized struct {
		Heading string   `json:"h"`
		Items   []string `json:"i"`
	}
	var doc []normalized
	for _, s := range sections {
		n := normalized{Heading: normalizeLine(s.Heading), Items: []string{}}
		for _, item := range s.Items {
			if line := normalizeLine(item); line != "" {
				n.Items = append(n.Items, line)
			}
		}
		if n.Heading == "" && len(n.Items) == 0 {
			continue
		}
		doc = append(doc, n)
	}
	if len(doc) == 0 {
		var lines []string
		for _, line := range strings.Split(rawText, "\n") {
			if line = normalizeLine(line); line != "" {
				lines = append(lines, line)
			}
		}
		doc = append(doc, normalized{Items: lines})
	}

	payload, _ := json.Marshal(doc)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func normalizeLine(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// GuidanceText renders the whole policy as plain text for prompts.
func (p *PolicySnapshot) GuidanceText() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range p.Sections {
		if s.Heading != "" {
			b.WriteString("## ")
			b.WriteString(s.Heading)
			b.WriteString("\n")
		}
		for _, item := range s.Items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	if b.Len() == 0 {
		return strings.TrimSpace(p.RawText)
	}
	return strings.TrimSpace(b.String())
}

var (
	classificationHeadingRe = regexp.MustCompile(`(?i)classif|lead|qualif|inbound|routing`)
	classificationLineRe    = regexp.MustCompile(`(?i)lead|consult|sponsor|classif`)
	responseCueRe           = regexp.MustCompile(`(?i)qualif|response|respond|lead|sponsor|timeline|pricing`)
)

// ClassificationExcerpt returns the policy sections relevant to labeling
// messages. When no heading matches, it falls back to individual lines that
// mention leads, consulting, sponsorship or classification.
func (p *PolicySnapshot) ClassificationExcerpt() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range p.Sections {
		if !classificationHeadingRe.MatchString(s.Heading) {
			continue
		}
		b.WriteString("## " + s.Heading + "\n")
		for _, item := range s.Items {
			b.WriteString("- " + item + "\n")
		}
	}
	if b.Len() > 0 {
		return strings.TrimSpace(b.String())
	}

	var lines []string
	for _, line := range p.allLines() {
		if classificationLineRe.MatchString(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ResponseCues returns up to limit short lines that steer reply drafting.
func (p *PolicySnapshot) ResponseCues(limit int) []string {
	if p == nil {
		return nil
	}
	var cues []string
	for _, line := range p.allLines() {
		if len(cues) >= limit {
			break
		}
		if responseCueRe.MatchString(line) {
			cues = append(cues, line)
		}
	}
	return cues
}

func (p *PolicySnapshot) allLines() []string {
	var lines []string
	for _, s := range p.Sections {
		for _, item := range s.Items {
			if item = strings.TrimSpace(item); item != "" {
				lines = append(lines, item)
			}
		}
	}
	if len(lines) == 0 {
		for _, line := range strings.Split(p.RawText, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
