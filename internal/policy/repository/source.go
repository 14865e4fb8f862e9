package repository

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"inbox-triage/internal/policy/domain"
	"inbox-triage/pkg/notion"
)

// Document is the structured content read from a policy source.
type Document struct {
	Sections []domain.Section
	RawText  string
}

// Source loads the current policy document identified by sourceID.
type Source interface {
	Fetch(ctx context.Context, sourceID string) (*Document, error)
}

type notionSource struct {
	client *notion.Client
}

// NewNotionSource reads the policy from a Notion page; sourceID is the page id.
func NewNotionSource(client *notion.Client) Source {
	return &notionSource{client: client}
}

func (s *notionSource) Fetch(ctx context.Context, sourceID string) (*Document, error) {
	blocks, err := s.client.PageBlocks(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	var raw []string
	for _, b := range blocks {
		raw = append(raw, b.Text)
		if b.IsHeading() {
			doc.Sections = append(doc.Sections, domain.Section{Heading: b.Text, Items: []string{}})
			continue
		}
		doc.appendItem(b.Text)
	}
	doc.RawText = strings.Join(raw, "\n")
	if len(blocks) == 0 {
		return nil, fmt.Errorf("policy page %s is empty", sourceID)
	}
	return doc, nil
}

type markdownSource struct{}

// NewMarkdownSource reads the policy from a local markdown file; sourceID is
// the file path. Headings start sections and every other non-empty line
// becomes an item with its list marker removed.
func NewMarkdownSource() Source {
	return markdownSource{}
}

func (markdownSource) Fetch(_ context.Context, sourceID string) (*Document, error) {
	content, err := os.ReadFile(sourceID)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseMarkdown(string(content)), nil
}

// ParseMarkdown splits markdown text into sections.
func ParseMarkdown(text string) *Document {
	doc := &Document{RawText: text}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(line, "#"))
			doc.Sections = append(doc.Sections, domain.Section{Heading: heading, Items: []string{}})
			continue
		}
		doc.appendItem(stripListMarker(line))
	}
	return doc
}

func (d *Document) appendItem(item string) {
	if item == "" {
		return
	}
	if len(d.Sections) == 0 {
		d.Sections = append(d.Sections, domain.Section{Items: []string{}})
	}
	last := &d.Sections[len(d.Sections)-1]
	last.Items = append(last.Items, item)
}

func stripListMarker(line string) string {
	for _, marker := range []string{"- [ ] ", "- [x] ", "- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):])
		}
	}
	// Numbered items: "1. text" or "12) text".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:])
	}
	return line
}
