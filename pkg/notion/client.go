// Package notion reads page content from the Notion blocks API.
package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
	maxDepth       = 2
)

// Block is the plain-text rendering of one Notion block.
type Block struct {
	ID    string
	Type  string
	Text  string
	Depth int
}

// IsHeading reports whether the block is a heading of any level.
func (b Block) IsHeading() bool {
	return strings.HasPrefix(b.Type, "heading_")
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at another API root, e.g. a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type childrenResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

type blockHeader struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`
}

type richTextBody struct {
	RichText []struct {
		PlainText string `json:"plain_text"`
	} `json:"rich_text"`
}

// PageBlocks returns the text blocks of a page in document order, following
// nested children up to two levels deep.
func (c *Client) PageBlocks(ctx context.Context, pageID string) ([]Block, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("notion api key is not configured")
	}
	return c.children(ctx, pageID, 0)
}

func (c *Client) children(ctx context.Context, blockID string, depth int) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		page, err := c.fetchChildren(ctx, blockID, cursor)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Results {
			block, hasChildren, err := decodeBlock(raw)
			if err != nil {
				return nil, err
			}
			block.Depth = depth
			if block.Text != "" {
				blocks = append(blocks, block)
			}
			if hasChildren && depth+1 < maxDepth {
				nested, err := c.children(ctx, block.ID, depth+1)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, nested...)
			}
		}
		if !page.HasMore || page.NextCursor == "" {
			return blocks, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) fetchChildren(ctx context.Context, blockID, cursor string) (*childrenResponse, error) {
	q := url.Values{"page_size": []string{"100"}}
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	endpoint := fmt.Sprintf("%s/blocks/%s/children?%s", c.baseURL, url.PathEscape(blockID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read notion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notion API error (%d): %s", resp.StatusCode, string(body))
	}

	var out childrenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse notion response: %w", err)
	}
	return &out, nil
}

func decodeBlock(raw json.RawMessage) (Block, bool, error) {
	var header blockHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return Block{}, false, fmt.Errorf("failed to parse block: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Block{}, false, fmt.Errorf("failed to parse block: %w", err)
	}

	block := Block{ID: header.ID, Type: header.Type}
	if body, ok := fields[header.Type]; ok {
		var rt richTextBody
		// Blocks without rich_text (dividers, images) decode to empty text.
		if err := json.Unmarshal(body, &rt); err == nil {
			var parts []string
			for _, t := range rt.RichText {
				parts = append(parts, t.PlainText)
			}
			block.Text = strings.TrimSpace(strings.Join(parts, ""))
		}
	}
	return block, header.HasChildren, nil
}
