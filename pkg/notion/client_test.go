package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func richBlock(id, typ, text string, hasChildren bool) string {
	return fmt.Sprintf(`{"object":"block","id":%q,"type":%q,"has_children":%t,%q:{"rich_text":[{"plain_text":%q}]}}`,
		id, typ, hasChildren, typ, text)
}

func TestPageBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("Notion-Version"))

		switch {
		case r.URL.Path == "/blocks/page-1/children" && r.URL.Query().Get("start_cursor") == "":
			fmt.Fprintf(w, `{"results":[%s,%s],"has_more":true,"next_cursor":"c2"}`,
				richBlock("h1", "heading_2", "Lead qualification", false),
				richBlock("b1", "bulleted_list_item", "Ask about budget", true))
		case r.URL.Path == "/blocks/page-1/children":
			assert.Equal(t, "c2", r.URL.Query().Get("start_cursor"))
			fmt.Fprintf(w, `{"results":[%s,{"object":"block","id":"d1","type":"divider","has_children":false,"divider":{}}],"has_more":false}`,
				richBlock("p1", "paragraph", "Reply within a day", false))
		case r.URL.Path == "/blocks/b1/children":
			fmt.Fprintf(w, `{"results":[%s],"has_more":false}`,
				richBlock("n1", "bulleted_list_item", "Range is fine", false))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	blocks, err := NewClient("secret").WithBaseURL(srv.URL).PageBlocks(context.Background(), "page-1")
	require.NoError(t, err)

	require.Len(t, blocks, 4)
	assert.True(t, blocks[0].IsHeading())
	assert.Equal(t, "Lead qualification", blocks[0].Text)
	assert.Equal(t, "Ask about budget", blocks[1].Text)
	assert.Equal(t, "Range is fine", blocks[2].Text)
	assert.Equal(t, 1, blocks[2].Depth)
	assert.Equal(t, "Reply within a day", blocks[3].Text)
}

func TestPageBlocksErrors(t *testing.T) {
	_, err := NewClient("").PageBlocks(context.Background(), "x")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err = NewClient("k").WithBaseURL(srv.URL).PageBlocks(context.Background(), "x")
	assert.ErrorContains(t, err, "401")
}
