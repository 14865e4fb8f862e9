package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	inboxdomain "inbox-triage/internal/inbox/domain"
	inboxusecase "inbox-triage/internal/inbox/usecase"

	"google.golang.org/api/gmail/v1"
)

const (
	maxPageSize   = 500
	fetchParallel = 5
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// Query appends the since bound to the configured filter. Gmail's after:
// operator takes epoch seconds.
func Query(filter string, since time.Time) string {
	q := strings.TrimSpace(filter)
	if since.IsZero() {
		return q
	}
	bound := fmt.Sprintf("after:%d", since.Unix())
	if q == "" {
		return bound
	}
	return q + " " + bound
}

// FetchMessages lists matching message ids and loads each one. Messages are
// returned in list order, newest first.
func (a *Account) FetchMessages(ctx context.Context, req inboxusecase.FetchRequest) ([]inboxdomain.InboundMessage, error) {
	ids, err := a.listIDs(ctx, Query(req.Query, req.Since), req.MaxResults)
	if err != nil {
		return nil, err
	}

	type fetched struct {
		msg inboxdomain.InboundMessage
		err error
	}
	results := make([]fetched, len(ids))
	semaphore := make(chan struct{}, fetchParallel)
	done := make(chan struct{})

	for i, id := range ids {
		go func(i int, id string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore; done <- struct{}{} }()

			full, err := a.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
			if err != nil {
				results[i] = fetched{err: fmt.Errorf("unable to get message %s: %w", id, err)}
				return
			}
			results[i] = fetched{msg: toInbound(a.address, full)}
		}(i, id)
	}
	for range ids {
		<-done
	}

	messages := make([]inboxdomain.InboundMessage, 0, len(ids))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		messages = append(messages, r.msg)
	}
	return messages, nil
}

func (a *Account) listIDs(ctx context.Context, q string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = inboxusecase.DefaultMaxResults
	}
	var ids []string
	pageToken := ""
	for len(ids) < limit {
		pageSize := limit - len(ids)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		call := a.srv.Users.Messages.List(user).MaxResults(int64(pageSize)).Context(ctx)
		if q != "" {
			call = call.Q(q)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func toInbound(mailbox string, msg *gmail.Message) inboxdomain.InboundMessage {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	return inboxdomain.InboundMessage{
		Mailbox:         mailbox,
		MessageID:       msg.Id,
		ThreadID:        msg.ThreadId,
		Subject:         getHeader(headers, "Subject"),
		Sender:          getHeader(headers, "From"),
		Snippet:         msg.Snippet,
		BodyText:        getBodyText(msg.Payload),
		ReceivedAt:      time.UnixMilli(msg.InternalDate).UTC(),
		Labels:          msg.LabelIds,
		RFC822MessageID: getHeader(headers, "Message-ID"),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getBodyText prefers the text/plain part and falls back to text/html with
// tags stripped.
func getBodyText(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	var plainBody, htmlBody string

	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part.Body != nil && part.Body.Data != "" {
			data, err := decodeBody(part.Body.Data)
			if err == nil {
				switch part.MimeType {
				case "text/plain":
					if plainBody == "" {
						plainBody = data
					}
				case "text/html":
					if htmlBody == "" {
						htmlBody = data
					}
				}
			}
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)

	if plainBody != "" {
		return strings.TrimSpace(plainBody)
	}
	return stripHTML(htmlBody)
}

func decodeBody(data string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(data)
	}
	return string(raw), err
}

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`, "&#39;", "'").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
