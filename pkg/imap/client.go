// Package imap fetches inbound mail from IMAP mailboxes.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	inboxdomain "inbox-triage/internal/inbox/domain"
	inboxusecase "inbox-triage/internal/inbox/usecase"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

const (
	inbox        = "INBOX"
	dialTimeout  = 30 * time.Second
	snippetRunes = 200
)

// Client reads one IMAP mailbox over TLS.
type Client struct {
	addr     string
	username string
	password string
	logger   *zap.Logger
}

func NewClient(host string, port int, username, password string, logger *zap.Logger) *Client {
	return &Client{
		addr:     fmt.Sprintf("%s:%d", host, port),
		username: username,
		password: password,
		logger:   logger.Named("imap").With(zap.String("username", username)),
	}
}

func (c *Client) connect() (*client.Client, error) {
	conn, err := client.DialTLS(c.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", c.addr, err)
	}
	conn.Timeout = dialTimeout
	if err := conn.Login(c.username, c.password); err != nil {
		_ = conn.Logout()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.username, err)
	}
	return conn, nil
}

// FetchMessages searches INBOX for messages since req.Since and returns the
// newest req.MaxResults of them, newest first. SINCE is day-granular on the
// server, so the exact bound is applied here on the internal date.
func (c *Client) FetchMessages(ctx context.Context, req inboxusecase.FetchRequest) ([]inboxdomain.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Logout() }()

	status, err := conn.Select(inbox, true)
	if err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	if !req.Since.IsZero() {
		criteria.Since = req.Since
	}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids = newestUIDs(uids, req.MaxResults)
	if len(uids) == 0 {
		return []inboxdomain.InboundMessage{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	fetched := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqset, items, fetched)
	}()

	var out []inboxdomain.InboundMessage
	for msg := range fetched {
		in := toInbound(req.Mailbox, status.UidValidity, msg, section)
		if !req.Since.IsZero() && in.ReceivedAt.Before(req.Since) {
			continue
		}
		out = append(out, in)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	c.logger.Debug("imap fetch done", zap.Int("searched", len(uids)), zap.Int("kept", len(out)))
	return out, nil
}

// newestUIDs keeps the limit highest UIDs. UIDs grow with arrival order.
func newestUIDs(uids []uint32, limit int) []uint32 {
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

// toInbound maps a fetched message. The message id combines UIDVALIDITY and
// UID so it stays unique if the server renumbers the mailbox.
func toInbound(mailbox string, uidValidity uint32, msg *imap.Message, section *imap.BodySectionName) inboxdomain.InboundMessage {
	in := inboxdomain.InboundMessage{
		Mailbox:    mailbox,
		MessageID:  fmt.Sprintf("%d-%d", uidValidity, msg.Uid),
		ReceivedAt: msg.InternalDate.UTC(),
	}
	if env := msg.Envelope; env != nil {
		in.Subject = env.Subject
		in.RFC822MessageID = env.MessageId
		if len(env.From) > 0 {
			in.Sender = formatAddress(env.From[0])
		}
		if in.ReceivedAt.IsZero() {
			in.ReceivedAt = env.Date.UTC()
		}
	}
	if body := msg.GetBody(section); body != nil {
		in.BodyText = parseBodyText(body)
	}
	in.Snippet = snippet(in.BodyText)
	return in
}

func formatAddress(addr *imap.Address) string {
	email := addr.Address()
	if addr.PersonalName == "" {
		return email
	}
	return (&mail.Address{Name: addr.PersonalName, Address: email}).String()
}

// parseBodyText returns the text/plain part of a raw message, falling back
// to text/html with tags stripped.
func parseBodyText(r io.Reader) string {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}
	if textBody != "" {
		return strings.TrimSpace(textBody)
	}
	return stripHTML(htmlBody)
}

func snippet(body string) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	runes := []rune(collapsed)
	if len(runes) <= snippetRunes {
		return collapsed
	}
	return string(runes[:snippetRunes])
}
