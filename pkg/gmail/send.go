package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	draftdomain "inbox-triage/internal/draft/domain"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

// Send delivers email from this account as a plain-text message threaded
// onto the original conversation when ThreadID is set.
func (a *Account) Send(ctx context.Context, email draftdomain.OutboundEmail) error {
	raw, err := BuildRaw(email, time.Now())
	if err != nil {
		return err
	}
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: email.ThreadID,
	}
	sent, err := a.srv.Users.Messages.Send(user, msg).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	a.logger.Info("message sent", zap.String("id", sent.Id), zap.String("to", email.To))
	return nil
}

// BuildRaw renders email as an RFC 5322 message. Non-ASCII subjects are
// encoded per RFC 2047.
func BuildRaw(email draftdomain.OutboundEmail, date time.Time) ([]byte, error) {
	from := email.From
	if from == "" {
		return nil, fmt.Errorf("build message: sender is empty")
	}
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: email.To}})
	h.SetSubject(email.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	if email.InReplyTo != "" {
		h.Set("In-Reply-To", email.InReplyTo)
		h.Set("References", email.InReplyTo)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	if _, err := io.WriteString(w, email.Body); err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	return buf.Bytes(), nil
}
