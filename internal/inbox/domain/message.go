package domain

import (
	"net/mail"
	"strings"
	"time"
)

// InboundMessage is one normalized message from a poll batch.
type InboundMessage struct {
	Mailbox    string    `json:"mailbox"`
	MessageID  string    `json:"messageId"`
	ThreadID   string    `json:"threadId,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Sender     string    `json:"sender"`
	Snippet    string    `json:"snippet"`
	BodyText   string    `json:"bodyText,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
	// Labels carries provider categories such as CATEGORY_PROMOTIONS.
	Labels []string `json:"labels,omitempty"`
	// RFC822MessageID is the Message-ID header, used for reply threading.
	RFC822MessageID string `json:"rfc822MessageId,omitempty"`
	SourceKey       string `json:"sourceKey"`
}

// SourceKey is the global dedup identity of a message.
func SourceKey(mailbox, messageID string) string {
	return mailbox + ":" + messageID
}

// SenderEmail returns the lower-cased address part of Sender.
func (m InboundMessage) SenderEmail() string {
	email, _ := ParseSender(m.Sender)
	return email
}

// SenderName returns the display name part of Sender, if any.
func (m InboundMessage) SenderName() string {
	_, name := ParseSender(m.Sender)
	return name
}

// ParseSender splits a From header value into address and display name.
// Values that are not valid RFC 5322 addresses are handled leniently.
func ParseSender(from string) (email, name string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address), strings.TrimSpace(addr.Name)
	}
	if open := strings.LastIndex(from, "<"); open >= 0 {
		if end := strings.Index(from[open:], ">"); end > 0 {
			email = strings.ToLower(strings.TrimSpace(from[open+1 : open+end]))
			name = strings.Trim(strings.TrimSpace(from[:open]), `"`)
			return email, name
		}
	}
	if strings.Contains(from, "@") {
		return strings.ToLower(from), ""
	}
	return "", from
}
