// Package outlook reads and sends mail through Microsoft Graph.
package outlook

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	draftdomain "inbox-triage/internal/draft/domain"
	inboxdomain "inbox-triage/internal/inbox/domain"
	inboxusecase "inbox-triage/internal/inbox/usecase"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
	"go.uber.org/zap"
)

// Graph caps $top on message lists at 1000.
const maxTop = 1000

var messageFields = []string{
	"id", "conversationId", "subject", "from", "bodyPreview", "body",
	"receivedDateTime", "internetMessageId", "categories",
}

// Client is one Outlook mailbox.
type Client struct {
	graph   *msgraphsdk.GraphServiceClient
	address string
	logger  *zap.Logger
}

// New builds a client that authenticates with a pre-issued access token.
func New(address, accessToken string, logger *zap.Logger) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("outlook %s: access token is empty", address)
	}
	graph, err := msgraphsdk.NewGraphServiceClientWithCredentials(&staticTokenCredential{token: accessToken}, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}
	return &Client{graph: graph, address: address, logger: logger.Named("outlook").With(zap.String("mailbox", address))}, nil
}

// Filter renders the receivedDateTime bound for a Graph $filter.
func Filter(since time.Time) string {
	if since.IsZero() {
		return ""
	}
	return "receivedDateTime ge " + since.UTC().Format(time.RFC3339)
}

// FetchMessages lists inbox messages received since req.Since, newest first.
// req.Query is Gmail syntax and is not applied here.
func (c *Client) FetchMessages(ctx context.Context, req inboxusecase.FetchRequest) ([]inboxdomain.InboundMessage, error) {
	top := int32(req.MaxResults)
	if top <= 0 {
		top = inboxusecase.DefaultMaxResults
	}
	if top > maxTop {
		top = maxTop
	}
	params := &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
		Top:     &top,
		Select:  messageFields,
		Orderby: []string{"receivedDateTime desc"},
	}
	if f := Filter(req.Since); f != "" {
		params.Filter = &f
	}

	result, err := c.graph.Users().ByUserId(c.address).MailFolders().ByMailFolderId("inbox").Messages().
		Get(ctx, &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{QueryParameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]inboxdomain.InboundMessage, 0, len(result.GetValue()))
	for _, msg := range result.GetValue() {
		out = append(out, toInbound(c.address, msg))
	}
	return out, nil
}

// Send delivers email through Graph sendMail and keeps a copy in Sent Items.
func (c *Client) Send(ctx context.Context, email draftdomain.OutboundEmail) error {
	if err := c.graph.Users().ByUserId(c.address).SendMail().Post(ctx, buildSendMail(email), nil); err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	c.logger.Info("message sent", zap.String("to", email.To))
	return nil
}

func buildSendMail(email draftdomain.OutboundEmail) *users.ItemSendMailPostRequestBody {
	msg := models.NewMessage()
	subject := email.Subject
	msg.SetSubject(&subject)

	body := models.NewItemBody()
	contentType := models.TEXT_BODYTYPE
	content := email.Body
	body.SetContentType(&contentType)
	body.SetContent(&content)
	msg.SetBody(body)

	address := models.NewEmailAddress()
	to := email.To
	address.SetAddress(&to)
	recipient := models.NewRecipient()
	recipient.SetEmailAddress(address)
	msg.SetToRecipients([]models.Recipientable{recipient})

	req := users.NewItemSendMailPostRequestBody()
	save := true
	req.SetMessage(msg)
	req.SetSaveToSentItems(&save)
	return req
}

func toInbound(mailbox string, m models.Messageable) inboxdomain.InboundMessage {
	in := inboxdomain.InboundMessage{
		Mailbox:         mailbox,
		MessageID:       deref(m.GetId()),
		ThreadID:        deref(m.GetConversationId()),
		Subject:         deref(m.GetSubject()),
		Snippet:         deref(m.GetBodyPreview()),
		RFC822MessageID: deref(m.GetInternetMessageId()),
		Labels:          m.GetCategories(),
	}
	if from := m.GetFrom(); from != nil {
		if ea := from.GetEmailAddress(); ea != nil {
			addr := deref(ea.GetAddress())
			if name := deref(ea.GetName()); name != "" && name != addr {
				in.Sender = fmt.Sprintf("%q <%s>", name, addr)
			} else {
				in.Sender = addr
			}
		}
	}
	if rcvd := m.GetReceivedDateTime(); rcvd != nil {
		in.ReceivedAt = rcvd.UTC()
	}
	if body := m.GetBody(); body != nil {
		text := deref(body.GetContent())
		if ct := body.GetContentType(); ct != nil && *ct == models.HTML_BODYTYPE {
			text = stripHTML(text)
		}
		in.BodyText = strings.TrimSpace(text)
	}
	return in
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`).Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// staticTokenCredential hands Graph a token obtained out of band.
type staticTokenCredential struct {
	token string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(time.Hour),
	}, nil
}
