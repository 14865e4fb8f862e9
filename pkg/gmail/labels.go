package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

// LabelPrefix namespaces routing labels in the mailbox.
const LabelPrefix = "Triage/"

// LabelCache remembers label ids resolved during one run. Build a new cache
// per run; it is never shared across runs.
type LabelCache struct {
	mu  sync.Mutex
	ids map[string]string
}

func NewLabelCache() *LabelCache {
	return &LabelCache{ids: make(map[string]string)}
}

func (c *LabelCache) get(mailbox, name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[mailbox+"\x00"+strings.ToLower(name)]
	return id, ok
}

func (c *LabelCache) put(mailbox, name, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[mailbox+"\x00"+strings.ToLower(name)] = id
}

// EnsureLabel returns the id of the user label name, creating it when the
// mailbox does not have one yet.
func (a *Account) EnsureLabel(ctx context.Context, cache *LabelCache, name string) (string, error) {
	if id, ok := cache.get(a.address, name); ok {
		return id, nil
	}

	resp, err := a.srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve labels: %w", err)
	}
	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, name) {
			cache.put(a.address, name, l.Id)
			return l.Id, nil
		}
	}

	created, err := a.srv.Users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create label %s: %w", name, err)
	}
	a.logger.Info("routing label created", zap.String("label", name))
	cache.put(a.address, name, created.Id)
	return created.Id, nil
}

// AddLabels adds label ids to a message.
func (a *Account) AddLabels(ctx context.Context, messageID string, labelIDs ...string) error {
	_, err := a.srv.Users.Messages.Modify(user, messageID, &gmail.ModifyMessageRequest{
		AddLabelIds: labelIDs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to modify message labels: %w", err)
	}
	return nil
}

// RouteLabeler tags processed messages with Triage/<label> in the mailbox
// they came from. Mailboxes without a Gmail account are skipped.
type RouteLabeler struct {
	accounts map[string]*Account
	cache    *LabelCache
}

// NewRouteLabeler builds a labeler for one run.
func NewRouteLabeler(accounts []*Account) *RouteLabeler {
	byAddress := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		byAddress[a.address] = a
	}
	return &RouteLabeler{accounts: byAddress, cache: NewLabelCache()}
}

func (r *RouteLabeler) ApplyLabel(ctx context.Context, mailbox, messageID, label string) error {
	account, ok := r.accounts[mailbox]
	if !ok {
		return nil
	}
	id, err := account.EnsureLabel(ctx, r.cache, LabelPrefix+label)
	if err != nil {
		return err
	}
	return account.AddLabels(ctx, messageID, id)
}
