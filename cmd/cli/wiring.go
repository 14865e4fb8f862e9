package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"

	activitydomain "inbox-triage/internal/activity/domain"
	activityrepo "inbox-triage/internal/activity/repository"
	"inbox-triage/internal/classifier"
	draftdomain "inbox-triage/internal/draft/domain"
	draftrepo "inbox-triage/internal/draft/repository"
	draftusecase "inbox-triage/internal/draft/usecase"
	inboxdomain "inbox-triage/internal/inbox/domain"
	inboxrepo "inbox-triage/internal/inbox/repository"
	inboxusecase "inbox-triage/internal/inbox/usecase"
	outstanding "inbox-triage/internal/outstanding/usecase"
	policyrepo "inbox-triage/internal/policy/repository"
	policyusecase "inbox-triage/internal/policy/usecase"
	triageusecase "inbox-triage/internal/triage/usecase"
	"inbox-triage/pkg/ai"
	"inbox-triage/pkg/config"
	"inbox-triage/pkg/credential"
	"inbox-triage/pkg/database"
	"inbox-triage/pkg/fcm"
	"inbox-triage/pkg/gmail"
	"inbox-triage/pkg/imap"
	"inbox-triage/pkg/notify"
	"inbox-triage/pkg/notion"
	"inbox-triage/pkg/outlook"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the configuration and the lazily built collaborators of one
// command invocation.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	closers    []func()

	db         *gorm.DB
	creds      *credential.Resolver
	gmailSvc   *gmail.Service
	mu         sync.Mutex
	transports map[string]*transport
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// models lists every table the commands touch.
func models() []interface{} {
	return append(activitydomain.Models(), &draftdomain.Draft{}, &inboxdomain.PollCursor{})
}

// database opens and migrates the store once per invocation. A missing
// storage endpoint is fatal.
func (a *app) database() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := a.cfg.RequireStorage(); err != nil {
		return nil, err
	}
	db, err := database.Open(a.cfg.DatabaseDriver, a.cfg.DatabaseURL, a.logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, models()...); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	a.db = db
	a.onClose(func() {
		if err := database.Close(db); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	})
	return db, nil
}

func (a *app) credentials() *credential.Resolver {
	if a.creds == nil {
		a.creds = credential.NewResolver()
	}
	return a.creds
}

// policyProvider reads the knowledge base page from Notion, or a markdown
// file when SOP_SOURCE=file, and falls back to the cache file.
func (a *app) policyProvider(cacheFile string) (*policyusecase.Provider, error) {
	if cacheFile == "" {
		cacheFile = a.cfg.SOPCacheFile
	}

	var source policyrepo.Source
	switch a.cfg.SOPSource {
	case "file":
		source = policyrepo.NewMarkdownSource()
	default:
		key, err := a.credentials().Resolve(a.cfg.NotionAPIKey)
		if err != nil {
			return nil, fmt.Errorf("resolve NOTION_API_KEY: %w", err)
		}
		source = policyrepo.NewNotionSource(notion.NewClient(key))
	}
	return policyusecase.NewProvider(source, policyrepo.NewFileCacheRepository(cacheFile), a.logger), nil
}

// model returns nil when no model provider is configured.
func (a *app) model() (ai.Backend, error) {
	geminiKey, err := a.credentials().Resolve(a.cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("resolve GEMINI_API_KEY: %w", err)
	}
	return ai.NewBackendFromConfig(ai.Config{
		Provider:      ai.ProviderType(a.cfg.AIProvider),
		GeminiAPIKey:  geminiKey,
		GeminiModel:   a.cfg.GeminiModel,
		OllamaBaseURL: a.cfg.OllamaBaseURL,
		OllamaModel:   a.cfg.OllamaModel,
		RatePerMinute: a.cfg.ModelRatePerMinute,
	}, a.logger)
}

// transport is the mail client of one mailbox. sender is nil for read-only
// providers.
type transport struct {
	fetcher inboxusecase.MailFetcher
	sender  draftusecase.Sender
	gmail   *gmail.Account
}

// transport builds (once) the client for m with its credentials resolved.
func (a *app) transport(ctx context.Context, m config.Mailbox) (*transport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.transports[m.Address]; ok {
		return t, nil
	}

	var t *transport
	switch m.Provider {
	case config.ProviderGmail:
		if a.cfg.GoogleClientID == "" || a.cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required for gmail mailbox %s", m.Address)
		}
		if a.gmailSvc == nil {
			secret, err := a.credentials().Resolve(a.cfg.GoogleClientSecret)
			if err != nil {
				return nil, fmt.Errorf("resolve GOOGLE_CLIENT_SECRET: %w", err)
			}
			a.gmailSvc = gmail.NewService(a.cfg.GoogleClientID, secret, a.logger)
		}
		token, err := a.credentials().Resolve(m.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("resolve refresh token for %s: %w", m.Address, err)
		}
		account, err := a.gmailSvc.Account(ctx, m.Address, token)
		if err != nil {
			return nil, err
		}
		t = &transport{fetcher: account, sender: account, gmail: account}

	case config.ProviderIMAP:
		password, err := a.credentials().Resolve(m.IMAPPassword)
		if err != nil {
			return nil, fmt.Errorf("resolve IMAP password for %s: %w", m.Address, err)
		}
		t = &transport{fetcher: imap.NewClient(m.IMAPHost, m.IMAPPort, m.IMAPUsername, password, a.logger)}

	case config.ProviderOutlook:
		token, err := a.credentials().Resolve(m.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("resolve access token for %s: %w", m.Address, err)
		}
		client, err := outlook.New(m.Address, token, a.logger)
		if err != nil {
			return nil, err
		}
		t = &transport{fetcher: client, sender: client}

	default:
		return nil, fmt.Errorf("mailbox %s: unknown provider %q", m.Address, m.Provider)
	}

	if a.transports == nil {
		a.transports = make(map[string]*transport)
	}
	a.transports[m.Address] = t
	return t, nil
}

// mailboxSources pairs every mailbox with its fetcher. Setup failures stay
// attached to their mailbox so the poll reports them without aborting.
func (a *app) mailboxSources(ctx context.Context, mailboxes []config.Mailbox) []inboxusecase.MailboxSource {
	sources := make([]inboxusecase.MailboxSource, 0, len(mailboxes))
	for _, m := range mailboxes {
		src := inboxusecase.MailboxSource{Address: m.Address, Provider: m.Provider, Query: m.Query}
		t, err := a.transport(ctx, m)
		if err != nil {
			a.logger.Warn("mailbox setup failed", zap.String("mailbox", m.Address), zap.Error(err))
			src.SetupErr = err
		} else {
			src.Fetcher = t.fetcher
		}
		sources = append(sources, src)
	}
	return sources
}

// routeLabeler returns a labeler over the Gmail mailboxes among addresses,
// or nil when routing labels are off or none of them is Gmail.
func (a *app) routeLabeler(ctx context.Context, addresses []string) triageusecase.RouteLabeler {
	if !a.cfg.RoutingLabels {
		return nil
	}
	byAddress := make(map[string]config.Mailbox)
	for _, m := range a.cfg.ResolveMailboxes(nil) {
		byAddress[m.Address] = m
	}

	var accounts []*gmail.Account
	seen := make(map[string]bool)
	for _, addr := range addresses {
		m, ok := byAddress[addr]
		if !ok || seen[addr] || m.Provider != config.ProviderGmail {
			continue
		}
		seen[addr] = true
		t, err := a.transport(ctx, m)
		if err != nil {
			a.logger.Warn("routing labels disabled for mailbox", zap.String("mailbox", addr), zap.Error(err))
			continue
		}
		accounts = append(accounts, t.gmail)
	}
	if len(accounts) == 0 {
		return nil
	}
	return gmail.NewRouteLabeler(accounts)
}

// senderRouter sends each draft through the mailbox it was composed for.
type senderRouter struct {
	mailboxes map[string]config.Mailbox
	resolve   func(ctx context.Context, m config.Mailbox) (*transport, error)
}

func newSenderRouter(mailboxes []config.Mailbox, resolve func(ctx context.Context, m config.Mailbox) (*transport, error)) *senderRouter {
	byAddress := make(map[string]config.Mailbox, len(mailboxes))
	for _, m := range mailboxes {
		byAddress[m.Address] = m
	}
	return &senderRouter{mailboxes: byAddress, resolve: resolve}
}

func (r *senderRouter) Send(ctx context.Context, email draftdomain.OutboundEmail) error {
	addr := strings.ToLower(strings.TrimSpace(email.From))
	m, ok := r.mailboxes[addr]
	if !ok {
		return fmt.Errorf("no mailbox configured for %s", email.From)
	}
	t, err := r.resolve(ctx, m)
	if err != nil {
		return err
	}
	if t.sender == nil {
		return fmt.Errorf("mailbox %s (%s) cannot send mail", m.Address, m.Provider)
	}
	return t.sender.Send(ctx, email)
}

// notifier fans out to every configured channel. Channels that fail to
// start are skipped and reported as warnings; nil means no channel.
func (a *app) notifier(ctx context.Context) (notify.Notifier, []string) {
	var (
		channels notify.Multi
		warnings []string
	)

	if a.cfg.ChatWebhookURL != "" {
		url, err := a.credentials().Resolve(a.cfg.ChatWebhookURL)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("webhook disabled: %v", err))
		} else {
			channels = append(channels, notify.NewWebhookNotifier(url))
		}
	}

	if a.cfg.PubSubProjectID != "" && a.cfg.PubSubTopic != "" {
		ps, err := notify.NewPubSubNotifier(ctx, a.cfg.PubSubProjectID, a.cfg.PubSubTopic, a.cfg.GoogleCredentials)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("pubsub disabled: %v", err))
		} else {
			channels = append(channels, ps)
			a.onClose(func() { _ = ps.Close() })
		}
	}

	if a.cfg.FCMTopic != "" {
		client, err := fcm.NewClient(ctx, a.cfg.FCMCredentials, a.logger)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("fcm disabled: %v", err))
		} else {
			channels = append(channels, notify.NewFCMNotifier(client, a.cfg.FCMTopic))
		}
	}

	for _, w := range warnings {
		a.logger.Warn("notification channel unavailable", zap.String("detail", w))
	}
	if len(channels) == 0 {
		return nil, warnings
	}
	a.logger.Debug("notification channels ready", zap.Strings("channels", channels.Channels()))
	return channels, warnings
}

// events connects to NATS when NATS_URL is set. A connection failure is a
// warning; triage proceeds without events.
func (a *app) events() (triageusecase.EventPublisher, string) {
	if a.cfg.NATSURL == "" {
		return nil, ""
	}
	publisher, err := notify.NewEventPublisher(a.cfg.NATSURL)
	if err != nil {
		a.logger.Warn("event publishing disabled", zap.Error(err))
		return nil, fmt.Sprintf("event publishing disabled: %v", err)
	}
	a.onClose(publisher.Close)
	return publisher, ""
}

func (a *app) approvals() (*draftusecase.Approvals, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	sender := newSenderRouter(a.cfg.ResolveMailboxes(nil), a.transport)
	return draftusecase.NewApprovals(draftrepo.NewDraftRepository(db), sender, a.logger), nil
}

// processor wires process_inbound. The returned warnings describe optional
// collaborators that could not start.
func (a *app) processor() (*triageusecase.Processor, []string, error) {
	db, err := a.database()
	if err != nil {
		return nil, nil, err
	}
	model, err := a.model()
	if err != nil {
		return nil, nil, err
	}
	approvals, err := a.approvals()
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	events, warning := a.events()
	if warning != "" {
		warnings = append(warnings, warning)
	}

	drafts := draftrepo.NewDraftRepository(db)
	composer := draftusecase.NewComposer(model, a.cfg.DraftSignature, a.logger)
	return triageusecase.NewProcessor(triageusecase.Dependencies{
		Classifier: classifier.New(nil),
		Model:      model,
		Activities: activityrepo.NewActivityRepository(db),
		Contacts:   activityrepo.NewContactRepository(db),
		Accounting: activityrepo.NewAccountingRepository(db),
		JobRuns:    activityrepo.NewJobRunRepository(db),
		PollState:  inboxrepo.NewPollStateRepository(db),
		Drafter:    draftusecase.NewDrafter(drafts, composer),
		Approvals:  approvals,
		Events:     events,
		Logger:     a.logger,
	}), warnings, nil
}

func (a *app) poller() (*inboxusecase.Poller, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return inboxusecase.NewPoller(inboxrepo.NewPollStateRepository(db), a.logger), nil
}

func (a *app) sweeper(ctx context.Context) (*outstanding.Sweeper, []string, error) {
	db, err := a.database()
	if err != nil {
		return nil, nil, err
	}
	notifier, warnings := a.notifier(ctx)
	return outstanding.NewSweeper(draftrepo.NewDraftRepository(db), activityrepo.NewActivityRepository(db), notifier, a.logger), warnings, nil
}

// sweepOptions maps the configured windows onto a sweep.
func (a *app) sweepOptions() outstanding.Options {
	return outstanding.Options{
		LookbackDays:   a.cfg.LookbackDays,
		StaleHours:     a.cfg.StaleHours,
		NotifyMinCount: a.cfg.NotifyMinCount,
		AlwaysNotify:   a.cfg.NotifyAlways,
	}
}
