package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inbox-triage/internal/inbox/domain"
	"inbox-triage/internal/inbox/repository"

	"go.uber.org/zap"
)

// FetchRequest bounds one mailbox fetch.
type FetchRequest struct {
	Mailbox    string
	Query      string
	Since      time.Time
	MaxResults int
}

// MailFetcher retrieves candidate messages from one mailbox transport.
// Implementations fill every InboundMessage field except SourceKey.
type MailFetcher interface {
	FetchMessages(ctx context.Context, req FetchRequest) ([]domain.InboundMessage, error)
}

// MailboxSource pairs a mailbox with the fetcher that reads it. A nil Fetcher
// is reported as an error for that mailbox, e.g. when its credentials could
// not be resolved.
type MailboxSource struct {
	Address  string
	Provider string
	Query    string
	Fetcher  MailFetcher
	SetupErr error
}

// PollOptions controls one poll. Zero values fall back to the defaults below.
type PollOptions struct {
	Query      string
	Overlap    time.Duration
	MaxAge     time.Duration
	MaxResults int
	Now        time.Time
}

const (
	DefaultOverlap    = 120 * time.Minute
	DefaultMaxAge     = 72 * time.Hour
	DefaultMaxResults = 50
)

type Poller struct {
	cursors repository.PollStateRepository
	logger  *zap.Logger
}

func NewPoller(cursors repository.PollStateRepository, logger *zap.Logger) *Poller {
	return &Poller{cursors: cursors, logger: logger.Named("poller")}
}

// Poll reads every mailbox in order. A failing mailbox is recorded in its
// report and never stops the others.
func (p *Poller) Poll(ctx context.Context, sources []MailboxSource, opts PollOptions) (*domain.PollResult, error) {
	opts = withDefaults(opts)

	result := &domain.PollResult{
		PolledAt:   opts.Now,
		PerMailbox: make([]domain.MailboxReport, 0, len(sources)),
		Messages:   []domain.InboundMessage{},
	}
	seen := make(map[string]bool)
	freshness := opts.Now.Add(-opts.MaxAge)

	for _, src := range sources {
		report := domain.MailboxReport{
			Mailbox:  src.Address,
			Provider: src.Provider,
			Query:    opts.Query,
		}
		if strings.TrimSpace(src.Query) != "" {
			report.Query = src.Query
		}

		messages, err := p.pollMailbox(ctx, src, &report, opts)
		if err != nil {
			report.Error = err.Error()
			result.PartialFailure = true
			p.logger.Warn("mailbox poll failed",
				zap.String("mailbox", src.Address),
				zap.Error(err))
			result.PerMailbox = append(result.PerMailbox, report)
			continue
		}

		for _, msg := range messages {
			if msg.ReceivedAt.Before(freshness) {
				report.Dropped++
				continue
			}
			if seen[msg.SourceKey] {
				report.Duplicates++
				continue
			}
			seen[msg.SourceKey] = true
			report.Kept++
			result.Messages = append(result.Messages, msg)
		}

		p.logger.Info("mailbox polled",
			zap.String("mailbox", src.Address),
			zap.Time("since", report.SinceTimestamp),
			zap.Int("fetched", report.Fetched),
			zap.Int("dropped", report.Dropped),
			zap.Int("duplicates", report.Duplicates))
		result.PerMailbox = append(result.PerMailbox, report)
	}

	return result, nil
}

func (p *Poller) pollMailbox(ctx context.Context, src MailboxSource, report *domain.MailboxReport, opts PollOptions) ([]domain.InboundMessage, error) {
	if src.SetupErr != nil {
		return nil, src.SetupErr
	}
	if src.Fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %s", src.Address)
	}

	cursor, err := p.cursors.Find(ctx, src.Address)
	if err != nil {
		return nil, fmt.Errorf("read poll cursor: %w", err)
	}
	report.SinceTimestamp = SinceTimestamp(cursor, opts.Overlap, opts.Now)

	fetched, err := src.Fetcher.FetchMessages(ctx, FetchRequest{
		Mailbox:    src.Address,
		Query:      report.Query,
		Since:      report.SinceTimestamp,
		MaxResults: opts.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	report.Fetched = len(fetched)

	out := make([]domain.InboundMessage, 0, len(fetched))
	for _, msg := range fetched {
		if strings.TrimSpace(msg.MessageID) == "" {
			report.Dropped++
			continue
		}
		out = append(out, Normalize(src.Address, msg))
	}
	return out, nil
}

// SinceTimestamp computes the start of the fetch window. Without a usable
// cursor the window is the overlap before now; otherwise it reaches back by
// the overlap from the last seen message, never before the Unix epoch.
func SinceTimestamp(cursor *domain.PollCursor, overlap time.Duration, now time.Time) time.Time {
	if cursor == nil || cursor.LastMessageTimestamp.IsZero() {
		return now.Add(-overlap).UTC()
	}
	since := cursor.LastMessageTimestamp.Add(-overlap)
	if epoch := time.Unix(0, 0).UTC(); since.Before(epoch) {
		return epoch
	}
	return since.UTC()
}

// Normalize trims a fetched message and stamps its mailbox and source key.
func Normalize(mailbox string, msg domain.InboundMessage) domain.InboundMessage {
	msg.Mailbox = mailbox
	msg.MessageID = strings.TrimSpace(msg.MessageID)
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Sender = strings.TrimSpace(msg.Sender)
	msg.Snippet = collapseSpace(msg.Snippet)
	msg.BodyText = strings.TrimSpace(msg.BodyText)
	msg.ReceivedAt = msg.ReceivedAt.UTC()
	msg.SourceKey = domain.SourceKey(mailbox, msg.MessageID)
	return msg
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func withDefaults(opts PollOptions) PollOptions {
	if opts.Overlap <= 0 {
		opts.Overlap = DefaultOverlap
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	opts.Now = opts.Now.UTC()
	return opts
}
