package gmail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Service builds per-mailbox Gmail clients from one OAuth client.
type Service struct {
	clientID     string
	clientSecret string
	logger       *zap.Logger
}

func NewService(clientID, clientSecret string, logger *zap.Logger) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger.Named("gmail"),
	}
}

// Account is one authorized Gmail mailbox.
type Account struct {
	address string
	srv     *gmail.Service
	logger  *zap.Logger
}

// loggingTokenSource notes every access token refresh.
type loggingTokenSource struct {
	src     oauth2.TokenSource
	current string
	address string
	logger  *zap.Logger
}

func (s *loggingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if t.AccessToken != s.current {
		s.current = t.AccessToken
		s.logger.Debug("access token refreshed",
			zap.String("mailbox", s.address),
			zap.Time("expiry", t.Expiry))
	}
	return t, nil
}

// Account authorizes address with its refresh token. The first request
// mints an access token.
func (s *Service) Account(ctx context.Context, address, refreshToken string) (*Account, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("gmail %s: refresh token is empty", address)
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(),
	}
	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}

	source := &loggingTokenSource{
		src:     config.TokenSource(ctx, token),
		address: address,
		logger:  s.logger,
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, source)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return NewAccount(address, srv, s.logger), nil
}

// NewAccount wraps an existing Gmail client.
func NewAccount(address string, srv *gmail.Service, logger *zap.Logger) *Account {
	return &Account{address: address, srv: srv, logger: logger.With(zap.String("mailbox", address))}
}

func (a *Account) Address() string {
	return a.address
}
