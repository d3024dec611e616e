package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/api"
	"github.com/dreamsneakers/storeclient/internal/notify"
)

// SessionAPI is the slice of the backend client the session store drives.
type SessionAPI interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (string, error)
	GetMe(ctx context.Context) (*api.Me, error)
}

// Session tracks the authenticated user: it writes the bearer token of the
// most recent login into a TokenStore (which the client reads on every
// request) and holds the fetched identity.
type Session struct {
	api      SessionAPI
	tokens   *TokenStore
	notifier notify.Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	me      *api.Me
	loading bool
	err     string
}

func NewSession(backend SessionAPI, tokens *TokenStore, notifier notify.Notifier, logger *zap.Logger) *Session {
	return &Session{
		api:      backend,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.tokens.Token() != ""
}

// Me returns the last fetched identity, or nil. Read-only.
func (s *Session) Me() *api.Me {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.me
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Register creates an account. It does not log in; callers follow up with
// Login on success.
func (s *Session) Register(ctx context.Context, email, password string) bool {
	if err := s.api.Register(ctx, email, password); err != nil {
		msg := api.Message(err)
		s.mu.Lock()
		s.err = msg
		s.mu.Unlock()
		s.logger.Warn("register failed", zap.Error(err))
		s.notifier.Error(msg)
		return false
	}

	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	return true
}

// Login exchanges credentials for a token and installs it on success.
func (s *Session) Login(ctx context.Context, email, password string) bool {
	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		msg := api.Message(err)
		s.mu.Lock()
		s.err = msg
		s.mu.Unlock()
		s.logger.Warn("login failed", zap.Error(err))
		s.notifier.Error(msg)
		return false
	}

	s.tokens.Set(token)
	s.mu.Lock()
	s.me = nil
	s.err = ""
	s.mu.Unlock()
	return true
}

// Logout drops the token and identity. Purely local; tokens are not revoked
// server-side.
func (s *Session) Logout() {
	s.tokens.Clear()
	s.mu.Lock()
	s.me = nil
	s.mu.Unlock()
}

// FetchMe refreshes the authenticated user's identity, with the same
// coalescing contract as the cart and order reads.
func (s *Session) FetchMe(ctx context.Context, force bool) {
	s.mu.Lock()
	if s.loading && !force {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	me, err := s.api.GetMe(ctx)

	if err != nil {
		msg := api.Message(err)
		s.mu.Lock()
		s.loading = false
		s.err = msg
		s.mu.Unlock()
		s.logger.Warn("me fetch failed", zap.Error(err))
		s.notifier.Error(msg)
		return
	}

	s.mu.Lock()
	s.loading = false
	s.me = me
	s.mu.Unlock()
}
