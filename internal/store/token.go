package store

import "sync"

// TokenStore holds the current bearer token. It implements api.TokenSource,
// so the client can be constructed against it before any login happens; the
// session store writes into it.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

func (t *TokenStore) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *TokenStore) Set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *TokenStore) Clear() {
	t.Set("")
}
