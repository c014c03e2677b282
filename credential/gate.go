// Package credential exposes the app's login state to the sync layer as an opaque check.
// How the token was obtained is not this package's business.
package credential

import (
	"context"
	"sync"
	"time"
)

// Credential is the value sent to the server on behalf of the user.
type Credential struct {
	Token     string
	Identity  string    // user id the token belongs to
	ExpiresAt time.Time // zero = unknown, trust the server
}

// Valid reports whether the credential is usable at now. A token the server
// later rejects is still "valid" here; that case is a session expiry.
func (c Credential) Valid(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// Gate reports whether a usable credential exists.
type Gate interface {
	HasValidCredential(ctx context.Context) bool
	CurrentCredential(ctx context.Context) (Credential, bool)
}

// MemoryGate holds the current credential in memory.
type MemoryGate struct {
	mu   sync.RWMutex
	cred Credential
	now  func() time.Time
}

// NewMemoryGate returns an empty gate. now may be nil.
func NewMemoryGate(now func() time.Time) *MemoryGate {
	if now == nil {
		now = time.Now
	}
	return &MemoryGate{now: now}
}

// Set replaces the current credential, e.g. after login or token refresh.
func (g *MemoryGate) Set(c Credential) {
	g.mu.Lock()
	g.cred = c
	g.mu.Unlock()
}

// Clear forgets the credential, e.g. on logout.
func (g *MemoryGate) Clear() {
	g.Set(Credential{})
}

func (g *MemoryGate) HasValidCredential(ctx context.Context) bool {
	_, ok := g.CurrentCredential(ctx)
	return ok
}

func (g *MemoryGate) CurrentCredential(context.Context) (Credential, bool) {
	g.mu.RLock()
	c := g.cred
	g.mu.RUnlock()

	if !c.Valid(g.now()) {
		return Credential{}, false
	}
	return c, true
}
