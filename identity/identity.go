// Package identity signs board editors in and out.
//
// Accounts are configured up front with bcrypt password hashes.
// A successful login produces an opaque session token.
// Every signed-in account is an editor; there are no roles.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when an email and password do not match an account.
var ErrBadCredentials = errors.New("identity: bad email or password")

// ErrNoSession is returned when a token does not belong to a live session.
var ErrNoSession = errors.New("identity: session expired or unknown")

// DefaultSessionTTL is how long a token stays valid after login.
const DefaultSessionTTL = 24 * time.Hour

// Provider holds accounts and the tokens of signed-in users.
// It is safe for concurrent use.
type Provider struct {
	TTL time.Duration
	now func() time.Time

	mu       sync.Mutex
	accounts map[string][]byte
	tokens   map[string]*token
}

type token struct {
	email   string
	expires time.Time
	timer   *time.Timer
	// sessions are the connections using this token.
	sessions map[*Session]struct{}
}

func NewProvider() *Provider {
	return &Provider{
		TTL:      DefaultSessionTTL,
		now:      time.Now,
		accounts: make(map[string][]byte),
		tokens:   make(map[string]*token),
	}
}

// ParseAccounts builds a provider from a comma separated list of email:secret pairs.
// A secret is either a bcrypt hash or a plaintext password that is hashed on load.
func ParseAccounts(list string) (*Provider, error) {
	p := NewProvider()
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, secret, found := strings.Cut(entry, ":")
		if !found {
			return nil, fmt.Errorf("identity.ParseAccounts: %q: expected email:password", email)
		}
		if err := p.AddAccount(email, secret); err != nil {
			return nil, fmt.Errorf("identity.ParseAccounts: %w", err)
		}
	}
	return p, nil
}

// AddAccount adds or replaces an account.
func (p *Provider) AddAccount(email, secret string) error {
	email = normalizeEmail(email)
	if email == "" || secret == "" {
		return errors.New("identity.AddAccount: empty email or password")
	}
	hash := []byte(secret)
	if _, err := bcrypt.Cost(hash); err != nil {
		hash, err = bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("identity.AddAccount: %s: %w", email, err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = hash
	return nil
}

// Login checks credentials and starts a new session.
func (p *Provider) Login(email, password string) (string, error) {
	email = normalizeEmail(email)
	p.mu.Lock()
	hash, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok {
		// spend the same time as a real comparison
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}

	id := uuid.NewString()
	ttl := p.ttl()
	p.mu.Lock()
	p.tokens[id] = &token{
		email:    email,
		expires:  p.now().Add(ttl),
		timer:    time.AfterFunc(ttl, p.Expire),
		sessions: make(map[*Session]struct{}),
	}
	p.mu.Unlock()
	slog.Info("signed in", "email", email)
	return id, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not a real password"), bcrypt.MinCost)

// Lookup returns the email signed in with tok.
func (p *Provider) Lookup(tok string) (email string, ok bool) {
	p.mu.Lock()
	t, ok, expired := p.live(tok)
	p.mu.Unlock()
	if expired {
		p.Expire()
	}
	if !ok {
		return "", false
	}
	return t.email, true
}

// live returns the unexpired token. p.mu must be held.
// Expired tokens stay in place until Expire signs their connections out.
func (p *Provider) live(tok string) (t *token, ok, expired bool) {
	t, ok = p.tokens[tok]
	if !ok {
		return nil, false, false
	}
	if !p.now().Before(t.expires) {
		return nil, false, true
	}
	return t, true, false
}

// Expire ends every token past its TTL.
// Connections using an expired token are signed out.
func (p *Provider) Expire() {
	now := p.now()
	ended := make(map[string]*token)
	p.mu.Lock()
	for id, t := range p.tokens {
		if !now.Before(t.expires) {
			delete(p.tokens, id)
			ended[id] = t
		}
	}
	p.mu.Unlock()
	for id, t := range ended {
		slog.Info("session expired", "email", t.email)
		p.end(id, t)
	}
}

// Logout ends a session.
// Every connection using the token is signed out.
func (p *Provider) Logout(tok string) {
	p.mu.Lock()
	t, ok := p.tokens[tok]
	delete(p.tokens, tok)
	p.mu.Unlock()
	if !ok {
		return
	}
	slog.Info("signed out", "email", t.email)
	p.end(tok, t)
}

// end signs out the connections of a token already removed from p.tokens.
func (p *Provider) end(tok string, t *token) {
	if t.timer != nil {
		t.timer.Stop()
	}
	p.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for s := range t.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()
	for _, s := range sessions {
		s.signedOut(tok)
	}
}

func (p *Provider) ttl() time.Duration {
	if p.TTL <= 0 {
		return DefaultSessionTTL
	}
	return p.TTL
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
