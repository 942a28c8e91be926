package identity

import (
	"sync"
)

// Session is the sign-in state of one connection.
// Listeners registered with OnAuthChange hear every transition.
type Session struct {
	provider *Provider

	mu        sync.Mutex
	token     string
	email     string
	nextID    int
	listeners map[int]func(bool)
}

// NewSession returns a signed-out session.
func (p *Provider) NewSession() *Session {
	return &Session{provider: p, listeners: make(map[int]func(bool))}
}

// OnAuthChange calls fn with the current state and again after every change.
func (s *Session) OnAuthChange(fn func(signedIn bool)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	signedIn := s.token != ""
	s.mu.Unlock()

	fn(signedIn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SignIn logs in with credentials.
func (s *Session) SignIn(email, password string) error {
	tok, err := s.provider.Login(email, password)
	if err != nil {
		return err
	}
	return s.Resume(tok)
}

// Resume attaches the session to an existing token, such as one from a cookie.
func (s *Session) Resume(tok string) error {
	p := s.provider
	p.mu.Lock()
	t, ok, expired := p.live(tok)
	if ok {
		t.sessions[s] = struct{}{}
	}
	p.mu.Unlock()
	if expired {
		p.Expire()
	}
	if !ok {
		return ErrNoSession
	}

	s.mu.Lock()
	old := s.token
	s.token = tok
	s.email = t.email
	s.mu.Unlock()
	if old != "" && old != tok {
		s.detach(old)
	}
	if old == "" {
		s.broadcast(true)
	}
	return nil
}

// SignOut ends the session's token.
func (s *Session) SignOut() {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok == "" {
		return
	}
	s.provider.Logout(tok)
	// Logout reaches us through signedOut, unless the token had already expired.
	s.signedOut(tok)
}

// Close detaches the session from its token without logging out.
func (s *Session) Close() {
	s.mu.Lock()
	tok := s.token
	s.listeners = make(map[int]func(bool))
	s.mu.Unlock()
	if tok != "" {
		s.detach(tok)
	}
}

func (s *Session) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Email returns the signed-in account, or an empty string.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// Token returns the session token, or an empty string.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) signedOut(tok string) {
	s.mu.Lock()
	if s.token != tok {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.email = ""
	s.mu.Unlock()
	s.broadcast(false)
}

func (s *Session) detach(tok string) {
	p := s.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tokens[tok]; ok {
		delete(t.sessions, s)
	}
}

func (s *Session) broadcast(signedIn bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(signedIn)
	}
}
