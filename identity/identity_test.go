package identity

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	p, err := ParseAccounts("ana@example.com:plaintext, Bo@Example.com:" + string(hash))
	if err != nil {
		t.Fatal(err)
	}

	tt := map[string]struct {
		Email, Password string
		ExpectedErr     error
	}{
		"plaintext account":    {Email: "ana@example.com", Password: "plaintext"},
		"hashed account":       {Email: "bo@example.com", Password: "hunter2"},
		"email case ignored":   {Email: " BO@example.com ", Password: "hunter2"},
		"wrong password":       {Email: "ana@example.com", Password: "nope", ExpectedErr: ErrBadCredentials},
		"unknown account":      {Email: "cy@example.com", Password: "plaintext", ExpectedErr: ErrBadCredentials},
		"password is not hash": {Email: "bo@example.com", Password: string(hash), ExpectedErr: ErrBadCredentials},
	}
	for name, tc := range tt {
		tok, err := p.Login(tc.Email, tc.Password)
		if !errors.Is(err, tc.ExpectedErr) {
			t.Errorf("%s: expected error %v; got %v", name, tc.ExpectedErr, err)
			continue
		}
		if err != nil {
			continue
		}
		email, ok := p.Lookup(tok)
		if !ok || email != normalizeEmail(tc.Email) {
			t.Errorf("%s: expected lookup to find %s; got %q %v", name, tc.Email, email, ok)
		}
	}
}

func TestParseAccountsRejectsMalformed(t *testing.T) {
	for _, in := range []string{"nobody", "a@example.com:", ":secret"} {
		if _, err := ParseAccounts(in); err == nil {
			t.Errorf("%q: expected an error", in)
		}
	}
	p, err := ParseAccounts("")
	if err != nil {
		t.Errorf("empty list: expected nil error; got %v", err)
	}
	if _, err := p.Login("a@example.com", "x"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("empty list: expected no accounts")
	}
}

func TestTokenExpires(t *testing.T) {
	p := NewProvider()
	p.TTL = time.Minute
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	if err := p.AddAccount("ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	tok, err := p.Login("ana@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Lookup(tok); !ok {
		t.Fatalf("expected fresh token to be valid")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := p.Lookup(tok); ok {
		t.Errorf("expected token to expire")
	}
	if err := p.NewSession().Resume(tok); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession; got %v", err)
	}
}

func TestExpiredTokenSignsOutConnections(t *testing.T) {
	tt := map[string]func(p *Provider, tok string){
		"sweep":  func(p *Provider, tok string) { p.Expire() },
		"lookup": func(p *Provider, tok string) { p.Lookup(tok) },
	}
	for name, expire := range tt {
		p := NewProvider()
		p.TTL = time.Minute
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		p.now = func() time.Time { return now }
		if err := p.AddAccount("ana@example.com", "pw"); err != nil {
			t.Fatal(err)
		}
		s := p.NewSession()
		var last bool
		s.OnAuthChange(func(signedIn bool) { last = signedIn })
		if err := s.SignIn("ana@example.com", "pw"); err != nil {
			t.Fatal(err)
		}
		tok := s.Token()

		p.Expire()
		if !s.SignedIn() || !last {
			t.Errorf("%s: expected session to survive a sweep before the ttl", name)
		}

		now = now.Add(time.Hour)
		expire(p, tok)
		if s.SignedIn() {
			t.Errorf("%s: expected session to be signed out", name)
		}
		if last {
			t.Errorf("%s: expected last auth change to be false", name)
		}
		if _, ok := p.Lookup(tok); ok {
			t.Errorf("%s: expected token to be gone", name)
		}
	}
}

func TestSessionAuthChanges(t *testing.T) {
	p := NewProvider()
	if err := p.AddAccount("ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	s := p.NewSession()
	var seen []bool
	cancel := s.OnAuthChange(func(signedIn bool) { seen = append(seen, signedIn) })

	if err := s.SignIn("ana@example.com", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("expected ErrBadCredentials; got %v", err)
	}
	if err := s.SignIn("ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	if !s.SignedIn() || s.Email() != "ana@example.com" {
		t.Errorf("expected signed in as ana; got %v %q", s.SignedIn(), s.Email())
	}
	s.SignOut()
	s.SignOut()
	cancel()
	if err := s.SignIn("ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	expected := []bool{false, true, false}
	if len(seen) != len(expected) {
		t.Fatalf("expected %v; got %v", expected, seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Errorf("change %d: expected %v; got %v", i, expected[i], seen[i])
		}
	}
}

func TestLogoutSignsOutEveryConnection(t *testing.T) {
	p := NewProvider()
	if err := p.AddAccount("ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	tok, err := p.Login("ana@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	a, b := p.NewSession(), p.NewSession()
	for _, s := range []*Session{a, b} {
		if err := s.Resume(tok); err != nil {
			t.Fatal(err)
		}
	}
	var signedOut int
	b.OnAuthChange(func(signedIn bool) {
		if !signedIn {
			signedOut++
		}
	})

	p.Logout(tok)
	if a.SignedIn() || b.SignedIn() {
		t.Errorf("expected both sessions signed out")
	}
	if signedOut != 1 {
		t.Errorf("expected one sign out notification; got %d", signedOut)
	}
	if _, ok := p.Lookup(tok); ok {
		t.Errorf("expected token to be gone")
	}
}
