// Package otp issues and redeems the one-time codes that gate signup.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-accounts-api/internal/domain"
	"github.com/go-accounts-api/internal/pkg/metrics"
	"github.com/go-accounts-api/internal/pkg/validate"
	"github.com/patrickmn/go-cache"
)

// Entries are evicted from the cache a little after their logical expiry so
// that verify can still report Expired instead of NotFound.
const evictionGrace = time.Minute

// MaxAttempts is the number of wrong codes an entry absorbs before it is
// dropped and a new code must be requested.
const MaxAttempts = 5

type userLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type entry struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// Registry holds the pending codes for every email address in the process.
// All check-then-delete sequences run under mu.
type Registry struct {
	mu       sync.Mutex
	entries  *cache.Cache
	users    userLookup
	mailer   mailer
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithGenerator replaces the random code source.
func WithGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.generate = gen }
}

func NewRegistry(users userLookup, m mailer, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		entries:  cache.New(ttl+evictionGrace, ttl),
		users:    users,
		mailer:   m,
		ttl:      ttl,
		now:      time.Now,
		generate: generateCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeEmail is the key form used by the registry and the credential store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Request stores a fresh code for email, replacing any pending code or
// verified mark, and mails it. If delivery fails the code stays stored until it expires.
func (r *Registry) Request(ctx context.Context, email string) (err error) {
	defer func() { metrics.Observe("send_otp", err) }()

	email = NormalizeEmail(email)
	if err := validate.Email(email); err != nil {
		return err
	}
	_, err = r.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.ErrAlreadyRegistered
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("lookup email: %w", err)
	}

	code, err := r.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	r.mu.Lock()
	r.entries.Set(codeKey(email), &entry{code: code, expiresAt: r.now().Add(r.ttl)}, cache.DefaultExpiration)
	r.entries.Delete(verifiedKey(email))
	r.mu.Unlock()

	body := fmt.Sprintf("Your verification code is %s. It expires in %s.", code, r.ttl)
	if sendErr := r.mailer.SendEmail(ctx, email, "Your verification code", body); sendErr != nil {
		slog.Error("otp delivery failed", "email", email, "err", sendErr)
		return domain.ErrDeliveryFailed
	}
	return nil
}

// Verify consumes a pending code. On success the email is marked verified
// for the registry TTL so a later signup can redeem the mark with the same code.
func (r *Registry) Verify(email, code string) (err error) {
	defer func() { metrics.Observe("verify_otp", err) }()

	email = NormalizeEmail(email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(codeKey(email), code); err != nil {
		return err
	}
	r.entries.Set(verifiedKey(email), &entry{code: code, expiresAt: r.now().Add(r.ttl)}, cache.DefaultExpiration)
	return nil
}

// Redeem is the signup gate. A live verified mark must match code and is
// consumed; without one the pending code itself must verify.
func (r *Registry) Redeem(email, code string) error {
	email = NormalizeEmail(email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries.Get(verifiedKey(email)); ok {
		return r.check(verifiedKey(email), code)
	}
	return r.check(codeKey(email), code)
}

// check compares code against the entry under key and deletes the entry when
// it matches, expires or runs out of attempts. Callers hold mu.
func (r *Registry) check(key, code string) error {
	v, ok := r.entries.Get(key)
	if !ok {
		return domain.ErrOTPNotFound
	}
	e := v.(*entry)
	if r.now().After(e.expiresAt) {
		r.entries.Delete(key)
		return domain.ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		e.attempts++
		if e.attempts >= MaxAttempts {
			r.entries.Delete(key)
		}
		return domain.ErrOTPMismatch
	}
	r.entries.Delete(key)
	return nil
}

func codeKey(email string) string     { return "code:" + email }
func verifiedKey(email string) string { return "verified:" + email }

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
