package http

import (
	"context"
	"io"
	"time"

	"github.com/go-accounts-api/internal/domain"
)

// UserRepository is the credential store contract. Create must enforce email
// and username uniqueness itself and report ErrEmailTaken or ErrUsernameTaken.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// ObjectStore receives uploaded profile images.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Mailer delivers OTP emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// TokenProvider signs and verifies one kind of token.
type TokenProvider interface {
	Sign(userID string) (string, error)
	Verify(token string) (string, error)
	Validity() time.Duration
}
