package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-accounts-api/internal/application/otp"
	"github.com/go-accounts-api/internal/domain"
	"github.com/go-accounts-api/internal/pkg/id"
	"github.com/go-accounts-api/internal/pkg/metrics"
	"github.com/go-accounts-api/internal/pkg/password"
	"github.com/go-accounts-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// Attribute names used in partial update maps.
const (
	fieldFullName     = "full_name"
	fieldBio          = "bio"
	fieldLocation     = "location"
	fieldWebsite      = "website"
	fieldAvatar       = "avatar"
	fieldCoverImage   = "cover_image"
	fieldPasswordHash = "password_hash"
)

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest, uploads []domain.Upload) (*AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest, uploads []domain.Upload) (*domain.User, error)
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
}

// AuthResult is returned by every operation that starts a session.
type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type otpRedeemer interface {
	Redeem(email, code string) error
}

type tokenSigner interface {
	Sign(userID string) (string, error)
}

type tokenVerifier interface {
	Verify(token string) (string, error)
}

type refreshProvider interface {
	tokenSigner
	tokenVerifier
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	repo    userStore
	otps    otpRedeemer
	access  tokenSigner
	refresh refreshProvider
	objects objectStore
	now     func() time.Time
}

// ServiceDeps wires the account service. Objects may be nil, in which case
// uploaded images are ignored. Now defaults to time.Now.
type ServiceDeps struct {
	UserRepo      userStore
	OTPs          otpRedeemer
	AccessTokens  tokenSigner
	RefreshTokens refreshProvider
	Objects       objectStore
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    deps.UserRepo,
		otps:    deps.OTPs,
		access:  deps.AccessTokens,
		refresh: deps.RefreshTokens,
		objects: deps.Objects,
		now:     now,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest, uploads []domain.Upload) (res *AuthResult, err error) {
	defer func() { metrics.Observe("signup", err) }()

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = otp.NormalizeEmail(req.Email)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.otps.Redeem(req.Email, req.OTP); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		FullName:     req.FullName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	urls, keys, err := s.store(ctx, u.UserID, uploads)
	if err != nil {
		s.discard(ctx, keys)
		return nil, err
	}
	u.Avatar = urls[domain.UploadAvatar]
	u.CoverImage = urls[domain.UploadCoverImage]

	if err := s.repo.Create(ctx, u); err != nil {
		s.discard(ctx, keys)
		return nil, err
	}
	return s.issue(u)
}

// ensureAvailable gives the stable reason codes for taken fields. The store's
// own uniqueness constraint still decides a race between concurrent signups.
func (s *service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("lookup username: %w", err)
	}
	return nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (res *AuthResult, err error) {
	defer func() { metrics.Observe("login", err) }()

	email, err := loginEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if email == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if !password.Verify(u.PasswordHash, req.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(u)
}

// loginEmail accepts only a JSON string. Anything else, null included, is a
// format error reported before any store lookup. An absent email is "".
func loginEmail(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var email *string
	if err := json.Unmarshal(raw, &email); err != nil || email == nil {
		return "", fmt.Errorf("email must be a string: %w", domain.ErrInvalidFormat)
	}
	return otp.NormalizeEmail(*email), nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	defer func() { metrics.Observe("refresh", err) }()

	userID, err := s.refresh.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", domain.ErrTokenInvalid)
	}
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateProfile changes only the fields present in req plus any uploaded images.
func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest, uploads []domain.Upload) (u *domain.User, err error) {
	defer func() { metrics.Observe("update_profile", err) }()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	// A blank name leaves the stored one in place.
	if req.FullName != nil {
		if name := strings.TrimSpace(*req.FullName); name != "" {
			updates[fieldFullName] = name
		}
	}
	if req.Bio != nil {
		updates[fieldBio] = *req.Bio
	}
	if req.Location != nil {
		updates[fieldLocation] = *req.Location
	}
	if req.Website != nil {
		updates[fieldWebsite] = strings.TrimSpace(*req.Website)
	}
	urls, _, err := s.store(ctx, userID, uploads)
	if err != nil {
		return nil, err
	}
	if v, ok := urls[domain.UploadAvatar]; ok {
		updates[fieldAvatar] = v
	}
	if v, ok := urls[domain.UploadCoverImage]; ok {
		updates[fieldCoverImage] = v
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) (err error) {
	defer func() { metrics.Observe("change_password", err) }()

	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !password.Verify(u.PasswordHash, req.OldPassword) {
		return domain.ErrIncorrectOldPassword
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: hash})
}

func (s *service) issue(u *domain.User) (*AuthResult, error) {
	access, err := s.access.Sign(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.refresh.Sign(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &AuthResult{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

// store uploads images under users/<id>/<field><ext> and returns their URLs by
// field together with every key written, including on failure. Without an
// object store uploads are dropped.
func (s *service) store(ctx context.Context, userID string, uploads []domain.Upload) (map[string]string, []string, error) {
	urls := map[string]string{}
	if len(uploads) == 0 {
		return urls, nil, nil
	}
	if s.objects == nil {
		slog.Debug("object storage disabled, ignoring uploads", "user_id", userID, "count", len(uploads))
		return urls, nil, nil
	}
	var keys []string
	for _, up := range uploads {
		if up.Field != domain.UploadAvatar && up.Field != domain.UploadCoverImage {
			continue
		}
		key := fmt.Sprintf("users/%s/%s%s", userID, up.Field, imageExt(up.Filename))
		url, err := s.objects.Upload(ctx, key, up.Reader, up.ContentType)
		if err != nil {
			slog.Warn("image upload failed", "user_id", userID, "field", up.Field, "err", err)
			return nil, keys, fmt.Errorf("upload %s: %w", up.Field, domain.ErrDependency)
		}
		keys = append(keys, key)
		urls[up.Field] = url
	}
	return urls, keys, nil
}

// discard removes objects written for a signup that did not persist.
func (s *service) discard(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			slog.Warn("orphaned image not removed", "key", key, "err", err)
		}
	}
}

// imageExt keeps the filename extension when it names a known image type.
func imageExt(filename string) string {
	switch ext := strings.ToLower(path.Ext(filename)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ""
	}
}

func hashPassword(plain string) (string, error) {
	hash, err := password.Hash(plain)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("password is too long: %w", domain.ErrInvalidFormat)
	}
	return hash, err
}
