package user

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-accounts-api/internal/domain"
	"github.com/go-accounts-api/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockOTPs struct{ mock.Mock }

func (m *mockOTPs) Redeem(email, code string) error {
	return m.Called(email, code).Error(0)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) Sign(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}
func (m *mockTokens) Verify(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type mockObjects struct{ mock.Mock }

func (m *mockObjects) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockObjects) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- helpers ---

type fixture struct {
	users   *mockUserStore
	otps    *mockOTPs
	access  *mockTokens
	refresh *mockTokens
	objects *mockObjects
	svc     Service
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(withObjects bool) *fixture {
	f := &fixture{
		users:   &mockUserStore{},
		otps:    &mockOTPs{},
		access:  &mockTokens{},
		refresh: &mockTokens{},
		objects: &mockObjects{},
	}
	deps := ServiceDeps{
		UserRepo:      f.users,
		OTPs:          f.otps,
		AccessTokens:  f.access,
		RefreshTokens: f.refresh,
		Now:           func() time.Time { return fixedNow },
	}
	if withObjects {
		deps.Objects = f.objects
	}
	f.svc = NewService(deps)
	return f
}

func (f *fixture) expectTokens() {
	f.access.On("Sign", mock.Anything).Return("access-token", nil)
	f.refresh.On("Sign", mock.Anything).Return("refresh-token", nil)
}

func signupReq() domain.SignupRequest {
	return domain.SignupRequest{
		FullName: "Alice Smith",
		Email:    "Alice@Example.com",
		Username: "Alice",
		Password: "password123",
		OTP:      "123456",
	}
}

func hashed(t *testing.T, plain string) string {
	t.Helper()
	h, err := password.Hash(plain)
	require.NoError(t, err)
	return h
}

// --- Signup ---

func TestSignup_Success(t *testing.T) {
	f := newFixture(false)
	f.otps.On("Redeem", "alice@example.com", "123456").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, "alice").Return(nil, domain.ErrUserNotFound)
	var stored *domain.User
	f.users.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.User) }).
		Return(nil)
	f.expectTokens()

	res, err := f.svc.Signup(context.Background(), signupReq(), nil)
	require.NoError(t, err)
	assert.Equal(t, "access-token", res.AccessToken)
	assert.Equal(t, "refresh-token", res.RefreshToken)

	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.UserID)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, fixedNow, stored.CreatedAt)
	assert.Empty(t, stored.Bio)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.True(t, password.Verify(stored.PasswordHash, "password123"))

	body, err := json.Marshal(res.User)
	require.NoError(t, err)
	assert.NotContains(t, string(body), stored.PasswordHash)
	assert.NotContains(t, string(body), "password")
}

func TestSignup_MissingField(t *testing.T) {
	f := newFixture(false)
	req := signupReq()
	req.Username = "   "

	_, err := f.svc.Signup(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrMissingField)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.otps.AssertNumberOfCalls(t, "Redeem", 0)
}

func TestSignup_InvalidEmail(t *testing.T) {
	f := newFixture(false)
	req := signupReq()
	req.Email = "not-an-email"
	_, err := f.svc.Signup(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestSignup_OTPFailurePropagates(t *testing.T) {
	f := newFixture(false)
	f.otps.On("Redeem", "alice@example.com", "123456").Return(domain.ErrOTPExpired)

	_, err := f.svc.Signup(context.Background(), signupReq(), nil)
	assert.ErrorIs(t, err, domain.ErrOTPExpired)
	f.users.AssertNumberOfCalls(t, "GetByEmail", 0)
}

func TestSignup_EmailTakenIgnoresCase(t *testing.T) {
	f := newFixture(false)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(&domain.User{UserID: "u0"}, nil)

	req := signupReq()
	req.Email = "ALICE@example.COM"
	_, err := f.svc.Signup(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	f.users.AssertNumberOfCalls(t, "GetByUsername", 0)
	f.users.AssertNumberOfCalls(t, "Create", 0)
}

func TestSignup_UsernameTaken(t *testing.T) {
	f := newFixture(false)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{UserID: "u0"}, nil)

	_, err := f.svc.Signup(context.Background(), signupReq(), nil)
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestSignup_StoreConstraintWins(t *testing.T) {
	f := newFixture(false)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(domain.ErrEmailTaken)

	_, err := f.svc.Signup(context.Background(), signupReq(), nil)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	f.access.AssertNumberOfCalls(t, "Sign", 0)
}

func TestSignup_UploadsImages(t *testing.T) {
	f := newFixture(true)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.objects.On("Upload", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "users/") && strings.HasSuffix(k, "/avatar")
	}), mock.Anything, "image/png").Return("s3://b/users/x/avatar", nil)
	var stored *domain.User
	f.users.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.User) }).
		Return(nil)
	f.expectTokens()

	uploads := []domain.Upload{{Field: domain.UploadAvatar, ContentType: "image/png", Reader: strings.NewReader("png")}}
	_, err := f.svc.Signup(context.Background(), signupReq(), uploads)
	require.NoError(t, err)
	assert.Equal(t, "s3://b/users/x/avatar", stored.Avatar)
	assert.Empty(t, stored.CoverImage)
}

func TestSignup_UploadFailureIsDependencyError(t *testing.T) {
	f := newFixture(true)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))

	uploads := []domain.Upload{{Field: domain.UploadCoverImage, Reader: strings.NewReader("x")}}
	_, err := f.svc.Signup(context.Background(), signupReq(), uploads)
	assert.ErrorIs(t, err, domain.ErrDependency)
	f.users.AssertNumberOfCalls(t, "Create", 0)
	f.objects.AssertNumberOfCalls(t, "Delete", 0)
}

func TestSignup_CreateFailureRemovesUploads(t *testing.T) {
	f := newFixture(true)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	var keys []string
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { keys = append(keys, args.String(1)) }).
		Return("s3://b/k", nil)
	f.objects.On("Delete", mock.Anything, mock.Anything).Return(nil)
	f.users.On("Create", mock.Anything, mock.Anything).Return(domain.ErrUsernameTaken)

	uploads := []domain.Upload{
		{Field: domain.UploadAvatar, Filename: "me.PNG", Reader: strings.NewReader("png")},
		{Field: domain.UploadCoverImage, Filename: "cover.jpg", Reader: strings.NewReader("jpg")},
	}
	_, err := f.svc.Signup(context.Background(), signupReq(), uploads)
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	require.Len(t, keys, 2)
	assert.True(t, strings.HasSuffix(keys[0], "/avatar.png"), keys[0])
	assert.True(t, strings.HasSuffix(keys[1], "/coverImage.jpg"), keys[1])
	for _, k := range keys {
		f.objects.AssertCalled(t, "Delete", mock.Anything, k)
	}
	f.access.AssertNumberOfCalls(t, "Sign", 0)
}

func TestSignup_PartialUploadFailureRemovesWrittenObjects(t *testing.T) {
	f := newFixture(true)
	f.otps.On("Redeem", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.users.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)
	f.objects.On("Upload", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasSuffix(k, "/avatar")
	}), mock.Anything, mock.Anything).Return("s3://b/avatar", nil)
	f.objects.On("Upload", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasSuffix(k, "/coverImage")
	}), mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))
	f.objects.On("Delete", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasSuffix(k, "/avatar")
	})).Return(nil).Once()

	uploads := []domain.Upload{
		{Field: domain.UploadAvatar, Filename: "notes.txt", Reader: strings.NewReader("a")},
		{Field: domain.UploadCoverImage, Reader: strings.NewReader("c")},
	}
	_, err := f.svc.Signup(context.Background(), signupReq(), uploads)
	assert.ErrorIs(t, err, domain.ErrDependency)
	f.objects.AssertExpectations(t)
	f.users.AssertNumberOfCalls(t, "Create", 0)
}

// --- Login ---

func loginReq(email, pass string) domain.LoginRequest {
	return domain.LoginRequest{Email: json.RawMessage(email), Password: pass}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(false)
	u := &domain.User{UserID: "u1", Email: "a@x.com", PasswordHash: hashed(t, "secret")}
	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(u, nil)
	f.expectTokens()

	res, err := f.svc.Login(context.Background(), loginReq(`"A@X.com"`, "secret"))
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.UserID)
	f.access.AssertCalled(t, "Sign", "u1")
}

func TestLogin_WrongPasswordAndUnknownUserLookTheSame(t *testing.T) {
	f := newFixture(false)
	u := &domain.User{UserID: "u1", Email: "a@x.com", PasswordHash: hashed(t, "secret")}
	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(u, nil)
	f.users.On("GetByEmail", mock.Anything, "b@x.com").Return(nil, domain.ErrUserNotFound)

	_, wrongPass := f.svc.Login(context.Background(), loginReq(`"a@x.com"`, "wrong"))
	_, noUser := f.svc.Login(context.Background(), loginReq(`"b@x.com"`, "wrong"))
	assert.ErrorIs(t, wrongPass, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, noUser, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), noUser.Error())
}

func TestLogin_NonStringEmail(t *testing.T) {
	f := newFixture(false)
	for _, raw := range []string{`42`, `{"a":1}`, `["a@x.com"]`, `true`} {
		_, err := f.svc.Login(context.Background(), loginReq(raw, "secret"))
		assert.ErrorIs(t, err, domain.ErrInvalidFormat, raw)
	}
	f.users.AssertNumberOfCalls(t, "GetByEmail", 0)
}

func TestLogin_EmptyFieldsAreInvalidCredentials(t *testing.T) {
	f := newFixture(false)
	_, err := f.svc.Login(context.Background(), domain.LoginRequest{Password: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), loginReq(`"  "`, "x"))
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), loginReq(`"a@x.com"`, ""))
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	f.users.AssertNumberOfCalls(t, "GetByEmail", 0)
}

func TestLogin_NullEmailIsInvalidFormat(t *testing.T) {
	f := newFixture(false)
	_, err := f.svc.Login(context.Background(), loginReq(`null`, "x"))
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestLogin_StoreFailureIsNotCredentialsError(t *testing.T) {
	f := newFixture(false)
	f.users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("timeout"))
	_, err := f.svc.Login(context.Background(), loginReq(`"a@x.com"`, "x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

// --- Refresh ---

func TestRefresh_ReissuesTokens(t *testing.T) {
	f := newFixture(false)
	f.refresh.On("Verify", "old-refresh").Return("u1", nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	f.expectTokens()

	res, err := f.svc.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "access-token", res.AccessToken)
	assert.Equal(t, "refresh-token", res.RefreshToken)
}

func TestRefresh_InvalidToken(t *testing.T) {
	f := newFixture(false)
	f.refresh.On("Verify", "bad").Return("", domain.ErrTokenExpired)
	_, err := f.svc.Refresh(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestRefresh_DeletedUser(t *testing.T) {
	f := newFixture(false)
	f.refresh.On("Verify", "tok").Return("gone", nil)
	f.users.On("Get", mock.Anything, "gone").Return(nil, domain.ErrUserNotFound)
	_, err := f.svc.Refresh(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

// --- Profile ---

func TestUpdateProfile_OnlyPresentFields(t *testing.T) {
	f := newFixture(false)
	bio := "hello"
	website := " https://alice.dev "
	f.users.On("Update", mock.Anything, "u1", map[string]interface{}{
		fieldBio:     "hello",
		fieldWebsite: "https://alice.dev",
	}).Return(nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Bio: "hello"}, nil)

	u, err := f.svc.UpdateProfile(context.Background(), "u1", domain.UpdateProfileRequest{Bio: &bio, Website: &website}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", u.Bio)
	f.users.AssertExpectations(t)
}

func TestUpdateProfile_EmptyRequestReturnsCurrent(t *testing.T) {
	f := newFixture(false)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	_, err := f.svc.UpdateProfile(context.Background(), "u1", domain.UpdateProfileRequest{}, nil)
	require.NoError(t, err)
	f.users.AssertNumberOfCalls(t, "Update", 0)
}

func TestUpdateProfile_BlankFullNameKeepsStoredName(t *testing.T) {
	f := newFixture(false)
	f.users.On("Update", mock.Anything, "u1", map[string]interface{}{fieldBio: "hi"}).Return(nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", FullName: "Alice", Bio: "hi"}, nil)

	blank, bio := "  ", "hi"
	u, err := f.svc.UpdateProfile(context.Background(), "u1", domain.UpdateProfileRequest{FullName: &blank, Bio: &bio}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FullName)
	f.users.AssertExpectations(t)
}

func TestUpdateProfile_CoverImage(t *testing.T) {
	f := newFixture(true)
	f.objects.On("Upload", mock.Anything, "users/u1/coverImage", mock.Anything, "image/jpeg").Return("s3://b/users/u1/coverImage", nil)
	f.users.On("Update", mock.Anything, "u1", map[string]interface{}{fieldCoverImage: "s3://b/users/u1/coverImage"}).Return(nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", CoverImage: "s3://b/users/u1/coverImage"}, nil)

	uploads := []domain.Upload{{Field: domain.UploadCoverImage, ContentType: "image/jpeg", Reader: strings.NewReader("jpg")}}
	u, err := f.svc.UpdateProfile(context.Background(), "u1", domain.UpdateProfileRequest{}, uploads)
	require.NoError(t, err)
	assert.Equal(t, "s3://b/users/u1/coverImage", u.CoverImage)
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	f := newFixture(false)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PasswordHash: hashed(t, "old")}, nil)
	var newHash string
	f.users.On("Update", mock.Anything, "u1", mock.Anything).
		Run(func(args mock.Arguments) {
			newHash = args.Get(2).(map[string]interface{})[fieldPasswordHash].(string)
		}).
		Return(nil)

	err := f.svc.ChangePassword(context.Background(), "u1", domain.ChangePasswordRequest{OldPassword: "old", NewPassword: "new"})
	require.NoError(t, err)
	assert.True(t, password.Verify(newHash, "new"))
}

func TestChangePassword_IncorrectOldPasswordLeavesHash(t *testing.T) {
	f := newFixture(false)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PasswordHash: hashed(t, "old")}, nil)

	err := f.svc.ChangePassword(context.Background(), "u1", domain.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "n"})
	assert.ErrorIs(t, err, domain.ErrIncorrectOldPassword)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.users.AssertNumberOfCalls(t, "Update", 0)
}

func TestChangePassword_MissingNewPassword(t *testing.T) {
	f := newFixture(false)
	err := f.svc.ChangePassword(context.Background(), "u1", domain.ChangePasswordRequest{OldPassword: "old"})
	assert.ErrorIs(t, err, domain.ErrMissingField)
}
