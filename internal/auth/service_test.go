package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/internal/users"
	"github.com/epicerie-app/epicerie-backend/pkg/config"
	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
	"github.com/epicerie-app/epicerie-backend/pkg/logger"
)

type fakeSessionManager struct {
	tokens  map[string]string
	counter int
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{tokens: map[string]string{}}
}

func (f *fakeSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	f.counter++
	token := fmt.Sprintf("refresh-%d", f.counter)
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", errors.New("invalid refresh token")
	}
	delete(f.tokens, oldAccessID)
	newAccessID := fmt.Sprintf("access-%d", f.counter)
	token, _ := f.Generate(ctx, newAccessID)
	return newAccessID, token, nil
}

func (f *fakeSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(f.tokens, accessID)
	return nil
}

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS profiles (
  user_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "epicerie-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

func testPasswordConfig() config.PasswordConfig {
	// Cheap parameters so hashing does not dominate the test run.
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func testProfileConfig() config.ProfileConfig {
	return config.ProfileConfig{CreateAttempts: 3, CreateBackoff: 0}
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

type authFixture struct {
	db       *gorm.DB
	svc      Service
	sessions *fakeSessionManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	db := setupAuthTestDB(t)
	sessions := newFakeSessionManager()
	svc, err := NewService(users.NewRepository(db), sessions, testJWTConfig(), testPasswordConfig(), testProfileConfig(), quietLogger())
	require.NoError(t, err)
	return &authFixture{db: db, svc: svc, sessions: sessions}
}

func TestRegisterCreatesUserProfileAndSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, RegisterInput{
		Email:    "Shopper@Example.com",
		Password: "s3cret-pass",
		Name:     "Pat",
	})
	require.NoError(t, err)
	assert.Equal(t, "shopper@example.com", result.User.Email)
	assert.Equal(t, "Pat", result.User.Name)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	var profile models.Profile
	require.NoError(t, f.db.First(&profile, "user_id = ?", result.User.ID).Error)
	assert.Equal(t, "Pat", profile.Name)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	input := RegisterInput{Email: "shopper@example.com", Password: "s3cret-pass", Name: "Pat"}
	_, err := f.svc.Register(ctx, input)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

type failingProfileRepo struct {
	*users.Repository
	attempts int
}

func (r *failingProfileRepo) CreateProfile(ctx context.Context, profile *models.Profile) error {
	r.attempts++
	return errors.New("profile storage unavailable")
}

func TestRegisterDeactivatesUserWhenProfileNeverLands(t *testing.T) {
	db := setupAuthTestDB(t)
	repo := &failingProfileRepo{Repository: users.NewRepository(db)}
	svc, err := NewService(repo, newFakeSessionManager(), testJWTConfig(), testPasswordConfig(), testProfileConfig(), quietLogger())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email:    "shopper@example.com",
		Password: "s3cret-pass",
		Name:     "Pat",
	})
	require.Error(t, err)
	assert.Equal(t, 3, repo.attempts)

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "shopper@example.com").Error)
	assert.False(t, user.IsActive)

	// A half-provisioned account must not be able to log in.
	_, err = svc.Login(context.Background(), LoginInput{Email: "shopper@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "shopper@example.com", Password: "s3cret-pass", Name: "Pat"})
	require.NoError(t, err)

	_, wrongPass := f.svc.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "nope"})
	_, unknown := f.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "nope"})

	require.Error(t, wrongPass)
	require.Error(t, unknown)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLoginStampsLastLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "shopper@example.com", Password: "s3cret-pass", Name: "Pat"})
	require.NoError(t, err)

	result, err := f.svc.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotNil(t, result.User.LastLoginAt)

	var user models.User
	require.NoError(t, f.db.First(&user, "id = ?", result.User.ID).Error)
	assert.NotNil(t, user.LastLoginAt)
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, RegisterInput{Email: "shopper@example.com", Password: "s3cret-pass", Name: "Pat"})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, RefreshInput{
		AccessToken:  registered.AccessToken,
		RefreshToken: registered.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	// The old pair is burned.
	_, err = f.svc.Refresh(ctx, RefreshInput{
		AccessToken:  registered.AccessToken,
		RefreshToken: registered.RefreshToken,
	})
	require.Error(t, err)
}
