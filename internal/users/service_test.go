package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
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

func seedUser(t *testing.T, db *gorm.DB, email, name string, phone *string) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	if name != "" {
		profile := models.Profile{UserID: user.ID, Name: name, Phone: phone}
		require.NoError(t, db.Create(&profile).Error)
		user.Profile = &profile
	}
	return user
}

func newUsersService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestUpdateProfileChangesNameAndPhone(t *testing.T) {
	db := setupUsersTestDB(t)
	ctx := context.Background()
	oldPhone := "+33100000000"
	user := seedUser(t, db, "amelie@example.com", "Amelie", &oldPhone)

	svc := newUsersService(t, db)
	newPhone := "+33612345678"
	view, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdateInput{Name: "Amélie D.", Phone: &newPhone})
	require.NoError(t, err)
	assert.Equal(t, "Amélie D.", view.Name)
	require.NotNil(t, view.Phone)
	assert.Equal(t, newPhone, *view.Phone)

	var stored models.Profile
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, "Amélie D.", stored.Name)
	require.NotNil(t, stored.Phone)
	assert.Equal(t, newPhone, *stored.Phone)
}

func TestUpdateProfileClearsPhone(t *testing.T) {
	db := setupUsersTestDB(t)
	ctx := context.Background()
	phone := "+33100000000"
	user := seedUser(t, db, "sam@example.com", "Sam", &phone)

	svc := newUsersService(t, db)
	view, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdateInput{Name: "Sam"})
	require.NoError(t, err)
	assert.Nil(t, view.Phone)

	var stored models.Profile
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Nil(t, stored.Phone)
}

func TestUpdateProfileCreatesMissingProfileRow(t *testing.T) {
	db := setupUsersTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "ghost@example.com", "", nil)

	svc := newUsersService(t, db)
	view, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdateInput{Name: "Ghost"})
	require.NoError(t, err)
	assert.Equal(t, "Ghost", view.Name)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpdateProfileUnknownUserNotFound(t *testing.T) {
	db := setupUsersTestDB(t)

	svc := newUsersService(t, db)
	_, err := svc.UpdateProfile(context.Background(), uuid.New(), ProfileUpdateInput{Name: "Nobody"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
