// internal/domain/user/service_test.go
package user_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/domain/user"
	"github.com/your-org/kiosk-backend/internal/domain/wallet"
	"github.com/your-org/kiosk-backend/internal/pkg/apperr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&user.User{}, &wallet.Account{}, &wallet.Transaction{}))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "kiosk-backend-test",
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret-key-that-is-long-enough!",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost: 4, // minimum cost keeps the tests fast
		},
	}
}

func registerRequest() *user.RegisterRequest {
	return &user.RegisterRequest{
		Email:     "jane@example.com",
		Password:  "s3cret-pass",
		FirstName: "Jane",
		LastName:  "Doe",
	}
}

func TestRegisterCreatesUserWithWalletAccount(t *testing.T) {
	db := newTestDB(t)
	svc := user.NewService(db, newTestConfig())

	resp, err := svc.Register(registerRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.False(t, resp.User.IsAdmin)

	// The wallet account is born in the same transaction as the user.
	var account wallet.Account
	require.NoError(t, db.Where("user_id = ?", resp.User.ID).First(&account).Error)
	assert.True(t, account.Balance.IsZero())
}

func TestRegisterNormalizesAndDeduplicatesEmail(t *testing.T) {
	db := newTestDB(t)
	svc := user.NewService(db, newTestConfig())

	_, err := svc.Register(registerRequest())
	require.NoError(t, err)

	dup := registerRequest()
	dup.Email = "  JANE@example.com "
	_, err = svc.Register(dup)
	assert.True(t, apperr.IsConflict(err))
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	svc := user.NewService(db, newTestConfig())

	_, err := svc.Register(registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(&user.LoginRequest{Email: "jane@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotNil(t, resp.User.LastLoginAt)

	// The login time is persisted, not just echoed.
	var stored user.User
	require.NoError(t, db.First(&stored, resp.User.ID).Error)
	require.NotNil(t, stored.LastLoginAt)

	_, err = svc.Login(&user.LoginRequest{Email: "jane@example.com", Password: "wrong"})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Login(&user.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	assert.True(t, apperr.IsValidation(err))
}

func TestLoginDeactivatedAccount(t *testing.T) {
	db := newTestDB(t)
	svc := user.NewService(db, newTestConfig())

	resp, err := svc.Register(registerRequest())
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(resp.User.ID, false))

	_, err = svc.Login(&user.LoginRequest{Email: "jane@example.com", Password: "s3cret-pass"})
	assert.True(t, apperr.IsValidation(err))
}

func TestRefreshIssuesNewTokenPair(t *testing.T) {
	db := newTestDB(t)
	svc := user.NewService(db, newTestConfig())

	registered, err := svc.Register(registerRequest())
	require.NoError(t, err)

	refreshed, err := svc.Refresh(&user.RefreshRequest{RefreshToken: registered.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token is not accepted as a refresh token.
	_, err = svc.Refresh(&user.RefreshRequest{RefreshToken: registered.AccessToken})
	assert.True(t, apperr.IsValidation(err))
}

func TestSetActiveUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := user.NewService(db, newTestConfig())

	err := svc.SetActive(123, true)
	assert.True(t, apperr.IsNotFound(err))
}
