package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/cache"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

type staffUsers map[string]model.User

func (u staffUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	if user, ok := u[username]; ok {
		return user, nil
	}
	return model.User{}, ports.ErrNotFound
}

func newAuth(t *testing.T) (*AuthService, *cache.MemoryStore) {
	t.Helper()
	hash, err := utils.HashPassword("correct-horse", 4)
	require.NoError(t, err)
	users := staffUsers{
		"scanner1": {ID: 7, Username: "scanner1", PasswordHash: hash, Role: model.RoleScanner, IsActive: true},
		"retired":  {ID: 8, Username: "retired", PasswordHash: hash, Role: model.RoleSeller, IsActive: false},
	}
	store := cache.NewMemoryStore()
	guard := config.LoginGuardConfig{MaxFailures: 3, Window: 10 * time.Minute, Block: 15 * time.Minute, Prefix: "login"}
	return NewAuthService(users, store, guard, "jwt-secret", 60, quietLogger()), store
}

func TestAuthService_Login(t *testing.T) {
	auth, _ := newAuth(t)

	res, err := auth.Login(context.Background(), "10.0.0.1", " Scanner1 ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.User.ID)

	tok, err := jwt.Parse(res.Token.Token, func(*jwt.Token) (any, error) { return []byte("jwt-secret"), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "7", claims["sub"])
	assert.Equal(t, "scanner1", claims["username"])
	assert.Equal(t, model.RoleScanner, claims["role"])

	_, err = auth.Login(context.Background(), "10.0.0.1", "scanner1", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(context.Background(), "10.0.0.1", "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(context.Background(), "10.0.0.1", "retired", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_BlocksAfterRepeatedFailures(t *testing.T) {
	auth, store := newAuth(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := auth.Login(ctx, "10.0.0.1", "scanner1", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := auth.Login(ctx, "10.0.0.1", "scanner1", "correct-horse")
	assert.ErrorIs(t, err, ErrLoginBlocked)

	// Other pairs are unaffected.
	_, err = auth.Login(ctx, "10.0.0.2", "scanner1", "correct-horse")
	assert.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "login:block:10.0.0.1:scanner1"))
	_, err = auth.Login(ctx, "10.0.0.1", "scanner1", "correct-horse")
	assert.NoError(t, err)
}

func TestAuthService_SuccessResetsFailures(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = auth.Login(ctx, "10.0.0.1", "scanner1", "wrong-password")
	}
	_, err := auth.Login(ctx, "10.0.0.1", "scanner1", "correct-horse")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, _ = auth.Login(ctx, "10.0.0.1", "scanner1", "wrong-password")
	}
	_, err = auth.Login(ctx, "10.0.0.1", "scanner1", "correct-horse")
	assert.NoError(t, err)
}
