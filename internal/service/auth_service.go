package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/cache"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginBlocked       = errors.New("too many failed attempts, try again later")
)

type userFinder interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// AuthService signs staff in and throttles password guessing per
// ip:username pair.
type AuthService struct {
	users     userFinder
	guardTTL  cache.Store
	guard     config.LoginGuardConfig
	jwtSecret string
	ttlMin    int
	logger    *logrus.Logger
}

// NewAuthService returns an AuthService issuing tokens valid for ttlMin
// minutes.
func NewAuthService(users userFinder, store cache.Store, guard config.LoginGuardConfig, jwtSecret string, ttlMin int, logger *logrus.Logger) *AuthService {
	return &AuthService{users: users, guardTTL: store, guard: guard, jwtSecret: jwtSecret, ttlMin: ttlMin, logger: logger}
}

// LoginResult is a signed-in staff user.
type LoginResult struct {
	User  model.User
	Token utils.AccessToken
}

// Login verifies credentials and issues an access token. Unknown users,
// inactive users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, ip, username, password string) (LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	pair := ip + ":" + username
	blockKey := fmt.Sprintf("%s:block:%s", s.guard.Prefix, pair)
	failKey := fmt.Sprintf("%s:fail:%s", s.guard.Prefix, pair)
	log := s.logger.WithContext(ctx).WithFields(logrus.Fields{"ip": ip, "username": username})

	blocked, err := s.guardTTL.Exists(ctx, blockKey)
	if err != nil {
		log.WithError(err).Warn("login guard unavailable")
	}
	if blocked {
		return LoginResult{}, ErrLoginBlocked
	}

	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		utils.BurnPasswordCheck(password)
		return LoginResult{}, s.failed(ctx, log, failKey, blockKey)
	case err != nil:
		return LoginResult{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return LoginResult{}, s.failed(ctx, log, failKey, blockKey)
	}
	if err := s.guardTTL.Delete(ctx, failKey); err != nil {
		log.WithError(err).Warn("login guard reset failed")
	}

	tok, err := utils.NewAccessToken(s.jwtSecret, u.ID, u.Username, u.Role, s.ttlMin)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Token: tok}, nil
}

func (s *AuthService) failed(ctx context.Context, log *logrus.Entry, failKey, blockKey string) error {
	n, err := s.guardTTL.Incr(ctx, failKey, s.guard.Window)
	if err != nil {
		log.WithError(err).Warn("login guard unavailable")
		return ErrInvalidCredentials
	}
	if n >= int64(s.guard.MaxFailures) {
		if err := s.guardTTL.Set(ctx, blockKey, s.guard.Block); err != nil {
			log.WithError(err).Warn("login block not recorded")
		}
		_ = s.guardTTL.Delete(ctx, failKey)
		log.Warn("staff login blocked after repeated failures")
	}
	return ErrInvalidCredentials
}
