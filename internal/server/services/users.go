// Package services contains the backend business logic behind the HTTP and
// gRPC transports.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/cryptox"
	"github.com/dmitrijs2005/kinveysync/internal/server/auth"
	"github.com/dmitrijs2005/kinveysync/internal/server/config"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/repomanager"
)

// UserService signs users up, logs them in and resolves the access tokens
// it mints back to users.
type UserService struct {
	rm                          repomanager.RepositoryManager
	appKey                      string
	appSecret                   string
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	params                      cryptox.Params
	newID                       func() string
}

func NewUserService(rm repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		rm:                          rm,
		appKey:                      cfg.AppKey,
		appSecret:                   cfg.AppSecret,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		params:                      cryptox.DefaultParams,
		newID:                       uuid.NewString,
	}
}

// CheckApp verifies the app key and secret sent with Basic auth.
func (s *UserService) CheckApp(appKey, appSecret string) error {
	keyOK := subtle.ConstantTimeCompare([]byte(appKey), []byte(s.appKey)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(appSecret), []byte(s.appSecret)) == 1
	if !keyOK || !secretOK {
		return common.ErrInvalidAppCredentials
	}
	return nil
}

// KnownApp reports whether appKey is the app this backend serves.
func (s *UserService) KnownApp(appKey string) bool {
	return appKey == s.appKey
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}
	return nil
}

// Signup creates a user and returns its entity carrying a fresh token.
func (s *UserService) Signup(ctx context.Context, appKey, username, password string) (models.Document, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := cryptox.HashPassword(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user, err := s.rm.Users().Create(ctx, &models.User{
		ID:           s.newID(),
		AppKey:       appKey,
		UserName:     username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("user %s: %w", username, err)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return s.withToken(user)
}

// Login checks the password and returns the user entity with a new token.
func (s *UserService) Login(ctx context.Context, appKey, username, password string) (models.Document, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, common.ErrInvalidLoginPassword
	}
	user, err := s.rm.Users().GetUserByLogin(ctx, appKey, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidLoginPassword
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrInvalidLoginPassword
	}
	return s.withToken(user)
}

func (s *UserService) withToken(user *models.User) (models.Document, error) {
	token, err := auth.GenerateToken(user.ID, user.AppKey, user.UserName, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return user.Entity(token), nil
}

// Authenticate resolves an access token issued for appKey to its user.
func (s *UserService) Authenticate(ctx context.Context, appKey, token string) (*models.User, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.AppKey != appKey {
		return nil, fmt.Errorf("%w: issued for another app", common.ErrInvalidToken)
	}
	user, err := s.rm.Users().GetUserByID(ctx, appKey, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown user", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return user, nil
}
