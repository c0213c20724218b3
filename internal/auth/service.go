// Package auth registers and authenticates the admins allowed to broadcast.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/live-relay/internal/audit"
	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/repository"
	"github.com/weiawesome/live-relay/pkg/jwt"
	"github.com/weiawesome/live-relay/pkg/log"
)

var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrInvalidAdminSecret = errors.New("invalid admin secret")
	ErrInvalidUsername    = errors.New("username must be between 3 and 20 characters")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("token does not carry the admin role")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 6
)

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwt.Claims, error)
}

// Service is the identity and credential store.
type Service interface {
	Authenticator
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
}

// Config holds the settings the service needs.
type Config struct {
	AdminSecret string
	BcryptCost  int
}

type authService struct {
	repo        repository.AdminRepository
	tokens      *jwt.Manager
	adminSecret []byte
	bcryptCost  int
}

// NewService creates the auth service. An empty AdminSecret disables registration.
func NewService(repo repository.AdminRepository, tokens *jwt.Manager, cfg Config) Service {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = 12
	}
	return &authService{
		repo:        repo,
		tokens:      tokens,
		adminSecret: []byte(cfg.AdminSecret),
		bcryptCost:  cost,
	}
}

// Register creates an admin account and returns a token for it.
func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	if req.Username == "" || req.Password == "" || req.AdminSecret == "" {
		return nil, ErrMissingFields
	}
	if !s.secretMatches(req.AdminSecret) {
		audit.LogWithDetail(ctx, audit.ActionRegisterDenied, "", req.Username, "register denied: wrong admin secret")
		return nil, ErrInvalidAdminSecret
	}
	if n := utf8.RuneCountInString(req.Username); n < minUsernameLen || n > maxUsernameLen {
		return nil, ErrInvalidUsername
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	admin := &domain.Admin{
		Username:     req.Username,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if !errors.Is(err, repository.ErrUsernameExists) {
			l.Error().Err(err).Msg("failed to create admin")
		}
		return nil, err
	}

	resp, err := s.issue(admin)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, admin.ID).Msg("failed to generate token after register")
		return nil, err
	}

	audit.Log(ctx, audit.ActionRegister, admin.ID, "admin registered")
	return resp, nil
}

// Login checks credentials and returns a fresh token.
func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	if req.Username == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	admin, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", req.Username, "login failed: unknown admin")
			return nil, ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get admin by username")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, admin.ID, req.Username, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issue(admin)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, admin.ID).Msg("failed to generate token after login")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, admin.ID, "admin logged in")
	return resp, nil
}

// Authenticate validates a token and requires the admin role.
func (s *authService) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != domain.RoleAdminClaim {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

func (s *authService) issue(admin *domain.Admin) (*domain.AuthResponse, error) {
	token, exp, err := s.tokens.GenerateToken(admin.ID, admin.Username, domain.RoleAdminClaim)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &domain.AuthResponse{
		Token:     token,
		Username:  admin.Username,
		ExpiresAt: exp,
	}, nil
}

func (s *authService) secretMatches(given string) bool {
	if len(s.adminSecret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), s.adminSecret) == 1
}
