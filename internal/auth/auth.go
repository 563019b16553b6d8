// Package auth verifies bearer credentials and issues them on login.
package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"campus-queue/internal/access"
	"campus-queue/internal/apperror"
	"campus-queue/internal/config"
	"campus-queue/internal/logging"
	"campus-queue/internal/models"
)

// Authenticator turns a bearer credential into a verified identity.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (access.Identity, error)
}

var (
	ErrMissingCredential = apperror.Unauthenticated("Missing authorization header")
	ErrInvalidCredential = apperror.Unauthenticated("Invalid or expired token")
	ErrBadLogin          = apperror.Unauthenticated("Invalid email or password")
)

// JWT verifies HS256 tokens signed with the configured secret.
type JWT struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: secret, ttl: ttl, now: time.Now}
}

func (j *JWT) Authenticate(_ context.Context, bearer string) (access.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return access.Identity{}, ErrMissingCredential
	}
	claims, err := config.ValidateToken(j.secret, bearer)
	if err != nil {
		return access.Identity{}, ErrInvalidCredential
	}
	if claims.UID == "" {
		return access.Identity{}, ErrInvalidCredential
	}
	return access.Identity{
		UID:           claims.UID,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// Issue signs a token for the account.
func (j *JWT) Issue(a models.Account, role string) (string, error) {
	return config.GenerateToken(j.secret, j.ttl, a.UID, a.Email, a.EmailVerified, role, j.now())
}

// AccountStore looks up login accounts. A missing account is nil, nil.
type AccountStore interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// RoleLookup resolves the role placed in issued tokens.
type RoleLookup interface {
	Role(ctx context.Context, uid string) (string, error)
}

// LoginService checks passwords and issues tokens.
type LoginService struct {
	accounts AccountStore
	roles    RoleLookup
	issuer   *JWT
	logger   *zap.Logger
}

func NewLoginService(accounts AccountStore, roles RoleLookup, issuer *JWT, logger *zap.Logger) *LoginService {
	return &LoginService{accounts: accounts, roles: roles, issuer: issuer, logger: logging.OrNop(logger)}
}

func (s *LoginService) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return models.LoginResponse{}, apperror.InvalidArgument("Email and password are required")
	}

	acc, err := s.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		return models.LoginResponse{}, apperror.Internal(err, "account lookup failed")
	}
	if acc == nil {
		return models.LoginResponse{}, ErrBadLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("login rejected", zap.String("uid", acc.UID))
		return models.LoginResponse{}, ErrBadLogin
	}

	role, err := s.roles.Role(ctx, acc.UID)
	if err != nil {
		return models.LoginResponse{}, err
	}
	token, err := s.issuer.Issue(*acc, role)
	if err != nil {
		return models.LoginResponse{}, apperror.Internal(err, "Failed to generate token")
	}

	return models.LoginResponse{
		Token: token,
		User:  models.UserResponse{UID: acc.UID, Email: acc.Email, Role: role},
	}, nil
}

// HashPassword returns the bcrypt hash stored for new accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
