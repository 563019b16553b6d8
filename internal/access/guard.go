// Package access decides whether an identity may book a token.
package access

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"campus-queue/internal/apperror"
	"campus-queue/internal/logging"
)

// Identity is the caller as reported by the authenticator.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Blocklist answers membership queries for banned emails.
type Blocklist interface {
	IsBlocked(ctx context.Context, email string) (bool, error)
}

var (
	ErrEmailMissing     = apperror.PermissionDenied("Email is required")
	ErrEmailUnverified  = apperror.PermissionDenied("Email not verified")
	ErrDomainNotAllowed = apperror.PermissionDenied("Email domain not allowed")
	ErrBlocked          = apperror.PermissionDenied("User is blocked")
)

// Guard validates identities against the domain allow-list and blocklist.
type Guard struct {
	domains   map[string]struct{}
	blocklist Blocklist
	logger    *zap.Logger
}

func NewGuard(allowedDomains []string, blocklist Blocklist, logger *zap.Logger) *Guard {
	domains := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains[d] = struct{}{}
		}
	}
	return &Guard{domains: domains, blocklist: blocklist, logger: logging.OrNop(logger)}
}

// Authorize returns nil when id may book, or a PERMISSION_DENIED error
// naming the first failed check. It never writes.
func (g *Guard) Authorize(ctx context.Context, id Identity) error {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return ErrEmailMissing
	}
	if !id.EmailVerified {
		return ErrEmailUnverified
	}
	if !g.DomainAllowed(email) {
		return ErrDomainNotAllowed
	}

	blocked, err := g.IsBlocked(ctx, email)
	if err != nil {
		return err
	}
	if blocked {
		g.logger.Info("blocked user rejected", zap.String("uid", id.UID))
		return ErrBlocked
	}
	return nil
}

// DomainAllowed reports whether the part after the last "@" is allow-listed.
func (g *Guard) DomainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	_, ok := g.domains[strings.ToLower(email[at+1:])]
	return ok
}

func (g *Guard) IsBlocked(ctx context.Context, email string) (bool, error) {
	if g.blocklist == nil {
		return false, nil
	}
	blocked, err := g.blocklist.IsBlocked(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, apperror.Internal(err, "blocklist lookup failed")
	}
	return blocked, nil
}
