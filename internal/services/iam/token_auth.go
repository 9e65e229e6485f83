package iam

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/TBMCG/RSS-feed/internal/auth"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.TokenClaims, error)
}

// TokenAuthenticator validates "Authorization: Bearer" tokens. Expired and
// malformed tokens are treated as absent credentials.
type TokenAuthenticator struct {
	verifier TokenVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewTokenAuthenticator creates a new bearer token authenticator.
func NewTokenAuthenticator(verifier TokenVerifier, logger *slog.Logger) *TokenAuthenticator {
	return &TokenAuthenticator{verifier: verifier, logger: logger, now: time.Now}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Snapshot, error) {
	token, ok := BearerToken(req.Headers.Get("Authorization"))
	if !ok {
		return nil, nil
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		a.logger.DebugContext(ctx, "bearer token rejected", slog.String("error", err.Error()))
		return nil, nil
	}

	expiresAt := claims.ExpiresAt
	return &Snapshot{
		Subject:         claims.Subject,
		Email:           claims.Email,
		Name:            claims.Name,
		Source:          auth.SourceBearer,
		AuthenticatedAt: a.now().UTC(),
		ExpiresAt:       &expiresAt,
	}, nil
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
