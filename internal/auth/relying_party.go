package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"

	"github.com/TBMCG/RSS-feed/internal/config"
)

// FlowState holds the parameters of one in-flight authorization code
// exchange. It is stored in the browser session between login and callback
// and must be used at most once.
type FlowState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	Scopes       []string  `json:"scopes"`
	RedirectURI  string    `json:"redirect_uri"`
	AuthURL      string    `json:"auth_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// RelyingParty handles OIDC authentication against the external IdP by
// wrapping the zitadel/oidc RelyingParty implementation. PKCE material and
// state are generated here and kept by the caller, not in cookies.
type RelyingParty struct {
	rp      rp.RelyingParty
	mapping ClaimMapping
	now     func() time.Time
}

// NewRelyingParty discovers the provider configured in cfg and creates a
// RelyingParty for it.
func NewRelyingParty(ctx context.Context, cfg *config.Config) (*RelyingParty, error) {
	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer(), cfg.IdP.ClientID, cfg.IdP.ClientSecret,
		cfg.RedirectURI(), cfg.IdP.Scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	mapping := ClaimMapping{
		SubjectField: cfg.IdP.SubjectClaimField,
		EmailField:   cfg.IdP.EmailClaimField,
		RolesField:   cfg.IdP.RolesClaimField,
		GroupsField:  cfg.IdP.GroupsClaimField,
		GroupsPath:   cfg.IdP.GroupsClaimPath,
	}
	return newRelyingParty(relyingParty, mapping), nil
}

func newRelyingParty(relyingParty rp.RelyingParty, mapping ClaimMapping) *RelyingParty {
	return &RelyingParty{rp: relyingParty, mapping: mapping, now: time.Now}
}

// Begin creates fresh flow parameters (state, PKCE verifier) and the
// provider authorization URL for them.
func (r *RelyingParty) Begin(_ context.Context, scopes []string, redirectURI string) (*FlowState, error) {
	state, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	verifier, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	opts := []rp.AuthURLOpt{rp.WithCodeChallenge(oidc.NewSHACodeChallenge(verifier))}
	if len(scopes) > 0 {
		opts = append(opts, rp.AuthURLOpt(rp.WithURLParam("scope", strings.Join(scopes, " "))))
	}
	if redirectURI != "" {
		opts = append(opts, rp.AuthURLOpt(rp.WithURLParam("redirect_uri", redirectURI)))
	}

	return &FlowState{
		State:        state,
		CodeVerifier: verifier,
		Scopes:       append([]string(nil), scopes...),
		RedirectURI:  redirectURI,
		AuthURL:      rp.AuthURL(state, r.rp, opts...),
		CreatedAt:    r.now().UTC(),
	}, nil
}

// Exchange trades an authorization code for tokens, verifies the ID token
// and extracts the Identity from its claims.
func (r *RelyingParty) Exchange(ctx context.Context, flow *FlowState, code string) (*Identity, error) {
	opts := []rp.CodeExchangeOpt{rp.WithCodeVerifier(flow.CodeVerifier)}
	if flow.RedirectURI != "" {
		opts = append(opts, rp.CodeExchangeOpt(rp.WithURLParam("redirect_uri", flow.RedirectURI)))
	}

	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, r.rp, opts...)
	if err != nil {
		return nil, classifyExchangeError(ctx, err)
	}
	if tokens.IDTokenClaims == nil {
		return nil, &ProviderError{Code: "invalid_token", Description: "token response has no id_token"}
	}

	identity, err := r.mapping.Identity(idTokenClaimMap(tokens.IDTokenClaims))
	if err != nil {
		return nil, &ProviderError{Code: "invalid_token", Description: err.Error()}
	}
	return identity, nil
}

// idTokenClaimMap returns every claim of the ID token. The library keeps
// the full claim set in Claims; the typed fields cover the rest.
func idTokenClaimMap(c *oidc.IDTokenClaims) map[string]any {
	claims := make(map[string]any, len(c.Claims)+3)
	for k, v := range c.Claims {
		claims[k] = v
	}
	if _, ok := claims["sub"]; !ok && c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if _, ok := claims["email"]; !ok && c.Email != "" {
		claims["email"] = c.Email
	}
	if _, ok := claims["name"]; !ok && c.Name != "" {
		claims["name"] = c.Name
	}
	return claims
}

// classifyExchangeError separates provider rejections, which carry an
// OAuth error code, from transport failures that may succeed on retry.
func classifyExchangeError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.ErrorCode
		if code == "" {
			code = "token_exchange_failed"
		}
		desc := retrieveErr.ErrorDescription
		if desc == "" && retrieveErr.Response != nil {
			desc = retrieveErr.Response.Status
		}
		return &ProviderError{Code: code, Description: desc}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		ctx.Err() != nil || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	// ID token verification and response decoding failures.
	return &ProviderError{Code: "invalid_token", Description: err.Error()}
}

// generateRandomBytes creates a slice of random bytes of a specified size.
func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random URL-safe string from 32 random bytes.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
