package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
	"github.com/TBMCG/RSS-feed/internal/session"
)

func newTestGuards(t *testing.T) (*Guards, *session.Manager) {
	t.Helper()
	authorizer, err := iam.NewAuthorizer()
	require.NoError(t, err)
	manager := session.NewManager(session.NewMemoryStore(100, time.Hour), session.Options{CookieName: "sid", Lifetime: time.Hour})
	return &Guards{
		Sessions:    manager,
		Gate:        auth.NewDomainGate([]string{"tbmcg.com"}),
		Permissions: authorizer,
		Logger:      discardLogger(),
	}, manager
}

// guardedRequest builds a request carrying a session and, optionally, a principal.
func guardedRequest(t *testing.T, path string, p *auth.Principal) (*http.Request, *session.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s, err := session.NewManager(session.NewMemoryStore(1, time.Hour), session.Options{}).Load(req)
	require.NoError(t, err)
	ctx := session.NewContext(req.Context(), s)
	if p != nil {
		ctx = auth.SetUserContext(ctx, p)
	}
	return req.WithContext(ctx), s
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func editor() *auth.Principal {
	return &auth.Principal{Subject: "s1", Email: "ada@tbmcg.com", Roles: []string{"editor"}, Registered: true}
}

func TestChain_OrdersByStage(t *testing.T) {
	g, _ := newTestGuards(t)
	// Declared in reverse; authentication must still fail first.
	h := Chain(g.HasRole(auth.RoleAdmin), g.DomainAllowed(), g.Authenticated())(okHandler)

	req, s := guardedRequest(t, "/api/categories", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthenticated","message":"authentication required"}`, rec.Body.String())
	assert.Zero(t, s.Len())
}

func TestAuthenticated_BrowserRedirectsToLogin(t *testing.T) {
	g, _ := newTestGuards(t)
	h := Chain(g.Authenticated())(okHandler)

	req, _ := guardedRequest(t, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestDomainAllowed(t *testing.T) {
	g, _ := newTestGuards(t)
	h := Chain(g.Authenticated(), g.DomainAllowed())(okHandler)

	t.Run("allowed", func(t *testing.T) {
		req, _ := guardedRequest(t, "/api/user/info", editor())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("api denied clears session", func(t *testing.T) {
		req, s := guardedRequest(t, "/api/user/info", &auth.Principal{Subject: "s2", Email: "eve@other.org", Registered: true})
		require.NoError(t, s.Set("user", "stale"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), `"domain_denied"`)
		assert.Zero(t, s.Len())
	})

	t.Run("browser denied goes to logout", func(t *testing.T) {
		req, s := guardedRequest(t, "/", &auth.Principal{Subject: "s2", Email: "eve@other.org"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/logout", rec.Header().Get("Location"))
		assert.False(t, s.Has("user"))
		flashes := session.PopFlashes(s)
		require.Len(t, flashes, 1)
		assert.Equal(t, NoticeError, flashes[0].Category)
		assert.Equal(t, "Access denied. Only @tbmcg.com email addresses are allowed.", flashes[0].Message)
	})
}

func TestHasRole(t *testing.T) {
	g, _ := newTestGuards(t)
	h := Chain(g.Authenticated(), g.DomainAllowed(), g.HasRole(auth.RoleAdmin))(okHandler)

	admin := &auth.Principal{Subject: "a", Email: "boss@tbmcg.com", Roles: []string{"admin"}, Registered: true}
	req, _ := guardedRequest(t, "/api/categories", admin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, _ = guardedRequest(t, "/api/categories", editor())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"permission_denied","message":"Access denied. admin role required."}`, rec.Body.String())

	req, s := guardedRequest(t, "/settings", editor())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	flashes := session.PopFlashes(s)
	require.Len(t, flashes, 1)
	assert.Equal(t, "Access denied. admin role required.", flashes[0].Message)
}

func TestCanManageFeeds(t *testing.T) {
	g, _ := newTestGuards(t)
	h := Chain(g.Authenticated(), g.CanManageFeeds())(okHandler)

	tests := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{"editor", editor(), http.StatusOK},
		{"admin", &auth.Principal{Subject: "a", Email: "a@tbmcg.com", Roles: []string{"admin"}, Registered: true}, http.StatusOK},
		{"viewer", &auth.Principal{Subject: "v", Email: "v@tbmcg.com", Roles: []string{"viewer"}, Registered: true}, http.StatusForbidden},
		{"unregistered", &auth.Principal{Subject: "u", Email: "u@tbmcg.com", Roles: []string{"editor"}}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := guardedRequest(t, "/api/feeds", tt.principal)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHasCapability(t *testing.T) {
	g, _ := newTestGuards(t)
	h := Chain(g.Authenticated(), g.HasCapability(auth.ObjectUsers))(okHandler)

	req, _ := guardedRequest(t, "/api/users", editor())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have permission to manage users.")
}

func TestIsAPIRequest(t *testing.T) {
	for path, want := range map[string]bool{
		"/api":           true,
		"/api/feeds":     true,
		"/apiary":        false,
		"/":              false,
		"/auth/callback": false,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, IsAPIRequest(req.WithContext(context.Background())), path)
	}
}
