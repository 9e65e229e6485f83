package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/config"
	"github.com/TBMCG/RSS-feed/internal/db/bunx"
	"github.com/TBMCG/RSS-feed/internal/migrations"
	"github.com/TBMCG/RSS-feed/internal/repository"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// fakeProvider issues flows locally and returns a fixed identity.
type fakeProvider struct {
	identity *auth.Identity
}

func (p *fakeProvider) Begin(_ context.Context, scopes []string, redirectURI string) (*auth.FlowState, error) {
	state, err := auth.GenerateNonce()
	if err != nil {
		return nil, err
	}
	return &auth.FlowState{
		State:        state,
		CodeVerifier: "verifier",
		Scopes:       scopes,
		RedirectURI:  redirectURI,
		AuthURL:      "https://idp.example.com/authorize?state=" + state,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (p *fakeProvider) Exchange(context.Context, *auth.FlowState, string) (*auth.Identity, error) {
	identity := *p.identity
	return &identity, nil
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	users  repository.UserRepository
}

func newTestEnv(t *testing.T, identity *auth.Identity) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = migrations.Apply(ctx, db)
	require.NoError(t, err)

	cfg := &config.Config{
		ServerURL:          "http://newsdash.test",
		FrontendURL:        "http://frontend.test",
		CORSAllowedOrigins: []string{"http://frontend.test"},
		AllowedDomains:     []string{"tbmcg.com"},
		IdP: config.IdPConfig{
			Authority:    "https://login.example.com/tenant",
			RedirectPath: "/auth/callback",
			Scopes:       []string{"openid", "profile", "email"},
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewBunUserRepository(db)
	sessions := session.NewManager(session.NewMemoryStore(100, time.Hour), session.Options{CookieName: "sid", Lifetime: time.Hour})
	codec, err := auth.NewTokenCodec([]byte("server-test-secret"))
	require.NoError(t, err)
	authorizer, err := iam.NewAuthorizer()
	require.NoError(t, err)
	gate := auth.NewDomainGate(cfg.AllowedDomains)

	router := NewRouter(RouterOptions{
		Cfg:      cfg,
		Logger:   logger,
		Sessions: sessions,
		Resolver: iam.NewResolver(codec, users, logger),
		Flow: iam.NewFlowManager(iam.FlowConfig{
			Provider:        &fakeProvider{identity: identity},
			Sessions:        sessions,
			Gate:            gate,
			Reconciler:      iam.NewRoleReconciler(users, "", logger),
			Logger:          logger,
			ExchangeTimeout: time.Second,
		}),
		Authorizer: authorizer,
		Tokens:     codec,
		Gate:       gate,
		Users:      users,
		Categories: repository.NewBunCategoryRepository(db),
		Feeds:      repository.NewBunFeedRepository(db),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, client: newClient(t), users: users}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	return e.do(t, e.client, http.MethodGet, path, "", nil)
}

// login runs /login and the provider callback, returning the callback response.
func (e *testEnv) login(t *testing.T) *http.Response {
	t.Helper()
	resp := e.get(t, "/login")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", authURL.Host)

	return e.get(t, "/auth/callback?code=abc&state="+authURL.Query().Get("state"))
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, resp))
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = env.get(t, "/api/categories")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", decodeBody[map[string]string](t, resp)["error"])
}

func TestEditorLogin(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{
		Subject: "oid-ada", Email: "ada@tbmcg.com", Name: "Ada", Roles: []string{"editor", "bogus"},
	})

	resp := env.login(t)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://frontend.test", resp.Header.Get("Location"))

	user, err := env.users.GetByID(context.Background(), "oid-ada")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, user.RoleNames())

	resp = env.get(t, "/api/user/info")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "ada@tbmcg.com", info["email"])
	assert.Equal(t, []any{"editor"}, info["roles"])
	assert.Equal(t, true, info["can_manage_feeds"])
	assert.Equal(t, false, info["can_manage_users"])

	resp = env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decodeBody[DashboardResponse](t, resp)
	require.Len(t, dash.Notices, 1)
	assert.Equal(t, "Welcome, Ada!", dash.Notices[0].Message)

	// Notices are shown once.
	dash = decodeBody[DashboardResponse](t, env.get(t, "/"))
	assert.Empty(t, dash.Notices)

	// Editors manage feeds.
	resp = env.do(t, env.client, http.MethodPost, "/api/feeds", `{"name":"Go Blog","url":"https://go.dev/blog/feed.atom"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[map[string]any](t, resp)
	feedID, _ := created["id"].(string)
	require.NotEmpty(t, feedID)
	assert.Equal(t, true, created["enabled"])

	resp = env.do(t, env.client, http.MethodPost, "/api/feeds/"+feedID+"/toggle", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody[map[string]any](t, resp)["enabled"])

	resp = env.do(t, env.client, http.MethodPost, "/api/feeds", `{"name":"Dup","url":"https://go.dev/blog/feed.atom"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, env.client, http.MethodPost, "/api/feeds", `{"name":"Bad","url":"ftp://example.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// ...but only admins delete them or touch categories and users.
	resp = env.do(t, env.client, http.MethodDelete, "/api/feeds/"+feedID, "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", decodeBody[map[string]string](t, resp)["error"])

	resp = env.do(t, env.client, http.MethodPost, "/api/categories", `{"name":"Science"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.get(t, "/api/users")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.get(t, "/api/categories")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]map[string]any](t, resp), len(migrations.DefaultCategories))
}

func TestAdminManagesCategories(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-boss", Email: "boss@tbmcg.com", Name: "Boss", Roles: []string{"admin"}})
	env.login(t)

	resp := env.do(t, env.client, http.MethodPost, "/api/categories", `{"name":"Science","color":"#123abc"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := decodeBody[map[string]any](t, resp)["id"].(string)

	resp = env.do(t, env.client, http.MethodPut, "/api/categories/"+id, `{"description":"Lab notes"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Lab notes", decodeBody[map[string]any](t, resp)["description"])

	resp = env.do(t, env.client, http.MethodPut, "/api/categories/"+id, `{"color":"blue"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, env.client, http.MethodDelete, "/api/categories/"+id, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, env.client, http.MethodDelete, "/api/categories/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.get(t, "/api/users")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decodeBody[[]UserSummary](t, resp)
	require.Len(t, users, 1)
	assert.Equal(t, []string{"admin"}, users[0].Roles)
}

func TestDomainDeniedLogin(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-eve", Email: "eve@other.org", Name: "Eve", Roles: []string{"admin"}})

	resp := env.login(t)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/error", loc.Path)
	assert.Equal(t, "unauthorized_domain", loc.Query().Get("error"))
	assert.Equal(t, "Access denied. Only @tbmcg.com email addresses are allowed.", loc.Query().Get("error_description"))

	_, err = env.users.GetByID(context.Background(), "oid-eve")
	require.ErrorIs(t, err, repository.ErrNotFound)

	resp = env.get(t, "/api/user/info")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.get(t, loc.RequestURI())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "unauthorized_domain", decodeBody[AuthErrorResponse](t, resp).Error)
}

func TestCallbackReplayIsExpired(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com", Name: "Ada"})

	resp := env.get(t, "/login")
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	callback := "/auth/callback?code=abc&state=" + authURL.Query().Get("state")

	resp = env.get(t, callback)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://frontend.test", resp.Header.Get("Location"))

	resp = env.get(t, callback)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestProviderErrorRedirect(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com"})

	resp := env.get(t, "/login")
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp = env.get(t, "/auth/callback?error=access_denied&error_description=nope&state="+authURL.Query().Get("state"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "access_denied", loc.Query().Get("error"))
	assert.Equal(t, "nope", loc.Query().Get("error_description"))

	resp = env.get(t, loc.RequestURI())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBearerToken(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com", Name: "Ada", Roles: []string{"viewer"}})
	env.login(t)

	resp := env.do(t, env.client, http.MethodPost, "/api/auth/token", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decodeBody[TokenResponse](t, resp)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.WithinDuration(t, time.Now().Add(auth.TokenLifetime), tok.ExpiresAt, time.Minute)
	header := http.Header{"Authorization": {"Bearer " + tok.Token}}

	// A browser that already holds a session gets the token bridged into it.
	other := newClient(t)
	resp = env.do(t, other, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp = env.do(t, other, http.MethodGet, "/api/user/info", "", header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "oid-ada", decodeBody[map[string]any](t, resp)["id"])

	resp = env.do(t, other, http.MethodGet, "/api/user/info", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, newClient(t), http.MethodGet, "/api/user/info", "", http.Header{"Authorization": {"Bearer junk"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerOnlyClientStoresNoSession(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com", Name: "Ada", Roles: []string{"viewer"}})
	env.login(t)

	resp := env.do(t, env.client, http.MethodPost, "/api/auth/token", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	header := http.Header{"Authorization": {"Bearer " + decodeBody[TokenResponse](t, resp).Token}}

	noJar := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	for i := 0; i < 3; i++ {
		resp = env.do(t, noJar, http.MethodGet, "/api/user/info", "", header)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Values("Set-Cookie"))
	}
}

func TestTokenCannotRenewItself(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com", Name: "Ada", Roles: []string{"viewer"}})
	env.login(t)

	resp := env.do(t, env.client, http.MethodPost, "/api/auth/token", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	header := http.Header{"Authorization": {"Bearer " + decodeBody[TokenResponse](t, resp).Token}}

	// Token only.
	resp = env.do(t, newClient(t), http.MethodPost, "/api/auth/token", "", header)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", decodeBody[map[string]string](t, resp)["error"])

	// A session bridged from the token is no better.
	bridged := newClient(t)
	resp = env.do(t, bridged, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp = env.do(t, bridged, http.MethodGet, "/api/user/info", "", header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, bridged, http.MethodPost, "/api/auth/token", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com", Name: "Ada"})
	env.login(t)

	resp := env.get(t, "/logout")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://login.example.com/tenant/oauth2/v2.0/logout?"))

	resp = env.get(t, "/api/user/info")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.login(t)
	resp = env.do(t, env.client, http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "logged_out", decodeBody[map[string]string](t, resp)["status"])

	resp = env.get(t, "/api/user/info")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClearSession(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com"})
	env.login(t)

	resp := env.get(t, "/clear-session")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = env.get(t, "/api/user/info")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginWhenAuthenticatedGoesHome(t *testing.T) {
	env := newTestEnv(t, &auth.Identity{Subject: "oid-ada", Email: "ada@tbmcg.com"})
	env.login(t)

	resp := env.get(t, "/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}
