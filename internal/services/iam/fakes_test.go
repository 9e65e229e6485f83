package iam

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/TBMCG/RSS-feed/internal/repository"
	"github.com/TBMCG/RSS-feed/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockUserRepo is a map-backed UserReader and UserSyncer.
type mockUserRepo struct {
	mu      sync.Mutex
	users   map[string]*models.User
	syncErr error
	getErr  error
	syncs   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *mockUserRepo) SyncWithRoles(_ context.Context, user *models.User, roles []string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	m.syncs++
	stored := &models.User{ID: user.ID, Email: user.Email, Name: user.Name}
	for _, role := range roles {
		stored.Roles = append(stored.Roles, &models.UserRole{UserID: user.ID, RoleName: role})
	}
	m.users[user.ID] = stored
	clone := *stored
	return &clone, nil
}

func (m *mockUserRepo) put(id, email string, roles ...string) {
	_, _ = m.SyncWithRoles(context.Background(), &models.User{ID: id, Email: email}, roles)
}

// fakeProvider stands in for the OIDC relying party.
type fakeProvider struct {
	identity  *auth.Identity
	err       error
	delay     time.Duration
	exchanges atomic.Int32
	counter   atomic.Int32
}

func (p *fakeProvider) Begin(_ context.Context, scopes []string, redirectURI string) (*auth.FlowState, error) {
	n := p.counter.Add(1)
	state := "state-" + string(rune('a'+n-1))
	return &auth.FlowState{
		State:        state,
		CodeVerifier: "verifier",
		Scopes:       scopes,
		RedirectURI:  redirectURI,
		AuthURL:      "https://idp.example.com/authorize?state=" + state,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (p *fakeProvider) Exchange(ctx context.Context, _ *auth.FlowState, _ string) (*auth.Identity, error) {
	p.exchanges.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	identity := *p.identity
	return &identity, nil
}

// sessionHarness wraps a memory-backed manager and tracks the cookie the
// way a browser would.
type sessionHarness struct {
	t       *testing.T
	manager *session.Manager
	store   *session.MemoryStore
	cookie  *http.Cookie
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()
	store := session.NewMemoryStore(100, time.Hour)
	return &sessionHarness{
		t:       t,
		manager: session.NewManager(store, session.Options{CookieName: "sid", Lifetime: time.Hour}),
		store:   store,
	}
}

// load returns the session the current cookie points at.
func (h *sessionHarness) load() *session.Session {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	s, err := h.manager.Load(req)
	require.NoError(h.t, err)
	return s
}

// established stores a session holding an unrelated value, as a browser
// would have after any earlier visit, and returns it freshly loaded.
func (h *sessionHarness) established() *session.Session {
	h.t.Helper()
	s := h.load()
	require.NoError(h.t, s.Set("visited", true))
	require.NoError(h.t, h.manager.Commit(context.Background(), s))
	h.remember(s)
	loaded := h.load()
	require.False(h.t, loaded.IsNew())
	return loaded
}

// remember captures any cookie issued for s.
func (h *sessionHarness) remember(s *session.Session) {
	rec := httptest.NewRecorder()
	h.manager.WriteCookie(rec, s)
	for _, c := range rec.Result().Cookies() {
		if c.Name != "sid" {
			continue
		}
		if c.MaxAge < 0 || c.Value == "" {
			h.cookie = nil
		} else {
			h.cookie = c
		}
	}
}

var errBoom = errors.New("boom")
