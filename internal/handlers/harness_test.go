package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/auth"
	"github.com/orgnest/orgnest/internal/metrics"
	"github.com/orgnest/orgnest/internal/middleware"
	"github.com/orgnest/orgnest/internal/password"
	"github.com/orgnest/orgnest/internal/rate"
	"github.com/orgnest/orgnest/internal/revocation"
	"github.com/orgnest/orgnest/internal/storage"
	"github.com/orgnest/orgnest/internal/tasks"
	"github.com/orgnest/orgnest/internal/token"
)

// memUsers is an in-memory auth.UserStore and UserLookup.
type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*storage.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*storage.User{}}
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) Create(_ context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return storage.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	cp := *user
	s.byEmail[user.Email] = &cp
	return nil
}

func (s *memUsers) SetRefreshToken(_ context.Context, email, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return storage.ErrNotFound
	}
	u.RefreshToken = tok
	return nil
}

func (s *memUsers) SwapRefreshToken(_ context.Context, email, old, new string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok || u.RefreshToken != old {
		return storage.ErrConflict
	}
	u.RefreshToken = new
	return nil
}

// memOrgs is an in-memory OrganizationStore.
type memOrgs struct {
	mu   sync.Mutex
	byID map[string]*storage.Organization
}

func newMemOrgs() *memOrgs {
	return &memOrgs{byID: map[string]*storage.Organization{}}
}

func (s *memOrgs) Create(_ context.Context, org *storage.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Name == org.Name {
			return storage.ErrDuplicate
		}
	}
	org.ID = primitive.NewObjectID()
	cp := *org
	s.byID[org.ID.Hex()] = &cp
	return nil
}

func (s *memOrgs) GetByID(_ context.Context, id string) (*storage.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *org
	cp.Members = append([]storage.Member(nil), org.Members...)
	return &cp, nil
}

func (s *memOrgs) List(_ context.Context) ([]storage.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		out = append(out, *org)
	}
	return out, nil
}

func (s *memOrgs) UpdateFields(_ context.Context, id string, fields map[string]string) (*storage.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if name, ok := fields["name"]; ok {
		org.Name = name
	}
	if desc, ok := fields["description"]; ok {
		org.Description = desc
	}
	cp := *org
	return &cp, nil
}

func (s *memOrgs) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memOrgs) AddMember(_ context.Context, id string, member storage.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	org.Members = append(org.Members, member)
	return nil
}

// memQueue records enqueued invitations.
type memQueue struct {
	mu       sync.Mutex
	payloads []tasks.InvitationEmailPayload
	err      error
}

func (q *memQueue) EnqueueInvitation(_ context.Context, p tasks.InvitationEmailPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, p)
	return nil
}

type testEnv struct {
	router *gin.Engine
	users  *memUsers
	orgs   *memOrgs
	queue  *memQueue
	engine *auth.Engine
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	codec, err := token.NewCodec([]byte("handler-test-secret"), token.AlgHS256)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	hasher, err := password.NewHasher(password.Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	users := newMemUsers()
	engine, err := auth.NewEngine(auth.Config{
		AccessTTL:      2 * time.Second,
		RefreshTTL:     time.Minute,
		StrictRotation: true,
	}, codec, hasher, users, revocation.NewStore(rdb), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	m := metrics.New()
	orgs := newMemOrgs()
	queue := &memQueue{}

	router := NewRouter("test", m,
		middleware.Guard(engine),
		&UserHandler{
			Engine:  engine,
			Limiter: rate.NewMemory(100, time.Minute),
			Metrics: m,
			Log:     zap.NewNop(),
		},
		&OrganizationHandler{
			Store: orgs,
			Users: users,
			Queue: queue,
			Log:   zap.NewNop(),
		},
	)

	return &testEnv{router: router, users: users, orgs: orgs, queue: queue, engine: engine, mr: mr}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doForm(t *testing.T, path string, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var parts []string
	for k, v := range form {
		parts = append(parts, k+"="+v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(strings.Join(parts, "&")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// signupAndLogin registers a user and returns a live token pair.
func (e *testEnv) signupAndLogin(t *testing.T, name, email, pw string) auth.TokenPair {
	t.Helper()

	w := e.doJSON(t, http.MethodPost, "/signup", map[string]string{
		"name": name, "email": email, "password": pw,
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("signup returned %d: %s", w.Code, w.Body.String())
	}

	w = e.doForm(t, "/token", map[string]string{"username": email, "password": pw})
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}

	var pair auth.TokenPair
	decodeBody(t, w, &pair)
	return pair
}
