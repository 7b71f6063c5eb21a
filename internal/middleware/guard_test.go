package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/auth"
	"github.com/orgnest/orgnest/internal/password"
	"github.com/orgnest/orgnest/internal/revocation"
	"github.com/orgnest/orgnest/internal/storage"
	"github.com/orgnest/orgnest/internal/token"
)

type singleUserStore struct {
	user *storage.User
}

func (s *singleUserStore) FindByEmail(_ context.Context, email string) (*storage.User, error) {
	if s.user != nil && s.user.Email == email {
		cp := *s.user
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (s *singleUserStore) Create(_ context.Context, _ *storage.User) error { return nil }

func (s *singleUserStore) SetRefreshToken(_ context.Context, _, _ string) error { return nil }

func (s *singleUserStore) SwapRefreshToken(_ context.Context, _, _, _ string) error { return nil }

func guardedRouter(t *testing.T) (*gin.Engine, *token.Codec) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	codec, err := token.NewCodec([]byte("guard-test-secret"), token.AlgHS256)
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

	store := &singleUserStore{user: &storage.User{Name: "Alice", Email: "alice@example.com"}}
	engine, err := auth.NewEngine(auth.Config{
		AccessTTL:  time.Second,
		RefreshTTL: time.Minute,
	}, codec, hasher, store, revocation.NewStore(rdb), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	r := gin.New()
	r.GET("/whoami", Guard(engine), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	return r, codec
}

func get(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardResolvesUser(t *testing.T) {
	r, codec := guardedRouter(t)

	access, err := codec.Issue("alice@example.com", time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	w := get(r, "Bearer "+access)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token returned %d: %s", w.Code, w.Body.String())
	}
}

func TestGuardUniform401(t *testing.T) {
	r, codec := guardedRouter(t)

	expired, err := codec.Issue("alice@example.com", time.Millisecond)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	unknown, err := codec.Issue("nobody@example.com", time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := map[string]string{
		"missing header":  "",
		"no bearer":       "Token abc",
		"empty token":     "Bearer ",
		"garbage":         "Bearer not.a.jwt",
		"expired":         "Bearer " + expired,
		"unknown subject": "Bearer " + unknown,
	}

	for name, header := range cases {
		w := get(r, header)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: got %d, want 401", name, w.Code)
			continue
		}
		if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("%s: WWW-Authenticate = %q", name, got)
		}
		if body := w.Body.String(); body != `{"detail":"Could not validate credentials"}` {
			t.Errorf("%s: body %q differs from the uniform response", name, body)
		}
	}
}
