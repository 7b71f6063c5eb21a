package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/password"
	"github.com/orgnest/orgnest/internal/storage"
	"github.com/orgnest/orgnest/internal/token"
)

// UserStore is the slice of the document store the engine needs. The Mongo
// implementation lives in internal/storage; tests use an in-memory fake.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*storage.User, error)
	Create(ctx context.Context, user *storage.User) error
	SetRefreshToken(ctx context.Context, email, tok string) error
	SwapRefreshToken(ctx context.Context, email, old, new string) error
}

// RevocationStore is the expiring deny-list consulted on refresh and
// written on revoke.
type RevocationStore interface {
	MarkRevoked(ctx context.Context, tok string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tok string) (bool, error)
}

// Config holds the engine knobs. Lifetimes are minutes-scale; the refresh
// lifetime must be materially longer than the access lifetime.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// StrictRotation swaps the stored refresh token with a compare-and-swap
	// on its current value, so of two concurrent refreshes exactly one
	// wins and the other gets ErrInvalidCredentials. When false, rotation
	// is a plain overwrite and the documented last-write-wins race applies.
	StrictRotation bool

	// StoreTimeout bounds every store round trip. Exceeding it surfaces as
	// ErrUnavailable rather than an open-ended wait.
	StoreTimeout time.Duration
}

// TokenPair is the triple returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Engine orchestrates the codec, hasher and stores. Safe for concurrent
// use; it holds no per-request state.
type Engine struct {
	cfg     Config
	codec   *token.Codec
	hasher  *password.Hasher
	users   UserStore
	revoked RevocationStore
	log     *zap.Logger
}

func NewEngine(cfg Config, codec *token.Codec, hasher *password.Hasher, users UserStore, revoked RevocationStore, log *zap.Logger) (*Engine, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("auth: refresh lifetime must exceed access lifetime")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if codec == nil || hasher == nil || users == nil || revoked == nil {
		return nil, errors.New("auth: missing dependency")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		cfg:     cfg,
		codec:   codec,
		hasher:  hasher,
		users:   users,
		revoked: revoked,
		log:     log,
	}, nil
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.StoreTimeout)
}

// Signup creates a user with a hashed password and no refresh token. The
// pre-check keeps the common case friendly; the store's unique email index
// is the final arbiter under concurrent duplicate signups.
func (e *Engine) Signup(ctx context.Context, name, email, plaintext string) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if _, err := e.users.FindByEmail(sctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storeErr(err)
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return err
	}

	err = e.users.Create(sctx, &storage.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return ErrEmailTaken
	}
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Login verifies the password, issues a fresh access+refresh pair and
// overwrites the stored refresh token. The previous token is thereby
// superseded without touching the revocation store. A failed login has no
// side effect.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*TokenPair, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	user, err := e.users.FindByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}

	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	pair, err := e.issuePair(user.Email)
	if err != nil {
		return nil, err
	}

	if err := e.users.SetRefreshToken(sctx, user.Email, pair.RefreshToken); err != nil {
		return nil, storeErr(err)
	}
	return pair, nil
}

// Refresh validates the presented refresh token through all three gates —
// signature/expiry, equality with the stored value, absence of a
// revocation marker — then rotates it and returns a fresh pair.
func (e *Engine) Refresh(ctx context.Context, oldToken string) (*TokenPair, error) {
	subject, _, err := e.codec.Inspect(oldToken)
	if err != nil {
		// Expired, forged and malformed tokens all collapse here.
		return nil, ErrInvalidCredentials
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	user, err := e.users.FindByEmail(sctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}

	// Equality gate: a superseded token no longer matches the stored value.
	if user.RefreshToken != oldToken {
		e.log.Info("refresh with superseded token", zap.String("user", user.Email))
		return nil, ErrInvalidCredentials
	}

	// Revocation gate: fail closed when the store cannot answer.
	revoked, err := e.revoked.IsRevoked(sctx, oldToken)
	if err != nil {
		return nil, ErrUnavailable
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	pair, err := e.issuePair(user.Email)
	if err != nil {
		return nil, err
	}

	if e.cfg.StrictRotation {
		err = e.users.SwapRefreshToken(sctx, user.Email, oldToken, pair.RefreshToken)
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent rotation won; this caller's token is superseded.
			return nil, ErrInvalidCredentials
		}
	} else {
		err = e.users.SetRefreshToken(sctx, user.Email, pair.RefreshToken)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return pair, nil
}

// Revoke marks the refresh token revoked for its remaining lifetime. Only
// the token's subject may revoke it. The stored refresh token is left in
// place: the revocation gate, not the equality gate, is what blocks reuse.
// Revoking the same token twice succeeds both times.
func (e *Engine) Revoke(ctx context.Context, tok string, actor *storage.User) error {
	subject, expiresAt, err := e.codec.Inspect(tok)
	if err != nil {
		return ErrInvalidCredentials
	}
	if actor == nil || subject != actor.Email {
		return ErrInvalidCredentials
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.revoked.MarkRevoked(sctx, tok, time.Until(expiresAt)); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Authenticate resolves a bearer access token to its user record. Every
// failure mode is reported identically so callers cannot distinguish a bad
// token from a deleted user.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*storage.User, error) {
	subject, err := e.codec.Verify(accessToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	user, err := e.users.FindByEmail(sctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	return user, nil
}

func (e *Engine) issuePair(subject string) (*TokenPair, error) {
	access, err := e.codec.Issue(subject, e.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.Issue(subject, e.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return err
}
