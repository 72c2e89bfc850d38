// Package auth keeps the session's access token valid. The coordinator wraps
// the refresh endpoint in a single-flight group so that any number of
// concurrent callers inside the expiry margin share exactly one network call
// and its result.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
	"github.com/thinhng24/CollabSphere-sub001/internal/token"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrRefreshFailed means the refresh token is invalid or expired, or the
	// refresh endpoint rejected the pair. Fatal to the session: the stored
	// credentials are cleared and the caller must re-authenticate.
	ErrRefreshFailed = errors.New("credential refresh failed")

	// ErrNotAuthenticated means no credential is held at all.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// RefreshMargin is how close to access-token expiry a refresh is triggered.
const RefreshMargin = 30 * time.Second

// RefreshClient is the refresh endpoint (implemented by rest.Client).
type RefreshClient interface {
	Refresh(ctx context.Context, accessToken, refreshToken string) (token.Credential, error)
}

// CredentialStore is the durable credential persistence (implemented by
// storage.DB). Writes are best-effort: a persistence failure is logged, never
// propagated.
type CredentialStore interface {
	SaveCredential(token.Credential) error
	ClearCredential() error
}

// Coordinator guards the token store with single-flight refresh semantics.
type Coordinator struct {
	tokens  *token.Store
	client  RefreshClient
	durable CredentialStore
	bus     *bus.Bus
	logger  *zap.Logger
	group   singleflight.Group
	margin  time.Duration
}

// NewCoordinator creates a coordinator. durable and b may be nil in tests.
func NewCoordinator(tokens *token.Store, client RefreshClient, durable CredentialStore, b *bus.Bus, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		tokens:  tokens,
		client:  client,
		durable: durable,
		bus:     b,
		logger:  logger,
		margin:  RefreshMargin,
	}
}

// EnsureValidToken returns a credential whose access token is outside the
// expiry margin, refreshing it first if needed. Concurrent callers share one
// refresh call and all receive the same credential or the same error.
func (c *Coordinator) EnsureValidToken(ctx context.Context) (token.Credential, error) {
	cred, ok := c.tokens.Current()
	if !ok {
		return token.Credential{}, ErrNotAuthenticated
	}
	if !cred.AccessExpiresWithin(c.margin) {
		return cred, nil
	}
	if cred.RefreshExpired() {
		// Fail fast: the server would reject the pair anyway, so no call.
		c.invalidate()
		return token.Credential{}, fmt.Errorf("refresh token expired: %w", ErrRefreshFailed)
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return token.Credential{}, err
	}
	return v.(token.Credential), nil
}

// AccessToken is a rest.TokenSource adapter.
func (c *Coordinator) AccessToken(ctx context.Context) (string, error) {
	cred, err := c.EnsureValidToken(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// refresh runs inside the single-flight group.
func (c *Coordinator) refresh(ctx context.Context) (token.Credential, error) {
	// A just-finished flight may have refreshed already.
	cred, ok := c.tokens.Current()
	if !ok {
		return token.Credential{}, ErrNotAuthenticated
	}
	if !cred.AccessExpiresWithin(c.margin) {
		return cred, nil
	}

	fresh, err := c.client.Refresh(ctx, cred.AccessToken, cred.RefreshToken)
	if err != nil {
		c.logger.Warn("credential refresh rejected", zap.Error(err))
		c.invalidate()
		return token.Credential{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	c.tokens.Set(fresh)
	if c.durable != nil {
		// Best-effort: a page-reload resume is nice to have, not load-bearing.
		if err := c.durable.SaveCredential(fresh); err != nil {
			c.logger.Warn("failed to persist refreshed credentials", zap.Error(err))
		}
	}
	c.logger.Info("credentials refreshed",
		zap.Time("access_expires_at", fresh.AccessExpiresAt))

	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: "session.credentials_changed"})
	}
	return fresh, nil
}

// invalidate clears in-memory and durable credentials and announces the end
// of the session.
func (c *Coordinator) invalidate() {
	c.tokens.Clear()
	if c.durable != nil {
		if err := c.durable.ClearCredential(); err != nil {
			c.logger.Warn("failed to clear persisted credentials", zap.Error(err))
		}
	}
	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: "session.expired"})
	}
}
