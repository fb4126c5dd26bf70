// Package auth holds the process-wide bearer credential and runs operations with a single
// refresh-and-retry on authorization expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a refresh call when none is configured.
const DefaultRefreshTimeout = 5 * time.Second

var (
	// ErrExpired is the authorization-expired signal an operation returns to request a refresh.
	ErrExpired = errors.New("authorization expired")
	// ErrNoCredential means no bearer token is held and none could be obtained.
	ErrNoCredential = errors.New("no credential")
)

// Token is a refresh call result. Refresh is empty when the server didn't rotate it.
type Token struct {
	Access  string
	Refresh string
}

//go:generate moq -out mocks/refresher.go -pkg mocks -skip-ensure -fmt goimports . Refresher

// Refresher exchanges a refresh token for a new bearer token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}

// Credential is the shared bearer token. Reads are concurrent, refreshes are serialized
// through a single-flight group so overlapping callers share one refresh result.
type Credential struct {
	mu      sync.RWMutex
	access  string
	refresh string

	refresher  Refresher
	timeout    time.Duration
	group      singleflight.Group
	refreshing atomic.Int32
}

// NewCredential makes a Credential. access may be empty, the first Invoke then refreshes.
func NewCredential(access, refreshToken string, r Refresher, timeout time.Duration) *Credential {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Credential{access: access, refresh: refreshToken, refresher: r, timeout: timeout}
}

// Token returns the current bearer token and whether one is held.
func (c *Credential) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access, c.access != ""
}

// Refresh replaces stale with a new token. when another caller already replaced stale,
// the current token is returned without a network call. concurrent calls share one refresh.
func (c *Credential) Refresh(ctx context.Context, stale string) (string, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		if cur, ok := c.Token(); ok && cur != stale {
			return cur, nil
		}
		return c.doRefresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("wait for refresh: %w", ctx.Err())
	}
}

func (c *Credential) doRefresh(ctx context.Context) (string, error) {
	c.mu.RLock()
	refreshToken := c.refresh
	c.mu.RUnlock()
	if refreshToken == "" {
		return "", fmt.Errorf("no refresh token: %w", ErrNoCredential)
	}
	if c.refresher == nil {
		return "", fmt.Errorf("no refresher configured: %w", ErrNoCredential)
	}

	c.refreshing.Add(1)
	defer c.refreshing.Add(-1)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	tok, err := c.refresher.Refresh(rctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if tok.Access == "" {
		return "", errors.New("refresh returned empty access token")
	}

	c.mu.Lock()
	c.access = tok.Access
	if tok.Refresh != "" {
		c.refresh = tok.Refresh
	}
	c.mu.Unlock()
	return tok.Access, nil
}

// State reports the credential state.
func (c *Credential) State() State {
	if c.refreshing.Load() > 0 {
		return StateRefreshing
	}
	if _, ok := c.Token(); ok {
		return StateValid
	}
	return StateNoCredential
}

// State of the credential.
type State int

// credential states.
const (
	StateNoCredential State = iota
	StateValid
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	default:
		return "no-credential"
	}
}
