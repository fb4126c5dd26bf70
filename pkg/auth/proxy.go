package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-pkgz/lgr"
)

// Op is an authorized operation. it returns an error wrapping ErrExpired when the token was rejected.
type Op func(ctx context.Context, token string) error

// Proxy runs operations with the shared credential and retries once after a refresh.
type Proxy struct {
	cred *Credential
	log  lgr.L
}

// NewProxy makes a Proxy over cred.
func NewProxy(cred *Credential, log lgr.L) *Proxy {
	if log == nil {
		log = lgr.NoOp
	}
	return &Proxy{cred: cred, log: log}
}

// State returns the state of the underlying credential.
func (p *Proxy) State() State { return p.cred.State() }

// Invoke calls op with the current token. on ErrExpired it refreshes once and calls op one
// more time, returning that result as is. op is called at most twice and the credential is
// refreshed at most once per Invoke. without a token, Invoke refreshes first and fails with
// ErrNoCredential if that doesn't work. caller cancellation doesn't reach op or the refresh.
func (p *Proxy) Invoke(ctx context.Context, op Op) error {
	ctx = context.WithoutCancel(ctx)
	token, ok := p.cred.Token()
	refreshed := false
	if !ok {
		p.log.Logf("[INFO] no bearer token, refreshing")
		t, err := p.cred.Refresh(ctx, "")
		if err != nil {
			if errors.Is(err, ErrNoCredential) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrNoCredential, err)
		}
		token, refreshed = t, true
	}

	err := op(ctx, token)
	if err == nil || !errors.Is(err, ErrExpired) {
		return err
	}
	if refreshed {
		p.log.Logf("[WARN] freshly refreshed token rejected: %v", err)
		return err
	}

	p.log.Logf("[INFO] authorization expired, refreshing token")
	newToken, rerr := p.cred.Refresh(ctx, token)
	if rerr != nil {
		p.log.Logf("[WARN] token refresh failed: %v", rerr)
		return err
	}
	return op(ctx, newToken)
}
