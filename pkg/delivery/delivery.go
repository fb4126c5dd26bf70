// Package delivery sends a finished artifact through the credential proxy and reports one outcome.
package delivery

import (
	"context"
	"errors"
	"strings"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/t3xtart/pkg/artifact"
	"github.com/umputun/t3xtart/pkg/auth"
	"github.com/umputun/t3xtart/pkg/kakao"
)

// PayloadHeader opens every delivered message.
const PayloadHeader = "🎨 t3xtart 도착!"

// diagnostic reasons.
const (
	ReasonDelivered = "delivered"
	ReasonExpired   = "authorization expired"
)

// Outcome is the terminal result of one delivery.
type Outcome struct {
	Delivered bool
	Reason    string
}

//go:generate moq -out mocks/sender.go -pkg mocks -skip-ensure -fmt goimports . Sender

// Sender is the messaging call, e.g. kakao.Client.
type Sender interface {
	Send(ctx context.Context, token, text string) error
}

// Invoker runs an authorized operation, e.g. auth.Proxy.
type Invoker interface {
	Invoke(ctx context.Context, op auth.Op) error
}

// Coordinator composes the payload and sends it through the proxy.
type Coordinator struct {
	proxy  Invoker
	sender Sender
	log    lgr.L
}

// NewCoordinator makes a Coordinator.
func NewCoordinator(proxy Invoker, sender Sender, log lgr.L) *Coordinator {
	if log == nil {
		log = lgr.NoOp
	}
	return &Coordinator{proxy: proxy, sender: sender, log: log}
}

// Deliver sends the grid with its originating request. no retries beyond the proxy's
// single refresh-and-retry. once started, a delivery is not canceled by the caller,
// the send and refresh timeouts bound it.
func (c *Coordinator) Deliver(ctx context.Context, g artifact.Grid, request string) Outcome {
	payload := Payload(g, request)
	err := c.proxy.Invoke(context.WithoutCancel(ctx), func(ctx context.Context, token string) error {
		return c.sender.Send(ctx, token, payload)
	})
	out := outcome(err)
	if out.Delivered {
		c.log.Logf("[INFO] delivered %d rows", len(g.Rows))
	} else {
		c.log.Logf("[WARN] delivery failed: %s", out.Reason)
	}
	return out
}

// Payload renders the message text: header, artifact, and the request line when set.
func Payload(g artifact.Grid, request string) string {
	var b strings.Builder
	b.WriteString(PayloadHeader)
	b.WriteString("\n\n")
	b.WriteString(g.Text())
	if r := strings.TrimSpace(request); r != "" {
		b.WriteString("\n\n요청: ")
		b.WriteString(r)
	}
	return b.String()
}

func outcome(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Delivered: true, Reason: ReasonDelivered}
	case errors.Is(err, auth.ErrNoCredential):
		return Outcome{Reason: "credential unavailable: " + err.Error()}
	case errors.Is(err, auth.ErrExpired):
		return Outcome{Reason: ReasonExpired}
	case errors.Is(err, kakao.ErrRejected):
		return Outcome{Reason: err.Error()}
	default:
		return Outcome{Reason: "delivery rejected: " + err.Error()}
	}
}
