// Package backend calls text-generation backends in priority order and returns the first usable text.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single backend call when the descriptor doesn't set one.
const DefaultTimeout = 60 * time.Second

// ErrorClass classifies the outcome of a single backend attempt.
type ErrorClass string

// error classes, ClassNone means the attempt produced text.
const (
	ClassNone      ErrorClass = "none"
	ClassTransient ErrorClass = "transient" // 5xx, timeout, connection failure
	ClassQuota     ErrorClass = "quota"     // rate limit or quota exhausted
	ClassPermanent ErrorClass = "permanent" // rejected: auth, permission, bad request
	ClassEmpty     ErrorClass = "empty"     // success without text
)

// Kind selects the generator implementation for a descriptor.
type Kind string

// supported generator kinds.
const (
	KindGemini    Kind = "gemini"
	KindOpenAI    Kind = "openai"
	KindCommand   Kind = "command"
	KindContainer Kind = "container"
)

// Descriptor describes one configured backend candidate.
type Descriptor struct {
	Name      string
	Kind      Kind
	Endpoint  string
	Model     string
	MaxOutput int           // output budget passed to the backend
	Timeout   time.Duration // per-call bound, DefaultTimeout if zero
}

// Candidates is an ordered, read-only list of descriptors, built once at configuration time.
type Candidates struct {
	list []Descriptor
}

// NewCandidates makes Candidates from descriptors, keeping their order.
func NewCandidates(ds ...Descriptor) Candidates {
	return Candidates{list: append([]Descriptor(nil), ds...)}
}

// All returns a copy of the descriptors in priority order.
func (c Candidates) All() []Descriptor {
	return append([]Descriptor(nil), c.list...)
}

// Len returns the number of candidates.
func (c Candidates) Len() int { return len(c.list) }

// Request is a single generation request.
type Request struct {
	Subject    string       // what the user asked for
	Prefilled  string       // text already generated by the caller, used by the container kind
	Candidates []Descriptor // priority order, first usable result wins
}

// Prompt is what a generator receives.
type Prompt struct {
	Instruction string // master instruction, may be empty
	Subject     string
	Prefilled   string
	MaxOutput   int
}

// Attempt records one backend call.
type Attempt struct {
	Backend  string
	Class    ErrorClass
	Duration time.Duration
	Err      error
}

// Result is the outcome of Orchestrator.Generate.
// HasText is false when every candidate failed, Class then holds the last observed failure.
type Result struct {
	Backend  string
	Text     string
	HasText  bool
	Class    ErrorClass
	Attempts []Attempt
}

//go:generate moq -out mocks/generator.go -pkg mocks -skip-ensure -fmt goimports . Generator

// Generator produces text for a prompt. empty text with nil error means "no output".
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ErrQuota marks rate-limit and quota failures detected without an HTTP status.
var ErrQuota = errors.New("quota exceeded")

// StatusError is a non-2xx response from a backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Classify maps a generator error to an ErrorClass.
// status 429 is a quota failure, 408 and 5xx are transient, other 4xx are permanent.
// errors without a status (timeouts, refused connections, crashed commands) are transient.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrQuota) {
		return ClassQuota
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return ClassQuota
		case se.Code == http.StatusRequestTimeout || se.Code >= 500:
			return ClassTransient
		case se.Code >= 400:
			return ClassPermanent
		}
		return ClassTransient
	}

	return ClassTransient
}

// truncateBody shortens response bodies kept in errors.
func truncateBody(b []byte) string {
	const maxLen = 256
	if len(b) > maxLen {
		return string(b[:maxLen]) + "..."
	}
	return string(b)
}
