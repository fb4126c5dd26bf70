// Package pipeline runs one request through generation, shaping and delivery,
// and resolves it to exactly one terminal status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/t3xtart/pkg/artifact"
	"github.com/umputun/t3xtart/pkg/backend"
	"github.com/umputun/t3xtart/pkg/delivery"
	"github.com/umputun/t3xtart/pkg/notify"
	"github.com/umputun/t3xtart/pkg/progress"
)

// terminal statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// user-facing messages of the terminal statuses.
const (
	MessageDelivered = "✅ 전송 완료"
	MessageFailed    = "❌ 전송 실패"
)

// ErrAllBackendsExhausted is reported when no candidate produced text.
var ErrAllBackendsExhausted = errors.New("all backends exhausted")

//go:generate moq -out mocks/generator.go -pkg mocks -skip-ensure -fmt goimports . Generator
//go:generate moq -out mocks/deliverer.go -pkg mocks -skip-ensure -fmt goimports . Deliverer

// Generator produces raw text, e.g. backend.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, req backend.Request) backend.Result
}

// Deliverer sends a grid, e.g. delivery.Coordinator.
type Deliverer interface {
	Deliver(ctx context.Context, g artifact.Grid, request string) delivery.Outcome
}

// Notifier mirrors outcomes, e.g. notify.Service. must be nil-safe and never fail the run.
type Notifier interface {
	Send(ctx context.Context, e notify.Event)
}

// Status is the terminal result of one request.
type Status struct {
	Status   string `json:"status"`  // StatusDelivered or StatusFailed
	Message  string `json:"message"` // short user-facing text
	Reason   string `json:"reason"`  // diagnostic
	Backend  string `json:"backend,omitempty"`
	Fallback bool   `json:"fallback,omitempty"` // placeholder art was delivered
	RunID    string `json:"run_id,omitempty"`
}

// Delivered reports whether the artifact reached the messaging endpoint.
func (s Status) Delivered() bool { return s.Status == StatusDelivered }

// Params configures a Pipeline.
type Params struct {
	Generator  Generator
	Normalizer artifact.Normalizer
	Deliverer  Deliverer
	Notifier   Notifier          // optional
	Journal    *progress.Journal // optional, nil writes nothing
	Log        lgr.L             // optional
}

// Pipeline composes the stages. safe for concurrent use if its collaborators are.
type Pipeline struct {
	gen      Generator
	norm     artifact.Normalizer
	deliver  Deliverer
	notifier Notifier
	journal  *progress.Journal
	log      lgr.L
}

// New makes a Pipeline.
func New(p Params) *Pipeline {
	res := &Pipeline{gen: p.Generator, norm: p.Normalizer, deliver: p.Deliverer,
		notifier: p.Notifier, journal: p.Journal, log: p.Log}
	if res.log == nil {
		res.log = lgr.NoOp
	}
	return res
}

// Run processes req sequentially: generate, parse, sanitize, normalize, validate, deliver.
// every request resolves to exactly one Status, there are no partial results.
func (p *Pipeline) Run(ctx context.Context, req backend.Request) Status {
	run := p.journal.Start(req.Subject)

	run.SetStage(progress.StageGenerate)
	res := p.gen.Generate(ctx, req)
	for _, a := range res.Attempts {
		if a.Class == backend.ClassNone {
			run.Print("backend %s ok in %s", a.Backend, a.Duration)
			continue
		}
		run.Warn("backend %s %s in %s: %v", a.Backend, a.Class, a.Duration, a.Err)
	}
	if !res.HasText {
		reason := fmt.Sprintf("%v, last failure %s", ErrAllBackendsExhausted, res.Class)
		p.log.Logf("[WARN] run %s: %s", run.ID, reason)
		return p.finish(ctx, run, req, Status{Status: StatusFailed, Reason: reason, Backend: res.Backend}, "")
	}

	run.SetStage(progress.StageShape)
	parsed, art := Shape(res.Text)
	grid, fallback := artifact.Validate(p.norm.Normalize(art))
	if fallback {
		run.Warn("empty artifact from %s, delivering placeholder", res.Backend)
	}
	if grid.Truncated {
		run.Warn("artifact truncated to %d lines", p.norm.MaxLines)
	}
	// the disclaimer note goes below the art, Width still describes the art rows
	final := artifact.Disclaimer(req.Subject, parsed.Plan, grid.Text())
	if final != grid.Text() {
		grid = artifact.Grid{Rows: strings.Split(final, "\n"), Width: grid.Width, Truncated: grid.Truncated}
	}
	if parsed.Plan != "" {
		run.Text("plan", parsed.Plan)
	}
	run.Block("artifact", grid.Text())

	run.SetStage(progress.StageDeliver)
	out := p.deliver.Deliver(ctx, grid, req.Subject)
	st := Status{Status: StatusFailed, Reason: out.Reason, Backend: res.Backend, Fallback: fallback}
	if out.Delivered {
		st.Status = StatusDelivered
	}
	return p.finish(ctx, run, req, st, grid.Text())
}

// Shape extracts the deliverable art from raw generated text. when the art after the marker
// is blank but the raw text is not, the whole text without markers is re-parsed before
// giving up, so art placed before the marker still gets delivered.
func Shape(raw string) (artifact.Parsed, string) {
	parsed := artifact.Parse(raw)
	art := artifact.Sanitize(parsed.Art)
	if strings.TrimSpace(art) != "" || strings.TrimSpace(raw) == "" {
		return parsed, art
	}

	stripped := strings.NewReplacer(artifact.ArtMarker, "", artifact.PlanMarker, "").Replace(raw)
	return parsed, artifact.Sanitize(artifact.Parse(stripped).Art)
}

// finish fills the message, closes the journal record and mirrors the outcome.
func (p *Pipeline) finish(ctx context.Context, run *progress.Run, req backend.Request, st Status, art string) Status {
	st.RunID = run.ID
	st.Message = MessageFailed
	if st.Delivered() {
		st.Message = MessageDelivered
	}
	run.Finish(st.Status, st.Reason)
	p.log.Logf("[INFO] run %s %s in %s: %s", run.ID, st.Status, run.Duration().Round(time.Millisecond), st.Reason)

	if p.notifier != nil {
		p.notifier.Send(context.WithoutCancel(ctx), notify.Event{
			RunID:    run.ID,
			Status:   st.Status,
			Request:  req.Subject,
			Backend:  st.Backend,
			Reason:   st.Reason,
			Artifact: art,
			Duration: run.Elapsed(),
		})
	}
	return st
}
