package backend

import (
	"context"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
)

// Orchestrator tries backend candidates in order, one attempt each, and returns the first text.
type Orchestrator struct {
	generators  map[string]Generator // keyed by descriptor name
	instruction string
	log         lgr.L
}

// NewOrchestrator makes an Orchestrator. generators are keyed by descriptor name,
// instruction is prepended to every prompt.
func NewOrchestrator(generators map[string]Generator, instruction string, log lgr.L) *Orchestrator {
	if log == nil {
		log = lgr.NoOp
	}
	gens := make(map[string]Generator, len(generators))
	for k, v := range generators {
		gens[k] = v
	}
	return &Orchestrator{generators: gens, instruction: instruction, log: log}
}

// Generate calls candidates in priority order. every failure class moves on to the next
// candidate, only a non-empty text stops the loop. a call, once started, is not canceled
// by the caller's context, it ends on completion or on the descriptor timeout.
func (o *Orchestrator) Generate(ctx context.Context, req Request) Result {
	if len(req.Candidates) == 0 {
		o.log.Logf("[WARN] no backend candidates configured")
		return Result{Class: ClassPermanent}
	}

	res := Result{}
	for _, d := range req.Candidates {
		att, text := o.attempt(ctx, d, req)
		res.Attempts = append(res.Attempts, att)
		res.Backend, res.Class = d.Name, att.Class

		if att.Class == ClassNone {
			o.log.Logf("[INFO] backend %s produced %d bytes in %s", d.Name, len(text), att.Duration)
			res.Text, res.HasText = text, true
			return res
		}
		o.log.Logf("[WARN] backend %s failed (%s) in %s: %v", d.Name, att.Class, att.Duration, att.Err)
	}

	o.log.Logf("[WARN] all %d backends failed, last class %s", len(req.Candidates), res.Class)
	return res
}

// attempt makes exactly one bounded call to the descriptor's generator.
func (o *Orchestrator) attempt(ctx context.Context, d Descriptor, req Request) (Attempt, string) {
	att := Attempt{Backend: d.Name}
	gen, ok := o.generators[d.Name]
	if !ok {
		att.Class = ClassPermanent
		att.Err = &StatusError{Code: 404, Body: "no generator registered for " + d.Name}
		return att, ""
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	st := time.Now()
	text, err := gen.Generate(callCtx, Prompt{
		Instruction: o.instruction,
		Subject:     req.Subject,
		Prefilled:   req.Prefilled,
		MaxOutput:   d.MaxOutput,
	})
	att.Duration = time.Since(st)

	switch {
	case err != nil:
		att.Class, att.Err = Classify(err), err
	case strings.TrimSpace(text) == "":
		att.Class = ClassEmpty
	default:
		att.Class = ClassNone
	}
	return att, text
}
