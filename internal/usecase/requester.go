package usecase

import (
	"context"
	"errors"
	"sync"

	"insight-agent/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateBusy
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Generator is satisfied by *InsightService.
type Generator interface {
	Generate(ctx context.Context, word string) (domain.InsightResult, error)
}

// Requester holds the insight state of one interactive surface. While a call is
// outstanding further submissions are ignored rather than queued.
type Requester struct {
	gen Generator

	mu        sync.Mutex
	state     State
	result    domain.InsightResult
	hasResult bool
}

func NewRequester(gen Generator) (*Requester, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	return &Requester{gen: gen}, nil
}

// Submit runs one insight request for raw and blocks until it settles. It
// reports false, leaving all state untouched, when raw is blank or a request
// is already in flight.
func (r *Requester) Submit(ctx context.Context, raw string) bool {
	if !(domain.InsightRequest{RawInput: raw}).Valid() {
		return false
	}

	r.mu.Lock()
	if r.state == StateBusy {
		r.mu.Unlock()
		return false
	}
	r.state = StateBusy
	r.result = domain.InsightResult{}
	r.hasResult = false
	r.mu.Unlock()

	result := domain.Fallback()
	defer func() {
		r.mu.Lock()
		r.result = result
		r.hasResult = true
		r.state = StateResolved
		r.mu.Unlock()
	}()

	out, err := r.gen.Generate(ctx, raw)
	if err == nil {
		result = out
	}
	return true
}

func (r *Requester) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the current insight, if one has been resolved since the last
// submission started.
func (r *Requester) Result() (domain.InsightResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.hasResult
}

// CanSubmit reports whether the submit control should be enabled for raw.
func (r *Requester) CanSubmit(raw string) bool {
	return r.State() != StateBusy && (domain.InsightRequest{RawInput: raw}).Valid()
}
