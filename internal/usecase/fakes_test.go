package usecase

import (
	"context"
	"fmt"
	"sync"
)

type fakeCreds struct {
	key   string
	ok    bool
	calls int
}

func (f *fakeCreds) Secret(_ context.Context) (string, bool) {
	f.calls++
	return f.key, f.ok
}

func present() *fakeCreds { return &fakeCreds{key: "sk-test", ok: true} }
func absent() *fakeCreds  { return &fakeCreds{} }

type genCall struct {
	apiKey string
	model  string
	prompt string
}

// fakeGen records calls and optionally blocks until release is closed.
type fakeGen struct {
	text    string
	err     error
	release chan struct{}
	started chan struct{}

	mu    sync.Mutex
	calls []genCall
}

func (f *fakeGen) Generate(_ context.Context, apiKey, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, genCall{apiKey: apiKey, model: model, prompt: prompt})
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.text, f.err
}

func (f *fakeGen) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGuard struct {
	held       map[string]string // session -> owner
	acquireErr error
	releaseErr error
	released   []string
	owners     []string
	seq        int
}

func newFakeGuard() *fakeGuard { return &fakeGuard{held: map[string]string{}} }

func (g *fakeGuard) Acquire(_ context.Context, sessionID string) (string, bool, error) {
	if g.acquireErr != nil {
		return "", false, g.acquireErr
	}
	if _, ok := g.held[sessionID]; ok {
		return "", false, nil
	}
	g.seq++
	owner := fmt.Sprintf("owner-%d", g.seq)
	g.held[sessionID] = owner
	return owner, true, nil
}

func (g *fakeGuard) Release(_ context.Context, sessionID, owner string) error {
	if g.held[sessionID] == owner {
		delete(g.held, sessionID)
	}
	g.released = append(g.released, sessionID)
	g.owners = append(g.owners, owner)
	return g.releaseErr
}
