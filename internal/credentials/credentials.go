// Package credentials resolves the access token for the generative-text service.
// Absence of a token is an expected runtime condition, so providers report
// (value, ok) instead of failing.
package credentials

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Env reads the token from a process environment variable.
type Env struct {
	Key string
}

func (e Env) Secret(_ context.Context) (string, bool) {
	v, ok := os.LookupEnv(e.Key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// TokenGetter is satisfied by *paramstore.Client.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// SSM reads the token from Parameter Store. A successful lookup is kept for the
// lifetime of the process; failures are retried on the next call.
type SSM struct {
	getter TokenGetter
	name   string
	log    *slog.Logger

	mu    sync.Mutex
	token string
}

func NewSSM(getter TokenGetter, paramPrefix string, log *slog.Logger) *SSM {
	if log == nil {
		log = slog.Default()
	}
	return &SSM{
		getter: getter,
		name:   TokenParameterName(paramPrefix),
		log:    log,
	}
}

// TokenParameterName is where the Gemini token lives under prefix.
func TokenParameterName(prefix string) string {
	return strings.TrimRight(strings.TrimSpace(prefix), "/") + "/gemini-token"
}

func (s *SSM) Secret(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, true
	}
	if s.getter == nil {
		return "", false
	}
	token, err := s.getter.GetToken(ctx, s.name)
	if err != nil {
		s.log.WarnContext(ctx, "credential lookup failed", "param", s.name, "err", err)
		return "", false
	}
	s.token = token
	return token, true
}
