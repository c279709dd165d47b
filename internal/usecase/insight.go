package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"insight-agent/internal/domain"
)

const (
	DefaultModel      = "gemini-3-flash-preview"
	defaultMaxWordLen = 200
)

// CredentialProvider returns the access token for the text-generation service,
// or false when none is configured.
type CredentialProvider interface {
	Secret(ctx context.Context) (string, bool)
}

type TextGenerator interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// SessionGuard marks a session as having a request in flight. Acquire returns
// an owner token; Release only clears a marker that owner still holds.
type SessionGuard interface {
	Acquire(ctx context.Context, sessionID string) (owner string, acquired bool, err error)
	Release(ctx context.Context, sessionID, owner string) error
}

type InsightService struct {
	creds      CredentialProvider
	gen        TextGenerator
	guard      SessionGuard
	model      string
	maxWordLen int
	log        *slog.Logger
}

type SubmitInput struct {
	SessionID string
	Word      string
}

type SubmitOutput struct {
	SessionID string
	Result    domain.InsightResult
}

// NewInsightService wires the insight flow. guard may be nil, in which case
// Submit does not coordinate between concurrent calls for the same session.
func NewInsightService(creds CredentialProvider, gen TextGenerator, guard SessionGuard, model string, maxWordLen int, log *slog.Logger) (*InsightService, error) {
	if creds == nil {
		return nil, errors.New("usecase: credential provider must not be nil")
	}
	if gen == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if maxWordLen <= 0 {
		maxWordLen = defaultMaxWordLen
	}
	if log == nil {
		log = slog.Default()
	}
	return &InsightService{
		creds:      creds,
		gen:        gen,
		guard:      guard,
		model:      model,
		maxWordLen: maxWordLen,
		log:        log,
	}, nil
}

// Generate turns a feeling word into an insight. The only error it returns is
// INVALID_INPUT for blank input; every other failure yields the fallback result.
func (s *InsightService) Generate(ctx context.Context, word string) (domain.InsightResult, error) {
	req := domain.InsightRequest{RawInput: word}
	if !req.Valid() {
		return domain.InsightResult{}, newError(ErrorInvalidInput, "empty_word", nil)
	}

	apiKey, ok := s.creds.Secret(ctx)
	if !ok {
		return s.fallback(ctx, reasonMissingCredential, nil), nil
	}

	text, err := s.gen.Generate(ctx, apiKey, s.model, buildInsightPrompt(req.Word()))
	if err != nil {
		return s.fallback(ctx, reasonGenerationError, err), nil
	}
	if strings.TrimSpace(text) == "" {
		return s.fallback(ctx, reasonEmptyResponse, nil), nil
	}
	return domain.Generated(text), nil
}

// Submit is Generate for callers identified by a session, allowing at most one
// in-flight request per session when a guard is configured.
func (s *InsightService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	word := strings.TrimSpace(in.Word)
	if word == "" {
		return SubmitOutput{}, newError(ErrorInvalidInput, "empty_word", nil)
	}
	if utf8.RuneCountInString(word) > s.maxWordLen {
		return SubmitOutput{}, newError(ErrorInvalidInput, "word_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}

	if s.guard != nil {
		owner, acquired, err := s.guard.Acquire(ctx, sessionID)
		switch {
		case err != nil:
			// The guard is advisory; a storage outage must not take the widget down.
			s.log.WarnContext(ctx, "session guard acquire failed", "session_id", sessionID, "err", err)
		case !acquired:
			return SubmitOutput{}, newError(ErrorBusy, "request_in_flight", nil)
		default:
			defer func() {
				if err := s.guard.Release(context.WithoutCancel(ctx), sessionID, owner); err != nil {
					s.log.WarnContext(ctx, "session guard release failed", "session_id", sessionID, "err", err)
				}
			}()
		}
	}

	result, err := s.Generate(ctx, word)
	if err != nil {
		return SubmitOutput{}, err
	}
	return SubmitOutput{SessionID: sessionID, Result: result}, nil
}

func (s *InsightService) fallback(ctx context.Context, reason string, err error) domain.InsightResult {
	attrs := []any{"reason", reason, "model", s.model}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	s.log.WarnContext(ctx, "serving fallback insight", attrs...)
	return domain.Fallback()
}

var newUUID = func() string {
	return uuid.NewString()
}
