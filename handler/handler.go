package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"insight-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type InsightSubmitter interface {
	Submit(ctx context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error)
}

type Handler struct {
	insights      InsightSubmitter
	allowedOrigin string
	log           *slog.Logger
}

type insightRequest struct {
	Word      string `json:"word"`
	SessionID string `json:"sessionId"`
}

type insightResponse struct {
	Insight   string `json:"insight"`
	Origin    string `json:"origin"`
	SessionID string `json:"sessionId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Option func(*Handler)

func WithAllowedOrigin(origin string) Option {
	return func(h *Handler) {
		if origin = strings.TrimSpace(origin); origin != "" {
			h.allowedOrigin = origin
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func NewHandler(insights InsightSubmitter, opts ...Option) (*Handler, error) {
	if insights == nil {
		return nil, errors.New("handler: insight submitter must not be nil")
	}
	h := &Handler{insights: insights, allowedOrigin: "*", log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves API Gateway proxy events. Failures are always expressed as
// responses; the returned error is reserved for the Lambda runtime and is nil.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	if req.HTTPMethod == http.MethodOptions {
		return h.respond(correlationID, http.StatusNoContent, nil), nil
	}

	switch strings.TrimRight(req.Path, "/") {
	case "/health":
		if req.HTTPMethod != http.MethodGet {
			return h.fail(correlationID, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"), nil
		}
		return h.respond(correlationID, http.StatusOK, map[string]string{"status": "ok"}), nil
	case "/insight":
		if req.HTTPMethod != http.MethodPost {
			return h.fail(correlationID, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"), nil
		}
		return h.handleInsight(ctx, log, correlationID, req.Body), nil
	default:
		return h.fail(correlationID, http.StatusNotFound, "NOT_FOUND"), nil
	}
}

func (h *Handler) handleInsight(ctx context.Context, log *slog.Logger, correlationID, body string) events.APIGatewayProxyResponse {
	var in insightRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		log.InfoContext(ctx, "rejecting malformed body", "err", err)
		return h.fail(correlationID, http.StatusBadRequest, string(usecase.ErrorInvalidInput))
	}

	out, err := h.insights.Submit(ctx, usecase.SubmitInput{Word: in.Word, SessionID: in.SessionID})
	if err != nil {
		status, code := mapError(err)
		log.InfoContext(ctx, "insight request failed", "status", status, "err", err)
		return h.fail(correlationID, status, code)
	}

	log.InfoContext(ctx, "insight served", "origin", string(out.Result.Origin), "session_id", out.SessionID)
	return h.respond(correlationID, http.StatusOK, insightResponse{
		Insight:   out.Result.Text,
		Origin:    string(out.Result.Origin),
		SessionID: out.SessionID,
	})
}

func mapError(err error) (int, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(ucErr.Code)
	case usecase.ErrorBusy:
		return http.StatusConflict, string(ucErr.Code)
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
}

func (h *Handler) fail(correlationID string, status int, code string) events.APIGatewayProxyResponse {
	return h.respond(correlationID, status, errorResponse{Error: code})
}

func (h *Handler) respond(correlationID string, status int, payload any) events.APIGatewayProxyResponse {
	headers := map[string]string{
		correlationHeader:              correlationID,
		"Access-Control-Allow-Origin":  h.allowedOrigin,
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, " + correlationHeader,
	}
	if payload == nil {
		return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	headers["Content-Type"] = "application/json"
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(body)}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
