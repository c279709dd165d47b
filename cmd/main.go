package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"insight-agent/handler"
	"insight-agent/internal/config"
	"insight-agent/internal/credentials"
	"insight-agent/internal/integrations/gemini"
	"insight-agent/internal/integrations/paramstore"
	"insight-agent/internal/repository"
	"insight-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	var creds usecase.CredentialProvider
	switch cfg.CredentialSource {
	case config.CredentialSourceSSM:
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			log.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		creds = credentials.NewSSM(ssmClient, cfg.ParamPrefix, log)
	default:
		creds = credentials.Env{Key: cfg.APIKeyVar}
	}

	var guard usecase.SessionGuard
	if cfg.SessionTable != "" {
		sessionGuard, err := repository.NewSessionGuard(awsdynamodb.NewFromConfig(awsCfg), cfg.SessionTable, cfg.SessionTTL)
		if err != nil {
			log.Error("failed to create session guard", "err", err)
			os.Exit(1)
		}
		guard = sessionGuard
	}

	geminiClient := gemini.NewClient(
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)

	// ---- Handler ----
	insights, err := usecase.NewInsightService(creds, geminiClient, guard, cfg.GeminiModel, cfg.MaxWordLength, log)
	if err != nil {
		log.Error("failed to create insight service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(insights, handler.WithAllowedOrigin(cfg.AllowedOrigin), handler.WithLogger(log))
	if err != nil {
		log.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
