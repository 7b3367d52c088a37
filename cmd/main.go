package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"lifestory-agent/handler"
	"lifestory-agent/internal/catalog"
	"lifestory-agent/internal/config"
	"lifestory-agent/internal/integrations/paramstore"
	"lifestory-agent/internal/integrations/provider"
	"lifestory-agent/internal/repository"
	"lifestory-agent/internal/session"
	"lifestory-agent/internal/trace"
	"lifestory-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		fatal("failed to create state client", err)
	}
	settings, err := provider.NewParamSettings(ssmClient, cfg.ParamPrefix, cfg.LLMProvider)
	if err != nil {
		fatal("failed to create provider settings", err)
	}
	router, err := provider.NewRouter(settings)
	if err != nil {
		fatal("failed to create provider router", err)
	}
	catalogStore, err := catalog.Open(cfg.CatalogDSN)
	if err != nil {
		fatal("failed to open catalog", err)
	}
	sessions, err := session.New(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.SessionTTL)
	if err != nil {
		fatal("failed to create session store", err)
	}
	traceLog, err := trace.New(cfg.TraceLogPath)
	if err != nil {
		fatal("failed to create trace log", err)
	}

	// ---- Use cases ----
	replies, err := usecase.NewReplyService(stateClient, catalogStore, catalogStore, router, traceLog, logger)
	if err != nil {
		fatal("failed to create reply service", err)
	}
	summaries, err := usecase.NewSummaryService(stateClient, stateClient, router, logger)
	if err != nil {
		fatal("failed to create summary service", err)
	}
	personas, err := usecase.NewPersonaService(catalogStore, sessions, logger)
	if err != nil {
		fatal("failed to create persona service", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(replies, summaries, personas, sessions, logger)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
