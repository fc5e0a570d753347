package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"invocation-logger/handler"
	"invocation-logger/internal/config"
	"invocation-logger/internal/repository"
	"invocation-logger/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Configuration (resolved only here) ----
	cfg, err := config.Resolve(ctx, awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to resolve configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	// ---- Persistence client (one per process instance) ----
	dynamoClient := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	store, err := repository.New(dynamoClient, cfg.TableName)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	if err := store.Ping(ctx); err != nil {
		slog.Error("durable store unreachable", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	logService, err := usecase.NewLogService(store)
	if err != nil {
		slog.Error("failed to create log service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(logService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("lambda initialized",
		"table", cfg.TableName,
		"endpoint", config.RedactEndpoint(cfg.Endpoint),
	)
	lambda.Start(h.Handle)
}
