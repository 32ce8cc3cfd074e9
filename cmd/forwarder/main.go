package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/config"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/dynatrace"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/handler"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/metrics"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/notify"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/secret"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/telemetry"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

var version = "dev"

func main() {
	startTime := time.Now()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	logger.Info("starting aws health forwarder", slog.String("version", version))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("cannot load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("cannot load aws config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	var tokens dynatrace.TokenProvider = secret.Static(cfg.APIToken)
	if cfg.APIToken == "" {
		smClient := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			o.Region = cfg.SecretRegion
		})
		tokens = secret.NewSecretsManager(smClient, cfg.SecretID)
	}

	dtClient := dynatrace.NewClient(
		&http.Client{Timeout: cfg.RequestTimeout},
		cfg.DynatraceURL,
		tokens,
		version,
		logger,
	)

	opts := []handler.Option{handler.WithDryRun(cfg.DryRun)}

	if cfg.FailureTopicARN != "" {
		opts = append(opts, handler.WithNotifier(notify.NewSNS(sns.NewFromConfig(awsCfg), cfg.FailureTopicARN)))
	}

	if cfg.MetricsNamespace != "" {
		opts = append(opts, handler.WithRecorder(metrics.NewCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.MetricsNamespace)))
	}

	tp, err := telemetry.NewTracerProvider(ctx, version)
	if err != nil {
		logger.Error("cannot initialize tracer provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("cannot shutdown tracer provider", slog.String("error", err.Error()))
		}
	}()

	logger.Info(
		"started aws health forwarder",
		slog.String("dynatraceUrl", cfg.DynatraceURL),
		slog.String("region", cfg.AWSRegion),
		slog.Bool("dryRun", cfg.DryRun),
		slog.Bool("failureNotifications", cfg.FailureTopicARN != ""),
		slog.Float64("initDurationSec", time.Since(startTime).Seconds()),
	)

	h := handler.NewEventHandler(transform.NewTransformer(logger), dtClient, logger, opts...)
	lambda.Start(
		otellambda.InstrumentHandler(
			h.HandleRequest,
			otellambda.WithTracerProvider(tp),
			otellambda.WithFlusher(tp)),
	)
}
