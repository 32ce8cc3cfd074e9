package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	lambdaevents "github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/dynatrace"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/publish"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/secret"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

var version = "dev"

type transformCmd struct {
	Files []string `arg:"positional,required" help:"JSON files holding one health event or an array of them"`
}

type sendCmd struct {
	URL     string        `arg:"--url,env:DT_API_URL,required" help:"Dynatrace environment URL"`
	Token   string        `arg:"--token,env:DT_API_TOKEN,required" help:"Dynatrace API token with events.ingest scope"`
	Timeout time.Duration `arg:"--timeout,env:DT_REQUEST_TIMEOUT" default:"10s"`
	Files   []string      `arg:"positional,required"`
}

type injectCmd struct {
	EventBus string   `arg:"--event-bus,env:EVENT_BUS_NAME,required" help:"EventBridge bus to put events on"`
	Region   string   `arg:"env:AWS_REGION"`
	Files    []string `arg:"positional,required"`
}

type args struct {
	Transform *transformCmd `arg:"subcommand:transform" help:"print the Dynatrace event for each health event"`
	Send      *sendCmd      `arg:"subcommand:send" help:"transform health events and send them to Dynatrace"`
	Inject    *injectCmd    `arg:"subcommand:inject" help:"put health events on an EventBridge bus"`
}

func (args) Version() string {
	return "healthctl " + version
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx := context.Background()

	var failed int
	switch {
	case a.Transform != nil:
		failed = transformFiles(ctx, logger, os.Stdout, a.Transform.Files)
	case a.Send != nil:
		failed = sendFiles(ctx, logger, a.Send)
	case a.Inject != nil:
		n, err := injectFiles(ctx, logger, a.Inject)
		if err != nil {
			logger.Error("cannot inject events", slog.String("error", err.Error()))
			os.Exit(1)
		}
		failed = n
	}

	if failed > 0 {
		logger.Error("some events failed", slog.Int("failed", failed))
		os.Exit(1)
	}
}

// eachEvent calls fn for every event in files and returns the number of events, or
// unreadable files, for which it failed.
func eachEvent(logger *slog.Logger, files []string, fn func(raw json.RawMessage) error) int {
	failed := 0
	for _, path := range files {
		events, err := readEventFile(path)
		if err != nil {
			logger.Error("cannot load events", slog.String("file", path), slog.String("error", err.Error()))
			failed++
			continue
		}

		for i, raw := range events {
			if err := fn(raw); err != nil {
				logger.Error(
					"cannot process event",
					slog.String("file", path),
					slog.Int("index", i),
					slog.String("error", err.Error()),
				)
				failed++
			}
		}
	}
	return failed
}

func transformEvent(ctx context.Context, t *transform.Transformer, raw json.RawMessage) (*transform.TargetEvent, error) {
	event, err := transform.ParseSourceEvent(raw)
	if err != nil {
		return nil, err
	}
	return t.Transform(ctx, event)
}

func transformFiles(ctx context.Context, logger *slog.Logger, w io.Writer, files []string) int {
	t := transform.NewTransformer(logger)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return eachEvent(logger, files, func(raw json.RawMessage) error {
		dtEvent, err := transformEvent(ctx, t, raw)
		if err != nil {
			return err
		}
		return enc.Encode(dtEvent)
	})
}

func sendFiles(ctx context.Context, logger *slog.Logger, cmd *sendCmd) int {
	t := transform.NewTransformer(logger)
	client := dynatrace.NewClient(
		&http.Client{Timeout: cmd.Timeout},
		cmd.URL,
		secret.Static(cmd.Token),
		version,
		logger,
	)

	return eachEvent(logger, cmd.Files, func(raw json.RawMessage) error {
		dtEvent, err := transformEvent(ctx, t, raw)
		if err != nil {
			return err
		}
		return client.Send(ctx, dtEvent)
	})
}

func injectFiles(ctx context.Context, logger *slog.Logger, cmd *injectCmd) (int, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cmd.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cmd.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return 0, fmt.Errorf("cannot load aws config: %w", err)
	}

	pub := publish.NewPublisher(eventbridge.NewFromConfig(awsCfg), cmd.EventBus)

	return eachEvent(logger, cmd.Files, func(raw json.RawMessage) error {
		var event lambdaevents.CloudWatchEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("cannot decode event: %w", err)
		}

		if err := pub.Publish(ctx, event); err != nil {
			return err
		}

		logger.Info("event injected", slog.String("eventId", event.ID), slog.String("eventBus", cmd.EventBus))
		return nil
	}), nil
}
