// Package handler processes a single AWS Health event: transform, then skip, return or send.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/metrics"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/notify"
	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

// Transformer converts AWS Health events into Dynatrace events.
type Transformer interface {
	Transform(ctx context.Context, event *transform.SourceEvent) (*transform.TargetEvent, error)
}

// Sender delivers a Dynatrace event.
type Sender interface {
	Send(ctx context.Context, event *transform.TargetEvent) error
}

// Notifier reports events that could not be delivered.
type Notifier interface {
	Notify(ctx context.Context, f *notify.Failure) error
}

// Option configures an EventHandler.
type Option func(*EventHandler)

// WithDryRun makes the handler return transformed events instead of sending them.
func WithDryRun(dryRun bool) Option {
	return func(h *EventHandler) {
		h.dryRun = dryRun
	}
}

// WithNotifier reports delivery failures to n.
func WithNotifier(n Notifier) Option {
	return func(h *EventHandler) {
		h.notifier = n
	}
}

// WithRecorder records event outcomes to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(h *EventHandler) {
		h.recorder = r
	}
}

type EventHandler struct {
	transformer Transformer
	sender      Sender
	notifier    Notifier
	recorder    metrics.Recorder
	dryRun      bool
	logger      *slog.Logger
}

func NewEventHandler(transformer Transformer, sender Sender, logger *slog.Logger, opts ...Option) *EventHandler {
	h := &EventHandler{
		transformer: transformer,
		sender:      sender,
		recorder:    metrics.Noop{},
		logger:      logger,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleRequest is the Lambda entry point. Events that cannot be transformed are logged and
// dropped, since a retry would fail the same way. Delivery errors are returned so the
// invocation is retried.
func (h *EventHandler) HandleRequest(ctx context.Context, payload json.RawMessage) (*transform.TargetEvent, error) {
	event, err := transform.ParseSourceEvent(payload)
	if err != nil {
		h.logger.ErrorContext(
			ctx,
			"cannot parse health event",
			slog.String("eventId", peekEventID(payload)),
			slog.String("error", err.Error()),
		)
		h.record(ctx, metrics.OutcomeFailed, "")
		return nil, nil
	}

	return h.Process(ctx, event)
}

// Process transforms a parsed event and, unless it already ended or dry-run is set, sends it.
// The transformed event is returned only in dry-run mode.
func (h *EventHandler) Process(ctx context.Context, event *transform.SourceEvent) (*transform.TargetEvent, error) {
	dtEvent, err := h.transformer.Transform(ctx, event)
	if err != nil {
		var unmapped *transform.UnmappedCategoryError
		level := slog.LevelError
		if errors.As(err, &unmapped) {
			level = slog.LevelWarn
		}

		h.logger.Log(
			ctx,
			level,
			"cannot transform health event",
			slog.String("eventId", event.ID),
			slog.String("error", err.Error()),
		)
		h.record(ctx, metrics.OutcomeFailed, "")
		return nil, nil
	}

	eventType := string(dtEvent.EventType)

	if dtEvent.EndTime != nil {
		h.logger.InfoContext(ctx, "skipping event as endTime is set", slog.String("eventId", event.ID))
		h.record(ctx, metrics.OutcomeSkipped, eventType)
		return nil, nil
	}

	if h.dryRun {
		h.logger.InfoContext(ctx, "returning transformed health event only", slog.String("eventId", event.ID))
		h.record(ctx, metrics.OutcomeDryRun, eventType)
		return dtEvent, nil
	}

	h.logger.InfoContext(ctx, "sending health event to dynatrace", slog.String("eventId", event.ID))

	if err := h.sender.Send(ctx, dtEvent); err != nil {
		h.logger.ErrorContext(
			ctx,
			"cannot send health event",
			slog.String("eventId", event.ID),
			slog.String("error", err.Error()),
		)
		h.notifyFailure(ctx, event, dtEvent, err)
		h.record(ctx, metrics.OutcomeFailed, eventType)
		return nil, err
	}

	h.record(ctx, metrics.OutcomeForwarded, eventType)

	return nil, nil
}

func (h *EventHandler) notifyFailure(ctx context.Context, event *transform.SourceEvent, dtEvent *transform.TargetEvent, cause error) {
	if h.notifier == nil {
		return
	}

	err := h.notifier.Notify(ctx, &notify.Failure{
		EventID:       event.ID,
		EventTypeCode: event.Detail.EventTypeCode,
		Event:         dtEvent,
		Err:           cause,
		Timestamp:     time.Now(),
	})
	if err != nil {
		h.logger.ErrorContext(
			ctx,
			"cannot send failure notification",
			slog.String("eventId", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *EventHandler) record(ctx context.Context, outcome metrics.Outcome, eventType string) {
	if err := h.recorder.Record(ctx, outcome, eventType); err != nil {
		h.logger.WarnContext(ctx, "cannot record metric",
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()))
	}
}

func peekEventID(payload []byte) string {
	var envelope struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &envelope)
	return envelope.ID
}
