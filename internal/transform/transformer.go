// Package transform converts AWS Health events into Dynatrace event ingest payloads.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/awshealth2dynatrace/internal/transform")

// Transformer builds Dynatrace events from AWS Health events.
// It holds no per-event state and is safe for concurrent use.
type Transformer struct {
	logger *slog.Logger
}

// NewTransformer creates a new Transformer. Degraded conversions are logged as warnings.
func NewTransformer(logger *slog.Logger) *Transformer {
	return &Transformer{
		logger: logger,
	}
}

// Transform converts a source event into a Dynatrace event.
// It fails with *UnmappedCategoryError for unknown categories and with ErrMalformedEvent
// when a time field cannot be parsed. The source event is not modified.
func (t *Transformer) Transform(ctx context.Context, event *SourceEvent) (*TargetEvent, error) {
	ctx, span := tracer.Start(ctx, "transform.event")
	defer span.End()
	span.SetAttributes(
		attribute.String("health.category", event.Detail.EventTypeCategory),
		attribute.String("health.service", event.Detail.Service),
	)

	eventType, err := MapEventType(event.Detail.EventTypeCategory)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	target := &TargetEvent{
		EventType:      eventType,
		Title:          t.BuildTitle(ctx, event),
		Timeout:        DefaultTimeout,
		EntitySelector: DefaultEntitySelector(event.Account),
		Properties: map[string]any{
			"_type": PropertyType,
		},
	}

	entities := t.DeriveEntityARNs(ctx, event)

	if start := event.Detail.StartTime; start != nil && *start != "" {
		ms, err := ParseTime(*start)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("cannot convert startTime: %w", err)
		}
		target.StartTime = &ms
	}

	if end := event.Detail.EndTime; end != nil && *end != "" {
		ms, err := ParseTime(*end)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("cannot convert endTime: %w", err)
		}
		target.EndTime = &ms
	}

	if entities != nil {
		if selector, ok := t.BuildEntitySelector(ctx, event.Detail.Service, entities); ok {
			target.EntitySelector = selector
		}
	}

	target.Properties = FlattenProperties(target.Properties, event.withAffectedEntities(entities))

	return target, nil
}

// BuildTitle renders the event title from category, code, service and the en_US description.
func (t *Transformer) BuildTitle(ctx context.Context, event *SourceEvent) string {
	d := event.Detail
	return fmt.Sprintf("AWS Health: %s/%s impacting %s: %s",
		d.EventTypeCategory,
		d.EventTypeCode,
		d.Service,
		t.ResolveDescription(ctx, d.EventDescription, DefaultLocale))
}

// ResolveDescription returns the description for the locale, the first one if several match,
// and "-" if none does.
func (t *Transformer) ResolveDescription(ctx context.Context, descriptions []EventDescription, locale string) string {
	var matches []EventDescription
	for _, d := range descriptions {
		if d.Language == locale {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		t.logger.WarnContext(ctx, "no eventDescription for locale; using placeholder",
			slog.String("locale", locale))
		return missingDescription
	case 1:
		return matches[0].LatestDescription
	default:
		t.logger.WarnContext(ctx, "multiple eventDescription entries match locale; using first",
			slog.String("locale", locale),
			slog.Int("matches", len(matches)))
		return matches[0].LatestDescription
	}
}

// DeriveEntityARNs returns the affected entities with entityARN set where the service has an
// ARN template. It returns nil when the event has no affectedEntities.
func (t *Transformer) DeriveEntityARNs(ctx context.Context, event *SourceEvent) []AffectedEntity {
	src := event.Detail.AffectedEntities
	if src == nil {
		return nil
	}

	out := make([]AffectedEntity, len(src))
	copy(out, src)

	tmpl, ok := entityARNTemplate(event.Detail.Service)
	if !ok {
		t.logger.WarnContext(ctx, "no entityARN mapping for service; entities left unchanged",
			slog.String("service", event.Detail.Service))
		return out
	}

	for i := range out {
		if out[i].EntityValue == "" {
			t.logger.WarnContext(ctx, "affected entity has no entityValue; entityARN not derived",
				slog.Int("index", i))
			continue
		}
		out[i].EntityARN = render(tmpl, map[string]string{
			"partition": DefaultPartition,
			"service":   event.Detail.Service,
			"region":    event.Region,
			"account":   event.Account,
			"resource":  out[i].EntityValue,
		})
	}

	return out
}

// BuildEntitySelector renders the service's selector template with the quoted entity ARNs.
// It reports false when the service has no selector mapping.
func (t *Transformer) BuildEntitySelector(ctx context.Context, service string, entities []AffectedEntity) (string, bool) {
	tmpl, ok := entitySelectorTemplate(service)
	if !ok {
		t.logger.WarnContext(ctx, "no entitySelector mapping for service; event associated with AWS_CREDENTIALS",
			slog.String("service", service))
		return "", false
	}

	arns := make([]string, 0, len(entities))
	for _, ae := range entities {
		if ae.EntityARN == "" {
			continue
		}
		arns = append(arns, `"`+ae.EntityARN+`"`)
	}

	return render(tmpl, map[string]string{"arns": strings.Join(arns, ",")}), true
}
