// Package publish re-emits AWS Health events onto an EventBridge bus.
package publish

import (
	"context"
	"errors"
	"fmt"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/awshealth2dynatrace/internal/publish")

// EventBridgeAPI defines required EventBridge operations.
type EventBridgeAPI interface {
	PutEvents(
		ctx context.Context,
		params *eventbridge.PutEventsInput,
		optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher puts health events on an EventBridge bus so the deployed rule can route them
// to the forwarder.
type Publisher struct {
	client       EventBridgeAPI
	eventBusName string
}

// NewPublisher creates a new EventBridge publisher.
func NewPublisher(client EventBridgeAPI, eventBusName string) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
	}
}

// Entry builds the PutEvents entry for an event. Account, region, id and time are
// assigned by EventBridge.
func (p *Publisher) Entry(event lambdaevents.CloudWatchEvent) (types.PutEventsRequestEntry, error) {
	if len(event.Detail) == 0 {
		return types.PutEventsRequestEntry{}, errors.New("event has no detail")
	}

	return types.PutEventsRequestEntry{
		Detail:       aws.String(string(event.Detail)),
		DetailType:   aws.String(event.DetailType),
		EventBusName: aws.String(p.eventBusName),
		Resources:    event.Resources,
		Source:       aws.String(event.Source),
	}, nil
}

// Publish sends a health event to EventBridge.
func (p *Publisher) Publish(ctx context.Context, event lambdaevents.CloudWatchEvent) error {
	ctx, span := tracer.Start(ctx, "publish.eventbridge")
	defer span.End()
	span.SetAttributes(
		attribute.String("eventbus.name", p.eventBusName),
		attribute.String("event.source", event.Source),
	)

	entry, err := p.Entry(event)
	if err != nil {
		return fmt.Errorf("cannot build entry: %w", err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("cannot put event: %w", err)
	}

	if out.FailedEntryCount > 0 {
		if len(out.Entries) == 0 {
			return errors.New("event rejected")
		}
		e := out.Entries[0]
		return fmt.Errorf("event rejected: %s - %s",
			aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
	}

	return nil
}
