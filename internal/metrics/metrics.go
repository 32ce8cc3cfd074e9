// Package metrics publishes forwarding outcomes as CloudWatch custom metrics.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/awshealth2dynatrace/internal/metrics")

// Outcome is what happened to a health event.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDryRun    Outcome = "dryRun"
	OutcomeFailed    Outcome = "failed"
)

const metricName = "Events"

// Recorder records the outcome of one health event.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome, eventType string) error
}

// CloudWatchAPI defines the CloudWatch operations required to publish metrics.
type CloudWatchAPI interface {
	PutMetricData(
		ctx context.Context,
		params *cloudwatch.PutMetricDataInput,
		optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch records outcomes as an Events count with Outcome and EventType dimensions.
type CloudWatch struct {
	client    CloudWatchAPI
	namespace string
	now       func() time.Time
}

// NewCloudWatch creates a new CloudWatch recorder publishing to namespace.
func NewCloudWatch(client CloudWatchAPI, namespace string) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		now:       time.Now,
	}
}

// Record puts a single datapoint for the outcome.
func (c *CloudWatch) Record(ctx context.Context, outcome Outcome, eventType string) error {
	ctx, span := tracer.Start(ctx, "metrics.record")
	defer span.End()
	span.SetAttributes(attribute.String("metrics.outcome", string(outcome)))

	if eventType == "" {
		eventType = "UNKNOWN"
	}

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []types.MetricDatum{{
			MetricName: aws.String(metricName),
			Unit:       types.StandardUnitCount,
			Value:      aws.Float64(1),
			Timestamp:  aws.Time(c.now()),
			Dimensions: []types.Dimension{
				{Name: aws.String("Outcome"), Value: aws.String(string(outcome))},
				{Name: aws.String("EventType"), Value: aws.String(eventType)},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("cannot put metric data to %q: %w", c.namespace, err)
	}

	return nil
}

// Noop discards outcomes.
type Noop struct{}

// Record does nothing.
func (Noop) Record(context.Context, Outcome, string) error {
	return nil
}
