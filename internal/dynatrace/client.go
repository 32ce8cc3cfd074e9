// Package dynatrace sends events to the Dynatrace events ingest API.
package dynatrace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/awshealth2dynatrace/internal/dynatrace")

const ingestPath = "/api/v2/events/ingest"

// ErrUnexpectedResponse is returned when Dynatrace does not acknowledge every event.
var ErrUnexpectedResponse = errors.New("dynatrace returned unexpected response")

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider supplies the API token used to authenticate requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// IngestResponse is the body returned by the events ingest API.
type IngestResponse struct {
	ReportCount        *int           `json:"reportCount"`
	EventIngestResults []IngestResult `json:"eventIngestResults"`
}

// IngestResult is the outcome for one ingested event.
type IngestResult struct {
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
}

// Client posts events to a Dynatrace environment.
type Client struct {
	http      HTTPDoer
	baseURL   string
	tokens    TokenProvider
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a new Client for the environment at baseURL, e.g.
// https://abc12345.live.dynatrace.com.
func NewClient(httpClient HTTPDoer, baseURL string, tokens TokenProvider, version string, logger *slog.Logger) *Client {
	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		tokens:    tokens,
		userAgent: "awshealth2dynatrace/" + version,
		logger:    logger,
	}
}

// Send ingests the event and discards the response body.
func (c *Client) Send(ctx context.Context, event *transform.TargetEvent) error {
	_, err := c.Ingest(ctx, event)
	return err
}

// Ingest posts the event and validates that Dynatrace reported every result as OK.
func (c *Client) Ingest(ctx context.Context, event *transform.TargetEvent) (*IngestResponse, error) {
	ctx, span := tracer.Start(ctx, "dynatrace.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("dynatrace.event_type", string(event.EventType)),
		attribute.String("dynatrace.url", c.baseURL),
	)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot get api token: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ingestPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Token "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot post event to dynatrace: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read dynatrace response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %s", ErrUnexpectedResponse, resp.Status)
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnexpectedResponse)
	}

	var out IngestResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	if err := c.validate(ctx, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) validate(ctx context.Context, resp *IngestResponse) error {
	if resp.ReportCount == nil || *resp.ReportCount <= 0 {
		count := "missing"
		if resp.ReportCount != nil {
			count = fmt.Sprint(*resp.ReportCount)
		}
		return fmt.Errorf("%w: expected reportCount=1, not %s", ErrUnexpectedResponse, count)
	}

	if resp.EventIngestResults == nil {
		return fmt.Errorf("%w: eventIngestResults missing", ErrUnexpectedResponse)
	}

	failed := 0
	for i, r := range resp.EventIngestResults {
		if r.Status != "OK" {
			failed++
			c.logger.ErrorContext(ctx, "event not ingested",
				slog.Int("index", i),
				slog.String("status", r.Status),
				slog.String("correlationId", r.CorrelationID))
			continue
		}

		c.logger.InfoContext(ctx, "event successfully created",
			slog.String("correlationId", r.CorrelationID))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d results not OK",
			ErrUnexpectedResponse, failed, len(resp.EventIngestResults))
	}

	return nil
}
