package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned when a source event lacks a field the transform cannot do without.
var ErrMalformedEvent = errors.New("malformed health event")

// SourceEvent is a decoded AWS Health event as delivered by EventBridge.
// The typed fields cover what the transform reads; the raw document keeps every other
// attribute so it can be carried into the target event properties.
type SourceEvent struct {
	ID      string
	Account string
	Region  string
	Detail  Detail

	raw map[string]any
}

// Detail is the service-specific part of an AWS Health event.
type Detail struct {
	EventTypeCategory string             `json:"eventTypeCategory"`
	EventTypeCode     string             `json:"eventTypeCode"`
	Service           string             `json:"service"`
	EventDescription  []EventDescription `json:"eventDescription"`

	// StartTime and EndTime are nil when the event has not started or ended yet.
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`

	// AffectedEntities is nil when absent, and empty but non-nil when sent as [].
	AffectedEntities []AffectedEntity `json:"affectedEntities"`
}

// EventDescription is one localized description of an event.
type EventDescription struct {
	Language          string `json:"language"`
	LatestDescription string `json:"latestDescription"`
}

// AffectedEntity is a resource impacted by the event. EntityARN is empty unless derived.
type AffectedEntity struct {
	EntityValue string
	EntityARN   string

	attrs map[string]any
}

// UnmarshalJSON keeps the full entity object so unknown attributes (tags, status, ...)
// survive enrichment.
func (e *AffectedEntity) UnmarshalJSON(data []byte) error {
	var attrs map[string]any
	if err := decodeJSON(data, &attrs); err != nil {
		return err
	}

	e.attrs = attrs
	switch v := attrs["entityValue"].(type) {
	case string:
		e.EntityValue = v
	case json.Number:
		e.EntityValue = v.String()
	}
	if v, ok := attrs["entityARN"].(string); ok {
		e.EntityARN = v
	}

	return nil
}

// Attributes returns a copy of the entity object, including a derived entityARN.
func (e AffectedEntity) Attributes() map[string]any {
	out := make(map[string]any, len(e.attrs)+2)
	for k, v := range e.attrs {
		out[k] = v
	}
	if _, ok := out["entityValue"]; !ok && e.EntityValue != "" {
		out["entityValue"] = e.EntityValue
	}
	if e.EntityARN != "" {
		out["entityARN"] = e.EntityARN
	}

	return out
}

// ParseSourceEvent decodes a single AWS Health event.
func ParseSourceEvent(data []byte) (*SourceEvent, error) {
	var raw map[string]any
	if err := decodeJSON(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: event is not an object", ErrMalformedEvent)
	}

	var envelope struct {
		ID      string          `json:"id"`
		Account string          `json:"account"`
		Region  string          `json:"region"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	if len(envelope.Detail) == 0 || bytes.Equal(envelope.Detail, []byte("null")) {
		return nil, fmt.Errorf("%w: detail missing", ErrMalformedEvent)
	}

	var detail Detail
	if err := json.Unmarshal(envelope.Detail, &detail); err != nil {
		return nil, fmt.Errorf("%w: detail: %w", ErrMalformedEvent, err)
	}

	if detail.EventDescription == nil {
		return nil, fmt.Errorf("%w: detail.eventDescription missing", ErrMalformedEvent)
	}

	return &SourceEvent{
		ID:      envelope.ID,
		Account: envelope.Account,
		Region:  envelope.Region,
		Detail:  detail,
		raw:     raw,
	}, nil
}

// Raw returns the decoded event document. Callers must not modify it.
func (e *SourceEvent) Raw() map[string]any {
	return e.raw
}

// withAffectedEntities returns a copy of the raw document whose detail.affectedEntities
// holds the given entities. The original document is left untouched.
func (e *SourceEvent) withAffectedEntities(entities []AffectedEntity) map[string]any {
	out := make(map[string]any, len(e.raw))
	for k, v := range e.raw {
		out[k] = v
	}

	if entities == nil {
		return out
	}

	srcDetail, _ := e.raw["detail"].(map[string]any)
	detail := make(map[string]any, len(srcDetail)+1)
	for k, v := range srcDetail {
		detail[k] = v
	}

	list := make([]any, len(entities))
	for i, ae := range entities {
		list[i] = ae.Attributes()
	}
	detail["affectedEntities"] = list
	out["detail"] = detail

	return out
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
