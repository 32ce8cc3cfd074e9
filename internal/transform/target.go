package transform

import "fmt"

// EventType is the Dynatrace event type an AWS Health event is reported as.
type EventType string

const (
	EventTypeAvailability     EventType = "AVAILABILITY_EVENT"
	EventTypeCustomAnnotation EventType = "CUSTOM_ANNOTATION"
)

// TargetEvent is the payload accepted by the Dynatrace events ingest API.
type TargetEvent struct {
	EventType      EventType      `json:"eventType"`
	Title          string         `json:"title"`
	Timeout        int            `json:"timeout"`
	EntitySelector string         `json:"entitySelector,omitempty"`
	StartTime      *int64         `json:"startTime,omitempty"`
	EndTime        *int64         `json:"endTime,omitempty"`
	Properties     map[string]any `json:"properties"`
}

// UnmappedCategoryError reports an eventTypeCategory with no Dynatrace event type.
type UnmappedCategoryError struct {
	Category string
}

func (e *UnmappedCategoryError) Error() string {
	return fmt.Sprintf("no mapping of eventTypeCategory %q to a Dynatrace event type", e.Category)
}
