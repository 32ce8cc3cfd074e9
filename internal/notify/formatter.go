// Package notify reports events that could not be forwarded to Dynatrace.
package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/transform"
)

// Failure describes a health event that could not be delivered.
type Failure struct {
	EventID       string
	EventTypeCode string
	Event         *transform.TargetEvent
	Err           error
	Timestamp     time.Time
}

// maxSubjectLength is the SNS limit for message subjects.
const maxSubjectLength = 100

// FormatSubject returns the SNS subject for a failure.
func FormatSubject(f *Failure) string {
	subject := "AWS Health forwarding failed"
	if f.EventTypeCode != "" {
		subject += " - " + f.EventTypeCode
	}

	return truncate(subject, maxSubjectLength)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}

// FormatText converts a failure to a human-readable text message.
func FormatText(f *Failure) string {
	var msg strings.Builder

	msg.WriteString("AWS Health event could not be sent to Dynatrace\n")
	msg.WriteString("\nEventID: ")
	msg.WriteString(f.EventID)

	if e := f.Event; e != nil {
		msg.WriteString("\nTitle: ")
		msg.WriteString(e.Title)
		msg.WriteString("\nEventType: ")
		msg.WriteString(string(e.EventType))
		msg.WriteString("\nEntitySelector: ")
		msg.WriteString(e.EntitySelector)

		if e.StartTime != nil {
			fmt.Fprintf(&msg, "\nStartTime: %s", time.UnixMilli(*e.StartTime).UTC().Format(time.RFC3339))
		}
	}

	if f.Err != nil {
		msg.WriteString("\nError: ")
		msg.WriteString(f.Err.Error())
	}

	fmt.Fprintf(&msg, "\n\nTimestamp: %s", f.Timestamp.UTC().Format(time.RFC3339))

	return msg.String()
}
