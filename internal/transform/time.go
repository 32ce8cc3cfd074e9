package transform

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are tried in order. AWS Health sends RFC 1123 dates; the JavaScript
// Date.toString form shows up in hand-written and replayed sample events.
var timeLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339Nano,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// utcAbbreviations are the zone names accepted by the layouts ending in MST. Go parses
// any other abbreviation it does not know as offset 0.
var utcAbbreviations = map[string]bool{
	"GMT": true,
	"UTC": true,
	"UT":  true,
}

// ParseTime converts a date-time string to Unix epoch milliseconds.
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)

	// Date.toString appends the zone name, e.g. "GMT+0200 (Central European Summer Time)".
	if i := strings.Index(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		s = s[:i]
	}

	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}

		if strings.HasSuffix(layout, "MST") {
			if name, _ := t.Zone(); !utcAbbreviations[name] {
				return 0, fmt.Errorf("%w: unsupported time zone %q in %q", ErrMalformedEvent, name, s)
			}
		}

		return t.UnixMilli(), nil
	}

	return 0, fmt.Errorf("%w: cannot parse time %q", ErrMalformedEvent, s)
}
