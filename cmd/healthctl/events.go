package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var errNoEvents = errors.New("no events found")

// readEvents returns the events in r, which holds either a single JSON object or an array.
func readEvents(r io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errNoEvents
	}

	if data[0] != '[' {
		if !json.Valid(data) {
			return nil, errors.New("invalid json")
		}
		return []json.RawMessage{json.RawMessage(data)}, nil
	}

	var events []json.RawMessage
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return nil, errNoEvents
	}

	return events, nil
}

func readEventFile(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	events, err := readEvents(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read events from %s: %w", path, err)
	}

	return events, nil
}
