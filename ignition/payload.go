package ignition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const ignitionField = "Ignition On"

var ErrMalformedPayload = errors.New("malformed ignition payload")

// Message is one decoded ignition report.
type Message struct {
	On         bool
	EventTime  time.Time
	ReceivedAt time.Time
}

// ParsePayload decodes a JSON object carrying an "Ignition On" flag. A missing
// flag reads as off. EventTime comes from "ts" or "timestamp" (RFC3339) when
// present, otherwise it is receivedAt.
func ParsePayload(payload []byte, receivedAt time.Time) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	msg := Message{EventTime: receivedAt, ReceivedAt: receivedAt}
	if raw, ok := fields[ignitionField]; ok {
		on, err := boolish(raw)
		if err != nil {
			return Message{}, err
		}
		msg.On = on
	}

	for _, key := range []string{"ts", "timestamp"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			msg.EventTime = t
			break
		}
	}
	return msg, nil
}

func boolish(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "on", "yes", "1":
			return true, nil
		case "false", "off", "no", "0", "":
			return false, nil
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return n != 0, nil
		}
	}
	return false, fmt.Errorf("%w: %q is not a boolean", ErrMalformedPayload, ignitionField)
}
