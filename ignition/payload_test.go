package ignition

import (
	"errors"
	"testing"
	"time"
)

func TestParsePayload(t *testing.T) {
	recv := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		payload   string
		wantOn    bool
		wantEvent time.Time
		wantErr   bool
	}{
		{"bool true", `{"Ignition On": true}`, true, recv, false},
		{"bool false", `{"Ignition On": false}`, false, recv, false},
		{"string on", `{"Ignition On": "ON"}`, true, recv, false},
		{"string zero", `{"Ignition On": "0"}`, false, recv, false},
		{"number", `{"Ignition On": 1}`, true, recv, false},
		{"number zero", `{"Ignition On": 0}`, false, recv, false},
		{"null", `{"Ignition On": null}`, false, recv, false},
		{"missing flag", `{"speed": 40}`, false, recv, false},
		{"ts field", `{"Ignition On": true, "ts": "2024-06-01T11:59:30Z"}`, true,
			time.Date(2024, 6, 1, 11, 59, 30, 0, time.UTC), false},
		{"timestamp field", `{"Ignition On": true, "timestamp": "2024-06-01T11:00:00Z"}`, true,
			time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), false},
		{"bad ts ignored", `{"Ignition On": true, "ts": "yesterday"}`, true, recv, false},
		{"not json", `Ignition On`, false, time.Time{}, true},
		{"array", `[true]`, false, time.Time{}, true},
		{"garbage flag", `{"Ignition On": "maybe"}`, false, time.Time{}, true},
		{"object flag", `{"Ignition On": {}}`, false, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload([]byte(tt.payload), recv)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("ParsePayload() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePayload() error = %v", err)
			}
			if got.On != tt.wantOn {
				t.Errorf("On = %v, want %v", got.On, tt.wantOn)
			}
			if !got.EventTime.Equal(tt.wantEvent) {
				t.Errorf("EventTime = %v, want %v", got.EventTime, tt.wantEvent)
			}
			if !got.ReceivedAt.Equal(recv) {
				t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, recv)
			}
		})
	}
}
