package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/traffic"
)

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		previous, current string
		want              bool
	}{
		{"Normal", "Normal", false},
		{"Heavy", "Heavy", true},
		{"Heavy", "Normal", true},
		{"", "Normal", false},
		{"", "Heavy", true},
		{"heavy", "NORMAL", true},
		{"Normal", "heavy", true},
		{"Heavy", "Error", false},
		{"Heavy", "Unknown", false},
		{"Error", "Normal", false},
	}
	for _, tt := range tests {
		t.Run(tt.previous+"->"+tt.current, func(t *testing.T) {
			if got := ShouldAlert(tt.previous, tt.current); got != tt.want {
				t.Errorf("ShouldAlert(%q, %q) = %v, want %v", tt.previous, tt.current, got, tt.want)
			}
		})
	}
}

func TestDecideColors(t *testing.T) {
	assert.Equal(t, Decision{Kind: KindCongestion, Color: ColorHeavy}, Decide(models.StateNormal, models.StateHeavy))
	assert.Equal(t, Decision{Kind: KindRecovery, Color: ColorRecovery}, Decide(models.StateHeavy, models.StateNormal))
	assert.False(t, Decide(models.StateNormal, models.StateNormal).Alert())
}

func segments(n int) []traffic.Segment {
	out := make([]traffic.Segment, n)
	for i := range out {
		out[i] = traffic.Segment{Instruction: "Step " + string(rune('A'+i)), Normal: 2, Live: 9, Delay: 7}
	}
	return out
}

func TestSummarizeSegments(t *testing.T) {
	assert.Equal(t, "", SummarizeSegments(nil, 4))
	assert.Equal(t, "- Step A: 2→9 (+7m)", SummarizeSegments(segments(1), 4))

	got := SummarizeSegments(segments(6), 4)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "- Step D: 2→9 (+7m)", lines[3])
	assert.Equal(t, "...and 2 more segments", lines[4])

	assert.Len(t, strings.Split(SummarizeSegments(segments(4), 4), "\n"), 4, "no suffix at the limit")
}

func TestComposeCongestion(t *testing.T) {
	route := &models.Route{Name: "Home to Work", Priority: models.PriorityHigh}
	v := &traffic.Verdict{
		State:         models.StateHeavy,
		TotalNormal:   30,
		TotalLive:     40,
		TotalDelay:    10,
		DistanceKm:    3,
		HeavySegments: segments(5),
	}
	now := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	msg := Compose(route, v, Decide("", v.State), now, 4)

	assert.Equal(t, "[HIGH] Traffic Status", msg.Title)
	assert.Equal(t, "**Route:** Home to Work", msg.Description)
	assert.Equal(t, ColorHeavy, msg.Color)
	assert.Equal(t, now, msg.Timestamp)
	require.Len(t, msg.Fields, 7)

	values := map[string]string{}
	for _, f := range msg.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "Heavy", values["State"])
	assert.Equal(t, "3.00 km", values["Distance"])
	assert.Equal(t, "40 min", values["Live Time"])
	assert.Equal(t, "30 min", values["Normal Time"])
	assert.Equal(t, "10 min", values["Delay"])
	assert.Contains(t, values["Heavy Segments"], "...and 1 more segments")
	assert.Equal(t, "Heavy traffic detected on Home to Work, current delay is 10 minutes.", values["Summary"])
}

func TestComposeRecovery(t *testing.T) {
	route := &models.Route{Name: "School Run", Priority: models.PriorityNormal}
	v := &traffic.Verdict{State: models.StateNormal, TotalNormal: 12, TotalLive: 13, TotalDelay: 1, DistanceKm: 4.567}

	msg := Compose(route, v, Decide(models.StateHeavy, v.State), time.Now(), 4)

	assert.Equal(t, "Traffic Status", msg.Title)
	assert.Equal(t, ColorRecovery, msg.Color)
	assert.Equal(t, "4.57 km", msg.Fields[1].Value)
	assert.Equal(t, "None", msg.Fields[5].Value)
	assert.Equal(t, "You can expect normal travel times on School Run.", msg.Fields[6].Value)
}
