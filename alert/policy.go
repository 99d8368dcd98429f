package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/notify"
	"github.com/iEdgir01/traffic-manager/traffic"
)

const (
	ColorHeavy    = 0xFF0000
	ColorRecovery = 0x00FF00

	DefaultSegmentLimit = 4
)

type Kind int

const (
	KindNone Kind = iota
	KindCongestion
	KindRecovery
)

func (k Kind) String() string {
	switch k {
	case KindCongestion:
		return "congestion"
	case KindRecovery:
		return "recovery"
	default:
		return "none"
	}
}

type Decision struct {
	Kind  Kind
	Color int
}

func (d Decision) Alert() bool { return d.Kind != KindNone }

// Decide compares the stored state with a fresh classification. Every Heavy
// result alerts; a Heavy to Normal transition alerts as a recovery. Error and
// Unknown never alert. An empty previous state means the route was never checked.
func Decide(previous, current models.State) Decision {
	switch {
	case current.Is(models.StateHeavy):
		return Decision{Kind: KindCongestion, Color: ColorHeavy}
	case current.Is(models.StateNormal) && previous.Is(models.StateHeavy):
		return Decision{Kind: KindRecovery, Color: ColorRecovery}
	default:
		return Decision{Kind: KindNone}
	}
}

func ShouldAlert(previous, current string) bool {
	return Decide(models.State(previous), models.State(current)).Alert()
}

// Sentence is the read-aloud summary line for an alert.
func Sentence(name string, v *traffic.Verdict, d Decision) string {
	switch d.Kind {
	case KindCongestion:
		return fmt.Sprintf("Heavy traffic detected on %s, current delay is %d minutes.", name, v.TotalDelay)
	case KindRecovery:
		return fmt.Sprintf("You can expect normal travel times on %s.", name)
	default:
		return fmt.Sprintf("Traffic status update for %s.", name)
	}
}

// SummarizeSegments lists at most limit heavy segments, one per line.
func SummarizeSegments(segments []traffic.Segment, limit int) string {
	if len(segments) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = DefaultSegmentLimit
	}
	shown := segments
	if len(shown) > limit {
		shown = shown[:limit]
	}

	lines := make([]string, 0, len(shown)+1)
	for _, s := range shown {
		lines = append(lines, fmt.Sprintf("- %s: %d→%d (+%dm)", s.Instruction, s.Normal, s.Live, s.Delay))
	}
	if len(segments) > limit {
		lines = append(lines, fmt.Sprintf("...and %d more segments", len(segments)-limit))
	}
	return strings.Join(lines, "\n")
}

// Compose builds the chat message for a route whose check produced an alert.
func Compose(route *models.Route, v *traffic.Verdict, d Decision, now time.Time, segmentLimit int) notify.Message {
	title := "Traffic Status"
	if route.Priority == models.PriorityHigh {
		title = "[HIGH] " + title
	}

	segments := SummarizeSegments(v.HeavySegments, segmentLimit)
	if segments == "" {
		segments = "None"
	}

	return notify.Message{
		Title:       title,
		Description: "**Route:** " + route.Name,
		Color:       d.Color,
		Timestamp:   now,
		Fields: []notify.Field{
			{Name: "State", Value: string(v.State), Inline: true},
			{Name: "Distance", Value: fmt.Sprintf("%.2f km", v.DistanceKm), Inline: true},
			{Name: "Live Time", Value: fmt.Sprintf("%d min", v.TotalLive), Inline: true},
			{Name: "Normal Time", Value: fmt.Sprintf("%d min", v.TotalNormal), Inline: true},
			{Name: "Delay", Value: fmt.Sprintf("%d min", v.TotalDelay), Inline: true},
			{Name: "Heavy Segments", Value: segments},
			{Name: "Summary", Value: Sentence(route.Name, v, d)},
		},
	}
}
