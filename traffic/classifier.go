package traffic

import (
	"context"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/iEdgir01/traffic-manager/geo"
	"github.com/iEdgir01/traffic-manager/models"
)

var tagPattern = regexp.MustCompile(`<.*?>`)

type Segment struct {
	Instruction string  `json:"instruction"`
	Normal      int     `json:"normal"`
	Live        int     `json:"live"`
	Delay       int     `json:"delay"`
	Factor      float64 `json:"factor"`
}

type Verdict struct {
	State         models.State `json:"state"`
	TotalNormal   int          `json:"total_normal"`
	TotalLive     int          `json:"total_live"`
	TotalDelay    int          `json:"total_delay"`
	DistanceKm    float64      `json:"distance_km"`
	HeavySegments []Segment    `json:"heavy_segments"`
	Summary       string       `json:"summary"`
	StartAddress  string       `json:"start_address"`
	EndAddress    string       `json:"end_address"`
	Polyline      string       `json:"-"`
	Threshold     Threshold    `json:"threshold"`
}

type ThresholdSource interface {
	Load(ctx context.Context) ([]Threshold, error)
}

type Classifier struct {
	directions DirectionsClient
	thresholds ThresholdSource
}

func NewClassifier(directions DirectionsClient, thresholds ThresholdSource) *Classifier {
	return &Classifier{directions: directions, thresholds: thresholds}
}

// Classify queries live directions for the pair and classifies the fastest
// route. baseline is the historical normal time in minutes, nil when unknown.
func (c *Classifier) Classify(ctx context.Context, origin, destination geo.Coord, baseline *float64) (*Verdict, error) {
	thresholds, err := c.thresholds.Load(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.directions.Directions(ctx, origin, destination)
	if err != nil {
		return nil, err
	}
	return Evaluate(resp, baseline, thresholds)
}

func minutes(d *Duration) int {
	if d == nil || d.Value <= 0 {
		return 0
	}
	return int(d.Value / 60)
}

func hasTraffic(r Route) bool {
	return len(r.Legs) > 0 && r.Legs[0].DurationInTraffic != nil
}

// Evaluate turns a directions response into a verdict without any I/O.
func Evaluate(resp *DirectionsResponse, baseline *float64, thresholds []Threshold) (*Verdict, error) {
	if resp == nil || len(resp.Routes) == 0 {
		return nil, ErrNoRoutes
	}

	var fastest *Route
	for i := range resp.Routes {
		r := &resp.Routes[i]
		if !hasTraffic(*r) {
			continue
		}
		if fastest == nil || r.Legs[0].DurationInTraffic.Value < fastest.Legs[0].DurationInTraffic.Value {
			fastest = r
		}
	}
	if fastest == nil {
		return nil, ErrNoRouteFound
	}

	leg := fastest.Legs[0]
	if leg.Duration == nil || leg.Distance == nil {
		return nil, fmt.Errorf("%w: leg is missing duration or distance", ErrMalformedResponse)
	}

	v := &Verdict{
		TotalNormal:   minutes(leg.Duration),
		TotalLive:     minutes(leg.DurationInTraffic),
		DistanceKm:    float64(leg.Distance.Value) / 1000,
		HeavySegments: []Segment{},
		Summary:       fastest.Summary,
		StartAddress:  leg.StartAddress,
		EndAddress:    leg.EndAddress,
		Polyline:      fastest.OverviewPolyline.Points,
	}
	v.TotalDelay = max(0, v.TotalLive-v.TotalNormal)

	effectiveNormal := float64(v.TotalNormal)
	if baseline != nil && *baseline > 0 {
		effectiveNormal = *baseline
	}

	t := Lookup(thresholds, v.DistanceKm)
	v.Threshold = t

	heavy := float64(v.TotalDelay) >= t.DelayTotal ||
		(effectiveNormal > 0 && float64(v.TotalLive) >= effectiveNormal*t.FactorTotal)

	for _, step := range leg.Steps {
		if step.DurationInTraffic == nil {
			continue
		}
		normal := minutes(step.Duration)
		if normal == 0 {
			continue
		}
		live := minutes(step.DurationInTraffic)
		delay := max(0, live-normal)

		if float64(delay) >= t.DelayStep || float64(live) >= float64(normal)*t.FactorStep {
			heavy = true
			v.HeavySegments = append(v.HeavySegments, Segment{
				Instruction: CleanInstruction(step.HTMLInstructions),
				Normal:      normal,
				Live:        live,
				Delay:       delay,
				Factor:      math.Round(float64(live)/float64(normal)*100) / 100,
			})
		}
	}

	v.State = models.StateNormal
	if heavy {
		v.State = models.StateHeavy
	}
	return v, nil
}

// CleanInstruction strips markup from a step instruction and decodes entities.
func CleanInstruction(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}
