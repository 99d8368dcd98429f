package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MaxHistory is the number of check results kept per route.
const MaxHistory = 20

type State string

const (
	StateNormal  State = "Normal"
	StateHeavy   State = "Heavy"
	StateError   State = "Error"
	StateUnknown State = "Unknown"
)

// Is compares states case-insensitively.
func (s State) Is(other State) bool {
	return strings.EqualFold(string(s), string(other))
}

type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)

// ParsePriority accepts the full names and the H/N shorthands.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "N", "NORMAL":
		return PriorityNormal, true
	case "H", "HIGH":
		return PriorityHigh, true
	default:
		return "", false
	}
}

type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	NormalTime *int      `json:"normal_time,omitempty"`
	State      State     `json:"state"`
}

type Route struct {
	ID              int64                              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name            string                             `gorm:"column:name;uniqueIndex" json:"name"`
	StartLat        float64                            `gorm:"column:start_lat" json:"start_lat"`
	StartLng        float64                            `gorm:"column:start_lng" json:"start_lng"`
	EndLat          float64                            `gorm:"column:end_lat" json:"end_lat"`
	EndLng          float64                            `gorm:"column:end_lng" json:"end_lng"`
	LastNormalTime  *int                               `gorm:"column:last_normal_time" json:"last_normal_time"`
	LastState       *string                            `gorm:"column:last_state" json:"last_state"`
	HistoricalTimes datatypes.JSONType[[]HistoryEntry] `gorm:"column:historical_times" json:"historical_times"`
	Priority        Priority                           `gorm:"column:priority;default:Normal" json:"priority"`
}

func (Route) TableName() string { return "routes" }

func (r Route) History() []HistoryEntry {
	return r.HistoricalTimes.Data()
}

func (r *Route) SetHistory(h []HistoryEntry) {
	r.HistoricalTimes = datatypes.NewJSONType(h)
}

// PreviousState is the stored last state, empty when the route was never checked.
func (r Route) PreviousState() State {
	if r.LastState == nil {
		return ""
	}
	return State(*r.LastState)
}

type ConfigEntry struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name  string `gorm:"column:name;uniqueIndex"`
	Value string `gorm:"column:value"`
}

func (ConfigEntry) TableName() string { return "config" }
