package traffic

import (
	"gonum.org/v1/gonum/stat"

	"github.com/iEdgir01/traffic-manager/models"
)

// Baseline reduces a route's history to the mean of its recorded normal
// times. ok is false when no entry carries a normal time.
func Baseline(history []models.HistoryEntry) (mean float64, ok bool) {
	times := make([]float64, 0, len(history))
	for _, h := range history {
		if h.NormalTime != nil {
			times = append(times, float64(*h.NormalTime))
		}
	}
	if len(times) == 0 {
		return 0, false
	}
	return stat.Mean(times, nil), true
}
