package store

import "github.com/iEdgir01/traffic-manager/models"

// AppendHistory adds entry and drops the oldest entries beyond limit.
func AppendHistory(history []models.HistoryEntry, entry models.HistoryEntry, limit int) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, entry)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
