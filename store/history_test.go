package store

import (
	"testing"
	"time"

	"github.com/iEdgir01/traffic-manager/models"
)

func entry(n int) models.HistoryEntry {
	v := n
	return models.HistoryEntry{Timestamp: time.Unix(int64(n), 0), NormalTime: &v, State: models.StateNormal}
}

func TestAppendHistoryEvictsOldest(t *testing.T) {
	var history []models.HistoryEntry
	for i := 1; i <= models.MaxHistory; i++ {
		history = AppendHistory(history, entry(i), models.MaxHistory)
	}
	if len(history) != models.MaxHistory {
		t.Fatalf("len = %d, want %d", len(history), models.MaxHistory)
	}

	history = AppendHistory(history, entry(21), models.MaxHistory)
	if len(history) != models.MaxHistory {
		t.Fatalf("len after 21st = %d, want %d", len(history), models.MaxHistory)
	}
	if got := *history[0].NormalTime; got != 2 {
		t.Errorf("oldest kept = %d, want 2", got)
	}
	if got := *history[len(history)-1].NormalTime; got != 21 {
		t.Errorf("newest = %d, want 21", got)
	}
}

func TestAppendHistoryDoesNotAlias(t *testing.T) {
	base := make([]models.HistoryEntry, 1, 4)
	base[0] = entry(1)

	a := AppendHistory(base, entry(2), 10)
	b := AppendHistory(base, entry(3), 10)
	if *a[1].NormalTime != 2 || *b[1].NormalTime != 3 {
		t.Errorf("appends share backing array: a=%d b=%d", *a[1].NormalTime, *b[1].NormalTime)
	}
}
