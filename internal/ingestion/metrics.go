package ingestion

import (
	"sync"
	"time"
)

// SourceStats are running totals for one source across runs.
type SourceStats struct {
	Runs         int           `json:"runs"`
	Successes    int           `json:"successes"`
	ItemsFetched int64         `json:"items_fetched"`
	ItemsMapped  int64         `json:"items_mapped"`
	ItemsFailed  int64         `json:"items_failed"`
	SchemaErrors int64         `json:"schema_errors"`
	ErrorRate    float64       `json:"error_rate"`
	AvgDuration  time.Duration `json:"avg_duration"`
}

// Tracker aggregates run records per source. It is an explicit instance
// owned by whoever constructs the runner, not a package singleton.
type Tracker struct {
	mu    sync.Mutex
	stats map[string]*SourceStats
}

func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*SourceStats)}
}

func (t *Tracker) Record(rec *RunRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[rec.Source]
	if !ok {
		s = &SourceStats{}
		t.stats[rec.Source] = s
	}

	// Rolling average over all runs seen so far.
	total := s.AvgDuration*time.Duration(s.Runs) + rec.Duration
	s.Runs++
	s.AvgDuration = total / time.Duration(s.Runs)

	if rec.Success {
		s.Successes++
	}
	s.ItemsFetched += int64(rec.ItemsFetched)
	s.ItemsMapped += int64(rec.ItemsMapped)
	s.ItemsFailed += int64(rec.ItemsFailed)
	s.SchemaErrors += int64(rec.SchemaErrors)
	if s.ItemsFetched > 0 {
		s.ErrorRate = float64(s.ItemsFailed+s.SchemaErrors) / float64(s.ItemsFetched)
	}
}

// Snapshot returns a copy of the per-source totals.
func (t *Tracker) Snapshot() map[string]SourceStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]SourceStats, len(t.stats))
	for source, s := range t.stats {
		out[source] = *s
	}
	return out
}
