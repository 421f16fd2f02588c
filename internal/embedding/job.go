package embedding

import (
	"fmt"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
)

// Priority orders jobs within the queue. All high jobs drain before any
// normal job, and all normal before any low; within a band jobs drain in
// enqueue order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Job is one pending embedding request. Attempts counts how many times a
// worker has dequeued it.
type Job struct {
	ItemID     string         `json:"item_id"`
	Text       string         `json:"text"`
	Domain     content.Domain `json:"domain"`
	Priority   Priority       `json:"priority"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	Attempts   int            `json:"attempts"`
}

func (j *Job) validate() error {
	if j.ItemID == "" {
		return fmt.Errorf("embedding job missing item id")
	}
	if j.Text == "" {
		return fmt.Errorf("embedding job %s has empty text", j.ItemID)
	}
	if !j.Priority.Valid() {
		return fmt.Errorf("embedding job %s has invalid priority %q", j.ItemID, j.Priority)
	}
	return nil
}

// priorityWindowMillis separates the priority bands in the sorted-set score
// space. Ten years in milliseconds, far wider than any realistic backlog, so
// bands can never interleave.
const priorityWindowMillis = int64(10 * 365 * 24 * time.Hour / time.Millisecond)

// jobScore maps a job onto the queue's sorted-set score: enqueue time in
// millis shifted down a band for high priority and up a band for low.
func jobScore(j *Job) float64 {
	score := j.EnqueuedAt.UnixMilli()
	switch j.Priority {
	case PriorityHigh:
		score -= priorityWindowMillis
	case PriorityLow:
		score += priorityWindowMillis
	}
	return float64(score)
}
