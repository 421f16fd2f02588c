package ingestion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies the failures a run can accumulate.
type ErrorKind string

const (
	ErrorAuth       ErrorKind = "auth"
	ErrorFetch      ErrorKind = "fetch"
	ErrorMapping    ErrorKind = "mapping"
	ErrorValidation ErrorKind = "validation"
	ErrorPersist    ErrorKind = "persist"
	ErrorBudget     ErrorKind = "budget"
)

// RunError is one recorded failure, with enough detail to reproduce it.
type RunError struct {
	Kind         ErrorKind `json:"kind"`
	SourceItemID string    `json:"source_item_id,omitempty"`
	Message      string    `json:"message"`
}

// RunRecord is the per-connector result of one ingestion run. It is created
// at run start and finalized exactly once.
type RunRecord struct {
	RunID   uuid.UUID `json:"run_id"`
	Source  string    `json:"source"`
	Success bool      `json:"success"`

	ItemsFetched int `json:"items_fetched"`
	ItemsMapped  int `json:"items_mapped"`
	ItemsFailed  int `json:"items_failed"`
	SchemaErrors int `json:"schema_errors"`

	ItemsAllowed     int `json:"items_allowed"`
	ItemsFlagged     int `json:"items_flagged"`
	ItemsQuarantined int `json:"items_quarantined"`
	ItemsRejected    int `json:"items_rejected"`
	ItemsPersisted   int `json:"items_persisted"`
	ItemsEnqueued    int `json:"items_enqueued"`

	FailureReason string     `json:"failure_reason,omitempty"`
	Errors        []RunError `json:"errors,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	finalized bool
}

func newRunRecord(source string) *RunRecord {
	return &RunRecord{
		RunID:     uuid.New(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

func (r *RunRecord) addError(kind ErrorKind, sourceItemID, message string) {
	r.Errors = append(r.Errors, RunError{Kind: kind, SourceItemID: sourceItemID, Message: message})
}

func (r *RunRecord) finalize(success bool, failureReason string) {
	if r.finalized {
		return
	}
	r.finalized = true
	r.Success = success
	r.FailureReason = failureReason
	r.Duration = time.Since(r.StartedAt)
}

// BudgetExceededError aborts a run when schema errors outgrow the configured
// fraction of fetched items. It signals a systemically broken connector, not
// a per-item problem.
type BudgetExceededError struct {
	Source       string
	SchemaErrors int
	ItemsFetched int
	Budget       float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("error budget exceeded for %s: %d schema errors in %d fetched items (budget %.2f%%)",
		e.Source, e.SchemaErrors, e.ItemsFetched, e.Budget*100)
}
