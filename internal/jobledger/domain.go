package jobledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChangeType classifies a material-line edit on a job.
type ChangeType string

const (
	ChangeTypeAdded   ChangeType = "ADDED"
	ChangeTypeUpdated ChangeType = "UPDATED"
	ChangeTypeDeleted ChangeType = "DELETED"
)

// MaterialSnapshot captures one material line of a job's cost estimate at a
// point in time. Snapshots are immutable once written.
type MaterialSnapshot struct {
	MaterialName string          `json:"material_name"`
	PaperSize    string          `json:"paper_size,omitempty"`
	PaperType    string          `json:"paper_type,omitempty"`
	Grammage     string          `json:"grammage,omitempty"`
	Quantity     int64           `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// EditEntry is one append-only row of a job's material edit history: a paired
// previous/new snapshot with the derived change type and a mandatory reason.
type EditEntry struct {
	ID         int64
	JobID      string
	EditorID   int64
	EditedAt   time.Time
	EditReason string
	ChangeType ChangeType
	Previous   *MaterialSnapshot
	New        *MaterialSnapshot
}

// EditReasonMinLength is the minimum accepted reason length.
const EditReasonMinLength = 5

var (
	// ErrJobNotFound indicates an unknown job id.
	ErrJobNotFound = errors.New("jobledger: job not found")
)

// ValidationError carries the field at fault so the boundary can report it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("jobledger: invalid %s: %s", e.Field, e.Reason)
}
