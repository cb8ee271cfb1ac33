package jobledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressdesk/pressdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertEntries(ctx context.Context, entries []EditEntry) error
	ListByJob(ctx context.Context, jobID string, limit int) ([]EditEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records and lists job material edit history. The ledger is purely
// an audit trail of cost-estimate line items; it never touches physical stock.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// RecordEdit diffs the previous and new material lines of a job and appends
// one history entry per changed line. The human-supplied reason is mandatory.
func (s *Service) RecordEdit(ctx context.Context, jobID string, editorID int64, reason string, previous, next []MaterialSnapshot) ([]EditEntry, error) {
	if jobID == "" {
		return nil, &ValidationError{Field: "job_id", Reason: "required"}
	}
	if len(strings.TrimSpace(reason)) < EditReasonMinLength {
		return nil, &ValidationError{Field: "edit_reason", Reason: "must be at least 5 characters"}
	}
	for _, line := range previous {
		if err := validateSnapshot(line, "previous_materials"); err != nil {
			return nil, err
		}
	}
	for _, line := range next {
		if err := validateSnapshot(line, "new_materials"); err != nil {
			return nil, err
		}
	}

	changes := DiffLines(previous, next)
	if len(changes) == 0 {
		return []EditEntry{}, nil
	}

	now := time.Now().UTC()
	entries := make([]EditEntry, 0, len(changes))
	for _, change := range changes {
		entries = append(entries, EditEntry{
			JobID:      jobID,
			EditorID:   editorID,
			EditedAt:   now,
			EditReason: reason,
			ChangeType: change.Change,
			Previous:   change.Previous,
			New:        change.New,
		})
	}
	if err := s.repo.InsertEntries(ctx, entries); err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  editorID,
			Action:   "job:material_edit",
			Entity:   "job",
			EntityID: jobID,
			Meta: map[string]any{
				"changes": len(entries),
				"reason":  reason,
			},
		}); err != nil {
			s.logger.Warn("audit record", slog.Any("error", err), slog.String("job_id", jobID))
		}
	}
	return entries, nil
}

// ListEdits returns the append-only edit history of a job, oldest first.
func (s *Service) ListEdits(ctx context.Context, jobID string, limit int) ([]EditEntry, error) {
	if jobID == "" {
		return nil, &ValidationError{Field: "job_id", Reason: "required"}
	}
	return s.repo.ListByJob(ctx, jobID, limit)
}

// validateSnapshot enforces quantity/cost ranges and the total-cost invariant
// on every snapshot handed to the ledger.
func validateSnapshot(line MaterialSnapshot, field string) error {
	if line.MaterialName == "" {
		return &ValidationError{Field: field, Reason: "material_name required"}
	}
	if line.Quantity < 0 {
		return &ValidationError{Field: field, Reason: "quantity must not be negative"}
	}
	if line.UnitCost.IsNegative() {
		return &ValidationError{Field: field, Reason: "unit_cost must not be negative"}
	}
	expected := line.UnitCost.Mul(decimal.NewFromInt(line.Quantity))
	if !line.TotalCost.Equal(expected) {
		return &ValidationError{Field: field, Reason: "total_cost must equal quantity times unit_cost"}
	}
	return nil
}
