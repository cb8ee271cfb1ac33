package jobledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pressdesk/pressdesk/internal/platform/db"
)

// Repository persists job material edit history in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEntries appends all entries of one edit in a single transaction.
func (r *Repository) InsertEntries(ctx context.Context, entries []EditEntry) error {
	if r == nil {
		return errors.New("jobledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			prev := flatten(e.Previous)
			next := flatten(e.New)
			_, err := tx.Exec(ctx, `INSERT INTO job_material_edits
(job_id, editor_id, edited_at, edit_reason, change_type,
 prev_material_name, prev_paper_size, prev_paper_type, prev_grammage, prev_quantity, prev_unit_cost, prev_total_cost,
 new_material_name, new_paper_size, new_paper_type, new_grammage, new_quantity, new_unit_cost, new_total_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
				e.JobID, e.EditorID, e.EditedAt, e.EditReason, string(e.ChangeType),
				prev.name, prev.paperSize, prev.paperType, prev.grammage, prev.quantity, prev.unitCost, prev.totalCost,
				next.name, next.paperSize, next.paperType, next.grammage, next.quantity, next.unitCost, next.totalCost)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByJob lists the edit history of a job, oldest first.
func (r *Repository) ListByJob(ctx context.Context, jobID string, limit int) ([]EditEntry, error) {
	if r == nil {
		return nil, errors.New("jobledger repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, job_id, editor_id, edited_at, edit_reason, change_type,
prev_material_name, prev_paper_size, prev_paper_type, prev_grammage, prev_quantity, prev_unit_cost, prev_total_cost,
new_material_name, new_paper_size, new_paper_type, new_grammage, new_quantity, new_unit_cost, new_total_cost
FROM job_material_edits
WHERE job_id=$1
ORDER BY edited_at ASC, id ASC
LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []EditEntry{}
	for rows.Next() {
		var (
			e          EditEntry
			changeType string
			prev, next flatSnapshot
		)
		if err := rows.Scan(&e.ID, &e.JobID, &e.EditorID, &e.EditedAt, &e.EditReason, &changeType,
			&prev.name, &prev.paperSize, &prev.paperType, &prev.grammage, &prev.quantity, &prev.unitCost, &prev.totalCost,
			&next.name, &next.paperSize, &next.paperType, &next.grammage, &next.quantity, &next.unitCost, &next.totalCost); err != nil {
			return nil, err
		}
		e.ChangeType = ChangeType(changeType)
		e.Previous = unflatten(prev)
		e.New = unflatten(next)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// flatSnapshot mirrors the nullable snapshot columns of job_material_edits.
type flatSnapshot struct {
	name      *string
	paperSize *string
	paperType *string
	grammage  *string
	quantity  *int64
	unitCost  *decimal.Decimal
	totalCost *decimal.Decimal
}

func flatten(s *MaterialSnapshot) flatSnapshot {
	if s == nil {
		return flatSnapshot{}
	}
	name, size, ptype, gram := s.MaterialName, s.PaperSize, s.PaperType, s.Grammage
	qty := s.Quantity
	unit, total := s.UnitCost, s.TotalCost
	return flatSnapshot{
		name:      &name,
		paperSize: &size,
		paperType: &ptype,
		grammage:  &gram,
		quantity:  &qty,
		unitCost:  &unit,
		totalCost: &total,
	}
}

func unflatten(f flatSnapshot) *MaterialSnapshot {
	if f.name == nil {
		return nil
	}
	s := &MaterialSnapshot{MaterialName: *f.name}
	if f.paperSize != nil {
		s.PaperSize = *f.paperSize
	}
	if f.paperType != nil {
		s.PaperType = *f.paperType
	}
	if f.grammage != nil {
		s.Grammage = *f.grammage
	}
	if f.quantity != nil {
		s.Quantity = *f.quantity
	}
	if f.unitCost != nil {
		s.UnitCost = *f.unitCost
	}
	if f.totalCost != nil {
		s.TotalCost = *f.totalCost
	}
	return s
}
