package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pressdesk/pressdesk/internal/platform/db"
)

// Repository persists materials and stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertMaterial(ctx context.Context, record MaterialRecord) error
	GetMaterialForUpdate(ctx context.Context, id string) (MaterialRecord, error)
	UpdateStockAndCost(ctx context.Context, id string, stockSheets int64, unitCost decimal.Decimal, updatedAt time.Time) error
	SetIntegrityHold(ctx context.Context, id string, hold bool) error
	SetActive(ctx context.Context, id string, active bool) error
	InsertMovement(ctx context.Context, movement StockMovement) (int64, error)
	SumMovements(ctx context.Context, materialID string) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// pg lock-wait and serialization failure codes mapped to ErrBusy.
const (
	pgLockNotAvailable   = "55P03"
	pgSerializationFail  = "40001"
	pgDeadlockDetected   = "40P01"
	lockTimeoutStatement = "SET LOCAL lock_timeout = '2s'"
)

func busyErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFail, pgDeadlockDetected:
			return ErrBusy
		}
	}
	return err
}

// WithTx executes the callback inside a repeatable-read transaction with a
// bounded lock wait, so contention surfaces as a retryable ErrBusy instead of
// blocking indefinitely.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockTimeoutStatement); err != nil {
			return err
		}
		return fn(ctx, &txRepository{tx: tx})
	})
	return busyErr(err)
}

const materialColumns = `id, material_name, category, paper_size, paper_type, grammage,
sheets_per_unit, current_stock_sheets, unit_cost, threshold_sheets, reorder_quantity,
is_active, integrity_hold, created_at, updated_at`

func scanMaterial(row pgx.Row) (MaterialRecord, error) {
	var m MaterialRecord
	err := row.Scan(&m.ID, &m.MaterialName, &m.Category, &m.PaperSize, &m.PaperType, &m.Grammage,
		&m.SheetsPerUnit, &m.CurrentStockSheets, &m.UnitCost, &m.ThresholdSheets, &m.ReorderQuantity,
		&m.IsActive, &m.IntegrityHold, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MaterialRecord{}, ErrMaterialNotFound
		}
		return MaterialRecord{}, err
	}
	return m, nil
}

// GetMaterial fetches one material without locking.
func (r *Repository) GetMaterial(ctx context.Context, id string) (MaterialRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id=$1`, id)
	return scanMaterial(row)
}

// ListMaterials lists materials, newest first.
func (r *Repository) ListMaterials(ctx context.Context, filter MaterialFilter) ([]MaterialRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM materials
WHERE ($1 = '' OR category = $1) AND (NOT $2 OR is_active)
ORDER BY created_at DESC`, filter.Category, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	materials := []MaterialRecord{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// ListMovements lists ledger entries for a material, oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, material_id, movement_type, sub_type, quantity_sheets,
unit_price_at_time, total_cost, notes, actor_id, created_at
FROM stock_movements
WHERE material_id=$1
  AND ($2 = '' OR movement_type = $2)
  AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $5`, filter.MaterialID, string(filter.Type), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []StockMovement{}
	for rows.Next() {
		var mv StockMovement
		if err := rows.Scan(&mv.ID, &mv.MaterialID, &mv.Type, &mv.SubType, &mv.QuantitySheets,
			&mv.UnitPriceAtTime, &mv.TotalCost, &mv.Notes, &mv.ActorID, &mv.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// ConsumptionByMaterial aggregates usage or waste per material over a range.
func (r *Repository) ConsumptionByMaterial(ctx context.Context, movementType MovementType, from, to time.Time) ([]MaterialUsage, error) {
	rows, err := r.pool.Query(ctx, `SELECT sm.material_id, m.material_name,
COALESCE(SUM(-sm.quantity_sheets), 0), COALESCE(SUM(-sm.total_cost), 0)
FROM stock_movements sm
JOIN materials m ON m.id = sm.material_id
WHERE sm.movement_type = $1 AND sm.created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
GROUP BY sm.material_id, m.material_name
ORDER BY m.material_name`, string(movementType), nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []MaterialUsage{}
	for rows.Next() {
		var u MaterialUsage
		if err := rows.Scan(&u.MaterialID, &u.MaterialName, &u.TotalSheets, &u.TotalCost); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// ConsumptionCost sums the absolute cost of usage or waste movements in range.
func (r *Repository) ConsumptionCost(ctx context.Context, movementType MovementType, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(-total_cost), 0) FROM stock_movements
WHERE movement_type = $1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')`,
		string(movementType), nullTime(from), nullTime(to)).Scan(&total)
	return total, err
}

// ActiveInventoryValue sums current_stock_sheets * unit_cost over active materials.
func (r *Repository) ActiveInventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(current_stock_sheets * unit_cost), 0)
FROM materials WHERE is_active`).Scan(&total)
	return total, err
}

func (r *txRepository) InsertMaterial(ctx context.Context, m MaterialRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO materials
(id, material_name, category, paper_size, paper_type, grammage, sheets_per_unit,
 current_stock_sheets, unit_cost, threshold_sheets, reorder_quantity, is_active,
 integrity_hold, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.MaterialName, m.Category, m.PaperSize, m.PaperType, m.Grammage, m.SheetsPerUnit,
		m.CurrentStockSheets, m.UnitCost, m.ThresholdSheets, m.ReorderQuantity, m.IsActive,
		m.IntegrityHold, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r *txRepository) GetMaterialForUpdate(ctx context.Context, id string) (MaterialRecord, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id=$1 FOR UPDATE`, id)
	return scanMaterial(row)
}

func (r *txRepository) UpdateStockAndCost(ctx context.Context, id string, stockSheets int64, unitCost decimal.Decimal, updatedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE materials SET current_stock_sheets=$2, unit_cost=$3, updated_at=$4 WHERE id=$1`,
		id, stockSheets, unitCost, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (r *txRepository) SetIntegrityHold(ctx context.Context, id string, hold bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE materials SET integrity_hold=$2, updated_at=NOW() WHERE id=$1`, id, hold)
	return err
}

func (r *txRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.tx.Exec(ctx, `UPDATE materials SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, mv StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(material_id, movement_type, sub_type, quantity_sheets, unit_price_at_time, total_cost, notes, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		mv.MaterialID, string(mv.Type), mv.SubType, mv.QuantitySheets, mv.UnitPriceAtTime,
		mv.TotalCost, mv.Notes, mv.ActorID, mv.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) SumMovements(ctx context.Context, materialID string) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_sheets), 0) FROM stock_movements WHERE material_id=$1`, materialID).Scan(&sum)
	return sum, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
