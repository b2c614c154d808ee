package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/database"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// AssemblyRepository defines data access for assemblies and their part
// instances. Writes are last-writer-wins; there is no version check.
type AssemblyRepository interface {
	List(ctx context.Context) ([]*models.Assembly, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Assembly, error)
	Create(ctx context.Context, a *models.Assembly) error
	// Update writes name, code, target role and version.
	Update(ctx context.Context, a *models.Assembly) error
	// ReplaceParts writes the same fields as Update and swaps the whole
	// instance set in one transaction.
	ReplaceParts(ctx context.Context, a *models.Assembly) error
	// UpdateStatus moves the assembly from one status to another in a single
	// conditional write. It returns apperrors.ErrConflict when the stored
	// status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.AssemblyStatus) (time.Time, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type assemblyRepository struct {
	db  *database.DB
	now func() time.Time
}

var _ AssemblyRepository = (*assemblyRepository)(nil)

// NewAssemblyRepository creates an assembly repository backed by PostgreSQL.
func NewAssemblyRepository(db *database.DB) AssemblyRepository {
	return &assemblyRepository{db: db, now: time.Now}
}

const assemblyColumns = `id, code, name, target_role, version, status, created_at, updated_at`

func (r *assemblyRepository) List(ctx context.Context) ([]*models.Assembly, error) {
	q := r.db.Querier(ctx)

	rows, err := q.Query(ctx, `SELECT `+assemblyColumns+` FROM assemblies ORDER BY created_at, code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assemblies: %w", err)
	}
	assemblies, err := pgx.CollectRows(rows, scanAssembly)
	if err != nil {
		return nil, fmt.Errorf("failed to scan assemblies: %w", err)
	}
	if len(assemblies) == 0 {
		return assemblies, nil
	}

	ids := make([]uuid.UUID, len(assemblies))
	byID := make(map[uuid.UUID]*models.Assembly, len(assemblies))
	for i, a := range assemblies {
		ids[i] = a.ID
		byID[a.ID] = a
		a.Parts = []models.PartInstance{}
	}

	rows, err = q.Query(ctx, `
		SELECT assembly_id, instance_id, part_code, sort_order, config
		FROM assembly_parts
		WHERE assembly_id = ANY($1)
		ORDER BY assembly_id, sort_order`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query assembly parts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assemblyID uuid.UUID
		inst, err := scanInstance(rows, &assemblyID)
		if err != nil {
			return nil, err
		}
		if a, ok := byID[assemblyID]; ok {
			a.Parts = append(a.Parts, inst)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assembly parts: %w", err)
	}
	return assemblies, nil
}

func (r *assemblyRepository) Get(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	q := r.db.Querier(ctx)

	rows, err := q.Query(ctx, `SELECT `+assemblyColumns+` FROM assemblies WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assembly: %w", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAssembly)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assembly: %w", err)
	}

	parts, err := r.loadParts(ctx, q, id)
	if err != nil {
		return nil, err
	}
	a.Parts = parts
	return a, nil
}

func (r *assemblyRepository) Create(ctx context.Context, a *models.Assembly) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO assemblies (id, code, name, target_role, version, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.ID, a.Code, a.Name, a.TargetRole, a.Version, string(a.Status), a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return wrapWriteError("create assembly", err)
		}
		return insertParts(ctx, tx, a.ID, a.Parts)
	})
}

func (r *assemblyRepository) Update(ctx context.Context, a *models.Assembly) error {
	a.UpdatedAt = r.now().UTC()
	return updateFields(ctx, r.db.Querier(ctx), a)
}

func (r *assemblyRepository) ReplaceParts(ctx context.Context, a *models.Assembly) error {
	a.UpdatedAt = r.now().UTC()
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := updateFields(ctx, tx, a); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM assembly_parts WHERE assembly_id = $1`, a.ID); err != nil {
			return fmt.Errorf("failed to clear assembly parts: %w", err)
		}
		return insertParts(ctx, tx, a.ID, a.Parts)
	})
}

func (r *assemblyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.AssemblyStatus) (time.Time, error) {
	q := r.db.Querier(ctx)
	now := r.now().UTC()

	tag, err := q.Exec(ctx, `
		UPDATE assemblies SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to update assembly status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return now, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assemblies WHERE id = $1)`, id).Scan(&exists); err != nil {
		return time.Time{}, fmt.Errorf("failed to check assembly: %w", err)
	}
	if !exists {
		return time.Time{}, apperrors.ErrNotFound
	}
	return time.Time{}, fmt.Errorf("assembly %s is no longer %s: %w", id, from, apperrors.ErrConflict)
}

func (r *assemblyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM assemblies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assembly: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *assemblyRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Querier(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *assemblyRepository) loadParts(ctx context.Context, q database.Querier, id uuid.UUID) ([]models.PartInstance, error) {
	rows, err := q.Query(ctx, `
		SELECT assembly_id, instance_id, part_code, sort_order, config
		FROM assembly_parts
		WHERE assembly_id = $1
		ORDER BY sort_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assembly parts: %w", err)
	}
	defer rows.Close()

	parts := []models.PartInstance{}
	for rows.Next() {
		var assemblyID uuid.UUID
		inst, err := scanInstance(rows, &assemblyID)
		if err != nil {
			return nil, err
		}
		parts = append(parts, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assembly parts: %w", err)
	}
	return parts, nil
}

func updateFields(ctx context.Context, q database.Querier, a *models.Assembly) error {
	tag, err := q.Exec(ctx, `
		UPDATE assemblies
		SET code = $2, name = $3, target_role = $4, version = $5, updated_at = $6
		WHERE id = $1`,
		a.ID, a.Code, a.Name, a.TargetRole, a.Version, a.UpdatedAt)
	if err != nil {
		return wrapWriteError("update assembly", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func insertParts(ctx context.Context, tx pgx.Tx, assemblyID uuid.UUID, parts []models.PartInstance) error {
	if len(parts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range parts {
		var config *string
		if len(p.Config) > 0 {
			s := string(p.Config)
			config = &s
		}
		batch.Queue(`
			INSERT INTO assembly_parts (instance_id, assembly_id, part_code, sort_order, config)
			VALUES ($1, $2, $3, $4, $5)`,
			p.InstanceID, assemblyID, p.PartCode, p.SortOrder, config)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrapWriteError("insert assembly parts", err)
	}
	return nil
}

func scanAssembly(row pgx.CollectableRow) (*models.Assembly, error) {
	var a models.Assembly
	var status string
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.TargetRole, &a.Version, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = models.AssemblyStatus(status)
	return &a, nil
}

func scanInstance(rows pgx.Rows, assemblyID *uuid.UUID) (models.PartInstance, error) {
	var inst models.PartInstance
	var config *string
	if err := rows.Scan(assemblyID, &inst.InstanceID, &inst.PartCode, &inst.SortOrder, &config); err != nil {
		return models.PartInstance{}, fmt.Errorf("failed to scan assembly part: %w", err)
	}
	if config != nil {
		inst.Config = []byte(*config)
	}
	return inst, nil
}

// wrapWriteError maps unique violations to apperrors.ErrConflict.
func wrapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("failed to %s: %s: %w", op, pgErr.ConstraintName, apperrors.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
