package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/assembly-factory/pkg/database"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// PartRepository reads part descriptors. Parts are administered outside the
// factory; this repository never writes them.
type PartRepository interface {
	ListParts(ctx context.Context) ([]models.PartDescriptor, error)
}

type partRepository struct {
	db *database.DB
}

var _ PartRepository = (*partRepository)(nil)

// NewPartRepository creates a part repository backed by PostgreSQL.
func NewPartRepository(db *database.DB) PartRepository {
	return &partRepository{db: db}
}

// ListParts returns every catalog part ordered by category then name.
func (r *partRepository) ListParts(ctx context.Context) ([]models.PartDescriptor, error) {
	query := `
		SELECT code, name, category, functional_type, is_core, description
		FROM parts
		ORDER BY category, name, code`

	rows, err := r.db.Querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	var parts []models.PartDescriptor
	for rows.Next() {
		var p models.PartDescriptor
		var ft string
		if err := rows.Scan(&p.Code, &p.Name, &p.Category, &ft, &p.IsCore, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		p.FunctionalType = models.FunctionalType(ft)
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parts: %w", err)
	}
	return parts, nil
}
