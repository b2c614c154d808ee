// Package catalog provides read access to the parts an administrator can
// place into an assembly.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// Source fetches the full set of part descriptors.
type Source interface {
	ListParts(ctx context.Context) ([]models.PartDescriptor, error)
}

// Catalog caches the descriptors of a Source after the first successful
// fetch. The cached set is immutable until Invalidate is called. A failed
// fetch caches nothing.
type Catalog struct {
	source Source
	logger *zap.Logger

	mu     sync.Mutex
	parts  []models.PartDescriptor
	byCode map[string]int
	loaded bool
}

// New creates a catalog backed by source.
func New(source Source, logger *zap.Logger) *Catalog {
	return &Catalog{
		source: source,
		logger: logger.Named("catalog"),
	}
}

// List returns every descriptor, fetching from the source on first use.
func (c *Catalog) List(ctx context.Context) ([]models.PartDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]models.PartDescriptor, len(c.parts))
	copy(out, c.parts)
	return out, nil
}

// Find returns the descriptor for code.
func (c *Catalog) Find(ctx context.Context, code string) (models.PartDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return models.PartDescriptor{}, err
	}
	i, ok := c.byCode[code]
	if !ok {
		return models.PartDescriptor{}, fmt.Errorf("part %q: %w", code, apperrors.ErrNotFound)
	}
	return c.parts[i], nil
}

// Invalidate drops the cached set; the next read refetches.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parts = nil
	c.byCode = nil
	c.loaded = false
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	parts, err := c.source.ListParts(ctx)
	if err != nil {
		c.logger.Error("Failed to load parts catalog", zap.Error(err))
		return fmt.Errorf("could not load catalog, retry: %w", err)
	}

	byCode := make(map[string]int, len(parts))
	for i, p := range parts {
		if p.Code == "" {
			return fmt.Errorf("catalog entry %d has no code", i)
		}
		if !models.IsValidFunctionalType(p.FunctionalType) {
			return fmt.Errorf("part %q has unknown functional type %q", p.Code, p.FunctionalType)
		}
		if _, dup := byCode[p.Code]; dup {
			return fmt.Errorf("part %q listed twice: %w", p.Code, apperrors.ErrConflict)
		}
		byCode[p.Code] = i
	}

	c.parts = append([]models.PartDescriptor(nil), parts...)
	c.byCode = byCode
	c.loaded = true
	c.logger.Info("Loaded parts catalog", zap.Int("parts", len(parts)))
	return nil
}
