// Package composition keeps an ordered set of part instances whose sort
// orders are always the dense range 0..n-1.
//
// Instances live in a slice (the arena) in display order; an id index is
// rebuilt by renumber after every structural change, which is the only place
// SortOrder is written.
package composition

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// Composition is an ordered, id-indexed collection of part instances.
// It is not safe for concurrent use.
type Composition struct {
	items []models.PartInstance
	index map[uuid.UUID]int
}

// New returns an empty composition.
func New() *Composition {
	return &Composition{index: make(map[uuid.UUID]int)}
}

// FromInstances builds a composition from persisted instances. Instances are
// ordered by their stored SortOrder (ties keep input order) and renumbered.
// Duplicate instance ids or part codes are rejected.
func FromInstances(instances []models.PartInstance) (*Composition, error) {
	sorted := make([]models.PartInstance, len(instances))
	for i, inst := range instances {
		sorted[i] = inst.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	c := New()
	codes := make(map[string]bool, len(sorted))
	for _, inst := range sorted {
		if _, dup := c.index[inst.InstanceID]; dup {
			return nil, fmt.Errorf("duplicate instance id %s", inst.InstanceID)
		}
		if codes[inst.PartCode] {
			return nil, fmt.Errorf("part %q: %w", inst.PartCode, apperrors.ErrDuplicatePart)
		}
		codes[inst.PartCode] = true
		c.items = append(c.items, inst)
		c.index[inst.InstanceID] = len(c.items) - 1
	}
	c.renumber()
	return c, nil
}

// Len returns the number of instances.
func (c *Composition) Len() int {
	return len(c.items)
}

// Has reports whether an instance of the given part code is present.
func (c *Composition) Has(partCode string) bool {
	_, ok := c.FindByCode(partCode)
	return ok
}

// FindByCode returns the instance for a part code.
func (c *Composition) FindByCode(partCode string) (models.PartInstance, bool) {
	for _, inst := range c.items {
		if inst.PartCode == partCode {
			return inst.Clone(), true
		}
	}
	return models.PartInstance{}, false
}

// Get returns a copy of the instance with the given id.
func (c *Composition) Get(id uuid.UUID) (models.PartInstance, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.PartInstance{}, false
	}
	return c.items[i].Clone(), true
}

// Instances returns copies of all instances in sort order.
func (c *Composition) Instances() []models.PartInstance {
	out := make([]models.PartInstance, len(c.items))
	for i, inst := range c.items {
		out[i] = inst.Clone()
	}
	return out
}

// IDs returns instance ids in sort order.
func (c *Composition) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.items))
	for i, inst := range c.items {
		ids[i] = inst.InstanceID
	}
	return ids
}

// Add appends a new instance of partCode with the given config and returns it.
// At most one instance per part code is kept: adding a present code returns
// the existing instance and false.
func (c *Composition) Add(partCode string, config json.RawMessage) (models.PartInstance, bool) {
	if existing, ok := c.FindByCode(partCode); ok {
		return existing, false
	}
	inst := models.PartInstance{
		InstanceID: uuid.New(),
		PartCode:   partCode,
		Config:     append(json.RawMessage(nil), config...),
	}
	c.items = append(c.items, inst)
	c.renumber()
	return c.items[len(c.items)-1].Clone(), true
}

// Remove deletes the instance with the given id.
func (c *Composition) Remove(id uuid.UUID) error {
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("instance %s: %w", id, apperrors.ErrNotFound)
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.renumber()
	return nil
}

// Reorder rearranges instances to match ids exactly. Anything other than a
// permutation of the current ids is rejected and leaves the order untouched.
func (c *Composition) Reorder(ids []uuid.UUID) error {
	if len(ids) != len(c.items) {
		return fmt.Errorf("got %d ids for %d instances: %w", len(ids), len(c.items), apperrors.ErrInvalidPermutation)
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.index[id]; !ok {
			return fmt.Errorf("unknown instance %s: %w", id, apperrors.ErrInvalidPermutation)
		}
		if seen[id] {
			return fmt.Errorf("instance %s listed twice: %w", id, apperrors.ErrInvalidPermutation)
		}
		seen[id] = true
	}

	reordered := make([]models.PartInstance, len(ids))
	for i, id := range ids {
		reordered[i] = c.items[c.index[id]]
	}
	c.items = reordered
	c.renumber()
	return nil
}

// Replace replaces the config document of one instance.
func (c *Composition) Replace(id uuid.UUID, config json.RawMessage) error {
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("instance %s: %w", id, apperrors.ErrNotFound)
	}
	c.items[i].Config = append(json.RawMessage(nil), config...)
	return nil
}

// Clear removes every instance.
func (c *Composition) Clear() {
	c.items = nil
	c.renumber()
}

// Specs returns the commit payload for createAssembly.
func (c *Composition) Specs() []models.InstanceSpec {
	specs := make([]models.InstanceSpec, len(c.items))
	for i, inst := range c.items {
		specs[i] = models.InstanceSpec{
			PartCode:  inst.PartCode,
			SortOrder: inst.SortOrder,
			Config:    append(json.RawMessage(nil), inst.Config...),
		}
	}
	return specs
}

// Check verifies the density and uniqueness invariants.
func (c *Composition) Check() error {
	return CheckOrder(c.items)
}

// renumber is the single writer of SortOrder and of the id index.
func (c *Composition) renumber() {
	c.index = make(map[uuid.UUID]int, len(c.items))
	for i := range c.items {
		c.items[i].SortOrder = i
		c.index[c.items[i].InstanceID] = i
	}
}

// CheckOrder verifies that sort orders are exactly 0..n-1 and instance ids
// are unique.
func CheckOrder(instances []models.PartInstance) error {
	orders := make([]bool, len(instances))
	ids := make(map[uuid.UUID]bool, len(instances))
	for _, inst := range instances {
		if inst.SortOrder < 0 || inst.SortOrder >= len(instances) || orders[inst.SortOrder] {
			return fmt.Errorf("sort order %d breaks the 0..%d sequence", inst.SortOrder, len(instances)-1)
		}
		orders[inst.SortOrder] = true
		if ids[inst.InstanceID] {
			return fmt.Errorf("duplicate instance id %s", inst.InstanceID)
		}
		ids[inst.InstanceID] = true
	}
	return nil
}
