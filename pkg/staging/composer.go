// Package staging holds the in-progress composition an administrator builds
// before committing it as an assembly.
package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/composition"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// ConfigEditor supplies default configs and applies edits to instances.
type ConfigEditor interface {
	Defaults(code string) json.RawMessage
	Apply(ctx context.Context, inst models.PartInstance, values map[string]any) (models.PartInstance, error)
}

// Composer is one administrator's staging area: an ordered composition plus
// at most one selected instance.
type Composer struct {
	editor ConfigEditor

	mu       sync.Mutex
	comp     *composition.Composition
	selected uuid.UUID
	editing  uuid.UUID
}

// NewComposer creates an empty staging composer.
func NewComposer(editor ConfigEditor) *Composer {
	return &Composer{editor: editor, comp: composition.New()}
}

// Add places part at the end of the composition with its default config.
// A part already present is not added again; its instance is returned with
// added=false.
func (c *Composer) Add(part models.PartDescriptor) (inst models.PartInstance, added bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.comp.FindByCode(part.Code); ok {
		return existing, false
	}
	return c.comp.Add(part.Code, c.editor.Defaults(part.Code))
}

// Remove deletes an instance and clears the selection if it pointed there.
func (c *Composer) Remove(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.comp.Remove(id); err != nil {
		return err
	}
	if c.selected == id {
		c.selected = uuid.Nil
	}
	return nil
}

// Reorder applies a permutation of the current instance ids.
func (c *Composer) Reorder(ids []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Reorder(ids)
}

// Select marks one instance as selected; nil clears the selection.
func (c *Composer) Select(id *uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == nil {
		c.selected = uuid.Nil
		return nil
	}
	if _, ok := c.comp.Get(*id); !ok {
		return fmt.Errorf("instance %s: %w", *id, apperrors.ErrNotFound)
	}
	c.selected = *id
	return nil
}

// Selected returns the selected instance, if any.
func (c *Composer) Selected() (models.PartInstance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == uuid.Nil {
		return models.PartInstance{}, false
	}
	return c.comp.Get(c.selected)
}

// UpdateConfig applies config edits to one instance. Other instances are
// left untouched, and a rejected edit changes nothing.
func (c *Composer) UpdateConfig(ctx context.Context, id uuid.UUID, values map[string]any) (models.PartInstance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.comp.Get(id)
	if !ok {
		return models.PartInstance{}, fmt.Errorf("instance %s: %w", id, apperrors.ErrNotFound)
	}
	updated, err := c.editor.Apply(ctx, inst, values)
	if err != nil {
		return models.PartInstance{}, err
	}
	if err := c.comp.Replace(id, updated.Config); err != nil {
		return models.PartInstance{}, err
	}
	out, ok := c.comp.Get(id)
	if !ok {
		return models.PartInstance{}, fmt.Errorf("instance %s: %w", id, apperrors.ErrNotFound)
	}
	return out, nil
}

// Clear empties the staging area and forgets any loaded assembly.
func (c *Composer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comp.Clear()
	c.selected = uuid.Nil
	c.editing = uuid.Nil
}

// Load replaces the staging area with the parts of an existing assembly so
// its membership can be edited. Deployed assemblies are frozen.
func (c *Composer) Load(a models.Assembly) error {
	if !a.Status.AllowsMembershipEdits() {
		return fmt.Errorf("assembly %s: %w", a.ID, apperrors.ErrAssemblyDeployed)
	}
	comp, err := composition.FromInstances(a.Parts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.comp = comp
	c.selected = uuid.Nil
	c.editing = a.ID
	return nil
}

// EditingID returns the assembly loaded with Load, if any.
func (c *Composer) EditingID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing, c.editing != uuid.Nil
}

// Instances returns the staged instances in sort order.
func (c *Composer) Instances() []models.PartInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Instances()
}

// Specs returns the staged instances as a commit payload.
func (c *Composer) Specs() []models.InstanceSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Specs()
}

// Len returns the number of staged instances.
func (c *Composer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Len()
}
