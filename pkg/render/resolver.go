package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/schema"
	"github.com/ekaya-inc/assembly-factory/pkg/telemetry"
)

// Input is what a renderer receives: the catalog entry, the instance and its
// config with schema defaults filled in.
type Input struct {
	Part     models.PartDescriptor
	Instance models.PartInstance
	Props    map[string]any
}

// RenderFunc materializes one part instance.
type RenderFunc func(ctx context.Context, in Input) (Block, error)

// PartFinder looks up catalog entries.
type PartFinder interface {
	Find(ctx context.Context, code string) (models.PartDescriptor, error)
}

// PropsResolver parses a stored config document and fills in defaults.
type PropsResolver interface {
	Resolve(code string, raw json.RawMessage) (map[string]any, error)
}

// Resolver maps part codes to renderers. Bespoke renderers are registered
// at startup; parts without one fall back to a placeholder for their
// functional type.
type Resolver struct {
	parts   PartFinder
	props   PropsResolver
	logger  *zap.Logger
	metrics *telemetry.Metrics

	mu        sync.RWMutex
	renderers map[string]RenderFunc
	fallbacks map[models.FunctionalType]RenderFunc
}

// NewResolver creates a resolver with the placeholder fallbacks installed.
func NewResolver(parts PartFinder, props PropsResolver, logger *zap.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{
		parts:     parts,
		props:     props,
		logger:    logger.Named("render"),
		metrics:   metrics,
		renderers: make(map[string]RenderFunc),
		fallbacks: map[models.FunctionalType]RenderFunc{
			models.FunctionalTypeFullstack: renderComposite,
			models.FunctionalTypeWidget:    renderMetricTile,
			models.FunctionalTypeFormInput: renderInputControl,
		},
	}
}

// Register installs a bespoke renderer for a part code, replacing any
// previous one.
func (r *Resolver) Register(code string, fn RenderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[code] = fn
}

// Resolve returns the bespoke renderer for code, if any.
func (r *Resolver) Resolve(code string) (RenderFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.renderers[code]
	return fn, ok
}

// RendererFor returns the bespoke renderer for part, or the fallback for its
// functional type.
func (r *Resolver) RendererFor(part models.PartDescriptor) RenderFunc {
	if fn, ok := r.Resolve(part.Code); ok {
		return fn
	}
	if fn, ok := r.fallbacks[part.FunctionalType]; ok {
		return fn
	}
	return renderComposite
}

// RenderInstance renders one instance. It never fails: an unknown part, a
// malformed config, a renderer error or a renderer panic all yield an error
// block so that sibling instances are unaffected.
func (r *Resolver) RenderInstance(ctx context.Context, inst models.PartInstance) Block {
	part, err := r.parts.Find(ctx, inst.PartCode)
	if err != nil {
		reason := "part is not available"
		if errors.Is(err, apperrors.ErrNotFound) {
			reason = "unknown part"
		}
		r.logger.Warn("Rendering unavailable part",
			zap.String("part_code", inst.PartCode),
			zap.String("instance_id", inst.InstanceID.String()),
			zap.Error(err))
		return r.errorBlock(inst, inst.PartCode, reason)
	}

	props, err := r.props.Resolve(inst.PartCode, inst.Config)
	if err != nil {
		r.logger.Warn("Instance config could not be parsed",
			zap.String("part_code", inst.PartCode),
			zap.String("instance_id", inst.InstanceID.String()),
			zap.Error(err))
		return r.errorBlock(inst, part.Name, "configuration could not be read")
	}

	block, err := r.invoke(ctx, r.RendererFor(part), Input{Part: part, Instance: inst.Clone(), Props: props})
	if err != nil {
		r.logger.Error("Renderer failed",
			zap.String("part_code", inst.PartCode),
			zap.String("instance_id", inst.InstanceID.String()),
			zap.Error(err))
		return r.errorBlock(inst, part.Name, "part failed to render")
	}

	block.InstanceID = inst.InstanceID
	block.PartCode = inst.PartCode
	if block.Title == "" {
		block.Title = titleOf(part, props)
	}
	block.Visible = boolProp(props, schema.FieldVisible, true)
	block.StyleClass, _ = props[schema.FieldStyleClass].(string)
	r.metrics.RecordBlock(string(block.Kind))
	return block
}

// RenderComposition renders every instance in sort order, one block each.
func (r *Resolver) RenderComposition(ctx context.Context, instances []models.PartInstance) []Block {
	ordered := make([]models.PartInstance, len(instances))
	copy(ordered, instances)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	blocks := make([]Block, len(ordered))
	for i, inst := range ordered {
		blocks[i] = r.RenderInstance(ctx, inst)
	}
	return blocks
}

func (r *Resolver) invoke(ctx context.Context, fn RenderFunc, in Input) (block Block, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer panicked: %v", rec)
		}
	}()
	return fn(ctx, in)
}

func (r *Resolver) errorBlock(inst models.PartInstance, title, reason string) Block {
	r.metrics.RecordBlock(string(BlockKindError))
	return Block{
		InstanceID: inst.InstanceID,
		PartCode:   inst.PartCode,
		Kind:       BlockKindError,
		Title:      title,
		Visible:    true,
		Error:      reason,
	}
}

func titleOf(part models.PartDescriptor, props map[string]any) string {
	if t, ok := props[schema.FieldTitle].(string); ok && t != "" {
		return t
	}
	if part.Name != "" {
		return part.Name
	}
	return part.Code
}

func boolProp(props map[string]any, name string, def bool) bool {
	if b, ok := props[name].(bool); ok {
		return b
	}
	return def
}
