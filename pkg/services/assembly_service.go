package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/audit"
	"github.com/ekaya-inc/assembly-factory/pkg/composition"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/publish"
	"github.com/ekaya-inc/assembly-factory/pkg/render"
	"github.com/ekaya-inc/assembly-factory/pkg/repositories"
	"github.com/ekaya-inc/assembly-factory/pkg/session"
	"github.com/ekaya-inc/assembly-factory/pkg/telemetry"
)

// PartFinder looks up catalog parts by code.
type PartFinder interface {
	Find(ctx context.Context, code string) (models.PartDescriptor, error)
}

// ConfigEditor supplies default configs and applies validated edits.
type ConfigEditor interface {
	Defaults(code string) json.RawMessage
	Apply(ctx context.Context, inst models.PartInstance, values map[string]any) (models.PartInstance, error)
}

// BlockRenderer materializes instances into blocks.
type BlockRenderer interface {
	RenderComposition(ctx context.Context, instances []models.PartInstance) []render.Block
}

// TransitionError reports a lifecycle action requested from a status that
// does not allow it. It matches apperrors.ErrInvalidTransition.
type TransitionError struct {
	Action string
	From   models.AssemblyStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an assembly in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return apperrors.ErrInvalidTransition
}

// DeleteResult is the outcome of a two-phase delete request.
type DeleteResult struct {
	Deleted   bool      `json:"deleted"`
	Armed     bool      `json:"armed"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Lifecycle actions.
const (
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionDeploy   = "deploy"
	ActionRollback = "rollback"
	ActionRevert   = "revert"
)

type transitionRule struct {
	action string
	from   []models.AssemblyStatus
	to     models.AssemblyStatus
}

func (r transitionRule) allows(s models.AssemblyStatus) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

var transitionRules = map[string]transitionRule{
	ActionSubmit:   {ActionSubmit, []models.AssemblyStatus{models.AssemblyStatusDraft}, models.AssemblyStatusTesting},
	ActionApprove:  {ActionApprove, []models.AssemblyStatus{models.AssemblyStatusDraft, models.AssemblyStatusTesting}, models.AssemblyStatusApproved},
	ActionDeploy:   {ActionDeploy, []models.AssemblyStatus{models.AssemblyStatusApproved}, models.AssemblyStatusDeployed},
	ActionRollback: {ActionRollback, []models.AssemblyStatus{models.AssemblyStatusDeployed}, models.AssemblyStatusApproved},
	ActionRevert:   {ActionRevert, []models.AssemblyStatus{models.AssemblyStatusTesting, models.AssemblyStatusApproved}, models.AssemblyStatusDraft},
}

// AssemblyService owns persisted assemblies: creation, guarded edits, the
// release lifecycle and two-phase deletion.
//
// Every mutating call disarms the caller's pending delete.
type AssemblyService interface {
	List(ctx context.Context) ([]*models.Assembly, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Assembly, error)

	// Create persists a new DRAFT assembly at version 1.
	Create(ctx context.Context, name, targetRole string, specs []models.InstanceSpec) (*models.Assembly, error)
	// Update applies a partial update. Membership changes are refused while
	// DEPLOYED.
	Update(ctx context.Context, id uuid.UUID, patch models.AssemblyPatch) (*models.Assembly, error)

	SubmitForTesting(ctx context.Context, id uuid.UUID) (*models.Assembly, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Assembly, error)
	Deploy(ctx context.Context, id uuid.UUID) (*models.Assembly, error)
	Rollback(ctx context.Context, id uuid.UUID) (*models.Assembly, error)
	RevertToDraft(ctx context.Context, id uuid.UUID) (*models.Assembly, error)

	AddPart(ctx context.Context, id uuid.UUID, partCode string) (*models.Assembly, error)
	RemovePart(ctx context.Context, id, instanceID uuid.UUID) (*models.Assembly, error)
	ReorderParts(ctx context.Context, id uuid.UUID, instanceIDs []uuid.UUID) (*models.Assembly, error)
	UpdatePartConfig(ctx context.Context, id, instanceID uuid.UUID, values map[string]any) (*models.Assembly, error)

	// Delete arms on the first call and deletes on a confirming second call
	// for the same id within the window.
	Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error)

	// Render materializes the assembly's parts in order.
	Render(ctx context.Context, id uuid.UUID) ([]render.Block, error)
}

type assemblyService struct {
	repo      repositories.AssemblyRepository
	parts     PartFinder
	editor    ConfigEditor
	renderer  BlockRenderer
	confirmer DeleteConfirmer
	publisher publish.Publisher
	auditor   *audit.SecurityAuditor
	metrics   *telemetry.Metrics
	logger    *zap.Logger
}

var _ AssemblyService = (*assemblyService)(nil)

// AssemblyServiceDeps groups the collaborators of NewAssemblyService.
// Publisher, Auditor and Metrics are optional.
type AssemblyServiceDeps struct {
	Repo      repositories.AssemblyRepository
	Parts     PartFinder
	Editor    ConfigEditor
	Renderer  BlockRenderer
	Confirmer DeleteConfirmer
	Publisher publish.Publisher
	Auditor   *audit.SecurityAuditor
	Metrics   *telemetry.Metrics
}

// NewAssemblyService creates the assembly lifecycle service.
func NewAssemblyService(deps AssemblyServiceDeps, logger *zap.Logger) AssemblyService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = publish.Noop{}
	}
	confirmer := deps.Confirmer
	if confirmer == nil {
		confirmer = NewMemoryDeleteConfirmer(DefaultDeleteWindow)
	}
	return &assemblyService{
		repo:      deps.Repo,
		parts:     deps.Parts,
		editor:    deps.Editor,
		renderer:  deps.Renderer,
		confirmer: confirmer,
		publisher: publisher,
		auditor:   deps.Auditor,
		metrics:   deps.Metrics,
		logger:    logger.Named("assemblies"),
	}
}

func (s *assemblyService) List(ctx context.Context) ([]*models.Assembly, error) {
	assemblies, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assemblies: %w", err)
	}
	return assemblies, nil
}

func (s *assemblyService) Get(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("assembly %s: %w", id, err)
	}
	return a, nil
}

func (s *assemblyService) Create(ctx context.Context, name, targetRole string, specs []models.InstanceSpec) (*models.Assembly, error) {
	s.disarm(ctx)
	ctx, span := telemetry.StartSpan(ctx, "assembly.create")
	a, err := s.create(ctx, name, targetRole, specs)
	telemetry.EndSpan(span, err)
	return a, err
}

func (s *assemblyService) create(ctx context.Context, name, targetRole string, specs []models.InstanceSpec) (*models.Assembly, error) {
	name = strings.TrimSpace(name)
	targetRole = strings.TrimSpace(targetRole)
	if name == "" {
		return nil, apperrors.Invalid("name", "is required")
	}
	if targetRole == "" {
		return nil, apperrors.Invalid("target_role", "is required")
	}
	code := models.Slugify(name)
	if code == "" {
		return nil, apperrors.Invalid("name", "must contain at least one letter or digit")
	}
	if len(specs) == 0 {
		return nil, apperrors.Invalid("parts", "at least one part is required")
	}

	instances, err := s.buildInstances(ctx, specs, nil)
	if err != nil {
		return nil, err
	}

	a := &models.Assembly{
		ID:         uuid.New(),
		Code:       code,
		Name:       name,
		TargetRole: targetRole,
		Version:    1,
		Status:     models.AssemblyStatusDraft,
		Parts:      instances,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("an assembly with code %q already exists: %w", code, apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create assembly: %w", err)
	}

	s.logger.Info("Created assembly",
		zap.String("assembly_id", a.ID.String()),
		zap.String("code", a.Code),
		zap.Int("parts", len(a.Parts)))
	return a, nil
}

// buildInstances validates ordered instance specs and turns them into
// instances. Sort orders must be exactly 0..n-1, part codes must exist and
// appear once. Existing instances in keep lend their ids, and their configs
// when the spec repeats them unchanged.
func (s *assemblyService) buildInstances(ctx context.Context, specs []models.InstanceSpec, keep []models.PartInstance) ([]models.PartInstance, error) {
	existing := make(map[string]models.PartInstance, len(keep))
	for _, inst := range keep {
		existing[inst.PartCode] = inst
	}

	instances := make([]models.PartInstance, len(specs))
	seenCodes := make(map[string]bool, len(specs))
	for i, spec := range specs {
		field := fmt.Sprintf("parts[%d]", i)
		if spec.PartCode == "" {
			return nil, apperrors.Invalid(field+".part_code", "is required")
		}
		if seenCodes[spec.PartCode] {
			return nil, apperrors.Invalid(field+".part_code", "part %q appears more than once", spec.PartCode)
		}
		seenCodes[spec.PartCode] = true

		if _, err := s.parts.Find(ctx, spec.PartCode); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Invalid(field+".part_code", "unknown part %q", spec.PartCode)
			}
			return nil, err
		}

		id := uuid.New()
		stored, ok := existing[spec.PartCode]
		if ok {
			id = stored.InstanceID
		}
		config, err := s.specConfig(ctx, field, id, spec, stored.Config, ok)
		if err != nil {
			return nil, err
		}
		instances[i] = models.PartInstance{
			InstanceID: id,
			PartCode:   spec.PartCode,
			SortOrder:  spec.SortOrder,
			Config:     append(json.RawMessage(nil), config...),
		}
	}

	if err := composition.CheckOrder(instances); err != nil {
		return nil, apperrors.Invalid("parts", "sort orders must be a permutation of 0..%d", len(specs)-1)
	}
	comp, err := composition.FromInstances(instances)
	if err != nil {
		return nil, apperrors.Invalid("parts", "%v", err)
	}
	return comp.Instances(), nil
}

// specConfig returns the config stored for one spec. An empty config gets
// the schema defaults and a repeat of the stored config is kept as is.
// Anything else goes through the editor on top of the defaults, so it is
// held to the same kinds, bounds and safety checks as a single edit.
func (s *assemblyService) specConfig(ctx context.Context, field string, id uuid.UUID, spec models.InstanceSpec, stored json.RawMessage, hasStored bool) (json.RawMessage, error) {
	defaults := s.editor.Defaults(spec.PartCode)
	raw := bytes.TrimSpace(spec.Config)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return defaults, nil
	}
	if hasStored && sameConfig(raw, stored) {
		return stored, nil
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return nil, fmt.Errorf("%s.config: must be a JSON object: %w", field, apperrors.ErrInvalidConfig)
	}
	inst, err := s.editor.Apply(ctx, models.PartInstance{InstanceID: id, PartCode: spec.PartCode, Config: defaults}, values)
	if err != nil {
		return nil, fmt.Errorf("%s.config (%s): %w", field, spec.PartCode, err)
	}
	return inst.Config, nil
}

// sameConfig reports whether two configs hold the same JSON value. Configs
// that do not decode compare by bytes.
func sameConfig(a, b json.RawMessage) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// sameInstances reports whether two ordered instance lists are identical.
func sameInstances(a, b []models.PartInstance) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].InstanceID != b[i].InstanceID || a[i].PartCode != b[i].PartCode || a[i].SortOrder != b[i].SortOrder {
			return false
		}
		if !sameConfig(a[i].Config, b[i].Config) {
			return false
		}
	}
	return true
}

func (s *assemblyService) Update(ctx context.Context, id uuid.UUID, patch models.AssemblyPatch) (*models.Assembly, error) {
	s.disarm(ctx)
	ctx, span := telemetry.StartSpan(ctx, "assembly.update", attribute.String("assembly.id", id.String()))
	a, err := s.update(ctx, id, patch)
	telemetry.EndSpan(span, err)
	return a, err
}

func (s *assemblyService) update(ctx context.Context, id uuid.UUID, patch models.AssemblyPatch) (*models.Assembly, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.TouchesMembership() && !a.Status.AllowsMembershipEdits() {
		return nil, fmt.Errorf("assembly %s: %w", id, apperrors.ErrAssemblyDeployed)
	}
	if patch.IsEmpty() {
		return a, nil
	}

	fieldsChanged := false
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.Invalid("name", "is required")
		}
		if name != a.Name {
			a.Name = name
			fieldsChanged = true
		}
	}
	if patch.TargetRole != nil {
		role := strings.TrimSpace(*patch.TargetRole)
		if role == "" {
			return nil, apperrors.Invalid("target_role", "is required")
		}
		if role != a.TargetRole {
			a.TargetRole = role
			fieldsChanged = true
		}
	}

	partsChanged := false
	if patch.Parts != nil {
		if len(*patch.Parts) == 0 {
			return nil, apperrors.Invalid("parts", "at least one part is required")
		}
		instances, err := s.buildInstances(ctx, *patch.Parts, a.Parts)
		if err != nil {
			return nil, err
		}
		if !sameInstances(instances, a.Parts) {
			a.Parts = instances
			partsChanged = true
		}
	}

	// A patch that restates the stored assembly is not a new version.
	if !fieldsChanged && !partsChanged {
		return a, nil
	}

	a.Version++
	if partsChanged {
		if err := s.repo.ReplaceParts(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to update assembly: %w", err)
		}
		return a, nil
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update assembly: %w", err)
	}
	return a, nil
}

// ============================================================================
// Lifecycle transitions
// ============================================================================

func (s *assemblyService) SubmitForTesting(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	return s.transition(ctx, id, transitionRules[ActionSubmit])
}

func (s *assemblyService) Approve(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	return s.transition(ctx, id, transitionRules[ActionApprove])
}

func (s *assemblyService) Deploy(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	return s.transition(ctx, id, transitionRules[ActionDeploy])
}

func (s *assemblyService) Rollback(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	return s.transition(ctx, id, transitionRules[ActionRollback])
}

func (s *assemblyService) RevertToDraft(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	return s.transition(ctx, id, transitionRules[ActionRevert])
}

// transition validates the rule against the stored status and performs one
// conditional status write. Deploy publishes the manifest before the write
// and withdraws it if the write fails; rollback withdraws after the write.
func (s *assemblyService) transition(ctx context.Context, id uuid.UUID, rule transitionRule) (a *models.Assembly, err error) {
	s.disarm(ctx)
	ctx, span := telemetry.StartSpan(ctx, "assembly."+rule.action,
		attribute.String("assembly.id", id.String()),
		attribute.String("assembly.to", string(rule.to)))
	defer func() {
		telemetry.EndSpan(span, err)
		s.metrics.RecordTransition(rule.action, transitionOutcome(err))
	}()

	a, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rule.allows(a.Status) {
		return nil, &TransitionError{Action: rule.action, From: a.Status}
	}
	from := a.Status

	if rule.to == models.AssemblyStatusDeployed {
		location, err := s.publisher.Publish(ctx, a)
		s.metrics.RecordPublish("publish", err)
		if err != nil {
			return nil, fmt.Errorf("failed to publish assembly, retry: %w", err)
		}
		if location != "" {
			s.logger.Info("Published assembly", zap.String("assembly_id", id.String()), zap.String("location", location))
		}
	}

	updatedAt, err := s.repo.UpdateStatus(ctx, id, from, rule.to)
	if err != nil {
		if rule.to == models.AssemblyStatusDeployed {
			s.withdraw(ctx, a)
		}
		// Another writer moved the assembly first; report the transition
		// against the status it holds now.
		if errors.Is(err, apperrors.ErrConflict) {
			if current, getErr := s.repo.Get(ctx, id); getErr == nil {
				return nil, &TransitionError{Action: rule.action, From: current.Status}
			}
		}
		return nil, fmt.Errorf("failed to %s assembly: %w", rule.action, err)
	}
	a.Status = rule.to
	a.UpdatedAt = updatedAt

	if rule.action == ActionRollback {
		s.withdraw(ctx, a)
	}

	if s.auditor != nil {
		s.auditor.LogLifecycleAction(ctx, id, rule.action)
	}
	s.logger.Info("Assembly status changed",
		zap.String("assembly_id", id.String()),
		zap.String("action", rule.action),
		zap.String("from", string(from)),
		zap.String("to", string(rule.to)))
	return a, nil
}

// withdraw takes a manifest down. Failures are logged: the status write has
// already decided the outcome.
func (s *assemblyService) withdraw(ctx context.Context, a *models.Assembly) {
	err := s.publisher.Withdraw(ctx, a)
	s.metrics.RecordPublish("withdraw", err)
	if err != nil {
		s.logger.Error("Failed to withdraw assembly manifest",
			zap.String("assembly_id", a.ID.String()),
			zap.Error(err))
	}
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ============================================================================
// Membership edits
// ============================================================================

func (s *assemblyService) AddPart(ctx context.Context, id uuid.UUID, partCode string) (*models.Assembly, error) {
	return s.editMembership(ctx, id, "add_part", func(comp *composition.Composition) error {
		if _, err := s.parts.Find(ctx, partCode); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.Invalid("part_code", "unknown part %q", partCode)
			}
			return err
		}
		if _, added := comp.Add(partCode, s.editor.Defaults(partCode)); !added {
			return fmt.Errorf("part %q: %w", partCode, apperrors.ErrDuplicatePart)
		}
		return nil
	})
}

func (s *assemblyService) RemovePart(ctx context.Context, id, instanceID uuid.UUID) (*models.Assembly, error) {
	return s.editMembership(ctx, id, "remove_part", func(comp *composition.Composition) error {
		return comp.Remove(instanceID)
	})
}

func (s *assemblyService) ReorderParts(ctx context.Context, id uuid.UUID, instanceIDs []uuid.UUID) (*models.Assembly, error) {
	return s.editMembership(ctx, id, "reorder_parts", func(comp *composition.Composition) error {
		return comp.Reorder(instanceIDs)
	})
}

func (s *assemblyService) UpdatePartConfig(ctx context.Context, id, instanceID uuid.UUID, values map[string]any) (*models.Assembly, error) {
	return s.editMembership(ctx, id, "update_part_config", func(comp *composition.Composition) error {
		inst, ok := comp.Get(instanceID)
		if !ok {
			return fmt.Errorf("instance %s: %w", instanceID, apperrors.ErrNotFound)
		}
		updated, err := s.editor.Apply(ctx, inst, values)
		if err != nil {
			return err
		}
		return comp.Replace(instanceID, updated.Config)
	})
}

// editMembership loads the assembly, refuses edits while DEPLOYED, applies
// edit to a composition of its parts and writes the result. A rejected edit
// writes nothing.
func (s *assemblyService) editMembership(ctx context.Context, id uuid.UUID, op string, edit func(*composition.Composition) error) (a *models.Assembly, err error) {
	s.disarm(ctx)
	ctx, span := telemetry.StartSpan(ctx, "assembly."+op, attribute.String("assembly.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	a, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.AllowsMembershipEdits() {
		return nil, fmt.Errorf("assembly %s: %w", id, apperrors.ErrAssemblyDeployed)
	}

	comp, err := composition.FromInstances(a.Parts)
	if err != nil {
		return nil, fmt.Errorf("stored parts of assembly %s are inconsistent: %w", id, err)
	}
	if err := edit(comp); err != nil {
		return nil, err
	}

	a.Parts = comp.Instances()
	a.Version++
	if err := s.repo.ReplaceParts(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update assembly parts: %w", err)
	}
	return a, nil
}

// ============================================================================
// Delete and render
// ============================================================================

func (s *assemblyService) Delete(ctx context.Context, id uuid.UUID) (result *DeleteResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "assembly.delete", attribute.String("assembly.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	actor := session.ActorFromContext(ctx)

	a, err := s.Get(ctx, id)
	if err != nil {
		s.disarm(ctx)
		return nil, err
	}

	decision, err := s.confirmer.Request(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !decision.Confirmed {
		s.metrics.RecordDelete("armed")
		s.logger.Debug("Delete armed",
			zap.String("assembly_id", id.String()),
			zap.Time("expires_at", decision.ExpiresAt))
		return &DeleteResult{Armed: true, ExpiresAt: decision.ExpiresAt}, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete assembly: %w", err)
	}
	if a.Status == models.AssemblyStatusDeployed {
		s.withdraw(ctx, a)
	}

	s.metrics.RecordDelete("deleted")
	if s.auditor != nil {
		s.auditor.LogLifecycleAction(ctx, id, "delete")
	}
	s.logger.Info("Deleted assembly", zap.String("assembly_id", id.String()), zap.String("code", a.Code))
	return &DeleteResult{Deleted: true}, nil
}

func (s *assemblyService) Render(ctx context.Context, id uuid.UUID) ([]render.Block, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderComposition(ctx, a.Parts), nil
}

// disarm clears the caller's pending delete. Failures only cost the user an
// extra click, so they are logged and not returned.
func (s *assemblyService) disarm(ctx context.Context) {
	actor := session.ActorFromContext(ctx)
	if err := s.confirmer.Disarm(ctx, actor); err != nil {
		s.logger.Warn("Failed to disarm pending delete", zap.String("actor_id", actor), zap.Error(err))
	}
}
