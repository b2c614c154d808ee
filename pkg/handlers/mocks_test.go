package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/render"
	"github.com/ekaya-inc/assembly-factory/pkg/services"
	"github.com/ekaya-inc/assembly-factory/pkg/session"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockAssemblyService implements services.AssemblyService. Every call is
// recorded and answers with the configured assembly or error.
type mockAssemblyService struct {
	mu sync.Mutex

	assembly     *models.Assembly
	assemblies   []*models.Assembly
	blocks       []render.Block
	deleteResult *services.DeleteResult
	err          error

	calls        []string
	lastID       uuid.UUID
	lastName     string
	lastRole     string
	lastSpecs    []models.InstanceSpec
	lastPatch    models.AssemblyPatch
	lastPartCode string
	lastIDs      []uuid.UUID
	lastValues   map[string]any
}

var _ services.AssemblyService = (*mockAssemblyService)(nil)

func (m *mockAssemblyService) record(call string, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.lastID = id
}

func (m *mockAssemblyService) result() (*models.Assembly, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.assembly, nil
}

func (m *mockAssemblyService) List(ctx context.Context) ([]*models.Assembly, error) {
	m.record("List", uuid.Nil)
	return m.assemblies, m.err
}

func (m *mockAssemblyService) Get(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	m.record("Get", id)
	return m.result()
}

func (m *mockAssemblyService) Create(ctx context.Context, name, targetRole string, specs []models.InstanceSpec) (*models.Assembly, error) {
	m.record("Create", uuid.Nil)
	m.lastName, m.lastRole, m.lastSpecs = name, targetRole, specs
	return m.result()
}

func (m *mockAssemblyService) Update(ctx context.Context, id uuid.UUID, patch models.AssemblyPatch) (*models.Assembly, error) {
	m.record("Update", id)
	m.lastPatch = patch
	return m.result()
}

func (m *mockAssemblyService) SubmitForTesting(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	m.record("SubmitForTesting", id)
	return m.result()
}

func (m *mockAssemblyService) Approve(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	m.record("Approve", id)
	return m.result()
}

func (m *mockAssemblyService) Deploy(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	m.record("Deploy", id)
	return m.result()
}

func (m *mockAssemblyService) Rollback(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	m.record("Rollback", id)
	return m.result()
}

func (m *mockAssemblyService) RevertToDraft(ctx context.Context, id uuid.UUID) (*models.Assembly, error) {
	m.record("RevertToDraft", id)
	return m.result()
}

func (m *mockAssemblyService) AddPart(ctx context.Context, id uuid.UUID, partCode string) (*models.Assembly, error) {
	m.record("AddPart", id)
	m.lastPartCode = partCode
	return m.result()
}

func (m *mockAssemblyService) RemovePart(ctx context.Context, id, instanceID uuid.UUID) (*models.Assembly, error) {
	m.record("RemovePart", id)
	return m.result()
}

func (m *mockAssemblyService) ReorderParts(ctx context.Context, id uuid.UUID, instanceIDs []uuid.UUID) (*models.Assembly, error) {
	m.record("ReorderParts", id)
	m.lastIDs = instanceIDs
	return m.result()
}

func (m *mockAssemblyService) UpdatePartConfig(ctx context.Context, id, instanceID uuid.UUID, values map[string]any) (*models.Assembly, error) {
	m.record("UpdatePartConfig", id)
	m.lastValues = values
	return m.result()
}

func (m *mockAssemblyService) Delete(ctx context.Context, id uuid.UUID) (*services.DeleteResult, error) {
	m.record("Delete", id)
	if m.err != nil {
		return nil, m.err
	}
	return m.deleteResult, nil
}

func (m *mockAssemblyService) Render(ctx context.Context, id uuid.UUID) ([]render.Block, error) {
	m.record("Render", id)
	return m.blocks, m.err
}

func (m *mockAssemblyService) lastCall() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1]
}

// staticCatalog implements PartCatalog and PartFinder over a fixed list.
type staticCatalog struct {
	parts []models.PartDescriptor
	err   error
}

func (c *staticCatalog) List(ctx context.Context) ([]models.PartDescriptor, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.parts, nil
}

func (c *staticCatalog) Find(ctx context.Context, code string) (models.PartDescriptor, error) {
	if c.err != nil {
		return models.PartDescriptor{}, c.err
	}
	for _, p := range c.parts {
		if p.Code == code {
			return p, nil
		}
	}
	return models.PartDescriptor{}, apperrors.ErrNotFound
}

// countingDisarmer implements Disarmer.
type countingDisarmer struct {
	mu     sync.Mutex
	actors []string
}

func (d *countingDisarmer) Disarm(ctx context.Context, actor string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actors = append(d.actors, actor)
	return nil
}

type fakeChecker struct{ err error }

func (c fakeChecker) Check(ctx context.Context) error { return c.err }

var errStoreDown = errors.New("connection refused")

// ============================================================================
// Helpers
// ============================================================================

var testParts = []models.PartDescriptor{
	{Code: "scoring", Name: "Scoring", Category: "competition", FunctionalType: models.FunctionalTypeFullstack, IsCore: true},
	{Code: "schedule", Name: "Schedule", Category: "planning", FunctionalType: models.FunctionalTypeFullstack, IsCore: true},
	{Code: "feedback", Name: "Feedback", Category: "engagement", FunctionalType: models.FunctionalTypeFormInput},
}

// newRequest builds a request carrying the given staging actor.
func newRequest(method, target, body, actor string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req = req.WithContext(session.WithActor(req.Context(), actor))
	}
	return req
}
