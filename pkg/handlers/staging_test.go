package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/editor"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/render"
	"github.com/ekaya-inc/assembly-factory/pkg/schema"
	"github.com/ekaya-inc/assembly-factory/pkg/staging"
)

type stagingFixture struct {
	mux      *http.ServeMux
	svc      *mockAssemblyService
	store    *staging.Store
	disarmer *countingDisarmer
}

func newStagingFixture(t *testing.T) *stagingFixture {
	t.Helper()
	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(models.PropsSchema{Code: "schedule", Fields: []models.FieldSpec{
		{Name: "days", Kind: models.FieldKindNumber, Default: 7.0},
	}}))
	ed := editor.New(registry, nil)
	cat := &staticCatalog{parts: testParts}

	f := &stagingFixture{
		svc:      &mockAssemblyService{},
		store:    staging.NewStore(ed),
		disarmer: &countingDisarmer{},
	}
	resolver := render.NewResolver(cat, ed, zap.NewNop(), nil)

	f.mux = http.NewServeMux()
	NewStagingHandler(f.store, cat, f.svc, resolver, f.disarmer, zap.NewNop()).RegisterRoutes(f.mux, NoConnection)
	return f
}

func stagingState(t *testing.T, body []byte) StagingResponse {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    StagingResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestStagingHandler_RequiresSession(t *testing.T) {
	f := newStagingFixture(t)

	rec := serve(f.mux, newRequest(http.MethodGet, "/api/staging", "", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "session_required", decodeError(t, rec)["error"])
}

func TestStagingHandler_AddPart(t *testing.T) {
	f := newStagingFixture(t)

	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"schedule"}`, "admin"))
	require.Equal(t, http.StatusCreated, rec.Code)
	state := stagingState(t, rec.Body.Bytes())
	require.Len(t, state.Instances, 1)
	assert.JSONEq(t, `{"days":7,"visible":true,"style_class":""}`, string(state.Instances[0].Config))

	rec = serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"schedule"}`, "admin"))
	assert.Equal(t, http.StatusOK, rec.Code, "adding a staged part again is a no-op")
	assert.Len(t, stagingState(t, rec.Body.Bytes()).Instances, 1)

	rec = serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"ghost"}`, "admin"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStagingHandler_SessionsAreIsolated(t *testing.T) {
	f := newStagingFixture(t)

	serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"scoring"}`, "alice"))
	rec := serve(f.mux, newRequest(http.MethodGet, "/api/staging", "", "bob"))

	assert.Empty(t, stagingState(t, rec.Body.Bytes()).Instances)
}

func TestStagingHandler_SelectionAndRemove(t *testing.T) {
	f := newStagingFixture(t)
	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"scoring"}`, "admin"))
	id := stagingState(t, rec.Body.Bytes()).Instances[0].InstanceID

	rec = serve(f.mux, newRequest(http.MethodPut, "/api/staging/selection", fmt.Sprintf(`{"instance_id":"%s"}`, id), "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	state := stagingState(t, rec.Body.Bytes())
	require.NotNil(t, state.SelectedID)
	assert.Equal(t, id, *state.SelectedID)

	rec = serve(f.mux, newRequest(http.MethodPut, "/api/staging/selection", fmt.Sprintf(`{"instance_id":"%s"}`, uuid.New()), "admin"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(f.mux, newRequest(http.MethodDelete, "/api/staging/parts/"+id.String(), "", "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	state = stagingState(t, rec.Body.Bytes())
	assert.Empty(t, state.Instances)
	assert.Nil(t, state.SelectedID, "removing the selected instance clears the selection")
}

func TestStagingHandler_UpdateConfig(t *testing.T) {
	f := newStagingFixture(t)
	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"schedule"}`, "admin"))
	id := stagingState(t, rec.Body.Bytes()).Instances[0].InstanceID
	target := "/api/staging/parts/" + id.String() + "/config"

	rec = serve(f.mux, newRequest(http.MethodPatch, target, `{"values":{"days":"3"}}`, "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(stagingState(t, rec.Body.Bytes()).Instances[0].Config, &cfg))
	assert.Equal(t, 3.0, cfg["days"])

	rec = serve(f.mux, newRequest(http.MethodPatch, target, `{"values":{"weeks":1}}`, "admin"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStagingHandler_Render(t *testing.T) {
	f := newStagingFixture(t)
	serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"feedback"}`, "admin"))

	rec := serve(f.mux, newRequest(http.MethodGet, "/api/staging/render", "", "admin"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []render.Block `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, render.BlockKindInputControl, resp.Data[0].Kind)
}

func TestStagingHandler_EditDeployedIsRefused(t *testing.T) {
	f := newStagingFixture(t)
	f.svc.assembly = sampleAssembly(models.AssemblyStatusDeployed)

	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/edit/"+f.svc.assembly.ID.String(), "", "admin"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "assembly_deployed", decodeError(t, rec)["error"])
}

func TestStagingHandler_EditThenCommitUpdates(t *testing.T) {
	f := newStagingFixture(t)
	existing := sampleAssembly(models.AssemblyStatusApproved)
	f.svc.assembly = existing

	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/edit/"+existing.ID.String(), "", "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	state := stagingState(t, rec.Body.Bytes())
	require.NotNil(t, state.EditingID)
	assert.Equal(t, existing.ID, *state.EditingID)

	serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"schedule"}`, "admin"))
	rec = serve(f.mux, newRequest(http.MethodPost, "/api/staging/commit", `{}`, "admin"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Update", f.svc.lastCall())
	assert.Equal(t, existing.ID, f.svc.lastID)
	assert.Nil(t, f.svc.lastPatch.Name, "blank fields keep the stored values")
	require.NotNil(t, f.svc.lastPatch.Parts)
	assert.Len(t, *f.svc.lastPatch.Parts, 2)
	assert.Equal(t, 0, f.store.Get("admin").Len(), "commit clears the staging area")
}

func TestStagingHandler_CommitFailureKeepsStaging(t *testing.T) {
	f := newStagingFixture(t)
	f.svc.err = errStoreDown
	serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"scoring"}`, "admin"))

	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/commit", `{"name":"View","target_role":"COACH"}`, "admin"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, f.store.Get("admin").Len())
}

func TestStagingHandler_ActionsDisarmPendingDelete(t *testing.T) {
	f := newStagingFixture(t)

	serve(f.mux, newRequest(http.MethodGet, "/api/staging", "", "admin"))
	serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"scoring"}`, "admin"))

	assert.Equal(t, []string{"admin", "admin"}, f.disarmer.actors)
}

// Add scoring, add schedule, swap them, then commit as a new assembly.
func TestStagingHandler_ComposeAndCommit(t *testing.T) {
	f := newStagingFixture(t)
	f.svc.assembly = sampleAssembly(models.AssemblyStatusDraft)

	rec := serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"scoring"}`, "admin"))
	scoring := stagingState(t, rec.Body.Bytes()).Instances[0]
	assert.Equal(t, 0, scoring.SortOrder)

	rec = serve(f.mux, newRequest(http.MethodPost, "/api/staging/parts", `{"part_code":"schedule"}`, "admin"))
	state := stagingState(t, rec.Body.Bytes())
	require.Len(t, state.Instances, 2)
	schedule := state.Instances[1]
	assert.Equal(t, 1, schedule.SortOrder)

	order := fmt.Sprintf(`{"instance_ids":["%s","%s"]}`, schedule.InstanceID, scoring.InstanceID)
	rec = serve(f.mux, newRequest(http.MethodPut, "/api/staging/order", order, "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	state = stagingState(t, rec.Body.Bytes())
	assert.Equal(t, "schedule", state.Instances[0].PartCode)
	assert.Equal(t, "scoring", state.Instances[1].PartCode)
	assert.Equal(t, 1, state.Instances[1].SortOrder)

	rec = serve(f.mux, newRequest(http.MethodPut, "/api/staging/order", fmt.Sprintf(`{"instance_ids":["%s"]}`, scoring.InstanceID), "admin"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "partial permutations are rejected")

	rec = serve(f.mux, newRequest(http.MethodPost, "/api/staging/commit", `{"name":"Athlete View","target_role":"ATHLETE"}`, "admin"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Create", f.svc.lastCall())
	require.Len(t, f.svc.lastSpecs, 2)
	assert.Equal(t, "schedule", f.svc.lastSpecs[0].PartCode)
	assert.Equal(t, 0, f.svc.lastSpecs[0].SortOrder)
	assert.Equal(t, "scoring", f.svc.lastSpecs[1].PartCode)
}
