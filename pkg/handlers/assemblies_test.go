package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/services"
)

func newAssembliesMux(svc *mockAssemblyService) *http.ServeMux {
	mux := http.NewServeMux()
	NewAssembliesHandler(svc, zap.NewNop()).RegisterRoutes(mux, NoConnection)
	return mux
}

func sampleAssembly(status models.AssemblyStatus) *models.Assembly {
	return &models.Assembly{
		ID:         uuid.New(),
		Code:       "athlete-view",
		Name:       "Athlete View",
		TargetRole: "ATHLETE",
		Version:    1,
		Status:     status,
		Parts: []models.PartInstance{
			{InstanceID: uuid.New(), PartCode: "scoring", SortOrder: 0, Config: json.RawMessage(`{}`)},
		},
	}
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAssembliesHandler_Create(t *testing.T) {
	svc := &mockAssemblyService{assembly: sampleAssembly(models.AssemblyStatusDraft)}
	mux := newAssembliesMux(svc)

	body := `{"name":"Athlete View","target_role":"ATHLETE","parts":[{"part_code":"scoring","sort_order":0,"config":{"title":"Points"}}]}`
	rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies", body, ""))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Athlete View", svc.lastName)
	assert.Equal(t, "ATHLETE", svc.lastRole)
	require.Len(t, svc.lastSpecs, 1)
	assert.JSONEq(t, `{"title":"Points"}`, string(svc.lastSpecs[0].Config))

	var resp struct {
		Success bool            `json:"success"`
		Data    models.Assembly `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.AssemblyStatusDraft, resp.Data.Status)
}

func TestAssembliesHandler_Create_MalformedJSON(t *testing.T) {
	svc := &mockAssemblyService{}
	mux := newAssembliesMux(svc)

	rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies", `{"name":`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])
	assert.Empty(t, svc.calls)
}

func TestAssembliesHandler_Create_ValidationError(t *testing.T) {
	svc := &mockAssemblyService{err: apperrors.Invalid("parts", "at least one part is required")}
	mux := newAssembliesMux(svc)

	rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies", `{"name":"x","target_role":"y"}`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body["error"])
	assert.Contains(t, body["message"], "parts")
}

func TestAssembliesHandler_RejectedConfigIsUnprocessable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"wrong kind", fmt.Errorf("parts[0].config (schedule): field \"days\": %w: expected a number", apperrors.ErrInvalidConfig), "invalid_config"},
		{"out of range", fmt.Errorf("parts[0].config (schedule): field \"days\": %w: 90 is above the maximum 31", apperrors.ErrInvalidConfig), "invalid_config"},
		{"unsafe text", fmt.Errorf("parts[0].config (scoring): field \"title\": %w", apperrors.ErrUnsafeValue), "unsafe_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAssemblyService{err: tt.err}
			mux := newAssembliesMux(svc)

			body := `{"name":"View","target_role":"ATHLETE","parts":[{"part_code":"schedule","sort_order":0,"config":{"days":"lots"}}]}`
			rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies", body, ""))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec)["error"])

			id := uuid.New()
			patch := `{"parts":[{"part_code":"schedule","sort_order":0,"config":{"days":90}}]}`
			rec = serve(mux, newRequest(http.MethodPatch, "/api/assemblies/"+id.String(), patch, ""))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec)["error"])
		})
	}
}

func TestAssembliesHandler_List_EmptyIsArray(t *testing.T) {
	mux := newAssembliesMux(&mockAssemblyService{})

	rec := serve(mux, newRequest(http.MethodGet, "/api/assemblies", "", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"assemblies":[],"total":0}}`, rec.Body.String())
}

func TestAssembliesHandler_Get_InvalidID(t *testing.T) {
	svc := &mockAssemblyService{}
	mux := newAssembliesMux(svc)

	rec := serve(mux, newRequest(http.MethodGet, "/api/assemblies/nope", "", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestAssembliesHandler_Get_NotFound(t *testing.T) {
	mux := newAssembliesMux(&mockAssemblyService{err: fmt.Errorf("assembly: %w", apperrors.ErrNotFound)})

	rec := serve(mux, newRequest(http.MethodGet, "/api/assemblies/"+uuid.NewString(), "", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssembliesHandler_Update_DeployedMembership(t *testing.T) {
	svc := &mockAssemblyService{err: fmt.Errorf("assembly: %w", apperrors.ErrAssemblyDeployed)}
	mux := newAssembliesMux(svc)

	body := `{"parts":[{"part_code":"roster","sort_order":0}]}`
	rec := serve(mux, newRequest(http.MethodPatch, "/api/assemblies/"+uuid.NewString(), body, ""))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "assembly_deployed", decodeError(t, rec)["error"])
	require.NotNil(t, svc.lastPatch.Parts)
	assert.Nil(t, svc.lastPatch.Name)
}

func TestAssembliesHandler_TransitionRoutes(t *testing.T) {
	routes := map[string]string{
		"submit":   "SubmitForTesting",
		"approve":  "Approve",
		"deploy":   "Deploy",
		"rollback": "Rollback",
		"revert":   "RevertToDraft",
	}

	for path, call := range routes {
		t.Run(path, func(t *testing.T) {
			svc := &mockAssemblyService{assembly: sampleAssembly(models.AssemblyStatusApproved)}
			mux := newAssembliesMux(svc)
			id := uuid.New()

			rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies/"+id.String()+"/"+path, "", ""))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, call, svc.lastCall())
			assert.Equal(t, id, svc.lastID)
		})
	}
}

func TestAssembliesHandler_InvalidTransition(t *testing.T) {
	svc := &mockAssemblyService{err: &services.TransitionError{Action: services.ActionDeploy, From: models.AssemblyStatusDraft}}
	mux := newAssembliesMux(svc)

	rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies/"+uuid.NewString()+"/deploy", "", ""))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, rec)["error"])
}

func TestAssembliesHandler_Delete_TwoPhase(t *testing.T) {
	expires := time.Date(2026, 5, 1, 10, 0, 3, 0, time.UTC)
	svc := &mockAssemblyService{deleteResult: &services.DeleteResult{Armed: true, ExpiresAt: expires}}
	mux := newAssembliesMux(svc)
	target := "/api/assemblies/" + uuid.NewString()

	rec := serve(mux, newRequest(http.MethodDelete, target, "", "admin"))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"armed":true`)

	svc.deleteResult = &services.DeleteResult{Deleted: true}
	rec = serve(mux, newRequest(http.MethodDelete, target, "", "admin"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":true`)
}

func TestAssembliesHandler_MembershipRoutes(t *testing.T) {
	svc := &mockAssemblyService{assembly: sampleAssembly(models.AssemblyStatusDraft)}
	mux := newAssembliesMux(svc)
	base := "/api/assemblies/" + uuid.NewString()
	a, b := uuid.New(), uuid.New()

	rec := serve(mux, newRequest(http.MethodPost, base+"/parts", `{"part_code":"roster"}`, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "roster", svc.lastPartCode)

	rec = serve(mux, newRequest(http.MethodPut, base+"/parts/order", fmt.Sprintf(`{"instance_ids":["%s","%s"]}`, b, a), ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{b, a}, svc.lastIDs)

	rec = serve(mux, newRequest(http.MethodDelete, base+"/parts/"+a.String(), "", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RemovePart", svc.lastCall())

	rec = serve(mux, newRequest(http.MethodPatch, base+"/parts/"+a.String()+"/config", `{"values":{"days":3}}`, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, svc.lastValues["days"])
}

func TestAssembliesHandler_ReorderRejected(t *testing.T) {
	mux := newAssembliesMux(&mockAssemblyService{err: apperrors.ErrInvalidPermutation})

	rec := serve(mux, newRequest(http.MethodPut, "/api/assemblies/"+uuid.NewString()+"/parts/order", `{"instance_ids":[]}`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_permutation", decodeError(t, rec)["error"])
}

func TestAssembliesHandler_StoreFailure(t *testing.T) {
	mux := newAssembliesMux(&mockAssemblyService{err: errStoreDown})

	rec := serve(mux, newRequest(http.MethodPost, "/api/assemblies/"+uuid.NewString()+"/approve", "", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to approve assembly, please retry", decodeError(t, rec)["message"])
}
