package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/services"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "bad_request", "invalid input"},
		{"not found", http.StatusNotFound, "not_found", "resource not found"},
		{"internal error", http.StatusInternalServerError, "internal_error", "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message)
			require.NoError(t, err)

			resp := w.Result()
			defer resp.Body.Close()

			assert.Equal(t, tt.statusCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.errorCode, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestWriteJSON_Status200(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteJSON(w, http.StatusOK, map[string]string{"key": "value"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"key":"value"}`, w.Body.String())
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&services.TransitionError{Action: "deploy", From: models.AssemblyStatusDraft}, http.StatusConflict, "invalid_transition"},
		{fmt.Errorf("assembly x: %w", apperrors.ErrAssemblyDeployed), http.StatusConflict, "assembly_deployed"},
		{apperrors.ErrDuplicatePart, http.StatusConflict, "duplicate_part"},
		{apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{fmt.Errorf("assembly x: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{apperrors.Invalid("name", "is required"), http.StatusBadRequest, "validation_error"},
		{apperrors.ErrInvalidPermutation, http.StatusBadRequest, "invalid_permutation"},
		{apperrors.ErrInvalidConfig, http.StatusUnprocessableEntity, "invalid_config"},
		{apperrors.ErrUnsafeValue, http.StatusUnprocessableEntity, "unsafe_value"},
		{errStoreDown, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()

	writeServiceError(w, errors.New("dial tcp 10.0.0.3:5432: connection refused"), "create assembly", zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Failed to create assembly, please retry", body["message"])
}

func TestWriteServiceError_RefusalsCarryReason(t *testing.T) {
	w := httptest.NewRecorder()

	writeServiceError(w, &services.TransitionError{Action: "deploy", From: models.AssemblyStatusDraft}, "deploy assembly", zap.NewNop())

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "invalid_transition", body["error"])
	assert.Equal(t, "cannot deploy an assembly in status DRAFT", body["message"])
}
