package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
)

func TestRespondServiceError_StatusMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{apperrors.NewValidationError("bad input"), http.StatusBadRequest, "validation_failed"},
		{apperrors.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
		{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", apperrors.ErrConflict), http.StatusConflict, "conflict"},
		{apperrors.ErrLocked, http.StatusLocked, "locked"},
		{apperrors.ErrConsistency, http.StatusUnprocessableEntity, "inconsistent_state"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, zap.NewNop(), tc.err)
			assert.Equal(t, tc.wantStatus, rec.Code)

			var resp ApiResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantCode, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestValidationError_CarriesRowDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, zap.NewNop(), &apperrors.ValidationError{
		Message:    "rows missing required control_id or control_description",
		RowNumbers: []int{2, 7},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "2")
	assert.Contains(t, rec.Body.String(), "7")
}
