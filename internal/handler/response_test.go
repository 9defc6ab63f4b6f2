package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todo-app/internal/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantKind string
	}{
		{apperror.Unauthenticated(), http.StatusUnauthorized, "unauthenticated"},
		{apperror.ValidationFailed("task", "task is required"), http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("loading: %w", apperror.NotFound("todo", 7)), http.StatusNotFound, "not_found"},
		{apperror.Forbidden("todo belongs to another user"), http.StatusForbidden, "forbidden"},
		{apperror.ConflictMessage("category 1 still has todos"), http.StatusConflict, "conflict"},
		{apperror.UpstreamAuth("GitHub", errors.New("timeout")), http.StatusBadGateway, "upstream_auth_error"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			code, kind := statusFor(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestWriteError_ValidationFields(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, slog.New(slog.NewTextHandler(io.Discard, nil)), apperror.Invalid(map[string]string{
		"task":        "task is required",
		"category_id": "category_id is required",
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "validation_error", body.Error)
	assert.Len(t, body.Fields, 2)
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, slog.New(slog.NewTextHandler(io.Discard, nil)),
		errors.New("sqlite: no such table: todos"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "sqlite")
	assert.Contains(t, rr.Body.String(), `"error":"internal_error"`)
}

func TestNonNilEncodesEmptyArray(t *testing.T) {
	rr := httptest.NewRecorder()
	var none []int
	writeJSON(rr, http.StatusOK, nonNil(none))
	assert.JSONEq(t, `[]`, rr.Body.String())
}
