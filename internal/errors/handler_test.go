package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotaudit/internal/shared/testutil"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantExt    map[string]interface{}
	}{
		{
			name:       "schema error",
			err:        NewSchemaError("unrecognized vote table", fmt.Errorf("missing email")).WithContext("field", "email"),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeSchema,
			wantExt:    map[string]interface{}{"field": "email", "error_code": "SCHEMA"},
		},
		{
			name:       "wrapped source error",
			err:        fmt.Errorf("run: %w", NewSourceError("sheet fetch failed", context.Canceled)),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "validation app error",
			err:        NewAppValidationError("night_start out of range"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "storage error hides context",
			err:        NewStorageError("write failed", fmt.Errorf("disk full")).WithContext("path", "/secret"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeStorage,
		},
		{
			name:       "api validation error",
			err:        ErrValidation("z_threshold", "must be positive"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantExt:    map[string]interface{}{"error_code": "VALIDATION_FAILED"},
		},
		{
			name:       "upload too large",
			err:        fmt.Errorf("parse form: %w", &http.MaxBytesError{Limit: 10}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/audits", nil)
			rec := httptest.NewRecorder()
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/audits", body["instance"])
			for k, v := range tt.wantExt {
				assert.Equal(t, v, body[k], k)
			}
			assert.NotContains(t, body, "path")
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, handler.Count())
	assert.Empty(t, rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	rec := httptest.NewRecorder()
	RecoveryMiddleware(h)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "kaboom")
	assert.True(t, logs.ContainsMessage("panic recovered"))
}

func TestAppErrorHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewConfigError("bad policy", nil))
	assert.Equal(t, ErrTypeConfig, TypeOf(err))
	assert.True(t, Is(err, ErrTypeConfig))
	assert.False(t, Is(fmt.Errorf("x"), ErrTypeConfig))
	assert.Equal(t, "[CONFIG] bad policy", NewConfigError("bad policy", nil).Error())
}
