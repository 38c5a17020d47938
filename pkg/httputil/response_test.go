package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]string{"name": "acme"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Success", resp.Message)
	assert.Empty(t, resp.ErrorCode)
	assert.NotNil(t, resp.Data)
}

func TestWriteCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteCreated(rec, "Site created", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Site created", resp.Message)
}

func TestWriteUnauthorizedWithCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteUnauthorized(rec, "Token is invalid or expired", CodeInvalidToken)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidToken, resp.ErrorCode)
}

func TestWriteErrorsOmitEmptyCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBadRequest(rec, "name is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	_, hasCode := raw["error_code"]
	assert.False(t, hasCode)
	_, hasData := raw["data"]
	assert.False(t, hasData)
}

func TestWriteStatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		code  int
	}{
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "no") }, http.StatusForbidden},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "no") }, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "no") }, http.StatusConflict},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "no") }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.code, rec.Code)
			assert.False(t, decodeEnvelope(t, rec).Success)
		})
	}
}
