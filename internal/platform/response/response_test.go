package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, ErrForbidden.WithDetails("user_id", "u2"))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
	assert.Equal(t, "u2", body.Error.Details["user_id"])

	assert.Empty(t, ErrForbidden.Details, "shared error must not be mutated")
}

func TestRawWritesBareValue(t *testing.T) {
	rec := httptest.NewRecorder()
	Raw(rec, http.StatusOK, 2)

	assert.Equal(t, "2\n", rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
