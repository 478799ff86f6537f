package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/shared"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := map[error]int{
		shared.ValidationError("bad"):      http.StatusBadRequest,
		shared.NotFoundError("invoice", 1): http.StatusNotFound,
		shared.ConflictError("busy"):       http.StatusConflict,
		shared.IntegrityError("dup", nil):  http.StatusConflict,
		ErrUnauthorized:                    http.StatusUnauthorized,
		shared.ErrIdempotencyConflict:      http.StatusConflict,
	}
	for err, status := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		assert.Equal(t, status, rr.Code, err.Error())
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
	}
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
		Qty  int64  `json:"qty" validate:"gt=0"`
	}
	v := validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","qty":0}`))
	var p payload
	err := DecodeAndValidate(req, v, &p)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, shared.UserMessage(err), "Qty")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","qty":2}`))
	require.NoError(t, DecodeAndValidate(req, v, &p))
	assert.Equal(t, int64(2), p.Qty)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	assert.ErrorIs(t, DecodeAndValidate(req, v, &p), shared.ErrValidation)
}
