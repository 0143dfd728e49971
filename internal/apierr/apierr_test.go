package apierr_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/surpluscoord/control-plane/internal/apierr"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code apierr.Code
		want int
	}{
		{apierr.CodeValidationError, http.StatusBadRequest},
		{apierr.CodeInvalidStateTransition, http.StatusBadRequest},
		{apierr.CodeComplianceViolation, http.StatusBadRequest},
		{apierr.CodeAuthenticationError, http.StatusUnauthorized},
		{apierr.CodeAuthorizationError, http.StatusForbidden},
		{apierr.CodeNotFound, http.StatusNotFound},
		{apierr.CodeConflict, http.StatusConflict},
		{apierr.CodeIdempotencyViolation, http.StatusConflict},
		{apierr.CodeRateLimitExceeded, http.StatusTooManyRequests},
		{apierr.CodeServiceUnavailable, http.StatusServiceUnavailable},
		{apierr.CodeInternalError, http.StatusInternalServerError},
	}
	for _, c := range cases {
		err := apierr.New(c.code, "message")
		assert.Equal(t, c.want, err.StatusCode())
	}
}

func TestWriteErrorFlattensShape(t *testing.T) {
	w := httptest.NewRecorder()
	err := apierr.NotFoundError("match").WithRequestID("req-1").WithDetails(map[string]string{"id": "m1"})

	apierr.WriteError(w, err)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"errorCode":"NOT_FOUND","message":"match not found","details":{"id":"m1"},"requestId":"req-1"}`, w.Body.String())
}

func TestAsWrapsUnknownErrorsWithoutLeakingMessage(t *testing.T) {
	wrapped := apierr.As(assert.AnError)
	assert.Equal(t, apierr.CodeInternalError, wrapped.ErrorCode)
	assert.NotContains(t, wrapped.Message, assert.AnError.Error())
}

func TestAsPassesThroughExistingAPIError(t *testing.T) {
	original := apierr.ConflictError("version mismatch")
	assert.Same(t, original, apierr.As(original))
}
