package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := E(CodeNetworkError, "EmbeddingService.embedFacet", "embedding generation failed", cause)

	assert.True(t, IsCode(err, CodeNetworkError))
	assert.False(t, IsCode(err, CodeTimeout))
	assert.Equal(t, CodeNetworkError, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "EmbeddingService.embedFacet")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, CodeNetworkError, CodeOf(wrapped), "code survives further wrapping")
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, IsCode(errors.New("plain"), CodeInternal))
}

func TestEDCarriesDetails(t *testing.T) {
	err := ED(CodeBudgetExceeded, "op", "budget exhausted", nil, map[string]any{"facet": "values"})
	var ae *AppError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, "values", ae.Details["facet"])
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeBudgetExceeded, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeNetworkError, http.StatusBadGateway},
		{CodeUpstreamError, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(E(tc.code, "op", "msg", nil)))
		})
	}

	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
