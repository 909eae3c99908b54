package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrInvalidInput, ErrInternal, ErrConflict, ErrUpstreamFailure,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", appErr.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", bare.Error())
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("query is not valid UTF-8")
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestInternal_KeepsCauseAndGenericMessage(t *testing.T) {
	cause := errors.New("relation \"products\" does not exist")
	err := Internal(cause)

	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.True(t, errors.Is(err, ErrInternal))
	assert.True(t, errors.Is(err, cause))
}

func TestUpstreamFailure(t *testing.T) {
	cause := errors.New("supplier returned 503")
	err := UpstreamFailure("catalog sync failed", cause)

	assert.Equal(t, "UPSTREAM_FAILURE", err.Code)
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.True(t, errors.Is(err, ErrUpstreamFailure))
	assert.True(t, errors.Is(err, cause))
}

func TestConflict(t *testing.T) {
	err := Conflict("catalog sync already in progress")
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", InvalidInput("bad page"), http.StatusBadRequest},
		{"wrapped app error", fmt.Errorf("outer: %w", Conflict("busy")), http.StatusConflict},
		{"sentinel invalid", fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest},
		{"sentinel upstream", ErrUpstreamFailure, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
