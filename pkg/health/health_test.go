package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveReady(t *testing.T, h *Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestLivenessHandler_AlwaysReturns200(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(ctx context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(ctx context.Context) error { return nil })
	h.RegisterOptional("redis", func(ctx context.Context) error { return nil })

	rec, resp := serveReady(t, h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusUp, resp.Checks["catalog"].Status)
	assert.True(t, resp.Checks["redis"].Optional)
}

func TestReadinessHandler_RequiredDown(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(ctx context.Context) error { return errors.New("connection refused") })
	h.RegisterOptional("redis", func(ctx context.Context) error { return nil })

	rec, resp := serveReady(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["catalog"].Error)
}

func TestReadinessHandler_OptionalDownIsDegraded(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(ctx context.Context) error { return nil })
	h.RegisterOptional("redis", func(ctx context.Context) error { return errors.New("dial tcp: refused") })

	rec, resp := serveReady(t, h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["redis"].Status)
}

func TestReadinessHandler_RequiredDownWinsOverDegraded(t *testing.T) {
	h := NewHandler()
	h.RegisterOptional("redis", func(ctx context.Context) error { return errors.New("down") })
	h.Register("catalog", func(ctx context.Context) error { return errors.New("down") })

	_, resp := serveReady(t, h)

	assert.Equal(t, StatusDown, resp.Status)
}

func TestCheck_NoCheckersIsUp(t *testing.T) {
	resp := NewHandler().Check(context.Background())
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}
