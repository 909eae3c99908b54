package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asdisarson/ss/pkg/httputil"
	"github.com/Asdisarson/ss/pkg/logger"
)

func TestIPAllowlist(t *testing.T) {
	cidrs := []string{"10.0.0.0/8", "192.168.1.7", "::1/128", "not-a-cidr"}

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:5555", http.StatusOK},
		{"192.168.1.7:5555", http.StatusOK},
		{"192.168.1.8:5555", http.StatusForbidden},
		{"[::1]:5555", http.StatusOK},
		{"10.9.9.9", http.StatusOK},
		{"garbage", http.StatusForbidden},
	}

	h := IPAllowlist(cidrs, logger.Discard())(okHandler)
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPAllowlist_EmptyDeniesAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()

	IPAllowlist(nil, logger.Discard())(okHandler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access restricted by IP allowlist", body.Error)
}

func TestParseCIDRs_SkipsInvalid(t *testing.T) {
	nets := ParseCIDRs([]string{"127.0.0.0/8", "bogus", "2001:db8::1"}, logger.Discard())
	require.Len(t, nets, 2)
	assert.Equal(t, "2001:db8::1/128", nets[1].String())
}

func TestRegisterPprof(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, logger.Discard())

	allowed := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	allowed.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, allowed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pprof")

	denied := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
	denied.RemoteAddr = "192.168.1.1:1234"
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, denied)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
