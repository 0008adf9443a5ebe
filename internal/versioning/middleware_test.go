package versioning

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "commrouter/internal/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietMiddleware() *VersionMiddleware {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewVersionMiddleware(logger)
}

func TestVersionMiddleware_ExtractVersionFromRequest(t *testing.T) {
	vm := quietMiddleware()

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		expected APIVersion
	}{
		{"Accept-Version header", "/v1/inbound", map[string]string{AcceptVersionHeader: "1.0.0"}, V1_0_0},
		{"X-API-Version header", "/v1/inbound", map[string]string{APIVersionHeader: "1.0.0"}, V1_0_0},
		{
			"Accept-Version takes precedence", "/v1/inbound",
			map[string]string{AcceptVersionHeader: "1.1.0", APIVersionHeader: "1.0.0"}, V1_1_0,
		},
		{"invalid header falls back to path", "/v1/inbound", map[string]string{AcceptVersionHeader: "latest"}, CurrentVersion},
		{"major-only path is newest minor", "/v1/teams/t/receivers", nil, CurrentVersion},
		{"minor path", "/v1.0/inbound", nil, V1_0_0},
		{"no version anywhere", "/health", nil, CurrentVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, vm.extractVersionFromRequest(req))
		})
	}
}

func TestVersionMiddleware_VersionHandler(t *testing.T) {
	var seen APIVersion
	handler := quietMiddleware().VersionHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetVersionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/teams/t/receivers", nil)
	req.Header.Set(AcceptVersionHeader, "1.0.0")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, V1_0_0, seen)
	assert.Equal(t, CurrentVersion.String(), w.Header().Get(CurrentVersionHeader))
	assert.Equal(t, GetVersionRange(), w.Header().Get(SupportedVersionsHeader))
}

func TestVersionMiddleware_Incompatible(t *testing.T) {
	tests := []struct {
		name    string
		version string
		status  int
	}{
		{"too old", "0.9.0", http.StatusUpgradeRequired},
		{"too new", "2.0.0", http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := quietMiddleware().VersionHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/inbound", nil)
			req.Header.Set(AcceptVersionHeader, tt.version)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.False(t, called)
			assert.Equal(t, tt.status, w.Code)
			var resp apperrors.HTTPErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, apperrors.ErrCodeVersionIncompatible, resp.Error.Code)
		})
	}
}

func TestRequireVersion(t *testing.T) {
	vm := quietMiddleware()
	handler := vm.VersionHandler(RequireVersion(V1_1_0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/calls/c/outcome", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/calls/c/outcome", nil)
	req.Header.Set(AcceptVersionHeader, "1.0.0")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Contains(t, w.Body.String(), "requires API version 1.1.0")
}
