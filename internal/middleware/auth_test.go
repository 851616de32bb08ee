package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRouter mounts mw in front of a handler that echoes the stored key.
func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyAPIKey))
	})
	return router
}

func serve(router http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	router := newRouter(APIKeyAuth([]string{"studio-key-1", "studio-key-2"}))

	tests := []struct {
		name     string
		target   string
		header   map[string]string
		wantCode int
		wantBody string
	}{
		{"valid header", "/test", map[string]string{"X-API-Key": "studio-key-2"}, http.StatusOK, "studio-key-2"},
		{"valid query param", "/test?api_key=studio-key-1", nil, http.StatusOK, "studio-key-1"},
		{"missing", "/test", nil, http.StatusUnauthorized, ""},
		{"invalid", "/test", map[string]string{"X-API-Key": "wrong"}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.target, tt.header)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("expected key %q in context, got %q", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestAPIKeyAuth_OpenWithoutKeys(t *testing.T) {
	w := serve(newRouter(APIKeyAuth(nil)), "/test", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 when no keys are configured, got %d", w.Code)
	}
}

func TestAdminKeyAuth(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		header   map[string]string
		wantCode int
	}{
		{"valid", []string{"admin-key"}, map[string]string{"X-API-Key": "admin-key"}, http.StatusOK},
		{"invalid", []string{"admin-key"}, map[string]string{"X-API-Key": "studio-key"}, http.StatusForbidden},
		{"missing", []string{"admin-key"}, nil, http.StatusUnauthorized},
		{"no admin keys configured", nil, map[string]string{"X-API-Key": "anything"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newRouter(AdminKeyAuth(tt.keys)), "/test", tt.header)
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}
