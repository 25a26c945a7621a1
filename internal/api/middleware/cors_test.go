package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
)

func TestCORS_Preflight(t *testing.T) {
	handler := middleware.CORS([]string{"https://explorer.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/screens", http.NoBody)
	req.Header.Set("Origin", "https://explorer.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://explorer.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORS_UnknownOrigin(t *testing.T) {
	handler := middleware.CORS([]string{"https://explorer.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
