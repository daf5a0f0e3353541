package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewAllowsConfiguredOrigin(t *testing.T) {
	w := serve([]string{"https://portal.campus.edu/"}, "https://portal.campus.edu")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://portal.campus.edu", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRejectsUnknownOrigin(t *testing.T) {
	w := serve([]string{"https://portal.campus.edu"}, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNewAllowsAnyOriginWhenUnset(t *testing.T) {
	w := serve(nil, "https://anywhere.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
