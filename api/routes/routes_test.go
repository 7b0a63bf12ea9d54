package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/document-ingest/api/handlers"
	"github.com/feichai0017/document-ingest/api/middleware"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, handlers.NewHandlers(nil, logger.NewNop()), logger.NewNop(), Options{InFlight: &middleware.InFlight{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	routes := map[string]bool{}
	for _, info := range r.Routes() {
		routes[info.Method+" "+info.Path] = true
	}
	assert.True(t, routes["POST /api/v1/documents/upload"])
	assert.True(t, routes["GET /api/v1/documents/:id"])
	assert.True(t, routes["GET /api/v1/documents/:id/job"])
}
