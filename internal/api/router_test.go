package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/multi-builder/internal/api/middleware"
	"github.com/stitts-dev/multi-builder/internal/catalog"
	"github.com/stitts-dev/multi-builder/internal/services"
	"github.com/stitts-dev/multi-builder/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter serves the bundled round from the data directory.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		SearchToleranceMode:   "relative",
		SearchTolerance:       0.10,
		SearchMaxNodes:        250000,
		SearchMaxResults:      3,
		SearchMaxAlternatives: 3,
		SearchDefaultMinLegs:  2,
		SearchDefaultMaxLegs:  8,
		SearchCombinedMaxLegs: 17,
		SearchMaxTargetOdds:   1000,
	}

	cache := services.NewCacheService(nil)
	provider := catalog.NewProvider(catalog.NewFileSource("../../data", "mock_nrl_data.json"), cache, catalog.ProviderConfig{})

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(provider, cache, cfg, log)
}

func TestRoutesRegistered(t *testing.T) {
	router := newTestRouter(t)

	routes := map[string]bool{}
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"POST /api/generate-multi",
		"POST /api/v1/multi",
		"GET /api/v1/catalog",
		"POST /api/v1/catalog/refresh",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestGenerateMultiAgainstBundledData(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/api/generate-multi", "/api/v1/multi"} {
		t.Run(strings.TrimPrefix(path, "/"), func(t *testing.T) {
			body := bytes.NewBufferString(`{"stake": 10, "winAmount": 200, "minLegs": 2, "maxLegs": 4}`)
			req := httptest.NewRequest(http.MethodPost, path, body)
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Contains(t, w.Body.String(), `"found":true`)
			assert.Contains(t, w.Body.String(), `"playerAlternatives"`)
		})
	}
}
