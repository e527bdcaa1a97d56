package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/probe", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/probe-failure", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	})

	okBefore := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/probe", "200"))
	conflictBefore := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/probe-failure", "409"))

	for _, target := range []string{"/probe", "/probe-failure"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}

	require.Equal(t, okBefore+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/probe", "200")))
	require.Equal(t, conflictBefore+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/probe-failure", "409")),
		"status of handled error must be recorded")
	require.Zero(t, testutil.ToFloat64(httpInFlight), "no requests must be in flight")
}

func TestMigrationMetrics(t *testing.T) {
	before := testutil.ToFloat64(migrationsApplied)

	ObserveMigration(25 * time.Millisecond)
	SetSchemaVersion(3)

	require.Equal(t, before+1, testutil.ToFloat64(migrationsApplied), "applied scripts must be counted")
	require.Equal(t, float64(3), testutil.ToFloat64(schemaVersion), "schema version must be exposed")
}
