// Package dashboard serves the healthcare demand dashboard: the two-tab HTML
// page, its chart images, JSON views of the generated tables and aggregates,
// and file exports.
package dashboard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/healthdash/internal/findings"
	"github.com/ehr/healthdash/internal/platform/cache"
	"github.com/ehr/healthdash/internal/sample"
)

// Config holds the dataset served when a request does not override it.
type Config struct {
	Seed     int64
	Options  sample.Options
	CacheTTL time.Duration
}

// Recorder receives chart cache and render measurements.
type Recorder interface {
	ChartCache(chart string, hit bool)
	ChartRender(chart string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ChartCache(string, bool)           {}
func (nopRecorder) ChartRender(string, time.Duration) {}

// Handler serves every dashboard route. Generated tables are memoized in a
// sample.Cache, rendered charts in a cache.Store.
type Handler struct {
	cfg    Config
	tables *sample.Cache
	charts cache.Store
	rec    Recorder
	logger zerolog.Logger
}

func NewHandler(cfg Config, tables *sample.Cache, charts cache.Store, logger zerolog.Logger) *Handler {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Handler{cfg: cfg, tables: tables, charts: charts, rec: nopRecorder{}, logger: logger}
}

// WithRecorder reports chart metrics to r.
func (h *Handler) WithRecorder(r Recorder) *Handler {
	if r != nil {
		h.rec = r
	}
	return h
}

// RegisterRoutes mounts the dashboard on e. heavy wraps the chart and export
// groups, which render images and workbooks on a cache miss.
func (h *Handler) RegisterRoutes(e *echo.Echo, heavy ...echo.MiddlewareFunc) {
	e.GET("/", h.handlePage)
	e.GET("/health", h.handleHealth)

	charts := e.Group("/charts", heavy...)
	charts.GET("/:name", h.handleChart)

	exp := e.Group("/export", heavy...)
	exp.GET("/workbook", h.handleWorkbook)
	exp.GET("/:file", h.handleTableExport)

	api := e.Group("/api/v1")
	api.GET("/appointments", h.handleAppointments)
	api.GET("/doctors", h.handleDoctors)
	api.GET("/doctors/:id", h.handleDoctor)
	api.GET("/stats/summary", h.handleSummary)
	api.GET("/measures", h.handleListMeasures)
	api.GET("/measures/:id/evaluate", h.handleEvaluateMeasure)
	api.GET("/findings", h.handleFindings)
	api.GET("/model", h.handleModel)
	api.GET("/cache/stats", h.handleCacheStats)
	api.POST("/cache/invalidate", h.handleInvalidate)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleFindings(c echo.Context) error {
	return c.JSON(http.StatusOK, findings.KeyFindings())
}

func (h *Handler) handleModel(c echo.Context) error {
	return c.JSON(http.StatusOK, findings.ModelReport())
}

func (h *Handler) handleCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tables.Stats())
}

func (h *Handler) handleInvalidate(c echo.Context) error {
	h.tables.Invalidate()
	if err := h.charts.Clear(c.Request().Context()); err != nil {
		h.logger.Error().Err(err).Msg("clear chart cache")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear chart cache")
	}
	h.logger.Info().Msg("caches invalidated")
	return c.JSON(http.StatusOK, map[string]string{"status": "invalidated"})
}
