package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/healthdash/internal/charts"
	"github.com/ehr/healthdash/internal/export"
	"github.com/ehr/healthdash/internal/sample"
)

const (
	mimePNG    = "image/png"
	mimeCSV    = "text/csv; charset=utf-8"
	mimeNDJSON = "application/x-ndjson"
	mimeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// HeaderCache reports whether a chart came from the chart cache.
	HeaderCache = "X-Cache"
)

func chartKey(name string, d dataset) string {
	return fmt.Sprintf("chart:%s:%d:%d:%d", name, d.Seed, d.Opts.Rows, d.Opts.Year)
}

func knownChart(name string) bool {
	for _, n := range charts.Names {
		if n == name {
			return true
		}
	}
	return false
}

func (h *Handler) handleChart(c echo.Context) error {
	name := strings.TrimSuffix(c.Param("name"), ".png")
	if !knownChart(name) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown chart: "+name)
	}

	d, err := h.parseDataset(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	key := chartKey(name, d)

	if img, ok := h.charts.Get(ctx, key); ok {
		h.rec.ChartCache(name, true)
		c.Response().Header().Set(HeaderCache, "HIT")
		return c.Blob(http.StatusOK, mimePNG, img)
	}

	h.rec.ChartCache(name, false)

	_, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}
	start := time.Now()
	img, err := charts.Render(name, t)
	if errors.Is(err, charts.ErrUnknownChart) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return fmt.Errorf("render chart %s: %w", name, err)
	}
	h.rec.ChartRender(name, time.Since(start))

	if err := h.charts.Set(ctx, key, img, h.cfg.CacheTTL); err != nil {
		// Serve the image anyway; the next request re-renders.
		h.logger.Warn().Err(err).Str("key", key).Msg("store chart")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	c.Response().Header().Set(HeaderCache, "MISS")
	return c.Blob(http.StatusOK, mimePNG, img)
}

func attachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filename))
}

func (h *Handler) handleWorkbook(c echo.Context) error {
	d, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, t); err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	if err := c.Request().Context().Err(); err != nil {
		return err
	}

	attachment(c, fmt.Sprintf("healthcare-demand-%d-%d.xlsx", d.Seed, d.Opts.Rows))
	return c.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}

type tableWriter func(io.Writer, string, *sample.Tables) error

var tableFormats = map[string]struct {
	write tableWriter
	mime  string
}{
	".csv":    {export.WriteCSV, mimeCSV},
	".ndjson": {export.WriteNDJSON, mimeNDJSON},
}

// handleTableExport serves /export/<table>.csv and /export/<table>.ndjson.
func (h *Handler) handleTableExport(c echo.Context) error {
	file := c.Param("file")
	ext := path.Ext(file)
	table := strings.TrimSuffix(file, ext)

	format, ok := tableFormats[ext]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unsupported export format: "+file)
	}
	if table != export.TableAppointments && table != export.TableDoctors {
		return echo.NewHTTPError(http.StatusNotFound, "unknown table: "+table)
	}

	d, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := format.write(&buf, table, t); err != nil {
		if errors.Is(err, export.ErrUnknownTable) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return fmt.Errorf("export %s: %w", file, err)
	}
	if err := c.Request().Context().Err(); err != nil {
		return err
	}

	attachment(c, fmt.Sprintf("%s-%d-%d%s", table, d.Seed, d.Opts.Rows, ext))
	return c.Blob(http.StatusOK, format.mime, buf.Bytes())
}
