package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/healthdash/internal/sample"
)

// MaxRows caps the rows query parameter.
const MaxRows = 100000

// dataset identifies the tables a request asked for.
type dataset struct {
	Seed int64
	Opts sample.Options
}

// query returns the parameters that reproduce d, for building links.
func (d dataset) query() url.Values {
	return url.Values{
		"seed": {strconv.FormatInt(d.Seed, 10)},
		"rows": {strconv.Itoa(d.Opts.Rows)},
	}
}

func (h *Handler) parseDataset(c echo.Context) (dataset, error) {
	d := dataset{Seed: h.cfg.Seed, Opts: h.cfg.Options}

	if raw := c.QueryParam("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return d, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid seed %q", raw))
		}
		d.Seed = seed
	}
	if raw := c.QueryParam("rows"); raw != "" {
		rows, err := strconv.Atoi(raw)
		if err != nil || rows <= 0 || rows > MaxRows {
			return d, echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("rows must be an integer between 1 and %d", MaxRows))
		}
		d.Opts.Rows = rows
	}
	return d, nil
}

// tablesFor resolves the request's dataset through the table cache.
func (h *Handler) tablesFor(c echo.Context) (dataset, *sample.Tables, error) {
	d, err := h.parseDataset(c)
	if err != nil {
		return d, nil, err
	}

	start := time.Now()
	t, err := h.tables.Get(d.Seed, d.Opts)
	if err != nil {
		if errors.Is(err, sample.ErrInvalidConfig) {
			return d, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return d, nil, fmt.Errorf("generate tables: %w", err)
	}
	// Generation ignores the deadline; stop here if it has already passed.
	if err := c.Request().Context().Err(); err != nil {
		return d, nil, err
	}
	h.logger.Debug().
		Int64("seed", d.Seed).
		Int("rows", d.Opts.Rows).
		Dur("duration", time.Since(start)).
		Msg("dataset ready")
	return d, t, nil
}
