package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/healthdash/internal/sample"
	"github.com/ehr/healthdash/internal/stats"
	"github.com/ehr/healthdash/pkg/pagination"
)

// handleAppointments pages through the appointment table. status and
// doctor_id narrow the rows before paging.
func (h *Handler) handleAppointments(c echo.Context) error {
	d, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}

	status := c.QueryParam("status")
	doctorID := c.QueryParam("doctor_id")

	rows := t.Appointments
	if status != "" || doctorID != "" {
		rows = make([]sample.Appointment, 0, len(t.Appointments))
		for _, a := range t.Appointments {
			if status != "" && string(a.Status) != status {
				continue
			}
			if doctorID != "" && a.DoctorID != doctorID {
				continue
			}
			rows = append(rows, a)
		}
	}

	p := pagination.FromContext(c)
	start, end := p.Window(len(rows))

	q := d.query()
	if status != "" {
		q.Set("status", status)
	}
	if doctorID != "" {
		q.Set("doctor_id", doctorID)
	}
	links := p.Links(c.Path(), q, len(rows))

	resp := pagination.NewResponse(rows[start:end], len(rows), p.Limit, p.Offset)
	resp.Links = &links
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleDoctors(c echo.Context) error {
	_, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t.Doctors)
}

func (h *Handler) handleDoctor(c echo.Context) error {
	_, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}
	d, ok := t.DoctorByID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found: "+c.Param("id"))
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) handleSummary(c echo.Context) error {
	_, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}
	s, err := stats.Summarize(t)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) handleListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, stats.PredefinedMeasures)
}

func (h *Handler) handleEvaluateMeasure(c echo.Context) error {
	id := c.Param("id")
	if stats.FindMeasure(id) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found: "+id)
	}

	_, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}

	report, err := stats.Evaluate(id, t)
	if errors.Is(err, stats.ErrMeasureNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
