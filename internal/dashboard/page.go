package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/healthdash/internal/charts"
	"github.com/ehr/healthdash/internal/findings"
	"github.com/ehr/healthdash/internal/stats"
)

const (
	TabFindings = "findings"
	TabModel    = "model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/index.html"))

type tabLink struct {
	ID     string
	Label  string
	URL    string
	Active bool
}

type pageData struct {
	Tab      string
	Tabs     []tabLink
	Seed     int64
	Rows     int
	Summary  *stats.Summary
	Findings findings.KeyFindingsContent
	Model    findings.ModelContent
	Charts   map[string]string
	Exports  map[string]string
}

func (h *Handler) handlePage(c echo.Context) error {
	tab := c.QueryParam("tab")
	switch tab {
	case "":
		tab = TabFindings
	case TabFindings, TabModel:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown tab: "+tab)
	}

	d, t, err := h.tablesFor(c)
	if err != nil {
		return err
	}
	summary, err := stats.Summarize(t)
	if err != nil {
		return err
	}

	q := d.query().Encode()
	data := pageData{
		Tab:      tab,
		Seed:     d.Seed,
		Rows:     d.Opts.Rows,
		Summary:  summary,
		Findings: findings.KeyFindings(),
		Model:    findings.ModelReport(),
		Charts:   make(map[string]string, len(charts.Names)),
		Exports: map[string]string{
			"workbook":         "/export/workbook?" + q,
			"appointments.csv": "/export/appointments.csv?" + q,
			"doctors.csv":      "/export/doctors.csv?" + q,
		},
	}
	for _, name := range charts.Names {
		data.Charts[name] = "/charts/" + name + "?" + q
	}
	for _, tl := range []tabLink{
		{ID: TabFindings, Label: "📊 Key Findings"},
		{ID: TabModel, Label: "🔮 Model Predictions"},
	} {
		tl.URL = "/?tab=" + tl.ID + "&" + q
		tl.Active = tl.ID == tab
		data.Tabs = append(data.Tabs, tl)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
