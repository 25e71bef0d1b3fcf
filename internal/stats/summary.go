package stats

import (
	"github.com/ehr/healthdash/internal/sample"
)

// Summary holds the headline figures derived from one dataset.
type Summary struct {
	TotalAppointments int     `json:"total_appointments"`
	TotalDoctors      int     `json:"total_doctors"`
	CompletionRate    float64 `json:"completion_rate"`
	NoShowRate        float64 `json:"no_show_rate"`
	CancellationRate  float64 `json:"cancellation_rate"`
	PeakMonth         string  `json:"peak_month"`
	PeakMonthCount    int     `json:"peak_month_count"`
	TopSpecialization string  `json:"top_specialization"`
	TopReason         string  `json:"top_reason"`
}

// Summarize computes the headline figures for t.
func Summarize(t *sample.Tables) (*Summary, error) {
	s := &Summary{
		TotalAppointments: len(t.Appointments),
		TotalDoctors:      len(t.Doctors),
	}

	if s.TotalAppointments > 0 {
		for _, c := range StatusCounts(t) {
			rate := float64(c.Value) / float64(s.TotalAppointments)
			switch sample.Status(c.Label) {
			case sample.StatusCompleted:
				s.CompletionRate = rate
			case sample.StatusNoShow:
				s.NoShowRate = rate
			case sample.StatusCancelled:
				s.CancellationRate = rate
			}
		}
	}

	for _, m := range MonthlyDemand(t) {
		if m.Value > s.PeakMonthCount {
			s.PeakMonth = m.Label
			s.PeakMonthCount = m.Value
		}
	}

	specs, err := SpecializationDemand(t)
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		s.TopSpecialization = specs[0].Label
	}
	if reasons := ReasonCounts(t); len(reasons) > 0 {
		s.TopReason = reasons[0].Label
	}
	return s, nil
}
