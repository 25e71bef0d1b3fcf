package stats

import (
	"errors"
	"time"

	"github.com/ehr/healthdash/internal/sample"
)

// ErrMeasureNotFound is returned by Evaluate for an unknown measure id.
var ErrMeasureNotFound = errors.New("measure not found")

// MeasureDefinition describes one aggregate the dashboard can compute.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	GroupBy     string `json:"group_by"`

	compute func(*sample.Tables) ([]Count, error)
}

// MeasureReport holds the result of evaluating a measure over one dataset.
type MeasureReport struct {
	MeasureID   string    `json:"measure_id"`
	MeasureName string    `json:"measure_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Results     []Count   `json:"results"`
}

func infallible(f func(*sample.Tables) []Count) func(*sample.Tables) ([]Count, error) {
	return func(t *sample.Tables) ([]Count, error) { return f(t), nil }
}

// PredefinedMeasures is the list of available measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "status-distribution",
		Name:        "Appointment Status Distribution",
		Description: "Number of appointments per status, most frequent first",
		GroupBy:     "status",
		compute:     infallible(StatusCounts),
	},
	{
		ID:          "monthly-demand",
		Name:        "Monthly Demand Trends",
		Description: "Number of appointments per calendar month",
		GroupBy:     "appointment_date",
		compute:     infallible(MonthlyDemand),
	},
	{
		ID:          "specialization-demand",
		Name:        "Top Specializations by Demand",
		Description: "Appointments joined with doctors and counted per specialization",
		GroupBy:     "specialization",
		compute:     SpecializationDemand,
	},
	{
		ID:          "reason-for-visit",
		Name:        "Reason for Visit",
		Description: "Number of appointments per reason for visit",
		GroupBy:     "reason_for_visit",
		compute:     infallible(ReasonCounts),
	},
	{
		ID:          "branch-demand",
		Name:        "Hospital Branch Demand",
		Description: "Appointments joined with doctors and counted per hospital branch",
		GroupBy:     "hospital_branch",
		compute:     BranchDemand,
	},
	{
		ID:          "doctor-workload",
		Name:        "Doctor Workload",
		Description: "Number of appointments per doctor",
		GroupBy:     "doctor_id",
		compute:     infallible(DoctorWorkload),
	},
	{
		ID:          "time-slot-demand",
		Name:        "Time Slot Demand",
		Description: "Number of appointments per time slot",
		GroupBy:     "appointment_time",
		compute:     infallible(TimeSlotCounts),
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Evaluate computes the measure with the given id over t.
func Evaluate(id string, t *sample.Tables) (*MeasureReport, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, ErrMeasureNotFound
	}
	results, err := m.compute(t)
	if err != nil {
		return nil, err
	}
	return &MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: time.Now(),
		Total:       Total(results),
		Results:     results,
	}, nil
}
