// Package sample generates the synthetic appointment and doctor tables that
// back the demand dashboard. Generation is reproducible: the caller owns the
// pseudo-random source, so the same seed and options always yield identical
// tables.
package sample

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrInvalidConfig is returned when generation options cannot be honoured.
var ErrInvalidConfig = errors.New("invalid sample configuration")

// DefaultSeed is the seed the dashboard uses unless configured otherwise.
const DefaultSeed int64 = 42

// ---------------------------------------------------------------------------
// Category pools
// ---------------------------------------------------------------------------

var (
	PatientIDs = []string{"P001", "P002", "P003", "P004", "P005"}
	DoctorIDs  = []string{"D001", "D002", "D003", "D004", "D005"}
	TimeSlots  = []string{"08:00:00", "09:00:00", "10:00:00", "11:00:00", "14:00:00"}
	Reasons    = []string{"Consultation", "Therapy", "Checkup", "Emergency", "Follow-up"}
	Statuses   = []Status{StatusCompleted, StatusCancelled, StatusNoShow, StatusScheduled}
)

// DefaultStatusWeights are the probabilities for Statuses, in order.
var DefaultStatusWeights = []float64{0.30, 0.25, 0.25, 0.20}

// doctorRows is the fixed doctor roster. D001..D005 match DoctorIDs.
var doctorRows = []Doctor{
	{DoctorID: "D001", FirstName: "David", LastName: "Taylor", Specialization: "Dermatology", YearsExperience: 17, HospitalBranch: "Westside Clinic"},
	{DoctorID: "D002", FirstName: "Jane", LastName: "Smith", Specialization: "Pediatrics", YearsExperience: 24, HospitalBranch: "Eastside Clinic"},
	{DoctorID: "D003", FirstName: "Sarah", LastName: "Jones", Specialization: "Pediatrics", YearsExperience: 26, HospitalBranch: "Central Hospital"},
	{DoctorID: "D004", FirstName: "Alex", LastName: "Davis", Specialization: "Pediatrics", YearsExperience: 23, HospitalBranch: "Central Hospital"},
	{DoctorID: "D005", FirstName: "Robert", LastName: "Brown", Specialization: "Oncology", YearsExperience: 26, HospitalBranch: "Westside Clinic"},
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls the shape of the generated appointment table.
type Options struct {
	Rows          int       `json:"rows"`
	Year          int       `json:"year"`
	StatusWeights []float64 `json:"status_weights,omitempty"`
}

// DefaultOptions returns the options used by the dashboard: 200 appointments
// spread over 2023 with the default status mix.
func DefaultOptions() Options {
	return Options{
		Rows:          200,
		Year:          2023,
		StatusWeights: DefaultStatusWeights,
	}
}

func (o Options) weights() []float64 {
	if len(o.StatusWeights) == 0 {
		return DefaultStatusWeights
	}
	return o.StatusWeights
}

// Validate reports whether the options can be used for generation.
func (o Options) Validate() error {
	if o.Rows <= 0 {
		return fmt.Errorf("%w: rows must be positive, got %d", ErrInvalidConfig, o.Rows)
	}
	if o.Year < 1900 || o.Year > 9999 {
		return fmt.Errorf("%w: year out of range: %d", ErrInvalidConfig, o.Year)
	}
	return ValidateWeights(o.weights(), len(Statuses))
}

// ValidateWeights checks a probability vector against the size of the
// category set it will be sampled over.
func ValidateWeights(weights []float64, categories int) error {
	if len(weights) != categories {
		return fmt.Errorf("%w: expected %d weights, got %d", ErrInvalidConfig, categories, len(weights))
	}
	sum := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %d is not a probability: %v", ErrInvalidConfig, i, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, sum)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// NewRand returns a pseudo-random source seeded for reproducible generation.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Generate builds the appointment and doctor tables using rng. Columns are
// drawn one at a time in schema order, so the output depends only on the
// state of rng and opts. The doctor table is fixed.
func Generate(rng *rand.Rand, opts Options) (*Tables, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := opts.Rows
	start := time.Date(opts.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := daysInYear(opts.Year)

	patients := drawStrings(rng, PatientIDs, n)
	doctors := drawStrings(rng, DoctorIDs, n)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, rng.Intn(days))
	}
	times := drawStrings(rng, TimeSlots, n)
	reasons := drawStrings(rng, Reasons, n)
	statuses := drawWeighted(rng, Statuses, opts.weights(), n)

	appointments := make([]Appointment, n)
	for i := 0; i < n; i++ {
		appointments[i] = Appointment{
			AppointmentID:   i + 1,
			PatientID:       patients[i],
			DoctorID:        doctors[i],
			AppointmentDate: dates[i],
			AppointmentTime: times[i],
			ReasonForVisit:  reasons[i],
			Status:          statuses[i],
		}
	}

	return &Tables{
		Appointments: appointments,
		Doctors:      Doctors(),
		Options:      opts,
	}, nil
}

// Doctors returns a copy of the fixed doctor roster.
func Doctors() []Doctor {
	out := make([]Doctor, len(doctorRows))
	copy(out, doctorRows)
	return out
}

func drawStrings(rng *rand.Rand, pool []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = pool[rng.Intn(len(pool))]
	}
	return out
}

// drawWeighted samples n values from pool by inverting the cumulative
// distribution of weights.
func drawWeighted(rng *rand.Rand, pool []Status, weights []float64, n int) []Status {
	cdf := make([]float64, len(weights))
	acc := 0.0
	for i, w := range weights {
		acc += w
		cdf[i] = acc
	}
	// Absorb rounding so a draw near 1.0 never falls off the end.
	cdf[len(cdf)-1] = 1

	out := make([]Status, n)
	for i := range out {
		u := rng.Float64()
		j := 0
		for j < len(cdf)-1 && u >= cdf[j] {
			j++
		}
		out[i] = pool[j]
	}
	return out
}

func daysInYear(year int) int {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return int(end.Sub(start).Hours() / 24)
}
