package sample

import (
	"encoding/json"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DateLayout is the format used for appointment dates in every output.
const DateLayout = "2006-01-02"

// Status is the outcome of an appointment.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusNoShow    Status = "No-show"
	StatusScheduled Status = "Scheduled"
)

// Appointment is one row of the appointment table.
type Appointment struct {
	AppointmentID   int       `json:"appointment_id"`
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	ReasonForVisit  string    `json:"reason_for_visit"`
	Status          Status    `json:"status"`
}

// MarshalJSON renders the appointment date as a calendar date.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type alias Appointment
	return json.Marshal(struct {
		alias
		AppointmentDate string `json:"appointment_date"`
	}{
		alias:           alias(a),
		AppointmentDate: a.AppointmentDate.Format(DateLayout),
	})
}

// Doctor is one row of the doctor table.
type Doctor struct {
	DoctorID        string `json:"doctor_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Specialization  string `json:"specialization"`
	YearsExperience int    `json:"years_experience"`
	HospitalBranch  string `json:"hospital_branch"`
}

// FullName returns "First Last".
func (d Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

// Tables holds one generated dataset. It is never modified after Generate
// returns it.
type Tables struct {
	Appointments []Appointment `json:"appointments"`
	Doctors      []Doctor      `json:"doctors"`
	Options      Options       `json:"options"`
}

// DoctorByID returns the doctor with the given id.
func (t *Tables) DoctorByID(id string) (Doctor, bool) {
	for _, d := range t.Doctors {
		if d.DoctorID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

// AppointmentsFrame returns the appointment table as a dataframe with the
// schema's column names.
func (t *Tables) AppointmentsFrame() dataframe.DataFrame {
	n := len(t.Appointments)
	ids := make([]int, n)
	patients := make([]string, n)
	doctors := make([]string, n)
	dates := make([]string, n)
	times := make([]string, n)
	reasons := make([]string, n)
	statuses := make([]string, n)
	for i, a := range t.Appointments {
		ids[i] = a.AppointmentID
		patients[i] = a.PatientID
		doctors[i] = a.DoctorID
		dates[i] = a.AppointmentDate.Format(DateLayout)
		times[i] = a.AppointmentTime
		reasons[i] = a.ReasonForVisit
		statuses[i] = string(a.Status)
	}
	return dataframe.New(
		series.New(ids, series.Int, "appointment_id"),
		series.New(patients, series.String, "patient_id"),
		series.New(doctors, series.String, "doctor_id"),
		series.New(dates, series.String, "appointment_date"),
		series.New(times, series.String, "appointment_time"),
		series.New(reasons, series.String, "reason_for_visit"),
		series.New(statuses, series.String, "status"),
	)
}

// DoctorsFrame returns the doctor table as a dataframe.
func (t *Tables) DoctorsFrame() dataframe.DataFrame {
	n := len(t.Doctors)
	ids := make([]string, n)
	first := make([]string, n)
	last := make([]string, n)
	specs := make([]string, n)
	years := make([]int, n)
	branches := make([]string, n)
	for i, d := range t.Doctors {
		ids[i] = d.DoctorID
		first[i] = d.FirstName
		last[i] = d.LastName
		specs[i] = d.Specialization
		years[i] = d.YearsExperience
		branches[i] = d.HospitalBranch
	}
	return dataframe.New(
		series.New(ids, series.String, "doctor_id"),
		series.New(first, series.String, "first_name"),
		series.New(last, series.String, "last_name"),
		series.New(specs, series.String, "specialization"),
		series.New(years, series.Int, "years_experience"),
		series.New(branches, series.String, "hospital_branch"),
	)
}
