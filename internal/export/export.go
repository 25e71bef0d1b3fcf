// Package export writes generated tables and their aggregates to files:
// an Excel workbook, CSV and newline-delimited JSON.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ehr/healthdash/internal/findings"
	"github.com/ehr/healthdash/internal/sample"
	"github.com/ehr/healthdash/internal/stats"
)

// ErrUnknownTable is returned for a table name other than TableAppointments
// or TableDoctors.
var ErrUnknownTable = errors.New("unknown table")

const (
	TableAppointments = "appointments"
	TableDoctors      = "doctors"
)

// Sheet names in the order they appear in the workbook.
const (
	SheetAppointments    = "Appointments"
	SheetDoctors         = "Doctors"
	SheetStatus          = "Status"
	SheetMonthly         = "Monthly"
	SheetSpecializations = "Specializations"
	SheetModel           = "Model"
)

// WriteCSV writes the named table as CSV with a header row.
func WriteCSV(w io.Writer, table string, t *sample.Tables) error {
	switch table {
	case TableAppointments:
		return t.AppointmentsFrame().WriteCSV(w)
	case TableDoctors:
		return t.DoctorsFrame().WriteCSV(w)
	}
	return fmt.Errorf("%w: %s", ErrUnknownTable, table)
}

// WriteNDJSON writes the named table as one JSON object per line.
func WriteNDJSON(w io.Writer, table string, t *sample.Tables) error {
	enc := json.NewEncoder(w)
	switch table {
	case TableAppointments:
		for _, a := range t.Appointments {
			if err := enc.Encode(a); err != nil {
				return fmt.Errorf("encoding appointment %d: %w", a.AppointmentID, err)
			}
		}
		return nil
	case TableDoctors:
		for _, d := range t.Doctors {
			if err := enc.Encode(d); err != nil {
				return fmt.Errorf("encoding doctor %s: %w", d.DoctorID, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownTable, table)
}

// WriteWorkbook writes both tables, the dashboard aggregates and the model
// figures as an .xlsx workbook.
func WriteWorkbook(w io.Writer, t *sample.Tables) error {
	f, err := newWorkbook(SheetAppointments, SheetDoctors, SheetStatus, SheetMonthly, SheetSpecializations, SheetModel)
	if err != nil {
		return err
	}
	defer f.Close()

	rows := [][]interface{}{{"appointment_id", "patient_id", "doctor_id", "appointment_date", "appointment_time", "reason_for_visit", "status"}}
	for _, a := range t.Appointments {
		rows = append(rows, []interface{}{
			a.AppointmentID, a.PatientID, a.DoctorID,
			a.AppointmentDate.Format(sample.DateLayout),
			a.AppointmentTime, a.ReasonForVisit, string(a.Status),
		})
	}
	if err := writeRows(f, SheetAppointments, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"doctor_id", "first_name", "last_name", "specialization", "years_experience", "hospital_branch"}}
	for _, d := range t.Doctors {
		rows = append(rows, []interface{}{d.DoctorID, d.FirstName, d.LastName, d.Specialization, d.YearsExperience, d.HospitalBranch})
	}
	if err := writeRows(f, SheetDoctors, rows); err != nil {
		return err
	}

	if err := writeCounts(f, SheetStatus, "status", stats.StatusCounts(t)); err != nil {
		return err
	}
	if err := writeCounts(f, SheetMonthly, "month", stats.MonthlyDemand(t)); err != nil {
		return err
	}
	specs, err := stats.SpecializationDemand(t)
	if err != nil {
		return err
	}
	if err := writeCounts(f, SheetSpecializations, "specialization", specs); err != nil {
		return err
	}

	model := findings.ModelReport()
	rows = [][]interface{}{{"metric", "value", "caption"}}
	for _, m := range model.Metrics {
		rows = append(rows, []interface{}{m.Name, m.Value, m.Caption})
	}
	rows = append(rows, []interface{}{}, []interface{}{"feature", "importance"})
	for _, feat := range model.Features {
		rows = append(rows, []interface{}{feat.Name, feat.Importance})
	}
	if err := writeRows(f, SheetModel, rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeCounts(f *excelize.File, sheet, label string, counts []stats.Count) error {
	rows := [][]interface{}{{label, "count"}}
	for _, c := range counts {
		rows = append(rows, []interface{}{c.Label, c.Value})
	}
	return writeRows(f, sheet, rows)
}

// newWorkbook returns a file whose sheets are named, in order, by sheets.
func newWorkbook(sheets ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheets[0]); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet %s: %w", sheets[0], err)
	}
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "G", 18); err != nil {
		return fmt.Errorf("sheet %s width: %w", sheet, err)
	}
	return nil
}
