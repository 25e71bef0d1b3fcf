package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/healthdash/internal/sample"
)

var (
	doctorColumns = []string{
		"batch_id", "doctor_id", "first_name", "last_name",
		"specialization", "years_experience", "hospital_branch",
	}
	appointmentColumns = []string{
		"batch_id", "appointment_id", "patient_id", "doctor_id",
		"appointment_date", "appointment_time", "reason_for_visit", "status",
	}
)

// LoadResult describes one batch written by LoadTables.
type LoadResult struct {
	BatchID      uuid.UUID `json:"batch_id"`
	Seed         int64     `json:"seed"`
	Doctors      int64     `json:"doctors"`
	Appointments int64     `json:"appointments"`
}

// LoadTables copies a generated dataset into PostgreSQL under a new batch id.
// The batch row and both tables are written in one transaction. The schema
// must already exist (see Migrator.Up).
func LoadTables(ctx context.Context, pool *pgxpool.Pool, seed int64, t *sample.Tables) (*LoadResult, error) {
	res := &LoadResult{BatchID: uuid.New(), Seed: seed}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO load_batches (id, seed, rows, year) VALUES ($1, $2, $3, $4)",
		res.BatchID, seed, len(t.Appointments), t.Options.Year,
	); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	res.Doctors, err = tx.CopyFrom(ctx, pgx.Identifier{"doctors"}, doctorColumns,
		pgx.CopyFromRows(doctorRows(res.BatchID, t.Doctors)))
	if err != nil {
		return nil, fmt.Errorf("copy doctors: %w", err)
	}

	res.Appointments, err = tx.CopyFrom(ctx, pgx.Identifier{"appointments"}, appointmentColumns,
		pgx.CopyFromRows(appointmentRows(res.BatchID, t.Appointments)))
	if err != nil {
		return nil, fmt.Errorf("copy appointments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit load: %w", err)
	}
	return res, nil
}

func doctorRows(batch uuid.UUID, doctors []sample.Doctor) [][]any {
	rows := make([][]any, len(doctors))
	for i, d := range doctors {
		rows[i] = []any{
			batch, d.DoctorID, d.FirstName, d.LastName,
			d.Specialization, int32(d.YearsExperience), d.HospitalBranch,
		}
	}
	return rows
}

func appointmentRows(batch uuid.UUID, appts []sample.Appointment) [][]any {
	rows := make([][]any, len(appts))
	for i, a := range appts {
		rows[i] = []any{
			batch, int32(a.AppointmentID), a.PatientID, a.DoctorID,
			a.AppointmentDate, a.AppointmentTime, a.ReasonForVisit, string(a.Status),
		}
	}
	return rows
}
