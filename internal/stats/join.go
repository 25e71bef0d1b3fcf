package stats

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"

	"github.com/ehr/healthdash/internal/sample"
)

// Joined returns appointments left-joined with doctors on doctor_id.
func Joined(t *sample.Tables) (dataframe.DataFrame, error) {
	joined := t.AppointmentsFrame().LeftJoin(t.DoctorsFrame(), "doctor_id")
	if joined.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("join appointments with doctors: %w", joined.Err)
	}
	return joined, nil
}

// SpecializationDemand returns appointments per doctor specialization, most
// frequent first. Appointments whose doctor is unknown are not counted.
func SpecializationDemand(t *sample.Tables) ([]Count, error) {
	return joinedValueCounts(t, "specialization")
}

// BranchDemand returns appointments per hospital branch, most frequent first.
func BranchDemand(t *sample.Tables) ([]Count, error) {
	return joinedValueCounts(t, "hospital_branch")
}

func joinedValueCounts(t *sample.Tables, column string) ([]Count, error) {
	joined, err := Joined(t)
	if err != nil {
		return nil, err
	}
	col := joined.Col(column)
	if col.Err != nil {
		return nil, fmt.Errorf("column %s: %w", column, col.Err)
	}

	labels := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		labels = append(labels, e.String())
	}

	// Ties follow the roster order of first appearance.
	var declared []string
	seen := map[string]bool{}
	for _, d := range t.Doctors {
		v := d.Specialization
		if column == "hospital_branch" {
			v = d.HospitalBranch
		}
		if !seen[v] {
			seen[v] = true
			declared = append(declared, v)
		}
	}
	return valueCounts(labels, declared), nil
}
