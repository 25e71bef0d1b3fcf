// Package stats computes the descriptive aggregates shown on the dashboard:
// value counts, group-bys and a handful of derived headline figures.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/ehr/healthdash/internal/sample"
)

// Count is a single labelled count.
type Count struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Total sums the values of counts.
func Total(counts []Count) int {
	n := 0
	for _, c := range counts {
		n += c.Value
	}
	return n
}

// valueCounts tallies labels and orders them by count descending. Labels
// with equal counts keep the order given in declared; unseen labels that are
// not declared follow in order of first appearance.
func valueCounts(labels []string, declared []string) []Count {
	tally := make(map[string]int, len(declared))
	order := make([]string, 0, len(declared))
	seen := make(map[string]bool, len(declared))
	for _, d := range declared {
		order = append(order, d)
		seen[d] = true
	}
	for _, l := range labels {
		tally[l]++
		if !seen[l] {
			seen[l] = true
			order = append(order, l)
		}
	}

	out := make([]Count, 0, len(order))
	for _, l := range order {
		if tally[l] > 0 {
			out = append(out, Count{Label: l, Value: tally[l]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// StatusCounts returns appointments per status, most frequent first.
func StatusCounts(t *sample.Tables) []Count {
	labels := make([]string, len(t.Appointments))
	for i, a := range t.Appointments {
		labels[i] = string(a.Status)
	}
	declared := make([]string, len(sample.Statuses))
	for i, s := range sample.Statuses {
		declared[i] = string(s)
	}
	return valueCounts(labels, declared)
}

// MonthlyDemand returns appointments per calendar month in month order.
// Months without appointments are omitted.
func MonthlyDemand(t *sample.Tables) []Count {
	var perMonth [13]int
	for _, a := range t.Appointments {
		perMonth[a.AppointmentDate.Month()]++
	}
	out := make([]Count, 0, 12)
	for m := 1; m <= 12; m++ {
		if perMonth[m] == 0 {
			continue
		}
		out = append(out, Count{Label: time.Month(m).String(), Value: perMonth[m]})
	}
	return out
}

// MonthNumber maps a label produced by MonthlyDemand back to 1..12.
func MonthNumber(label string) (int, error) {
	for m := time.January; m <= time.December; m++ {
		if m.String() == label {
			return int(m), nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", label)
}

// ReasonCounts returns appointments per reason for visit.
func ReasonCounts(t *sample.Tables) []Count {
	labels := make([]string, len(t.Appointments))
	for i, a := range t.Appointments {
		labels[i] = a.ReasonForVisit
	}
	return valueCounts(labels, sample.Reasons)
}

// TimeSlotCounts returns appointments per time slot in slot order.
func TimeSlotCounts(t *sample.Tables) []Count {
	tally := map[string]int{}
	for _, a := range t.Appointments {
		tally[a.AppointmentTime]++
	}
	out := make([]Count, 0, len(sample.TimeSlots))
	for _, slot := range sample.TimeSlots {
		out = append(out, Count{Label: slot, Value: tally[slot]})
	}
	return out
}

// DoctorWorkload returns appointments per doctor, labelled with the doctor's
// name, busiest first.
func DoctorWorkload(t *sample.Tables) []Count {
	names := make(map[string]string, len(t.Doctors))
	declared := make([]string, 0, len(t.Doctors))
	for _, d := range t.Doctors {
		label := fmt.Sprintf("%s (%s)", d.FullName(), d.DoctorID)
		names[d.DoctorID] = label
		declared = append(declared, label)
	}
	labels := make([]string, 0, len(t.Appointments))
	for _, a := range t.Appointments {
		if name, ok := names[a.DoctorID]; ok {
			labels = append(labels, name)
		}
	}
	return valueCounts(labels, declared)
}
