package domain

import "time"

// Row holds the per-stage counts for a single day.
type Row struct {
	Date   time.Time // Midnight UTC of the calendar day
	Counts map[Stage]int
}

// Count returns the count for a stage, zero when absent.
func (r Row) Count(s Stage) int {
	return r.Counts[s]
}

// Total sums the counts across all stages in the row.
func (r Row) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Table is an ordered, gap-free sequence of rows with one column per stage in scope.
type Table struct {
	Stages []Stage
	Rows   []Row
}

// Last returns the final row, or an empty row if the table has none.
func (t Table) Last() Row {
	if len(t.Rows) == 0 {
		return Row{Counts: map[Stage]int{}}
	}
	return t.Rows[len(t.Rows)-1]
}

// Max returns the largest single count in the table.
func (t Table) Max() int {
	maxVal := 0
	for _, r := range t.Rows {
		for _, s := range t.Stages {
			if r.Counts[s] > maxVal {
				maxVal = r.Counts[s]
			}
		}
	}
	return maxVal
}

// Day truncates a timestamp to its calendar day, keeping the wall clock of its own zone.
// The result is midnight UTC so days from different offsets compare equal.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
