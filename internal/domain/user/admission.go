package user

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ehr/wardbook/internal/platform/ident"
)

// Admissions maps a department to the timestamps of every admission to it,
// in append (chronological) order. A department with no admissions has no key.
type Admissions map[Department][]string

// AdmissionRow is one flattened (department, date) entry for display.
type AdmissionRow struct {
	Department Department `json:"department"`
	Date       string     `json:"date"`
}

// Add appends ts to the department's list.
func (a Admissions) Add(dept Department, ts string) {
	a[dept] = append(a[dept], ts)
}

// Remove deletes the first occurrence of ts from the department's list and
// drops the key when the list becomes empty. It reports whether an entry was
// removed.
func (a Admissions) Remove(dept Department, ts string) bool {
	dates, ok := a[dept]
	if !ok {
		return false
	}
	for i, d := range dates {
		if d != ts {
			continue
		}
		dates = append(dates[:i:i], dates[i+1:]...)
		if len(dates) == 0 {
			delete(a, dept)
		} else {
			a[dept] = dates
		}
		return true
	}
	return false
}

// Rows flattens the log into one row per admission, most recent first.
func (a Admissions) Rows() []AdmissionRow {
	rows := make([]AdmissionRow, 0, a.Len())
	for dept, dates := range a {
		for _, d := range dates {
			rows = append(rows, AdmissionRow{Department: dept, Date: d})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date > rows[j].Date
		}
		return rows[i].Department < rows[j].Department
	})
	return rows
}

// Len returns the total number of admissions across departments.
func (a Admissions) Len() int {
	n := 0
	for _, dates := range a {
		n += len(dates)
	}
	return n
}

// MarshalJSON keys the document by department display name.
func (a Admissions) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(a))
	for dept, dates := range a {
		if !dept.valid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidDepartment, int(dept))
		}
		out[dept.String()] = dates
	}
	return json.Marshal(out)
}

func (a *Admissions) UnmarshalJSON(b []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Admissions, len(raw))
	for name, dates := range raw {
		dept, err := StringToDepartment(name)
		if err != nil {
			return err
		}
		for _, d := range dates {
			if _, err := ident.ParseTimestamp(d); err != nil {
				return fmt.Errorf("%w: admission %q: %v", ErrInvalidTimestampFormat, d, err)
			}
		}
		if len(dates) > 0 {
			out[dept] = dates
		}
	}
	*a = out
	return nil
}

func (r AdmissionRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Department string `json:"department"`
		Date       string `json:"date"`
	}{r.Department.String(), r.Date})
}
