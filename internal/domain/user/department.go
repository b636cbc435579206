package user

import "fmt"

// Department is one of the fixed hospital departments a patient can be
// admitted to.
type Department int

const (
	DeptEmergency Department = iota
	DeptInternalMedicine
	DeptSurgery
	DeptPediatrics
	DeptOBGYN
	DeptCardiology
	DeptNeurology
	DeptOncology
	DeptOrthopedics
	DeptRadiology
	DeptPsychiatry
	DeptDermatology
	DeptOphthalmology
	DeptENT
	DeptUrology
	DeptNephrology
	DeptGastroenterology
	DeptPulmonology
	DeptEndocrinology
	DeptAnesthesiology
	DeptIntensiveCare
)

// departmentNames is the storage vocabulary. Changing a string here breaks
// compatibility with existing patient files.
var departmentNames = [...]string{
	DeptEmergency:        "Emergency",
	DeptInternalMedicine: "Internal Medicine",
	DeptSurgery:          "Surgery",
	DeptPediatrics:       "Pediatrics",
	DeptOBGYN:            "OBGYN",
	DeptCardiology:       "Cardiology",
	DeptNeurology:        "Neurology",
	DeptOncology:         "Oncology",
	DeptOrthopedics:      "Orthopedics",
	DeptRadiology:        "Radiology",
	DeptPsychiatry:       "Psychiatry",
	DeptDermatology:      "Dermatology",
	DeptOphthalmology:    "Ophthalmology",
	DeptENT:              "ENT",
	DeptUrology:          "Urology",
	DeptNephrology:       "Nephrology",
	DeptGastroenterology: "Gastroenterology",
	DeptPulmonology:      "Pulmonology",
	DeptEndocrinology:    "Endocrinology",
	DeptAnesthesiology:   "Anesthesiology",
	DeptIntensiveCare:    "Intensive Care Unit",
}

// Departments returns every department in declaration order.
func Departments() []Department {
	out := make([]Department, len(departmentNames))
	for i := range departmentNames {
		out[i] = Department(i)
	}
	return out
}

func (d Department) valid() bool {
	return d >= 0 && int(d) < len(departmentNames)
}

func (d Department) String() string {
	if !d.valid() {
		return fmt.Sprintf("Department(%d)", int(d))
	}
	return departmentNames[d]
}

// DepartmentToString returns the display name of d.
func DepartmentToString(d Department) string {
	return d.String()
}

// StringToDepartment is the inverse of DepartmentToString. Matching is exact,
// including spacing and case.
func StringToDepartment(s string) (Department, error) {
	for i, name := range departmentNames {
		if name == s {
			return Department(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDepartment, s)
}
