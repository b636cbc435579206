package user

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type accountSetter func(a *Account, v string) error
type patientSetter func(p *Patient, v string) error

func accountString(field func(*Account) *string) accountSetter {
	return func(a *Account, v string) error {
		*field(a) = v
		return nil
	}
}

func patientString(field func(*Patient) *string) patientSetter {
	return func(p *Patient, v string) error {
		*field(p) = v
		return nil
	}
}

// Field names match the stored document keys. id, createdAt and role are
// never updatable; the admission log has its own operations.
var accountFields = map[string]accountSetter{
	"username":      accountString(func(a *Account) *string { return &a.Username }),
	"password":      accountString(func(a *Account) *string { return &a.Password }),
	"fullName":      accountString(func(a *Account) *string { return &a.FullName }),
	"email":         accountString(func(a *Account) *string { return &a.Email }),
	"contactNumber": accountString(func(a *Account) *string { return &a.ContactNumber }),
}

var patientFields = map[string]patientSetter{
	"age": func(p *Patient, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: age %q: %v", ErrValueParse, v, err)
		}
		p.Age = n
		return nil
	},
	"bmi": func(p *Patient, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: bmi %q: %v", ErrValueParse, v, err)
		}
		p.BMI = f
		return nil
	},
	"religion":               patientString(func(p *Patient) *string { return &p.Religion }),
	"nationality":            patientString(func(p *Patient) *string { return &p.Nationality }),
	"identityCardNumber":     patientString(func(p *Patient) *string { return &p.IdentityCardNumber }),
	"maritalStatus":          patientString(func(p *Patient) *string { return &p.MaritalStatus }),
	"gender":                 patientString(func(p *Patient) *string { return &p.Gender }),
	"race":                   patientString(func(p *Patient) *string { return &p.Race }),
	"emergencyContactNumber": patientString(func(p *Patient) *string { return &p.EmergencyContactNumber }),
	"emergencyContactName":   patientString(func(p *Patient) *string { return &p.EmergencyContactName }),
	"address":                patientString(func(p *Patient) *string { return &p.Address }),
	"height":                 patientString(func(p *Patient) *string { return &p.Height }),
	"weight":                 patientString(func(p *Patient) *string { return &p.Weight }),
}

// ApplyField parses value for the named field and assigns it to u. The user
// is left untouched when an error is returned.
func ApplyField(u User, field, value string) error {
	if set, ok := accountFields[field]; ok {
		return set(u.Base(), value)
	}
	if p, ok := u.(*Patient); ok {
		if set, ok := patientFields[field]; ok {
			return set(p, value)
		}
	}
	return fmt.Errorf("%w: %q for role %s", ErrInvalidField, field, u.Role())
}

// UpdatableFields lists the field names ApplyField accepts for role, sorted.
func UpdatableFields(role Role) []string {
	var out []string
	for name := range accountFields {
		out = append(out, name)
	}
	if role == RolePatient {
		for name := range patientFields {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
