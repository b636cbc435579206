package user

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ehr/wardbook/internal/platform/ident"
)

// Timestamp is a time stored as an ident.TimestampLayout string.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to one second in local time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.Local().Truncate(time.Second)}
}

func (t Timestamp) String() string {
	return ident.FormatTimestamp(t.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimestampFormat, err)
	}
	parsed, err := ident.ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestampFormat, s)
	}
	t.Time = parsed
	return nil
}

// Account holds the attributes every user variant shares.
type Account struct {
	ID            string    `json:"id"`
	CreatedAt     Timestamp `json:"createdAt"`
	Username      string    `json:"username"`
	Password      string    `json:"password"`
	FullName      string    `json:"fullName"`
	Email         string    `json:"email"`
	ContactNumber string    `json:"contactNumber"`
}

// Base gives variant-independent access to the shared attributes.
func (a *Account) Base() *Account { return a }

// User is the closed set {*Admin, *Patient}. Callers switch on the concrete
// type or on Role().
type User interface {
	Base() *Account
	Role() Role
	isUser()
}

// Admin is an operator account. It adds nothing to Account.
type Admin struct {
	Account
}

func (*Admin) Role() Role { return RoleAdmin }
func (*Admin) isUser()    {}

// Patient is a patient record with demographics, vitals and admission log.
type Patient struct {
	Account
	Age                    int        `json:"age"`
	Religion               string     `json:"religion"`
	Nationality            string     `json:"nationality"`
	IdentityCardNumber     string     `json:"identityCardNumber"`
	MaritalStatus          string     `json:"maritalStatus"`
	Gender                 string     `json:"gender"`
	Race                   string     `json:"race"`
	EmergencyContactNumber string     `json:"emergencyContactNumber"`
	EmergencyContactName   string     `json:"emergencyContactName"`
	Address                string     `json:"address"`
	BMI                    float64    `json:"bmi"`
	Height                 string     `json:"height"`
	Weight                 string     `json:"weight"`
	Admissions             Admissions `json:"admissions"`
}

func (*Patient) Role() Role { return RolePatient }
func (*Patient) isUser()    {}

// AddAdmission records an admission to dept at ts.
func (p *Patient) AddAdmission(dept Department, ts string) {
	if p.Admissions == nil {
		p.Admissions = make(Admissions)
	}
	p.Admissions.Add(dept, ts)
}

// RemoveAdmission deletes one admission entry; see Admissions.Remove.
func (p *Patient) RemoveAdmission(dept Department, ts string) bool {
	if p.Admissions == nil {
		return false
	}
	return p.Admissions.Remove(dept, ts)
}

// AdmissionRows returns the admission log flattened, most recent first.
func (p *Patient) AdmissionRows() []AdmissionRow {
	return p.Admissions.Rows()
}

type adminAlias Admin
type patientAlias Patient

func (a *Admin) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*adminAlias
		Role Role `json:"role"`
	}{(*adminAlias)(a), RoleAdmin})
}

func (a *Admin) UnmarshalJSON(b []byte) error {
	w := struct {
		*adminAlias
		Role *Role `json:"role"`
	}{adminAlias: (*adminAlias)(a)}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return checkRole(w.Role, RoleAdmin)
}

func (p *Patient) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*patientAlias
		Role Role `json:"role"`
	}{(*patientAlias)(p), RolePatient})
}

func (p *Patient) UnmarshalJSON(b []byte) error {
	w := struct {
		*patientAlias
		Role *Role `json:"role"`
	}{patientAlias: (*patientAlias)(p)}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if p.Admissions == nil {
		p.Admissions = make(Admissions)
	}
	return checkRole(w.Role, RolePatient)
}

// checkRole accepts documents without a role key.
func checkRole(stored *Role, want Role) error {
	if stored == nil || *stored == want {
		return nil
	}
	return fmt.Errorf("%w: document role %s does not match %s", ErrUnknownRole, *stored, want)
}

// Encode serializes u to its stored document form.
func Encode(u User) ([]byte, error) {
	return json.MarshalIndent(u, "", "  ")
}

// Decode parses a stored document as a user of the given role.
func Decode(role Role, data []byte) (User, error) {
	switch role {
	case RoleAdmin:
		var a Admin
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case RolePatient:
		var p Patient
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("%w: no storage for role %s", ErrUnknownRole, role)
	}
}
