package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ehr/wardbook/internal/domain/user"
)

// -- Registration --

func (c *Console) accountForm() (user.Account, error) {
	var a user.Account
	var err error
	if a.FullName, err = c.promptValid("Full name", required); err != nil {
		return a, err
	}
	if a.Username, err = c.promptValid("Username", required); err != nil {
		return a, err
	}
	for a.Password == "" {
		if a.Password, err = c.promptSecret("Password"); err != nil {
			return a, err
		}
		if a.Password == "" {
			c.println("  Password required.")
		}
	}
	if a.Email, err = c.promptValid("Email", user.CheckEmail); err != nil {
		return a, err
	}
	if a.ContactNumber, err = c.promptValid("Contact number", user.CheckContactNumber); err != nil {
		return a, err
	}
	return a, nil
}

func (c *Console) registerAdmin(ctx context.Context) error {
	c.println("")
	c.println("== Register admin ==")
	acct, err := c.accountForm()
	if err != nil {
		return err
	}
	a, err := c.reg.CreateAdmin(ctx, &user.Admin{Account: acct})
	if err != nil {
		c.printf("  %s\n", describe(err))
		if a == nil {
			return nil
		}
	}
	c.printf("Registered admin %s (%s).\n", a.FullName, a.ID)
	return nil
}

func (c *Console) registerPatient(ctx context.Context) error {
	c.println("")
	c.println("== Register patient ==")
	acct, err := c.accountForm()
	if err != nil {
		return err
	}
	p := &user.Patient{Account: acct}

	for {
		if p.IdentityCardNumber, err = c.prompt("IC number (YYMMDD-PB-###G)"); err != nil {
			return err
		}
		age, ageErr := user.AgeFromIC(p.IdentityCardNumber, c.now())
		if ageErr != nil {
			c.printf("  %s\n", describe(ageErr))
			continue
		}
		p.Age = age
		break
	}

	plain := []struct {
		label string
		dst   *string
	}{
		{"Gender", &p.Gender},
		{"Race", &p.Race},
		{"Religion", &p.Religion},
		{"Nationality", &p.Nationality},
		{"Marital status", &p.MaritalStatus},
		{"Address", &p.Address},
		{"Emergency contact name", &p.EmergencyContactName},
	}
	for _, f := range plain {
		if *f.dst, err = c.prompt(f.label); err != nil {
			return err
		}
	}
	optionalContact := func(v string) error {
		if v == "" {
			return nil
		}
		return user.CheckContactNumber(v)
	}
	if p.EmergencyContactNumber, err = c.promptValid("Emergency contact number", optionalContact); err != nil {
		return err
	}

	for {
		if p.Height, err = c.prompt("Height (cm)"); err != nil {
			return err
		}
		if p.Weight, err = c.prompt("Weight (kg)"); err != nil {
			return err
		}
		bmi, bmiErr := user.ComputeBMI(p.Height, p.Weight)
		if bmiErr != nil {
			c.printf("  %s\n", describe(bmiErr))
			continue
		}
		p.BMI = bmi
		break
	}

	dept, err := c.chooseDepartment()
	if err != nil {
		return err
	}
	created, err := c.reg.CreatePatient(ctx, p, dept)
	if err != nil {
		c.printf("  %s\n", describe(err))
		if created == nil {
			return nil
		}
	}
	c.printf("Registered patient %s (%s), age %d, BMI %.1f, admitted to %s.\n",
		created.FullName, created.ID, created.Age, created.BMI, dept)
	return nil
}

func (c *Console) chooseDepartment() (user.Department, error) {
	depts := user.Departments()
	for i, d := range depts {
		c.printf("%3d) %s\n", i+1, d)
	}
	for {
		v, err := c.prompt("Department")
		if err != nil {
			return 0, err
		}
		if n, convErr := strconv.Atoi(v); convErr == nil && n >= 1 && n <= len(depts) {
			return depts[n-1], nil
		}
		if d, nameErr := user.StringToDepartment(v); nameErr == nil {
			return d, nil
		}
		c.println("  Pick a number from the list.")
	}
}

// -- Edits --

func (c *Console) updateField(ctx context.Context, u user.User) error {
	fields := user.UpdatableFields(u.Role())
	c.printf("Fields: %s\n", strings.Join(fields, ", "))
	field, err := c.prompt("Field")
	if err != nil || field == "" {
		return err
	}

	var value string
	if field == "password" {
		value, err = c.promptSecret("New password")
	} else {
		value, err = c.prompt("New value")
	}
	if err != nil {
		return err
	}
	if err := user.CheckField(field, value); err != nil {
		c.printf("  %s\n", describe(err))
		return nil
	}
	if err := c.reg.UpdateUser(ctx, u.Base().ID, field, value); err != nil {
		c.printf("  %s\n", describe(err))
		return nil
	}
	c.printf("Updated %s.\n", field)
	return nil
}

func (c *Console) addAdmission(ctx context.Context, id string) error {
	dept, err := c.chooseDepartment()
	if err != nil {
		return err
	}
	ts, err := c.reg.AddAdmission(ctx, id, dept)
	if err != nil {
		c.printf("  %s\n", describe(err))
		if ts == "" {
			return nil
		}
	}
	c.printf("Admitted to %s at %s.\n", dept, ts)
	return nil
}

func (c *Console) removeAdmission(ctx context.Context, p *user.Patient) error {
	rows := p.AdmissionRows()
	if len(rows) == 0 {
		c.println("No admissions recorded.")
		return nil
	}
	v, err := c.prompt(fmt.Sprintf("Admission number to remove (1-%d, blank cancels)", len(rows)))
	if err != nil || v == "" {
		return err
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil || n < 1 || n > len(rows) {
		c.println("Unknown admission.")
		return nil
	}
	r := rows[n-1]
	if err := c.reg.RemoveAdmission(ctx, p.ID, r.Department, r.Date); err != nil {
		c.printf("  %s\n", describe(err))
		return nil
	}
	c.printf("Removed %s admission of %s.\n", r.Department, r.Date)
	return nil
}
