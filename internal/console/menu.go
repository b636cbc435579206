package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ehr/wardbook/internal/domain/user"
	"github.com/ehr/wardbook/pkg/pagination"
)

func (c *Console) mainMenu(ctx context.Context) error {
	u, _ := c.sess.CurrentUser()
	c.println("")
	c.printf("== Main menu (%s) ==\n", u.Base().FullName)
	c.println("1) Patients")
	c.println("2) Admins")
	c.println("3) Register patient")
	c.println("4) Register admin")
	c.println("5) Statistics")
	c.println("6) Logout")
	c.println("0) Quit")

	choice, err := c.prompt("Choose")
	if err != nil {
		return err
	}
	switch choice {
	case "1":
		return c.browse(ctx, user.RolePatient)
	case "2":
		return c.browse(ctx, user.RoleAdmin)
	case "3":
		return c.registerPatient(ctx)
	case "4":
		return c.registerAdmin(ctx)
	case "5":
		return c.stats(ctx)
	case "6":
		c.sess.Logout()
		c.println("Logged out.")
		return nil
	case "0", "q":
		return errQuit
	default:
		c.println("Unknown choice.")
		return nil
	}
}

func (c *Console) stats(ctx context.Context) error {
	admins, err := c.reg.AdminCount(ctx)
	if err != nil {
		c.printf("  %s\n", describe(err))
		return nil
	}
	patients, err := c.reg.PatientCount(ctx)
	if err != nil {
		c.printf("  %s\n", describe(err))
		return nil
	}
	c.printf("Admins: %d\nPatients: %d\n", admins, patients)
	return nil
}

// -- Lists --

func listTitle(role user.Role) string {
	if role == user.RoleAdmin {
		return "Admins"
	}
	return "Patients"
}

func (c *Console) summaries(role user.Role, query string) []user.Summary {
	if role == user.RoleAdmin {
		return c.reg.GetAdmins(query)
	}
	return c.reg.GetPatients(query)
}

// browse shows a paged, searchable list of one role until the operator goes
// back.
func (c *Console) browse(ctx context.Context, role user.Role) error {
	query := ""
	rows := c.summaries(role, query)
	pager := pagination.NewPager(c.pageSize, len(rows))

	for {
		page := pagination.CurrentPage(pager, rows)
		c.println("")
		c.printf("== %s (page %d/%d, %d total)", listTitle(role), pager.Index+1, pager.Pages(), len(rows))
		if query != "" {
			c.printf(" search %q", query)
		}
		c.println("")
		if len(page) == 0 {
			c.println("  (none)")
		}
		for i, r := range page {
			c.printf("%3d. %s (%s)\n", i+1, r.FullName, r.ID)
		}
		c.println("[n]ext [p]rev [f]irst [l]ast [s]earch [number] open [b]ack")

		choice, err := c.prompt("Choose")
		if err != nil {
			return err
		}
		switch strings.ToLower(choice) {
		case "n":
			pager.Next()
		case "p":
			pager.Previous()
		case "f":
			pager.First()
		case "l":
			pager.Last()
		case "s":
			if query, err = c.prompt("Search (blank clears)"); err != nil {
				return err
			}
			rows = c.summaries(role, query)
			pager.First()
			pager.SetTotal(len(rows))
		case "b", "":
			return nil
		default:
			n, convErr := strconv.Atoi(choice)
			if convErr != nil || n < 1 || n > len(page) {
				c.println("Unknown choice.")
				continue
			}
			if err := c.detail(ctx, page[n-1].ID); err != nil {
				return err
			}
			rows = c.summaries(role, query)
			pager.SetTotal(len(rows))
		}
	}
}

// -- Detail --

func (c *Console) detail(ctx context.Context, id string) error {
	for {
		u, ok, err := c.reg.GetUserByID(ctx, id)
		if err != nil {
			c.printf("  %s\n", describe(err))
			return nil
		}
		if !ok {
			c.println("Record not found.")
			return nil
		}
		c.show(u)

		_, isPatient := u.(*user.Patient)
		if isPatient {
			c.println("[u]pdate field [a]dd admission [r]emove admission [d]elete [b]ack")
		} else {
			c.println("[u]pdate field [d]elete [b]ack")
		}
		choice, err := c.prompt("Choose")
		if err != nil {
			return err
		}
		switch strings.ToLower(choice) {
		case "u":
			err = c.updateField(ctx, u)
		case "a":
			if isPatient {
				err = c.addAdmission(ctx, id)
			}
		case "r":
			if isPatient {
				err = c.removeAdmission(ctx, u.(*user.Patient))
			}
		case "d":
			deleted, derr := c.deleteUser(ctx, u)
			if derr != nil || deleted {
				return derr
			}
		case "b", "":
			return nil
		default:
			c.println("Unknown choice.")
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) show(u user.User) {
	a := u.Base()
	c.println("")
	c.printf("== %s: %s ==\n", u.Role(), a.FullName)
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "  %s\t%s\n", k, v) }
	row("ID", a.ID)
	row("Created", a.CreatedAt.String())
	row("Username", a.Username)
	row("Email", a.Email)
	row("Contact", a.ContactNumber)

	if p, ok := u.(*user.Patient); ok {
		row("IC number", p.IdentityCardNumber)
		row("Age", strconv.Itoa(p.Age))
		row("Gender", p.Gender)
		row("Race", p.Race)
		row("Religion", p.Religion)
		row("Nationality", p.Nationality)
		row("Marital status", p.MaritalStatus)
		row("Address", p.Address)
		row("Height (cm)", p.Height)
		row("Weight (kg)", p.Weight)
		row("BMI", strconv.FormatFloat(p.BMI, 'f', 1, 64))
		row("Emergency contact", strings.TrimSpace(p.EmergencyContactName+" "+p.EmergencyContactNumber))
	}
	tw.Flush()

	if p, ok := u.(*user.Patient); ok {
		rows := p.AdmissionRows()
		c.printf("  Admissions (%d):\n", len(rows))
		for i, r := range rows {
			c.printf("  %3d. %s  %s\n", i+1, r.Date, r.Department)
		}
	}
}

func (c *Console) deleteUser(ctx context.Context, u user.User) (bool, error) {
	a := u.Base()
	if cur, ok := c.sess.CurrentUser(); ok && cur.Base().ID == a.ID {
		c.println("You cannot delete the account you are logged in with.")
		return false, nil
	}
	yes, err := c.confirm(fmt.Sprintf("Delete %s (%s)?", a.FullName, a.ID))
	if err != nil || !yes {
		return false, err
	}
	removed, err := c.reg.DeleteUserByID(ctx, a.ID)
	if err != nil {
		c.printf("  %s\n", describe(err))
		return false, nil
	}
	if !removed {
		c.println("Record removed from the list; no stored file was found.")
	} else {
		c.println("Deleted.")
	}
	return true, nil
}
