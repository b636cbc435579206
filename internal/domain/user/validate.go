package user

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MinAge = 0
	MaxAge = 150
	MinBMI = 5.0
	MaxBMI = 100.0
)

var (
	contactPattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)
	// YYMMDD-PB-###G: birth date, place-of-birth code, serial and gender digit.
	icPattern = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})-(\d{2})-(\d{4})$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("contact", func(fl validator.FieldLevel) bool {
		return contactPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ic", func(fl validator.FieldLevel) bool {
		return icPattern.MatchString(fl.Field().String())
	})
	return v
}

// StructValidator adapts the package validator to echo.Validator.
type StructValidator struct{}

func (StructValidator) Validate(i interface{}) error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

// CheckEmail rejects anything that is not a single address.
func CheckEmail(s string) error {
	if err := validate.Var(strings.TrimSpace(s), "required,email"); err != nil {
		return fmt.Errorf("%w: email %q", ErrInvalidValue, s)
	}
	return nil
}

// CheckContactNumber accepts 9 to 15 digits with an optional leading plus.
func CheckContactNumber(s string) error {
	if !contactPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("%w: contact number %q", ErrInvalidValue, s)
	}
	return nil
}

// AgeFromIC derives a holder's age at now from the birth date encoded in an
// identity card number. Two-digit years after now's year fall in the previous
// century.
func AgeFromIC(ic string, now time.Time) (int, error) {
	m := icPattern.FindStringSubmatch(strings.TrimSpace(ic))
	if m == nil {
		return 0, fmt.Errorf("%w: identity card number %q", ErrInvalidValue, ic)
	}
	yy, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	dd, _ := strconv.Atoi(m[3])

	century := now.Year() / 100 * 100
	year := century + yy
	if yy > now.Year()%100 {
		year -= 100
	}
	born := time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, now.Location())
	if born.Month() != time.Month(mm) || born.Day() != dd {
		return 0, fmt.Errorf("%w: identity card date %s%s%s", ErrInvalidValue, m[1], m[2], m[3])
	}

	age := now.Year() - born.Year()
	if !sameOrAfterBirthday(now, born) {
		age--
	}
	if age < MinAge || age > MaxAge || born.After(now) {
		return 0, fmt.Errorf("%w: age %d out of range", ErrInvalidValue, age)
	}
	return age, nil
}

func sameOrAfterBirthday(now, born time.Time) bool {
	if now.Month() != born.Month() {
		return now.Month() > born.Month()
	}
	return now.Day() >= born.Day()
}

// ComputeBMI returns weight / height² for a height in centimetres and a
// weight in kilograms, rounded to one decimal place.
func ComputeBMI(heightCM, weightKG string) (float64, error) {
	h, err := strconv.ParseFloat(strings.TrimSpace(heightCM), 64)
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("%w: height %q", ErrValueParse, heightCM)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(weightKG), 64)
	if err != nil || w <= 0 {
		return 0, fmt.Errorf("%w: weight %q", ErrValueParse, weightKG)
	}
	m := h / 100
	bmi := math.Round(w/(m*m)*10) / 10
	if bmi < MinBMI || bmi > MaxBMI {
		return 0, fmt.Errorf("%w: bmi %.1f out of range", ErrInvalidValue, bmi)
	}
	return bmi, nil
}

// CheckField applies the format rule for field, if it has one, before an
// update is handed to ApplyField.
func CheckField(field, value string) error {
	switch field {
	case "email":
		return CheckEmail(value)
	case "contactNumber", "emergencyContactNumber":
		return CheckContactNumber(value)
	case "identityCardNumber":
		if !icPattern.MatchString(strings.TrimSpace(value)) {
			return fmt.Errorf("%w: identity card number %q", ErrInvalidValue, value)
		}
	case "age":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && (n < MinAge || n > MaxAge) {
			return fmt.Errorf("%w: age %d out of range", ErrInvalidValue, n)
		}
	case "bmi":
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && (f < MinBMI || f > MaxBMI) {
			return fmt.Errorf("%w: bmi %.1f out of range", ErrInvalidValue, f)
		}
	}
	return nil
}
