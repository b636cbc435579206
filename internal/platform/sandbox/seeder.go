// Package sandbox provides synthetic ward data for demo and development
// environments. It produces reproducible admin and patient records and
// writes them through the user registry so they land in the record store
// exactly as console-entered records would.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/wardbook/internal/domain/user"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	AdminCount           int   `json:"adminCount"`
	PatientCount         int   `json:"patientCount"`
	AdmissionsPerPatient int   `json:"admissionsPerPatient"`
	Seed                 int64 `json:"seed"`
}

// DefaultSeedConfig returns a SeedConfig sized for a demo ward.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		AdminCount:           2,
		PatientCount:         25,
		AdmissionsPerPatient: 1,
	}
}

// SeedResult summarises a Generate run.
type SeedResult struct {
	Admins     int           `json:"admins"`
	Patients   int           `json:"patients"`
	Admissions int           `json:"admissions"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Reference pools
// ---------------------------------------------------------------------------

var (
	givenNamesMale   = []string{"Ahmad", "Muhammad", "Hafiz", "Wei Jie", "Jun Hao", "Arjun", "Ravi", "Daniel", "Faizal", "Kumar"}
	givenNamesFemale = []string{"Aminah", "Nurul", "Siti", "Mei Ling", "Hui Min", "Priya", "Kavitha", "Sarah", "Farah", "Li Na"}
	familyNames      = []string{"Abdullah", "Ismail", "Rahman", "Tan", "Lim", "Wong", "Subramaniam", "Krishnan", "Yusof", "Ong"}
	religions        = []string{"Islam", "Buddhism", "Hinduism", "Christianity", "Taoism", "None"}
	races            = []string{"Malay", "Chinese", "Indian", "Iban", "Kadazan", "Other"}
	maritalStatuses  = []string{"Single", "Married", "Divorced", "Widowed"}
	nationalities    = []string{"Malaysian", "Malaysian", "Malaysian", "Singaporean", "Indonesian"}
	streets          = []string{"Jalan Ampang", "Jalan Tun Razak", "Jalan Sultan Ismail", "Lorong Maarof", "Jalan Gasing", "Jalan Klang Lama"}
	cities           = []string{"Kuala Lumpur", "Petaling Jaya", "Shah Alam", "George Town", "Johor Bahru", "Ipoh", "Kuching"}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic users.
type DataGenerator struct {
	rng     *rand.Rand
	now     time.Time
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen. Ages are computed relative to now.
func NewDataGenerator(seed int64, now time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("01%d%07d", g.rng.Intn(10), g.rng.Intn(10000000))
}

// randomIC returns an identity card number for someone born between 1 and
// 90 years before now.
func (g *DataGenerator) randomIC() string {
	born := g.now.AddDate(-g.between(1, 90), 0, -g.rng.Intn(365))
	return fmt.Sprintf("%02d%02d%02d-%02d-%04d",
		born.Year()%100, int(born.Month()), born.Day(),
		g.between(1, 16), g.rng.Intn(10000))
}

// account returns a random account and whether the name is a female one.
func (g *DataGenerator) account(role string) (user.Account, bool) {
	g.counter++
	female := g.rng.Intn(2) == 0
	given := g.pick(givenNamesMale)
	if female {
		given = g.pick(givenNamesFemale)
	}
	family := g.pick(familyNames)
	handle := strings.ToLower(strings.ReplaceAll(given, " ", "")) + fmt.Sprintf(".%s%d", role, g.counter)
	return user.Account{
		Username:      handle,
		Password:      fmt.Sprintf("%s-%04d", role, g.rng.Intn(10000)),
		FullName:      given + " " + family,
		Email:         handle + "@wardbook.example",
		ContactNumber: g.randomPhone(),
	}, female
}

// GenerateAdmin produces an unsaved Admin.
func (g *DataGenerator) GenerateAdmin() *user.Admin {
	acct, _ := g.account("admin")
	return &user.Admin{Account: acct}
}

// GeneratePatient produces an unsaved Patient with consistent age and BMI,
// and the department of its first admission.
func (g *DataGenerator) GeneratePatient() (*user.Patient, user.Department) {
	acct, female := g.account("patient")
	gender := "Male"
	if female {
		gender = "Female"
	}

	ic := g.randomIC()
	age, err := user.AgeFromIC(ic, g.now)
	if err != nil {
		age = 0
	}
	height := fmt.Sprintf("%d", g.between(150, 190))
	weight := fmt.Sprintf("%d", g.between(45, 100))
	bmi, err := user.ComputeBMI(height, weight)
	if err != nil {
		bmi = 0
	}

	p := &user.Patient{
		Account:                acct,
		Age:                    age,
		Religion:               g.pick(religions),
		Nationality:            g.pick(nationalities),
		IdentityCardNumber:     ic,
		MaritalStatus:          g.pick(maritalStatuses),
		Gender:                 gender,
		Race:                   g.pick(races),
		EmergencyContactNumber: g.randomPhone(),
		EmergencyContactName:   g.pick(givenNamesMale) + " " + g.pick(familyNames),
		Address:                fmt.Sprintf("%d %s, %s", g.between(1, 200), g.pick(streets), g.pick(cities)),
		BMI:                    bmi,
		Height:                 height,
		Weight:                 weight,
	}
	return p, g.Department()
}

// Department picks a random department.
func (g *DataGenerator) Department() user.Department {
	depts := user.Departments()
	return depts[g.rng.Intn(len(depts))]
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Registrar is the part of the user registry the seeder writes through.
type Registrar interface {
	CreateAdmin(ctx context.Context, a *user.Admin) (*user.Admin, error)
	CreatePatient(ctx context.Context, p *user.Patient, dept user.Department) (*user.Patient, error)
	AddAdmission(ctx context.Context, id string, dept user.Department) (string, error)
}

// Seeder generates a batch of users and registers them.
type Seeder struct {
	reg Registrar
	now func() time.Time
	mu  sync.Mutex
}

// NewSeeder creates a Seeder writing to reg.
func NewSeeder(reg Registrar) *Seeder {
	return &Seeder{reg: reg, now: time.Now}
}

// Generate creates config.AdminCount admins and config.PatientCount patients.
// Save failures are counted and the run continues; a canceled context stops
// it.
func (s *Seeder) Generate(ctx context.Context, config SeedConfig) (*SeedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	gen := NewDataGenerator(config.Seed, s.now())
	result := &SeedResult{}

	for i := 0; i < config.AdminCount; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := s.reg.CreateAdmin(ctx, gen.GenerateAdmin()); err != nil {
			result.Failed++
			continue
		}
		result.Admins++
	}

	for i := 0; i < config.PatientCount; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p, dept := gen.GeneratePatient()
		created, err := s.reg.CreatePatient(ctx, p, dept)
		if err != nil {
			result.Failed++
			continue
		}
		result.Patients++
		result.Admissions++

		for j := 1; j < config.AdmissionsPerPatient; j++ {
			if _, err := s.reg.AddAdmission(ctx, created.ID, gen.Department()); err != nil {
				result.Failed++
				continue
			}
			result.Admissions++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

// SeedHandler exposes the seeder on the API in development environments.
type SeedHandler struct {
	seeder *Seeder
}

func NewSeedHandler(seeder *Seeder) *SeedHandler {
	return &SeedHandler{seeder: seeder}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	config := DefaultSeedConfig()
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&config); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid seed config")
		}
	}
	if config.AdminCount < 0 || config.PatientCount < 0 || config.AdminCount+config.PatientCount > 10000 {
		return echo.NewHTTPError(http.StatusBadRequest, "counts must be between 0 and 10000")
	}
	result, err := h.seeder.Generate(c.Request().Context(), config)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, result)
}
