package sandbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ehr/wardbook/internal/domain/user"
)

var fixedNow = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.Local)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type fakeRegistrar struct {
	admins     []*user.Admin
	patients   []*user.Patient
	depts      []user.Department
	admissions int
	failEvery  int
	calls      int
}

func (f *fakeRegistrar) fail() bool {
	f.calls++
	return f.failEvery > 0 && f.calls%f.failEvery == 0
}

func (f *fakeRegistrar) CreateAdmin(_ context.Context, a *user.Admin) (*user.Admin, error) {
	if f.fail() {
		return nil, user.ErrStorageIO
	}
	a.ID = "adm"
	f.admins = append(f.admins, a)
	return a, nil
}

func (f *fakeRegistrar) CreatePatient(_ context.Context, p *user.Patient, dept user.Department) (*user.Patient, error) {
	if f.fail() {
		return p, user.ErrStorageIO
	}
	p.ID = "pat"
	f.patients = append(f.patients, p)
	f.depts = append(f.depts, dept)
	return p, nil
}

func (f *fakeRegistrar) AddAdmission(_ context.Context, _ string, _ user.Department) (string, error) {
	f.admissions++
	return "2026-03-03 10:00:00", nil
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

func TestDataGenerator_Deterministic(t *testing.T) {
	a := NewDataGenerator(42, fixedNow)
	b := NewDataGenerator(42, fixedNow)
	for i := 0; i < 5; i++ {
		pa, da := a.GeneratePatient()
		pb, db := b.GeneratePatient()
		if pa.FullName != pb.FullName || pa.IdentityCardNumber != pb.IdentityCardNumber || da != db {
			t.Fatalf("run %d differs: %+v vs %+v", i, pa, pb)
		}
	}
}

func TestDataGenerator_PatientIsConsistent(t *testing.T) {
	gen := NewDataGenerator(7, fixedNow)
	for i := 0; i < 50; i++ {
		p, dept := gen.GeneratePatient()

		age, err := user.AgeFromIC(p.IdentityCardNumber, fixedNow)
		if err != nil {
			t.Fatalf("generated IC %q invalid: %v", p.IdentityCardNumber, err)
		}
		if age != p.Age {
			t.Errorf("age %d does not match IC %q (%d)", p.Age, p.IdentityCardNumber, age)
		}
		bmi, err := user.ComputeBMI(p.Height, p.Weight)
		if err != nil || bmi != p.BMI {
			t.Errorf("bmi %v does not match %s/%s (%v, %v)", p.BMI, p.Height, p.Weight, bmi, err)
		}
		if err := user.CheckEmail(p.Email); err != nil {
			t.Errorf("email: %v", err)
		}
		if err := user.CheckContactNumber(p.ContactNumber); err != nil {
			t.Errorf("contact: %v", err)
		}
		if dept.String() == "" || strings.HasPrefix(dept.String(), "Department(") {
			t.Errorf("invalid department %d", dept)
		}
	}
}

func TestDataGenerator_UniqueUsernames(t *testing.T) {
	gen := NewDataGenerator(1, fixedNow)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := gen.GenerateAdmin().Username
		if seen[name] {
			t.Fatalf("duplicate username %q", name)
		}
		seen[name] = true
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

func TestSeeder_Generate(t *testing.T) {
	reg := &fakeRegistrar{}
	s := NewSeeder(reg)
	s.now = func() time.Time { return fixedNow }

	res, err := s.Generate(context.Background(), SeedConfig{AdminCount: 2, PatientCount: 5, AdmissionsPerPatient: 3, Seed: 9})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Admins != 2 || res.Patients != 5 || res.Admissions != 15 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if reg.admissions != 10 {
		t.Errorf("expected 10 follow-up admissions, got %d", reg.admissions)
	}
}

func TestSeeder_CountsFailures(t *testing.T) {
	reg := &fakeRegistrar{failEvery: 2}
	s := NewSeeder(reg)
	res, err := s.Generate(context.Background(), SeedConfig{AdminCount: 2, PatientCount: 2, Seed: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Failed != 2 || res.Admins+res.Patients != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestSeeder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSeeder(&fakeRegistrar{}).Generate(ctx, SeedConfig{AdminCount: 1, Seed: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSeeder_WritesThroughRegistry(t *testing.T) {
	fs := afero.NewBasePathFs(afero.NewMemMapFs(), "/data")
	ctx := context.Background()
	reg, err := user.NewRegistry(ctx, user.NewFileRepo(fs, zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := NewSeeder(reg).Generate(ctx, SeedConfig{AdminCount: 3, PatientCount: 4, Seed: 5}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	admins, _ := reg.AdminCount(ctx)
	patients, _ := reg.PatientCount(ctx)
	if admins != 3 || patients != 4 {
		t.Errorf("stored %d admins, %d patients", admins, patients)
	}
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func TestSeedHandler(t *testing.T) {
	reg := &fakeRegistrar{}
	h := NewSeedHandler(NewSeeder(reg))
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sandbox/seed", strings.NewReader(`{"adminCount":1,"patientCount":2,"seed":3}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(reg.admins) != 1 || len(reg.patients) != 2 {
		t.Errorf("registered %d admins, %d patients", len(reg.admins), len(reg.patients))
	}
}

func TestSeedHandler_RejectsHugeCounts(t *testing.T) {
	h := NewSeedHandler(NewSeeder(&fakeRegistrar{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patientCount":20000}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.handleSeed(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
