package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/wardbook/internal/platform/auth"
	"github.com/ehr/wardbook/internal/platform/ident"
	"github.com/ehr/wardbook/pkg/pagination"
)

type Handler struct {
	reg    *Registry
	issuer *auth.TokenIssuer
	now    func() time.Time
}

func NewHandler(reg *Registry, issuer *auth.TokenIssuer) *Handler {
	return &Handler{reg: reg, issuer: issuer, now: ident.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/login", h.Login)

	g := api.Group("", auth.Middleware(h.issuer), auth.RequireRole(RoleAdmin.String()), RequireActiveAdmin(h.reg))
	g.GET("/admins", h.ListAdmins)
	g.POST("/admins", h.CreateAdmin)
	g.GET("/patients", h.ListPatients)
	g.POST("/patients", h.CreatePatient)
	g.GET("/users/:id", h.GetUser)
	g.PATCH("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)
	g.GET("/patients/:id/admissions", h.ListAdmissions)
	g.POST("/patients/:id/admissions", h.AddAdmission)
	g.DELETE("/patients/:id/admissions", h.RemoveAdmission)
	g.GET("/stats", h.Stats)
}

// RequireActiveAdmin rejects a token whose subject is no longer a stored
// Admin, so deleting an account revokes its outstanding tokens. It must run
// after auth.Middleware.
func RequireActiveAdmin(reg *Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			u, ok, err := reg.GetUserByID(ctx, auth.UserIDFromContext(ctx))
			if err != nil {
				return httpError(err)
			}
			if !ok || u.Role() != RoleAdmin {
				return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
			}
			return next(c)
		}
	}
}

// -- Request and response bodies --

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Summary   `json:"user"`
}

type accountInput struct {
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required"`
	FullName      string `json:"fullName" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	ContactNumber string `json:"contactNumber" validate:"required,contact"`
}

func (in accountInput) account() Account {
	return Account{
		Username:      strings.TrimSpace(in.Username),
		Password:      in.Password,
		FullName:      strings.TrimSpace(in.FullName),
		Email:         strings.TrimSpace(in.Email),
		ContactNumber: strings.TrimSpace(in.ContactNumber),
	}
}

type patientInput struct {
	accountInput
	IdentityCardNumber     string `json:"identityCardNumber" validate:"required,ic"`
	Religion               string `json:"religion"`
	Nationality            string `json:"nationality"`
	MaritalStatus          string `json:"maritalStatus"`
	Gender                 string `json:"gender"`
	Race                   string `json:"race"`
	EmergencyContactNumber string `json:"emergencyContactNumber" validate:"omitempty,contact"`
	EmergencyContactName   string `json:"emergencyContactName"`
	Address                string `json:"address"`
	Height                 string `json:"height" validate:"required"`
	Weight                 string `json:"weight" validate:"required"`
	Department             string `json:"department" validate:"required"`
}

type updateRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

type admissionRequest struct {
	Department string `json:"department" validate:"required"`
}

type statsResponse struct {
	Admins   int `json:"admins"`
	Patients int `json:"patients"`
}

// PublicView renders u as its stored document without the password.
func PublicView(u User) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "password")
	return m, nil
}

func (h *Handler) respondUser(c echo.Context, status int, u User) error {
	var view map[string]json.RawMessage
	var err error
	h.reg.Read(func() { view, err = PublicView(u) })
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(status, view)
}

// respondCreated answers 201 with u. A create whose save failed still caches
// u, so it is returned with a "warning" member instead of an error status.
func (h *Handler) respondCreated(c echo.Context, u User, saveErr error) error {
	var view map[string]json.RawMessage
	var err error
	h.reg.Read(func() { view, err = PublicView(u) })
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if saveErr != nil {
		view["warning"], _ = json.Marshal("record is not persisted: " + saveErr.Error())
	}
	return c.JSON(http.StatusCreated, view)
}

// httpError maps registry errors to status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidField),
		errors.Is(err, ErrValueParse),
		errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrInvalidDepartment):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// -- Session --

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess := NewSession()
	if !h.reg.ValidateUser(c.Request().Context(), sess, req.Username, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}
	u, _ := sess.CurrentUser()
	var username string
	var who Summary
	h.reg.Read(func() {
		a := u.Base()
		username = a.Username
		who = Summary{FullName: a.FullName, ID: a.ID}
	})
	token, exp, err := h.issuer.Issue(who.ID, username, u.Role().String())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      who,
	})
}

// -- Lists --

func (h *Handler) ListAdmins(c echo.Context) error {
	return h.list(c, h.reg.GetAdmins(c.QueryParam("q")))
}

func (h *Handler) ListPatients(c echo.Context) error {
	return h.list(c, h.reg.GetPatients(c.QueryParam("q")))
}

func (h *Handler) list(c echo.Context, rows []Summary) error {
	p := pagination.FromContext(c)
	page := pagination.Page(rows, p.Size, p.Index)
	if page == nil {
		page = []Summary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(rows), p))
}

// -- Users --

func (h *Handler) GetUser(c echo.Context) error {
	u, ok, err := h.reg.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return h.respondUser(c, http.StatusOK, u)
}

func (h *Handler) CreateAdmin(c echo.Context) error {
	var in accountInput
	if err := bindValid(c, &in); err != nil {
		return err
	}
	a, err := h.reg.CreateAdmin(c.Request().Context(), &Admin{Account: in.account()})
	if a == nil {
		return httpError(err)
	}
	return h.respondCreated(c, a, err)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in patientInput
	if err := bindValid(c, &in); err != nil {
		return err
	}
	dept, err := StringToDepartment(in.Department)
	if err != nil {
		return httpError(err)
	}
	age, err := AgeFromIC(in.IdentityCardNumber, h.now())
	if err != nil {
		return httpError(err)
	}
	bmi, err := ComputeBMI(in.Height, in.Weight)
	if err != nil {
		return httpError(err)
	}

	p := &Patient{
		Account:                in.account(),
		Age:                    age,
		Religion:               in.Religion,
		Nationality:            in.Nationality,
		IdentityCardNumber:     strings.TrimSpace(in.IdentityCardNumber),
		MaritalStatus:          in.MaritalStatus,
		Gender:                 in.Gender,
		Race:                   in.Race,
		EmergencyContactNumber: in.EmergencyContactNumber,
		EmergencyContactName:   in.EmergencyContactName,
		Address:                in.Address,
		BMI:                    bmi,
		Height:                 strings.TrimSpace(in.Height),
		Weight:                 strings.TrimSpace(in.Weight),
	}
	created, err := h.reg.CreatePatient(c.Request().Context(), p, dept)
	if created == nil {
		return httpError(err)
	}
	return h.respondCreated(c, created, err)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	var req updateRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := CheckField(req.Field, req.Value); err != nil {
		return httpError(err)
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.reg.UpdateUser(ctx, id, req.Field, req.Value); err != nil {
		return httpError(err)
	}
	u, ok, err := h.reg.GetUserByID(ctx, id)
	if err != nil || !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return h.respondUser(c, http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if h.isCaller(c, id) {
		return echo.NewHTTPError(http.StatusConflict, "cannot delete the logged-in account")
	}
	removed, err := h.reg.DeleteUserByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !removed {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) isCaller(c echo.Context, id string) bool {
	return auth.UserIDFromContext(c.Request().Context()) == id
}

// -- Admissions --

func (h *Handler) ListAdmissions(c echo.Context) error {
	p, err := h.reg.patient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	var rows []AdmissionRow
	h.reg.Read(func() { rows = p.AdmissionRows() })
	if rows == nil {
		rows = []AdmissionRow{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) AddAdmission(c echo.Context) error {
	var req admissionRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	dept, err := StringToDepartment(req.Department)
	if err != nil {
		return httpError(err)
	}
	ts, err := h.reg.AddAdmission(c.Request().Context(), c.Param("id"), dept)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, AdmissionRow{Department: dept, Date: ts})
}

// RemoveAdmission takes the department and date as query parameters.
func (h *Handler) RemoveAdmission(c echo.Context) error {
	dept, err := StringToDepartment(c.QueryParam("department"))
	if err != nil {
		return httpError(err)
	}
	date := c.QueryParam("date")
	if _, err := ident.ParseTimestamp(date); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be "+ident.TimestampLayout)
	}
	if err := h.reg.RemoveAdmission(c.Request().Context(), c.Param("id"), dept, date); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Stats --

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	admins, err := h.reg.AdminCount(ctx)
	if err != nil {
		return httpError(err)
	}
	patients, err := h.reg.PatientCount(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, statsResponse{Admins: admins, Patients: patients})
}
