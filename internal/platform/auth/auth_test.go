package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	iss := newTestIssuer()
	tok, exp, err := iss.Issue("adm-1", "root", "Admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}

	claims, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "adm-1" || claims.Username != "root" || claims.Role != "Admin" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	iss := newTestIssuer()
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := iss.Issue("adm-1", "root", "Admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	iss.now = time.Now
	if _, err := iss.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_WrongKey(t *testing.T) {
	tok, _, _ := newTestIssuer().Issue("adm-1", "root", "Admin")
	other := NewTokenIssuer([]byte("another-key-another-key-another-k"), time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRandomKey(t *testing.T) {
	a, err := RandomKey()
	if err != nil {
		t.Fatalf("RandomKey: %v", err)
	}
	b, _ := RandomKey()
	if len(a) != 32 || string(a) == string(b) {
		t.Errorf("keys not random 32-byte values")
	}
}

func TestMiddleware(t *testing.T) {
	iss := newTestIssuer()
	good, _, _ := iss.Issue("adm-1", "root", "Admin")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid", "Bearer " + good, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var gotID, gotRole string
			h := Middleware(iss)(func(c echo.Context) error {
				gotID = UserIDFromContext(c.Request().Context())
				gotRole = RoleFromContext(c.Request().Context())
				return c.NoContent(http.StatusOK)
			})
			err := h(c)

			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if gotID != "adm-1" || gotRole != "Admin" {
					t.Errorf("context = %q/%q", gotID, gotRole)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, err)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"Admin", true},
		{"Patient", false},
		{"", false},
	}
	for _, tt := range tests {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserRoleKey, tt.role))
		c := e.NewContext(req, httptest.NewRecorder())

		err := RequireRole("Admin")(func(c echo.Context) error { return nil })(c)
		if tt.want && err != nil {
			t.Errorf("role %q: unexpected error %v", tt.role, err)
		}
		if !tt.want {
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusForbidden {
				t.Errorf("role %q: expected 403, got %v", tt.role, err)
			}
		}
	}
}
