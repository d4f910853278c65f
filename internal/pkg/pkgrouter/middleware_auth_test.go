package pkgrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestUsersAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	users := Users{
		"admin":    string(hash),
		"operator": "plain-secret",
		"disabled": "",
	}
	ctx := context.Background()

	cases := []struct {
		name     string
		user     string
		password string
		want     bool
	}{
		{"bcrypt match", "admin", "admin123", true},
		{"bcrypt mismatch", "admin", "admin", false},
		{"plain match", "operator", "plain-secret", true},
		{"mixed case username", "Operator", "plain-secret", true},
		{"plain mismatch", "operator", "plain", false},
		{"empty secret", "disabled", "", false},
		{"unknown user", "ghost", "admin123", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := users.Authenticate(ctx, tc.user, tc.password); got != tc.want {
				t.Fatalf("Authenticate(%q) = %v, want %v", tc.user, got, tc.want)
			}
		})
	}
}

func TestMiddlewareBasicAuth(t *testing.T) {
	mw := MiddlewareBasicAuth("equipment", Users{"admin": "secret"})

	var gotUser string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUsername(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/datasets", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if got := rec.Header().Get("WWW-Authenticate"); got == "" {
			t.Fatal("expected WWW-Authenticate challenge")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
		req.SetBasicAuth("admin", "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
		req.SetBasicAuth("admin", "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if gotUser != "admin" {
			t.Fatalf("expected username in context, got %q", gotUser)
		}
	})
}
