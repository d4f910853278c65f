package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/client"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /datasets", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok","data":[{"id":7,"name":"Morning run","uploaded_at":"2024-03-01T09:05:00Z","total_count":2,"file_name":"plant.csv"}]}`)
	})
	mux.HandleFunc("GET /datasets/7/summary", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok","data":{"dataset_id":7,"dataset_name":"Morning run","total_count":2,
			"averages":{"flowrate":110,"pressure":0,"temperature":0},
			"samples":{"flowrate":2,"pressure":1,"temperature":0},
			"type_distribution":{"Pump":1,"Valve":1}}}`)
	})
	mux.HandleFunc("GET /datasets/7/equipment", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok","data":[
			{"id":1,"equipment_name":"P-101","equipment_type":"Pump","flowrate":100,"pressure":0,"temperature":null},
			{"id":2,"equipment_name":"V-201","equipment_type":"Valve","flowrate":120,"pressure":null,"temperature":null}]}`)
	})
	mux.HandleFunc("GET /datasets/7/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", "attachment; filename=equipment_report_7.pdf")
		_, _ = io.WriteString(w, "%PDF-1.3")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"dataset not found"}`)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"authentication credentials were not provided or are invalid"}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func authArgs(srv *httptest.Server, args ...string) []string {
	return append([]string{"--server", srv.URL, "-u", "admin", "-p", "admin123"}, args...)
}

func TestDatasetsCommand(t *testing.T) {
	srv := newAPIServer(t)

	out, err := run(t, "", authArgs(srv, "datasets")...)
	if err != nil {
		t.Fatalf("datasets err = %v", err)
	}
	for _, want := range []string{"ID", "Morning run", "plant.csv"} {
		if !strings.Contains(out, want) {
			t.Fatalf("datasets output missing %q:\n%s", want, out)
		}
	}
}

func TestShowCommand(t *testing.T) {
	srv := newAPIServer(t)

	out, err := run(t, "", authArgs(srv, "show", "7")...)
	if err != nil {
		t.Fatalf("show err = %v", err)
	}

	for _, want := range []string{"Morning run (7)", "110.00", "P-101", "V-201", "Valve"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
	// temperature has no samples, pressure has a real zero average
	if !strings.Contains(out, "temperature  n/a") || !strings.Contains(out, "pressure     0.00") {
		t.Fatalf("show output does not separate no data from zero:\n%s", out)
	}
}

func TestPDFCommand(t *testing.T) {
	srv := newAPIServer(t)
	target := filepath.Join(t.TempDir(), "out", "report.pdf")

	if _, err := run(t, "", authArgs(srv, "pdf", "7", "-o", target)...); err != nil {
		t.Fatalf("pdf err = %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(content) != "%PDF-1.3" {
		t.Fatalf("report content = %q", content)
	}
}

func TestCommands_Errors(t *testing.T) {
	srv := newAPIServer(t)

	tests := []struct {
		name string
		args []string
		want func(error) bool
	}{
		{
			name: "unknown dataset",
			args: authArgs(srv, "summary", "99"),
			want: func(err error) bool {
				var apiErr *client.APIError
				return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
			},
		},
		{
			name: "invalid id",
			args: authArgs(srv, "rows", "abc"),
			want: func(err error) bool { return err != nil && strings.Contains(err.Error(), "invalid dataset id") },
		},
		{
			name: "wrong password",
			args: []string{"--server", srv.URL, "-u", "admin", "-p", "nope", "datasets"},
			want: func(err error) bool { return errors.Is(err, client.ErrUnauthorized) },
		},
		{
			name: "no credentials without a terminal",
			args: []string{"--server", srv.URL, "datasets"},
			want: func(err error) bool { return errors.Is(err, errNoTerminal) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if !tt.want(err) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestCredentialsFromEnvironment(t *testing.T) {
	srv := newAPIServer(t)
	t.Setenv("EQUIPCTL_SERVER", srv.URL)
	t.Setenv("EQUIPCTL_USERNAME", "admin")
	t.Setenv("EQUIPCTL_PASSWORD", "admin123")

	if _, err := run(t, "", "datasets"); err != nil {
		t.Fatalf("datasets err = %v", err)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := run(t, "s3cret\n", "hash-password", "--cost", "4")
	if err != nil {
		t.Fatalf("hash-password err = %v", err)
	}

	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("hash %q does not match: %v", hash, err)
	}

	if _, err := run(t, "\n", "hash-password"); err == nil {
		t.Fatal("expected error for an empty password")
	}
}
