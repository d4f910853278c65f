package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeEnvelope(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "data": data})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /datasets", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, []map[string]any{
			{"id": 2, "name": "second", "uploaded_at": "2024-03-01T10:00:00Z", "total_count": 3, "file_name": "b.csv"},
			{"id": 1, "name": "first", "uploaded_at": "2024-03-01T09:00:00Z", "total_count": 1, "file_name": "a.csv"},
		})
	})
	mux.HandleFunc("GET /datasets/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "2" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"dataset not found"}`)
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"dataset_id":        2,
			"dataset_name":      "second",
			"total_count":       3,
			"averages":          map[string]float64{"flowrate": 10, "pressure": 0, "temperature": 0},
			"samples":           map[string]int{"flowrate": 3, "pressure": 1, "temperature": 0},
			"type_distribution": map[string]int{"Pump": 2, "Valve": 1},
		})
	})
	mux.HandleFunc("GET /datasets/{id}/equipment", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, []map[string]any{
			{"id": 1, "equipment_name": "P-1", "equipment_type": "Pump", "flowrate": 10, "pressure": nil, "temperature": 100},
		})
	})
	mux.HandleFunc("GET /datasets/{id}/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=equipment_report_2.pdf")
		_, _ = io.WriteString(w, "%PDF-1.3 fake")
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"no file provided"}`)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)

		writeEnvelope(w, http.StatusCreated, map[string]any{
			"id":          9,
			"name":        r.FormValue("name"),
			"total_count": len(content),
			"file_name":   header.Filename,
		})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.Header().Set("WWW-Authenticate", `Basic realm="equipment"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"authentication credentials were not provided or are invalid"}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, password string) *Client {
	t.Helper()

	c, err := New(srv.URL+"/", "admin", password, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	return c
}

func TestClient_Datasets(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv, "secret")

	got, err := c.Datasets(context.Background())
	if err != nil {
		t.Fatalf("Datasets() err = %v", err)
	}

	var names []string
	for _, d := range got {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"second", "first"}, names); diff != "" {
		t.Fatalf("Datasets() mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Summary(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv, "secret")

	got, err := c.Summary(context.Background(), 2)
	if err != nil {
		t.Fatalf("Summary() err = %v", err)
	}

	if avg, ok := got.Average("pressure"); !ok || avg != 0 {
		t.Fatalf("Average(pressure) = %v/%v, want a real zero", avg, ok)
	}
	if _, ok := got.Average("temperature"); ok {
		t.Fatal("Average(temperature) expected no samples")
	}

	_, err = c.Summary(context.Background(), 404)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Summary() err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "dataset not found" {
		t.Fatalf("Summary() api error = %+v", apiErr)
	}
}

func TestClient_Equipment(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv, "secret")

	rows, err := c.Equipment(context.Background(), 2)
	if err != nil {
		t.Fatalf("Equipment() err = %v", err)
	}
	if len(rows) != 1 || rows[0].Pressure != nil || rows[0].Temperature == nil || *rows[0].Temperature != 100 {
		t.Fatalf("Equipment() = %+v", rows)
	}
}

func TestClient_Upload(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv, "secret")

	path := filepath.Join(t.TempDir(), "plant.csv")
	if err := os.WriteFile(path, []byte("abc"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	got, err := c.Upload(context.Background(), path, " Morning ")
	if err != nil {
		t.Fatalf("Upload() err = %v", err)
	}
	if got.ID != 9 || got.Name != "Morning" || got.FileName != "plant.csv" || got.TotalCount != 3 {
		t.Fatalf("Upload() = %+v", got)
	}

	if _, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), ""); err == nil {
		t.Fatal("Upload() expected error for a missing file")
	}
}

func TestClient_Report(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv, "secret")

	got, err := c.Report(context.Background(), 2)
	if err != nil {
		t.Fatalf("Report() err = %v", err)
	}
	if got.Filename != "equipment_report_2.pdf" || string(got.Content) != "%PDF-1.3 fake" {
		t.Fatalf("Report() = %q %q", got.Filename, got.Content)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv, "wrong")

	_, err := c.Datasets(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Datasets() err = %v, want ErrUnauthorized", err)
	}
}

func TestNew_RejectsBadServer(t *testing.T) {
	for _, server := range []string{"ftp://example.com", "://bad"} {
		if _, err := New(server, "u", "p"); err == nil {
			t.Fatalf("New(%q) expected error", server)
		}
	}

	c, err := New("", "u", "p")
	if err != nil {
		t.Fatalf("New(\"\") err = %v", err)
	}
	if c.baseURL.String() != DefaultServer {
		t.Fatalf("New(\"\") base = %q, want %q", c.baseURL, DefaultServer)
	}
}
