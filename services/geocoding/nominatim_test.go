package geocoding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flexify/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "flexify-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("q") == "Bandra West, Mumbai" {
				w.Write([]byte(`[{"lat":"19.0596","lon":"72.8295","display_name":"Bandra West, Mumbai, Maharashtra, India"}]`))
				return
			}
			w.Write([]byte(`[]`))
		case "/reverse":
			if r.URL.Query().Get("lat") == "0.5" {
				w.Write([]byte(`{"error":"Unable to geocode"}`))
				return
			}
			w.Write([]byte(`{"lat":"19.0596","lon":"72.8295","display_name":"Bandra West, Mumbai"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeocode(t *testing.T) {
	srv := newTestServer(t)
	n := NewNominatim(Options{BaseURL: srv.URL, UserAgent: "flexify-test", RequestsPerSecond: 100})

	c, name, err := n.Geocode(context.Background(), "Bandra West, Mumbai")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if c != (models.Coordinates{Lat: 19.0596, Lng: 72.8295}) || name != "Bandra West, Mumbai, Maharashtra, India" {
		t.Fatalf("Geocode = %+v, %q", c, name)
	}

	if _, _, err := n.Geocode(context.Background(), "Atlantis"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("unknown place: %v", err)
	}
}

func TestReverse(t *testing.T) {
	srv := newTestServer(t)
	n := NewNominatim(Options{BaseURL: srv.URL, UserAgent: "flexify-test", RequestsPerSecond: 100})

	name, err := n.Reverse(context.Background(), models.Coordinates{Lat: 19.0596, Lng: 72.8295})
	if err != nil || name != "Bandra West, Mumbai" {
		t.Fatalf("Reverse = %q, %v", name, err)
	}
	if _, err := n.Reverse(context.Background(), models.Coordinates{Lat: 0.5, Lng: 0.5}); !errors.Is(err, ErrNoResult) {
		t.Fatalf("unknown point: %v", err)
	}
	if _, err := n.Reverse(context.Background(), models.Coordinates{}); err == nil {
		t.Fatal("accepted zero coordinates")
	}
}

func TestRateLimited(t *testing.T) {
	srv := newTestServer(t)
	n := NewNominatim(Options{BaseURL: srv.URL, UserAgent: "flexify-test", RequestsPerSecond: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, _, err := n.Geocode(context.Background(), "Bandra West, Mumbai"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("3 requests at 20/s took %v", elapsed)
	}
}
