package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSendArmsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("category")
		if r.URL.Path != "/api/v1/providers/search/nearby" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/api/v1/"})
	c.SetToken("abc")

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Send(context.Background(), Request{
		Path:  "/providers/search/nearby",
		Query: url.Values{"category": {"plumber"}},
	}, &out)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !out.OK {
		t.Fatal("response not decoded")
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotQuery != "plumber" {
		t.Fatalf("category = %q", gotQuery)
	}

	c.SetToken("")
	if err := c.Send(context.Background(), Request{Path: "/x"}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("disarmed client sent Authorization %q", gotAuth)
	}
}

func TestSendErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field wins", http.StatusBadRequest, `{"error":"Worker unavailable","message":"other"}`, "Worker unavailable"},
		{"message field", http.StatusConflict, `{"message":"Slot taken"}`, "Slot taken"},
		{"no body", http.StatusInternalServerError, ``, ""},
		{"not json", http.StatusBadGateway, `<html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(Options{BaseURL: srv.URL}).Send(context.Background(), Request{Method: http.MethodPost, Path: "/bookings/create"}, nil)
			var he *HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("err = %v, want *HTTPError", err)
			}
			if he.Status != tt.status || he.Message != tt.want {
				t.Fatalf("got status %d message %q, want %d %q", he.Status, he.Message, tt.status, tt.want)
			}
			if MessageOf(err) != tt.want {
				t.Fatalf("MessageOf = %q", MessageOf(err))
			}
		})
	}
}

func TestSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := NewClient(Options{BaseURL: srv.URL}).Send(context.Background(), Request{Path: "/bookings/me"}, nil)
	if !IsNetwork(err) {
		t.Fatalf("err = %v, want network error", err)
	}
	if IsUnauthorized(err) {
		t.Fatal("network error reported as 401")
	}
}
