package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mateodaza/sippy-sub000/internal/api"
	"github.com/mateodaza/sippy-sub000/internal/service"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/parse":
			var req api.ParseRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(service.ResolutionView{
				Command:      "unknown",
				OriginalText: req.Text,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/normalize":
			var req api.NormalizeRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(api.NormalizeResponse{Canonical: "57" + req.Phone, OK: true})
		case r.URL.Path == "/api/users/573001234567":
			json.NewEncoder(w).Encode(service.LimitsView{
				SenderID:       "573001234567",
				Session:        "active",
				RemainingToday: "380.00",
			})
		case r.URL.Path == "/api/users/broken":
			http.Error(w, "database is locked", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Parse(t *testing.T) {
	client := NewClient(newAPIServer(t).URL)

	view, err := client.Parse(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if view.Command != "unknown" || view.OriginalText != "hola" {
		t.Errorf("Unexpected resolution: %+v", view)
	}
}

func TestClient_Normalize(t *testing.T) {
	client := NewClient(newAPIServer(t).URL)

	resp, err := client.Normalize(context.Background(), "3001234567", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !resp.OK || resp.Canonical != "573001234567" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestClient_Limits(t *testing.T) {
	client := NewClient(newAPIServer(t).URL)
	ctx := context.Background()

	view, err := client.Limits(ctx, "573001234567")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if view.RemainingToday != "380.00" {
		t.Errorf("Expected 380.00 remaining, got %s", view.RemainingToday)
	}

	if _, err := client.Limits(ctx, "573009999999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := client.Limits(ctx, "broken"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected a server error, got %v", err)
	}
}
