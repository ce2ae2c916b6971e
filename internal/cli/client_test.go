package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewClientNormalizesServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		server  string
		want    string
		wantErr bool
	}{
		{name: "bare host port", server: "127.0.0.1:7333", want: "http://127.0.0.1:7333"},
		{name: "http url", server: "http://localhost:7333", want: "http://localhost:7333"},
		{name: "trailing slash", server: "http://localhost:7333/", want: "http://localhost:7333"},
		{name: "https url", server: "https://portside.example.com", want: "https://portside.example.com"},
		{name: "empty", server: "  ", wantErr: true},
		{name: "bad scheme", server: "ftp://host", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewClient(tt.server)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewClient(%q) = %q, want error", tt.server, c.baseURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient(%q): %v", tt.server, err)
			}
			if c.baseURL != tt.want {
				t.Fatalf("baseURL = %q, want %q", c.baseURL, tt.want)
			}
		})
	}
}

func TestClientInfo(t *testing.T) {
	t.Parallel()

	attemptID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/containers/info" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("ref"); got != "a/b/proj" {
			t.Errorf("ref = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"attempt_id": attemptID.String(),
				"task_id":    uuid.NewString(),
				"project_id": uuid.NewString(),
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	info, err := c.Info(context.Background(), "a/b/proj")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.AttemptID != attemptID {
		t.Fatalf("attempt id = %s, want %s", info.AttemptID, attemptID)
	}
}

func TestClientSurfacesServerMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "attempt has no container yet",
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Services(context.Background(), uuid.NewString())
	if err == nil {
		t.Fatal("Services succeeded, want error")
	}
	if !strings.Contains(err.Error(), "attempt has no container yet") {
		t.Fatalf("error = %v, want server message", err)
	}
}
