package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("CREDENTIALS_BACKEND", "")
	t.Setenv("SEARCH_DEBOUNCE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.API.ResolveBaseURL(); got != "http://localhost:5001/api" {
		t.Fatalf("base url %q", got)
	}
	if cfg.Desk.SearchDebounce != 300*time.Millisecond {
		t.Fatalf("debounce %v", cfg.Desk.SearchDebounce)
	}
	if cfg.Desk.LowStockThreshold != 10 {
		t.Fatalf("threshold %d", cfg.Desk.LowStockThreshold)
	}
	if cfg.Credentials.Backend != CredentialsFile {
		t.Fatalf("backend %q", cfg.Credentials.Backend)
	}
}

func TestResolveBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  APIConfig
		want string
	}{
		{"explicit wins", APIConfig{BaseURL: "http://x/api/", Environment: "production", ProductionURL: "http://p/api"}, "http://x/api"},
		{"production", APIConfig{Environment: "production", ProductionURL: "http://192.168.1.29:5001/api", LocalURL: "http://localhost:5001/api"}, "http://192.168.1.29:5001/api"},
		{"development", APIConfig{Environment: "development", ProductionURL: "http://p/api", LocalURL: "http://localhost:5001/api"}, "http://localhost:5001/api"},
	}
	for _, tc := range cases {
		if got := tc.cfg.ResolveBaseURL(); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestLoad_RejectsMongoBackendWithoutURI(t *testing.T) {
	t.Setenv("CREDENTIALS_BACKEND", "mongodb")
	t.Setenv("MONGODB_URI", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("SEARCH_DEBOUNCE", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected parse error")
	}
}
