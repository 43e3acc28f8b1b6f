package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirWithConfig writes yamlContent as config.yaml in a temp directory and
// makes it the working directory for the test.
func chdirWithConfig(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdirWithConfig(t, `
port: "3470"
env: "test"
database:
  host: "db.example.com"
  database: "atlasform_engine_test"
`)

	os.Unsetenv("PGHOST")
	os.Unsetenv("BASE_URL")
	t.Setenv("PORT", "4470")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4470" {
		t.Errorf("expected Port=4470 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:4470" {
		t.Errorf("expected BaseURL=http://localhost:4470 (auto-derived from PORT), got %s", cfg.BaseURL)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirWithConfig(t, `
env: "test"
`)

	os.Unsetenv("PORT")
	os.Unsetenv("BASE_URL")
	os.Unsetenv("IMPORT_MAX_ROWS")
	os.Unsetenv("REDIS_HOST")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "3470" {
		t.Errorf("expected default Port=3470, got %s", cfg.Port)
	}
	if cfg.Import.MaxRows != 50000 {
		t.Errorf("expected default Import.MaxRows=50000, got %d", cfg.Import.MaxRows)
	}
	if cfg.Redis.Host != "" {
		t.Errorf("expected Redis disabled by default, got host %s", cfg.Redis.Host)
	}
	if cfg.Redis.VersionTTLMinutes != 60 {
		t.Errorf("expected default Redis.VersionTTLMinutes=60, got %d", cfg.Redis.VersionTTLMinutes)
	}
}

func TestLoad_JWKSEndpoints(t *testing.T) {
	chdirWithConfig(t, `
env: "test"
`)

	t.Setenv("JWKS_ENDPOINTS", "https://a.example.com=https://a.example.com/jwks.json,https://b.example.com=https://b.example.com/jwks.json")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Auth.JWKSEndpoints) != 2 {
		t.Fatalf("expected 2 JWKS endpoints, got %d", len(cfg.Auth.JWKSEndpoints))
	}
	if cfg.Auth.JWKSEndpoints["https://a.example.com"] != "https://a.example.com/jwks.json" {
		t.Errorf("unexpected endpoint mapping: %v", cfg.Auth.JWKSEndpoints)
	}
}

func TestLoad_TLSValidation(t *testing.T) {
	chdirWithConfig(t, `
env: "test"
tls_cert_path: "/nonexistent/cert.pem"
`)

	os.Unsetenv("TLS_KEY_PATH")

	if _, err := Load("dev"); err == nil {
		t.Error("expected error when only tls_cert_path is set")
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "atlasform",
		Password: "secret",
		Database: "atlasform_engine",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=atlasform password=secret dbname=atlasform_engine sslmode=disable"
	if got := cfg.ConnectionString(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}
