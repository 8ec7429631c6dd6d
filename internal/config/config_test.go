package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POS_CONFIG_FILE", "")
	t.Setenv("RECEIPT_PREFIX", "")
	t.Setenv("RECEIPT_START", "")
	t.Setenv("REGISTER_ID", "")
	t.Setenv("PORT", "")

	cfg := Load()
	if cfg.ReceiptPrefix != "KS-" || cfg.ReceiptStart != 10001 {
		t.Fatalf("receipt defaults = %q/%d", cfg.ReceiptPrefix, cfg.ReceiptStart)
	}
	if cfg.RegisterID != "main" {
		t.Fatalf("register default = %q", cfg.RegisterID)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %q", cfg.Address())
	}
}

func TestLoadReadsConfigFileUnderEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pos.env")
	if err := os.WriteFile(path, []byte("RECEIPT_PREFIX=FIL-\nREGISTER_ID=till-2\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("POS_CONFIG_FILE", path)
	t.Setenv("RECEIPT_PREFIX", "")
	t.Setenv("REGISTER_ID", "till-9")

	cfg := Load()
	if cfg.ReceiptPrefix != "FIL-" {
		t.Fatalf("prefix = %q, want value from file", cfg.ReceiptPrefix)
	}
	if cfg.RegisterID != "till-9" {
		t.Fatalf("register = %q, environment should win over file", cfg.RegisterID)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{BusinessTimezone: "UTC"}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("location = %v, %v", loc, err)
	}
	if _, err := (Config{BusinessTimezone: "Nowhere/Atlantis"}).Location(); err == nil {
		t.Fatalf("expected unknown timezone to fail")
	}
}
