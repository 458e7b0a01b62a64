package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	s.valid = true
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("GTS_TEST_NAME", "marina")
	p := writeFile(t, "name: ${GTS_TEST_NAME}\nport: 9090\n")

	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "marina" || cfg.Port != 9090 || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	p := writeFile(t, "name: only-name\n")
	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Port)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	var cfg sample
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, "port: [\n")
	var cfg sample
	if err := Load(p, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadIfExists_MissingFileUsesTarget(t *testing.T) {
	cfg := sample{Port: 8080}
	if err := LoadIfExists(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.valid {
		t.Error("defaults should still be validated")
	}

	bad := sample{}
	if err := LoadIfExists(filepath.Join(t.TempDir(), "absent.yaml"), &bad); err == nil {
		t.Error("invalid defaults should fail")
	}
}
