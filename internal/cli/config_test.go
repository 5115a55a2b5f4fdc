package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), configFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Registry != pipeline.DefaultRegistry {
		t.Errorf("Registry = %q, want %q", cfg.Registry, pipeline.DefaultRegistry)
	}
	if cfg.Lockfile != defaultLockfile {
		t.Errorf("Lockfile = %q, want %q", cfg.Lockfile, defaultLockfile)
	}
}

func TestLoadConfigFromXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	dir := filepath.Join(home, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), []byte(`registry = "https://npm.example.com"`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Registry != "https://npm.example.com" {
		t.Errorf("Registry = %q", cfg.Registry)
	}
}

func TestLoadConfigAllKeys(t *testing.T) {
	path := writeConfig(t, `
registry    = "https://npm.example.com/repository/npm-proxy"
lockfile    = "frontend/package-lock.json"
concurrency = 20
attempts    = 3
timeout     = "30s"
algorithm   = "sha512"
user_agent  = "ci-mirror/1.0"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}

	want := Config{
		Registry:    "https://npm.example.com/repository/npm-proxy",
		Lockfile:    "frontend/package-lock.json",
		Concurrency: 20,
		Attempts:    3,
		Timeout:     30 * time.Second,
		Algorithm:   "sha512",
		UserAgent:   "ci-mirror/1.0",
	}
	if cfg != want {
		t.Errorf("loadConfig() = %+v, want %+v", cfg, want)
	}

	opts := cfg.pipelineOptions()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("config should produce valid options: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `registry = `},
		{"unknown key", `mirror = "https://npm.example.com"`},
		{"wrong type", `concurrency = "many"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content))
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("loadConfig() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoadConfigExplicitMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Error("an explicitly named config file must exist")
	}
}

func TestFlagOverridesConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := New(os.Stderr, LogInfo)
	c.configPath = writeConfig(t, "registry = \"https://from-config.example.com\"\nlockfile = \"from-config.json\"\n")
	cmd := c.updateCommand()
	if err := cmd.Flags().Set("registry", "https://from-flag.example.com"); err != nil {
		t.Fatal(err)
	}

	cfg, err := c.resolveConfig(cmd, []string{"from-args.json"})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if cfg.Registry != "https://from-flag.example.com" {
		t.Errorf("Registry = %q, flag should win", cfg.Registry)
	}
	if cfg.Lockfile != "from-args.json" {
		t.Errorf("Lockfile = %q, argument should win", cfg.Lockfile)
	}
}
