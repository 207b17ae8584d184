package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"freight/internal/config"
)

func TestLoadDefaultsWhenNoFileExists(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd returned error: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origWD); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Paths.ControlSocket != "/tmp/freight-daemon.sock" {
		t.Fatalf("unexpected control socket: %q", cfg.Paths.ControlSocket)
	}
	wantLogDir := filepath.Join(tempHome, ".local", "share", "freight", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Workers.ScanTool != "freight-scan" || cfg.Workers.MigrateTool != "freight-migrate" {
		t.Fatalf("unexpected tool defaults: %+v", cfg.Workers)
	}
	if cfg.Workers.JobTimeoutSeconds != 0 {
		t.Fatalf("job timeout should default to disabled, got %d", cfg.Workers.JobTimeoutSeconds)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadExplicitPathMissingFileFails(t *testing.T) {
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[logging]\nformat = \"xml\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestLoadRejectsBadLargeDirectorySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[workers]\nlarge_directory_size = \"many bytes\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "large_directory_size") {
		t.Fatalf("expected large_directory_size error, got %v", err)
	}
}

func TestInitProjectCreatesMarkerAndConfig(t *testing.T) {
	source := t.TempDir()
	cfgPath, err := config.InitProject(source)
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if cfgPath != filepath.Join(source, ".freight", "config.toml") {
		t.Fatalf("unexpected config path: %q", cfgPath)
	}
	if _, err := os.Stat(filepath.Join(source, ".freight", ".freight-root")); err != nil {
		t.Fatalf("missing project marker: %v", err)
	}

	cfg, _, err := config.LoadOrCreate(source, "/mnt/dest")
	if err != nil {
		t.Fatalf("LoadOrCreate after init: %v", err)
	}
	if cfg.Paths.SourceDir != source {
		t.Fatalf("unexpected source dir: %q", cfg.Paths.SourceDir)
	}
	// The placeholder destination from init is kept; the CLI argument only
	// fills an empty field.
	if cfg.Paths.DestDir != "/path/to/destination" {
		t.Fatalf("unexpected dest dir: %q", cfg.Paths.DestDir)
	}
}

func TestLoadOrCreateWritesProjectConfig(t *testing.T) {
	source := t.TempDir()
	cfg, cfgPath, err := config.LoadOrCreate(source, "/mnt/dest")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if cfg.Paths.DestDir != "/mnt/dest" {
		t.Fatalf("unexpected dest dir: %q", cfg.Paths.DestDir)
	}

	// A second call reads the same file back.
	again, _, err := config.LoadOrCreate(source, "/ignored")
	if err != nil {
		t.Fatalf("LoadOrCreate reload: %v", err)
	}
	if again.Paths.DestDir != "/mnt/dest" {
		t.Fatalf("reload lost dest dir: %q", again.Paths.DestDir)
	}
}

func TestValidateMigrationRequiresPaths(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateMigration(); err == nil {
		t.Fatal("expected error without source/dest")
	}

	cfg.Paths.SourceDir = t.TempDir()
	cfg.Paths.DestDir = "/mnt/dest"
	if err := cfg.ValidateMigration(); err != nil {
		t.Fatalf("ValidateMigration: %v", err)
	}
}
