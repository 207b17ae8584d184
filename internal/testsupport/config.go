// Package testsupport provides helpers shared by freight's tests.
package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"freight/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "source")
	cfgVal.Paths.DestDir = filepath.Join(base, "dest")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ControlSocket = filepath.Join(base, "freight.sock")

	for _, dir := range []string{cfgVal.Paths.SourceDir, cfgVal.Paths.DestDir, cfgVal.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithJobTimeout sets the per-job deadline on the test config.
func WithJobTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.JobTimeoutSeconds = seconds
	}
}

// WithStubbedTools writes stub executables for the scan and migrate tools
// and points the config at them. The stubs exit with the given status and
// ignore their arguments.
func WithStubbedTools(exitCode int) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit " + strconv.Itoa(exitCode) + "\n")
		for _, name := range []string{"freight-scan", "freight-migrate"} {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.cfg.Workers.ScanTool = filepath.Join(binDir, "freight-scan")
		b.cfg.Workers.MigrateTool = filepath.Join(binDir, "freight-migrate")
	}
}

// WithToolScript installs the given shell script body as both worker tools
// and points the config at them.
func WithToolScript(script string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range []string{"freight-scan", "freight-migrate"} {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.cfg.Workers.ScanTool = filepath.Join(binDir, "freight-scan")
		b.cfg.Workers.MigrateTool = filepath.Join(binDir, "freight-migrate")
	}
}

// SourceDirs creates subdirectories under the config's source root.
func SourceDirs(t testing.TB, cfg *config.Config, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(cfg.Paths.SourceDir, name), 0o755); err != nil {
			t.Fatalf("mkdir source subdir %s: %v", name, err)
		}
	}
}
