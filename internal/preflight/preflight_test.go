package preflight_test

import (
	"path/filepath"
	"testing"

	"freight/internal/preflight"
	"freight/internal/testsupport"
)

func resultByName(t *testing.T, results []preflight.Result, name string) preflight.Result {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result named %q in %v", name, results)
	return preflight.Result{}
}

func TestRunAllPassesWithHealthySetup(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(0))

	results := preflight.RunAll(cfg)
	for _, name := range []string{"Source directory", "Destination directory", "Log directory", "Scan tool", "Migrate tool"} {
		r := resultByName(t, results, name)
		if !r.Passed {
			t.Errorf("%s check failed: %s", name, r.Detail)
		}
	}
}

func TestRunAllReportsMissingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools(0))
	cfg.Paths.SourceDir = filepath.Join(t.TempDir(), "absent")

	results := preflight.RunAll(cfg)
	r := resultByName(t, results, "Source directory")
	if r.Passed {
		t.Fatal("expected missing source directory to fail the check")
	}
	if r.Detail == "" {
		t.Fatal("expected detail message for failing check")
	}
}

func TestRunAllReportsMissingTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workers.ScanTool = "clearly-not-present-scan-tool"
	cfg.Workers.MigrateTool = ""

	results := preflight.RunAll(cfg)
	scan := resultByName(t, results, "Scan tool")
	if scan.Passed {
		t.Fatal("expected missing scan tool to fail the check")
	}
	migrate := resultByName(t, results, "Migrate tool")
	if migrate.Passed || migrate.Detail != "command not configured" {
		t.Fatalf("expected unconfigured migrate tool failure, got %+v", migrate)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := preflight.RunAll(nil); results != nil {
		t.Fatalf("expected nil results for nil config, got %v", results)
	}
}
