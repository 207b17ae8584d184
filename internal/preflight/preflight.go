package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"freight/internal/config"
)

// Result reports the outcome of a single preflight check. Optional
// checks failing should not block a run.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every applicable check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Source directory", cfg.Paths.SourceDir),
		CheckDirectoryAccess("Destination directory", cfg.Paths.DestDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	return append(results, CheckTools(cfg)...)
}

// CheckTools verifies the worker binaries a run launches can be resolved.
// rsync is optional because only rsync-based migrate tools need it.
func CheckTools(cfg *config.Config) []Result {
	return []Result{
		checkBinary("Scan tool", cfg.Workers.ScanTool, false),
		checkBinary("Migrate tool", cfg.Workers.MigrateTool, false),
		checkBinary("rsync", "rsync", true),
	}
}

func checkBinary(name, command string, optional bool) Result {
	result := Result{Name: name, Optional: optional}
	command = strings.TrimSpace(command)
	if command == "" {
		result.Detail = "command not configured"
		return result
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", command)
		return result
	}
	result.Passed = true
	result.Detail = resolved
	return result
}

// CheckDirectoryAccess verifies the path is an existing directory this
// process can read, write, and traverse.
func CheckDirectoryAccess(name, path string) Result {
	result := Result{Name: name}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		result.Detail = path + " does not exist"
	case err != nil:
		result.Detail = fmt.Sprintf("%s: stat failed: %v", path, err)
	case !info.IsDir():
		result.Detail = path + " is not a directory"
	default:
		if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			result.Detail = fmt.Sprintf("%s: insufficient permissions: %v", path, err)
			return result
		}
		result.Passed = true
		result.Detail = path + " (read/write ok)"
	}
	return result
}
