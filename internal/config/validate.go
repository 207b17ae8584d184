package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate ensures the configuration is usable for running the daemon.
// Migration-specific requirements are checked by ValidateMigration when a
// run is requested.
func (c *Config) Validate() error {
	if _, ok := validLogFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Paths.ControlSocket == "" {
		return fmt.Errorf("paths.control_socket is required")
	}
	if c.Workers.LargeDirectorySize != "" {
		if _, err := humanize.ParseBytes(c.Workers.LargeDirectorySize); err != nil {
			return fmt.Errorf("workers.large_directory_size: %w", err)
		}
	}
	return nil
}

// ValidateMigration checks the fields a migration run depends on.
func (c *Config) ValidateMigration() error {
	if c.Paths.SourceDir == "" {
		return fmt.Errorf("paths.source_dir is required to start a migration")
	}
	if c.Paths.DestDir == "" {
		return fmt.Errorf("paths.dest_dir is required to start a migration")
	}
	info, err := os.Stat(c.Paths.SourceDir)
	if err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.source_dir: %s is not a directory", c.Paths.SourceDir)
	}
	return nil
}
