package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkers()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir != "" {
		if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
			return fmt.Errorf("paths.source_dir: %w", err)
		}
	}
	if c.Paths.DestDir != "" {
		if c.Paths.DestDir, err = expandPath(c.Paths.DestDir); err != nil {
			return fmt.Errorf("paths.dest_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ControlSocket) == "" {
		c.Paths.ControlSocket = defaultControlSocket
	}
	if c.Paths.ControlSocket, err = expandPath(c.Paths.ControlSocket); err != nil {
		return fmt.Errorf("paths.control_socket: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkers() {
	if strings.TrimSpace(c.Workers.ScanTool) == "" {
		c.Workers.ScanTool = defaultScanTool
	}
	if strings.TrimSpace(c.Workers.MigrateTool) == "" {
		c.Workers.MigrateTool = defaultMigrateTool
	}
	if c.Workers.ParallelWorkers <= 0 {
		c.Workers.ParallelWorkers = defaultParallelWorkers
	}
	if c.Workers.JobTimeoutSeconds < 0 {
		c.Workers.JobTimeoutSeconds = 0
	}
	if c.Workers.RetryAttempts < 0 {
		c.Workers.RetryAttempts = 0
	}
	if c.Workers.SocketRetryInterval <= 0 {
		c.Workers.SocketRetryInterval = defaultSocketRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
