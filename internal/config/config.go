package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ProjectDirName is the per-source metadata directory.
const ProjectDirName = ".freight"

// rootMarkerName marks an initialized migration project.
const rootMarkerName = ".freight-root"

// Paths contains directory and socket configuration.
type Paths struct {
	SourceDir     string `toml:"source_dir"`
	DestDir       string `toml:"dest_dir"`
	LogDir        string `toml:"log_dir"`
	ControlSocket string `toml:"control_socket"`
}

// Workers configures the external scan and migrate tools.
type Workers struct {
	ScanTool            string `toml:"scan_tool"`
	MigrateTool         string `toml:"migrate_tool"`
	ParallelWorkers     int    `toml:"parallel_workers"`
	JobTimeoutSeconds   int    `toml:"job_timeout_seconds"`
	RsyncFlags          string `toml:"rsync_flags"`
	RetryAttempts       int    `toml:"retry_attempts"`
	SocketRetryInterval int    `toml:"socket_retry_interval"`
	LargeDirectorySize  string `toml:"large_directory_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for freight.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Workers Workers `toml:"workers"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the fallback configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/freight/config.toml")
}

// ProjectConfigPath returns the config location inside a source tree.
func ProjectConfigPath(source string) string {
	return filepath.Join(source, ProjectDirName, "config.toml")
}

// Load locates, parses, and validates a configuration file. An empty path
// selects ./.freight/config.toml when present, then the default location.
// The returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// LoadOrCreate reads the project config under source, creating it with the
// given destination when absent. This is how 'freight migrate SOURCE DEST'
// picks up per-project settings.
func LoadOrCreate(source, dest string) (*Config, string, error) {
	absSource, err := filepath.Abs(strings.TrimSpace(source))
	if err != nil {
		return nil, "", fmt.Errorf("resolve source path: %w", err)
	}

	cfgPath := ProjectConfigPath(absSource)
	cfg := Default()
	cfg.Paths.SourceDir = absSource
	cfg.Paths.DestDir = strings.TrimSpace(dest)

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		if err := decodeFile(cfgPath, &cfg); err != nil {
			return nil, "", err
		}
		// The project file wins, but command-line paths fill any gaps.
		if strings.TrimSpace(cfg.Paths.SourceDir) == "" {
			cfg.Paths.SourceDir = absSource
		}
		if strings.TrimSpace(cfg.Paths.DestDir) == "" {
			cfg.Paths.DestDir = strings.TrimSpace(dest)
		}
	} else if err := cfg.Save(cfgPath); err != nil {
		return nil, "", err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, cfgPath, nil
}

// Save writes the configuration as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// InitProject prepares a source tree for migration: the .freight metadata
// directory, the root marker, and a config file with a placeholder
// destination for the operator to edit.
func InitProject(source string) (string, error) {
	absSource, err := filepath.Abs(strings.TrimSpace(source))
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	projectDir := filepath.Join(absSource, ProjectDirName)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return "", fmt.Errorf("create project directory %s: %w", projectDir, err)
	}
	marker := filepath.Join(projectDir, rootMarkerName)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return "", fmt.Errorf("create project marker %s: %w", marker, err)
	}

	cfgPath := ProjectConfigPath(absSource)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	cfg := Default()
	cfg.Paths.SourceDir = absSource
	cfg.Paths.DestDir = "/path/to/destination"
	if err := cfg.Save(cfgPath); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	if c.Paths.LogDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

// IPCSocketPath is where the daemon exposes its CLI control socket.
func (c *Config) IPCSocketPath() string {
	return filepath.Join(c.Paths.LogDir, "freightd.sock")
}

// LogFilePath is the daemon's primary log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "freight.log")
}

// SampleConfig returns the annotated sample configuration text.
func SampleConfig() string { return sampleConfig }

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		expanded, err := expandPath(trimmed)
		if err != nil {
			return "", false, err
		}
		_, statErr := os.Stat(expanded)
		if statErr != nil && os.IsNotExist(statErr) {
			return expanded, false, fmt.Errorf("config file not found: %s", expanded)
		}
		return expanded, statErr == nil, statErr
	}

	if cwd, err := os.Getwd(); err == nil {
		local := ProjectConfigPath(cwd)
		if _, statErr := os.Stat(local); statErr == nil {
			return local, true, nil
		}
	}

	fallback, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, statErr := os.Stat(fallback); statErr == nil {
		return fallback, true, nil
	}
	return fallback, false, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
