package config

const (
	defaultLogDir              = "~/.local/share/freight/logs"
	defaultControlSocket       = "/tmp/freight-daemon.sock"
	defaultScanTool            = "freight-scan"
	defaultMigrateTool         = "freight-migrate"
	defaultParallelWorkers     = 5
	defaultJobTimeoutSeconds   = 0
	defaultRsyncFlags          = "-avxHAX --numeric-ids --compress"
	defaultRetryAttempts       = 3
	defaultSocketRetryInterval = 10
	defaultLargeDirectorySize  = "3GB"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:        defaultLogDir,
			ControlSocket: defaultControlSocket,
		},
		Workers: Workers{
			ScanTool:            defaultScanTool,
			MigrateTool:         defaultMigrateTool,
			ParallelWorkers:     defaultParallelWorkers,
			JobTimeoutSeconds:   defaultJobTimeoutSeconds,
			RsyncFlags:          defaultRsyncFlags,
			RetryAttempts:       defaultRetryAttempts,
			SocketRetryInterval: defaultSocketRetryInterval,
			LargeDirectorySize:  defaultLargeDirectorySize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
