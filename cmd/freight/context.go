package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"freight/internal/config"
	"freight/internal/ipc"
)

// commandContext carries the persistent flag values and a lazily loaded
// config shared by every subcommand in one invocation.
type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, _, _, c.configErr = config.Load(c.configPath())
	})
	return c.config, c.configErr
}

// configValue returns the loaded config, or nil when loading failed.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// socketPath resolves the IPC socket: the --socket flag wins, then the
// config's log-dir socket, then a temp-dir fallback for unconfigured runs.
func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if flag := strings.TrimSpace(*c.socketFlag); flag != "" {
			return flag
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.IPCSocketPath()
	}
	return filepath.Join(os.TempDir(), "freightd.sock")
}

// withClient dials the daemon, runs fn, and closes the connection. Dial
// failures are translated into actionable messages.
func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) || os.IsNotExist(err) {
			return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `freight start`", socket)
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
		}
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer client.Close()
	return fn(client)
}

// shouldSkipConfig reports whether the command (or an ancestor) opted out
// of config loading, e.g. `freight init` before any config exists.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
