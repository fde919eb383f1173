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

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/ipc"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) != "" {
		return *c.socketFlag
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return socketPathFor(cfg)
	}
	return filepath.Join(os.TempDir(), "vtd.sock")
}

func socketPathFor(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "vtd.sock")
}

// dialClient connects to the running daemon, or returns nil when no daemon
// is listening. Commands that can work directly against the store treat a
// nil client as "daemon not running".
func (c *commandContext) dialClient() *ipc.Client {
	client, err := ipc.Dial(c.socketPath())
	if err != nil {
		return nil
	}
	return client
}

// requireClient connects to the running daemon or fails with a hint.
func (c *commandContext) requireClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		switch {
		case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
			return nil, fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `vtd run`", socket)
		case errors.Is(err, syscall.ECONNREFUSED):
			return nil, fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
		default:
			return nil, fmt.Errorf("connect to daemon: %w", err)
		}
	}
	return client, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
