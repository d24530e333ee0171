package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"meetscribe/internal/api"
	"meetscribe/internal/config"
	"meetscribe/internal/dispatch"
	"meetscribe/internal/taskaccess"
	"meetscribe/internal/tasks"
)

const (
	probeTimeout   = 2 * time.Second
	requestTimeout = 15 * time.Second
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	cfg        *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.cfg = cfg
		c.configPath = resolved
	})
	return c.cfg, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiBaseURL returns the --api-url flag or a loopback URL for server.bind.
func (c *commandContext) apiBaseURL() string {
	if c.apiFlag != nil {
		if flag := strings.TrimSpace(*c.apiFlag); flag != "" {
			return strings.TrimRight(flag, "/")
		}
	}
	cfg := c.configValue()
	if cfg == nil {
		return ""
	}
	host, port, err := net.SplitHostPort(cfg.Server.Bind)
	if err != nil {
		return "http://" + cfg.Server.Bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (c *commandContext) apiClient() *api.Client {
	token := ""
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Server.APIToken
	}
	return api.NewClient(c.apiBaseURL(), token, requestTimeout)
}

// probeClient returns a client only when the daemon answers its health endpoint.
func (c *commandContext) probeClient(ctx context.Context) (*api.Client, error) {
	client := c.apiClient()
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := client.Health(probeCtx); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *commandContext) withAccess(ctx context.Context, fn func(taskaccess.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := taskaccess.OpenWithFallback(taskaccess.Openers{
		Probe:     func() (*api.Client, error) { return c.probeClient(ctx) },
		OpenStore: func() (*tasks.Store, error) { return tasks.Open(cfg) },
		OpenDispatcher: func() (dispatch.Dispatcher, error) {
			// Only a broker-backed dispatcher can accept work while the daemon is down.
			if cfg.Dispatch.Mode != config.DispatchModeAsynq {
				return nil, nil
			}
			return dispatch.New(cfg, nil)
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func daemonUnreachable(baseURL string, err error) error {
	return fmt.Errorf("daemon not reachable at %s (%v); start it with `meetscribe start`", baseURL, err)
}
