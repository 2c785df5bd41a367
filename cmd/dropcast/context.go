package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dropcast/internal/api"
	"dropcast/internal/config"
)

// errDaemonUnavailable marks failures where no daemon API could be reached.
var errDaemonUnavailable = errors.New("connect to daemon")

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
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
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) apiBind() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	bind := c.apiBind()
	if bind == "" {
		return fmt.Errorf("%w: the API is disabled; set paths.api_bind or pass --api", errDaemonUnavailable)
	}
	client, err := api.NewClient(bind)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	if cfg := c.configValue(); cfg != nil {
		client.WithToken(cfg.Paths.APIToken)
	}
	return wrapAPIError(fn(client), bind)
}

func wrapAPIError(err error, bind string) error {
	if err == nil {
		return nil
	}
	if api.IsUnavailable(err) {
		return fmt.Errorf("%w: nothing is listening on %s; start the daemon with `dropcast run`", errDaemonUnavailable, bind)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
