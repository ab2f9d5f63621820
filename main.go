// Package main implements the refinery CLI and server.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/refinery/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(describeError(err)))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "refinery",
	Short:         "Refine short texts with a proposer/critic loop over a language model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.toml, .yaml or .yml); defaults to $"+config.EnvConfigFile)
}

// loadConfig reads the config file named by --config, or by the environment.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// newLogger builds the JSON logger shared by echo and the service layers.
func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New("refinery")
	logger.SetLevel(parseLevel(cfg.LogLevel))
	return logger
}

func parseLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "info":
		return log.INFO
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.WARN
	}
}
