package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"piperd/internal/config"
)

const defaultConfig = `# Listen address and port. APP_PORT overrides the port.
host: "0.0.0.0"
port: 17100

# Directory containing Piper ONNX voice models (and their .onnx.json configs).
voices_dir: "./voices"

# Directory for cached audio.
cache_dir: "./cache"

# Cache sizing and expiry.
memory_cache_mb: 100
disk_cache_mb: 1024
cache_ttl: "24h"
cleanup_interval: "1h"

# Maximum concurrent piper processes.
workers: 4

# Per-request synthesis deadline.
synthesis_timeout: "60s"

# Google Cloud TTS (optional). The access token comes from the
# GOOGLE_TTS_ACCESS_TOKEN environment variable, never from this file.
# google_project: "my-project"
google_rpm: 60

# Logging.
debug: false
log_file: ""
`

var showConfig bool

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the piperd config file",
	Long:    "Edit the piperd config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.",
	Example: "piperd config\npiperd config --show\npiperd config --config path/to/piperd.yml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if showConfig {
			return printEffectiveConfig()
		}

		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("piperd", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

// printEffectiveConfig renders the merged configuration (file, environment,
// defaults) as YAML.
func printEffectiveConfig() error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to render config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

func init() {
	configCmd.Flags().BoolVar(&showConfig, "show", false, "print the effective configuration as YAML")
}
