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

	"github.com/chatframe/voice/voice"
)

const defaultConfig = `# Remote synthesis provider
voice:
  # Provider endpoint
  provider_url: "https://tts.chatframe.dev"
  # API key (prefer the CHATVOICE_PROVIDER_KEY environment variable)
  # provider_key: "your-api-key-here"
  # Use blocking synthesis instead of async jobs
  sync_mode: false
  # Per-request HTTP timeout
  request_timeout: "30s"

  # Admission control
  requests_per_minute: 30
  burst: 5

  # Audio cache. Set cache_dir to persist artifacts across restarts.
  cache_max_bytes: 33554432
  cache_ttl: "24h"
  # cache_dir: "~/.cache/chatvoice"

  # Retry policy for transient provider failures
  max_attempts: 3
  backoff_base: "500ms"
  backoff_max: "8s"

  # Async job polling
  poll_interval: "1s"
  poll_max_attempts: 30
  poll_timeout: "5s"

  # Speech capture
  silence_timeout: "3s"

  # Text preprocessing
  max_text_len: 1200

  # Playback
  sample_rate: 22050
  volume: 1.0

  # Default voice parameters
  expressiveness: 0.5
  guidance_weight: 0.5
  speed: 1.0
  # profile: "warm-narrator"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the chatvoice config file",
	Long:    paragraph(fmt.Sprintf("\n%s the chatvoice config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("chatvoice config\nchatvoice config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("chatvoice", configFile)
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

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := voice.LoadConfigFromViper()
		if err != nil {
			return err
		}
		// Never echo credentials.
		cfg.ProviderKey = ""
		out, err := yaml.Marshal(map[string]voice.Config{"voice": cfg})
		if err != nil {
			return fmt.Errorf("unable to render configuration: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
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
