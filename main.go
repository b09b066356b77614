// Package main provides the entry point for the chatvoice CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chatframe/voice/internal/playback"
	"github.com/chatframe/voice/internal/vtypes"
	"github.com/chatframe/voice/voice"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile     string
	syncMode       bool
	voiceProfile   string
	speed          float64
	expressiveness float64
	guidance       float64
	priority       int
	noCache        bool

	rootCmd = &cobra.Command{
		Use:   "chatvoice",
		Short: "Speak chat responses out loud",
		Long: paragraph(
			fmt.Sprintf("\nTurn chat responses into %s: synthesis, caching, rate limiting and playback against a remote voice provider.", keyword("spoken audio")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
	}
)

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))

	sayCmd.Flags().BoolVar(&syncMode, "sync", false, "use blocking synthesis instead of async jobs")
	sayCmd.Flags().StringVar(&voiceProfile, "profile", "", "voice profile identifier")
	sayCmd.Flags().Float64Var(&speed, "speed", 1.0, "speech speed (0.5 to 2.0)")
	sayCmd.Flags().Float64Var(&expressiveness, "expressiveness", 0.5, "expressiveness (0.0 to 1.0)")
	sayCmd.Flags().Float64Var(&guidance, "guidance", 0.5, "guidance weight (0.0 to 1.0)")
	sayCmd.Flags().IntVar(&priority, "priority", 0, "playback priority (higher plays first)")
	sayCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the audio cache")

	_ = viper.BindPFlag("voice.sync_mode", sayCmd.Flags().Lookup("sync"))

	voice.SetDefaults()

	rootCmd.AddCommand(sayCmd, healthCmd, cacheCmd, configCmd, manCmd)
}

var sayCmd = &cobra.Command{
	Use:   "say [TEXT]",
	Short: "Synthesize text and play it",
	Long:  paragraph("\nSynthesize TEXT and play it through the default audio device. Reads from stdin when TEXT is omitted or is -."),
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textFromArgs(args)
		if err != nil {
			return err
		}

		cfg, err := voice.LoadConfigFromViper()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("sync") {
			cfg.SyncMode = syncMode
		}
		if noCache {
			cfg.CacheDir = ""
			cfg.CacheMaxBytes = 0
		}

		settings := vtypes.VoiceSettings{
			Expressiveness: expressiveness,
			GuidanceWeight: guidance,
			Speed:          speed,
			VoiceProfile:   voiceProfile,
		}
		if !cmd.Flags().Changed("profile") && cfg.Voice.Profile != "" {
			settings.VoiceProfile = cfg.Voice.Profile
		}

		done := make(chan struct{}, 1)
		svc, err := voice.NewService(cfg, voice.Options{
			Logger: log.Default(),
			Notify: func(ev playback.Event) {
				switch ev.Type {
				case playback.EventSkipped:
					log.Error("playback failed", "correlation_id", ev.CorrelationID, "error", ev.Err)
				case playback.EventIdle:
					select {
					case done <- struct{}{}:
					default:
					}
				}
			},
		})
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := svc.Speak(ctx, text, settings, priority); err != nil {
			return err
		}

		select {
		case <-done:
		case <-ctx.Done():
			svc.Stop()
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check provider reachability",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := voice.LoadConfigFromViper()
		if err != nil {
			return err
		}
		svc, err := voice.NewService(cfg, voice.Options{Logger: log.Default()})
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		if err := svc.Health(ctx); err != nil {
			return fmt.Errorf("provider %s is unreachable: %w", cfg.ProviderURL, err)
		}
		fmt.Println("provider", keyword(cfg.ProviderURL), "is healthy")
		return nil
	},
}

func textFromArgs(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("unable to read from stdin: %w", err)
	}
	return string(data), nil
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "chatvoice")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "chatvoice")}, dirs...)
	}

	if c := os.Getenv("CHATVOICE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("chatvoice")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("chatvoice")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "chatvoice.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
