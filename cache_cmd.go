package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chatframe/voice/voice"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the audio cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audio cache occupancy",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		svc, err := serviceFromConfig()
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		stats := svc.CacheStats()
		fmt.Printf("entries:   %d\n", stats.Entries)
		fmt.Printf("size:      %s of %s\n", humanize.Bytes(uint64(stats.Size)), humanize.Bytes(uint64(stats.Capacity)))
		fmt.Printf("hits:      %d\n", stats.Hits)
		fmt.Printf("misses:    %d\n", stats.Misses)
		fmt.Printf("evictions: %d\n", stats.Evictions)
		fmt.Printf("expired:   %d\n", stats.Expired)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached audio artifact",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		svc, err := serviceFromConfig()
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		if err := svc.ClearCache(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Println("audio cache cleared")
		return nil
	},
}

func serviceFromConfig() (*voice.Service, error) {
	cfg, err := voice.LoadConfigFromViper()
	if err != nil {
		return nil, err
	}
	return voice.NewService(cfg, voice.Options{})
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
