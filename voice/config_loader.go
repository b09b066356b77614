package voice

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads voice configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	// Provider settings
	if viper.IsSet("voice.provider_url") {
		cfg.ProviderURL = viper.GetString("voice.provider_url")
	}
	if viper.IsSet("voice.provider_key") {
		cfg.ProviderKey = viper.GetString("voice.provider_key")
	}
	if viper.IsSet("voice.sync_mode") {
		cfg.SyncMode = viper.GetBool("voice.sync_mode")
	}
	if viper.IsSet("voice.request_timeout") {
		if d, err := time.ParseDuration(viper.GetString("voice.request_timeout")); err == nil {
			cfg.RequestTimeout = d
		}
	}

	// Admission control
	if viper.IsSet("voice.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("voice.requests_per_minute")
	}
	if viper.IsSet("voice.burst") {
		cfg.Burst = viper.GetInt("voice.burst")
	}

	// Cache settings
	if viper.IsSet("voice.cache_max_bytes") {
		cfg.CacheMaxBytes = viper.GetInt64("voice.cache_max_bytes")
	}
	if viper.IsSet("voice.cache_ttl") {
		if d, err := time.ParseDuration(viper.GetString("voice.cache_ttl")); err == nil {
			cfg.CacheTTL = d
		}
	}
	if viper.IsSet("voice.cache_dir") {
		cfg.CacheDir = viper.GetString("voice.cache_dir")
	}
	if viper.IsSet("voice.bytes_per_second") {
		cfg.BytesPerSecond = viper.GetInt64("voice.bytes_per_second")
	}

	// Retry policy
	if viper.IsSet("voice.max_attempts") {
		cfg.MaxAttempts = viper.GetInt("voice.max_attempts")
	}
	if viper.IsSet("voice.backoff_base") {
		if d, err := time.ParseDuration(viper.GetString("voice.backoff_base")); err == nil {
			cfg.BackoffBase = d
		}
	}
	if viper.IsSet("voice.backoff_max") {
		if d, err := time.ParseDuration(viper.GetString("voice.backoff_max")); err == nil {
			cfg.BackoffMax = d
		}
	}

	// Async job polling
	if viper.IsSet("voice.poll_interval") {
		if d, err := time.ParseDuration(viper.GetString("voice.poll_interval")); err == nil {
			cfg.PollInterval = d
		}
	}
	if viper.IsSet("voice.poll_max_attempts") {
		cfg.PollMaxAttempts = viper.GetInt("voice.poll_max_attempts")
	}
	if viper.IsSet("voice.poll_timeout") {
		if d, err := time.ParseDuration(viper.GetString("voice.poll_timeout")); err == nil {
			cfg.PollTimeout = d
		}
	}

	// Capture settings
	if viper.IsSet("voice.silence_timeout") {
		if d, err := time.ParseDuration(viper.GetString("voice.silence_timeout")); err == nil {
			cfg.SilenceTimeout = d
		}
	}

	// Text preprocessing
	if viper.IsSet("voice.max_text_len") {
		cfg.MaxTextLen = viper.GetInt("voice.max_text_len")
	}

	// Playback settings
	if viper.IsSet("voice.sample_rate") {
		cfg.SampleRate = viper.GetInt("voice.sample_rate")
	}
	if viper.IsSet("voice.volume") {
		cfg.Volume = viper.GetFloat64("voice.volume")
	}

	// Voice parameter defaults
	if viper.IsSet("voice.expressiveness") {
		cfg.Voice.Expressiveness = viper.GetFloat64("voice.expressiveness")
	}
	if viper.IsSet("voice.guidance_weight") {
		cfg.Voice.GuidanceWeight = viper.GetFloat64("voice.guidance_weight")
	}
	if viper.IsSet("voice.speed") {
		cfg.Voice.Speed = viper.GetFloat64("voice.speed")
	}
	if viper.IsSet("voice.profile") {
		cfg.Voice.Profile = viper.GetString("voice.profile")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid voice configuration: %w", err)
	}

	return cfg, nil
}

// SetDefaults sets default values in Viper for voice configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("voice.provider_url", defaults.ProviderURL)
	viper.SetDefault("voice.sync_mode", defaults.SyncMode)
	viper.SetDefault("voice.request_timeout", defaults.RequestTimeout.String())

	viper.SetDefault("voice.requests_per_minute", defaults.RequestsPerMinute)
	viper.SetDefault("voice.burst", defaults.Burst)

	viper.SetDefault("voice.cache_max_bytes", defaults.CacheMaxBytes)
	viper.SetDefault("voice.cache_ttl", defaults.CacheTTL.String())

	viper.SetDefault("voice.max_attempts", defaults.MaxAttempts)
	viper.SetDefault("voice.backoff_base", defaults.BackoffBase.String())
	viper.SetDefault("voice.backoff_max", defaults.BackoffMax.String())

	viper.SetDefault("voice.poll_interval", defaults.PollInterval.String())
	viper.SetDefault("voice.poll_max_attempts", defaults.PollMaxAttempts)
	viper.SetDefault("voice.poll_timeout", defaults.PollTimeout.String())

	viper.SetDefault("voice.silence_timeout", defaults.SilenceTimeout.String())
	viper.SetDefault("voice.max_text_len", defaults.MaxTextLen)

	viper.SetDefault("voice.sample_rate", defaults.SampleRate)
	viper.SetDefault("voice.volume", defaults.Volume)

	viper.SetDefault("voice.expressiveness", defaults.Voice.Expressiveness)
	viper.SetDefault("voice.guidance_weight", defaults.Voice.GuidanceWeight)
	viper.SetDefault("voice.speed", defaults.Voice.Speed)
}
