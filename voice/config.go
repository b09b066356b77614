// Package voice is the synthesis orchestration layer: it turns response
// text into played-back audio against an unreliable, rate-limited remote
// provider, and manages microphone capture going the other way.
package voice

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/chatframe/voice/internal/vtypes"
)

// Config is the complete configuration surface of the voice core.
type Config struct {
	// Provider settings
	ProviderURL    string        `yaml:"provider_url" env:"CHATVOICE_PROVIDER_URL" envDefault:"https://tts.chatframe.dev"`
	ProviderKey    string        `yaml:"provider_key" env:"CHATVOICE_PROVIDER_KEY"`
	SyncMode       bool          `yaml:"sync_mode" env:"CHATVOICE_SYNC_MODE" envDefault:"false"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CHATVOICE_REQUEST_TIMEOUT" envDefault:"30s"`

	// Admission control
	RequestsPerMinute int `yaml:"requests_per_minute" env:"CHATVOICE_REQUESTS_PER_MINUTE" envDefault:"30"`
	Burst             int `yaml:"burst" env:"CHATVOICE_BURST" envDefault:"5"`

	// Cache settings. CacheMaxBytes of zero disables caching.
	CacheMaxBytes  int64         `yaml:"cache_max_bytes" env:"CHATVOICE_CACHE_MAX_BYTES" envDefault:"33554432"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env:"CHATVOICE_CACHE_TTL" envDefault:"24h"`
	CacheDir       string        `yaml:"cache_dir" env:"CHATVOICE_CACHE_DIR"`
	BytesPerSecond int64         `yaml:"bytes_per_second" env:"CHATVOICE_BYTES_PER_SECOND" envDefault:"0"`

	// Retry policy
	MaxAttempts int           `yaml:"max_attempts" env:"CHATVOICE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase time.Duration `yaml:"backoff_base" env:"CHATVOICE_BACKOFF_BASE" envDefault:"500ms"`
	BackoffMax  time.Duration `yaml:"backoff_max" env:"CHATVOICE_BACKOFF_MAX" envDefault:"8s"`

	// Async job polling
	PollInterval    time.Duration `yaml:"poll_interval" env:"CHATVOICE_POLL_INTERVAL" envDefault:"1s"`
	PollMaxAttempts int           `yaml:"poll_max_attempts" env:"CHATVOICE_POLL_MAX_ATTEMPTS" envDefault:"30"`
	PollTimeout     time.Duration `yaml:"poll_timeout" env:"CHATVOICE_POLL_TIMEOUT" envDefault:"5s"`

	// Capture
	SilenceTimeout time.Duration `yaml:"silence_timeout" env:"CHATVOICE_SILENCE_TIMEOUT" envDefault:"3s"`

	// Text preprocessing
	MaxTextLen int `yaml:"max_text_len" env:"CHATVOICE_MAX_TEXT_LEN" envDefault:"1200"`

	// Playback
	SampleRate int     `yaml:"sample_rate" env:"CHATVOICE_SAMPLE_RATE" envDefault:"22050"`
	Volume     float64 `yaml:"volume" env:"CHATVOICE_VOLUME" envDefault:"1.0"`

	// Default voice parameters applied when the caller passes none
	Voice VoiceDefaults `yaml:"voice"`
}

// VoiceDefaults are the fallback synthesis parameters.
type VoiceDefaults struct {
	Expressiveness float64 `yaml:"expressiveness" env:"CHATVOICE_VOICE_EXPRESSIVENESS" envDefault:"0.5"`
	GuidanceWeight float64 `yaml:"guidance_weight" env:"CHATVOICE_VOICE_GUIDANCE_WEIGHT" envDefault:"0.5"`
	Speed          float64 `yaml:"speed" env:"CHATVOICE_VOICE_SPEED" envDefault:"1.0"`
	Profile        string  `yaml:"profile" env:"CHATVOICE_VOICE_PROFILE"`
}

// Settings converts the defaults into voice settings.
func (v VoiceDefaults) Settings() vtypes.VoiceSettings {
	return vtypes.VoiceSettings{
		Expressiveness: v.Expressiveness,
		GuidanceWeight: v.GuidanceWeight,
		Speed:          v.Speed,
		VoiceProfile:   v.Profile,
	}.Clamped()
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ProviderURL:       "https://tts.chatframe.dev",
		RequestTimeout:    30 * time.Second,
		RequestsPerMinute: 30,
		Burst:             5,
		CacheMaxBytes:     32 * 1024 * 1024,
		CacheTTL:          24 * time.Hour,
		MaxAttempts:       3,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        8 * time.Second,
		PollInterval:      time.Second,
		PollMaxAttempts:   30,
		PollTimeout:       5 * time.Second,
		SilenceTimeout:    3 * time.Second,
		MaxTextLen:        1200,
		SampleRate:        22050,
		Volume:            1.0,
		Voice: VoiceDefaults{
			Expressiveness: 0.5,
			GuidanceWeight: 0.5,
			Speed:          1.0,
		},
	}
}

// LoadConfigFromEnv builds a Config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.ProviderURL == "" {
		return fmt.Errorf("provider_url cannot be empty")
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be at least 1, got %d", c.RequestsPerMinute)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}
	if c.Burst > c.RequestsPerMinute {
		return fmt.Errorf("burst (%d) cannot exceed requests_per_minute (%d)", c.Burst, c.RequestsPerMinute)
	}
	if c.CacheMaxBytes < 0 {
		return fmt.Errorf("cache_max_bytes cannot be negative, got %d", c.CacheMaxBytes)
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("max_attempts must be between 1 and 10, got %d", c.MaxAttempts)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff_base must be positive, got %v", c.BackoffBase)
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff_max (%v) cannot be below backoff_base (%v)", c.BackoffMax, c.BackoffBase)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("poll_max_attempts must be at least 1, got %d", c.PollMaxAttempts)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive, got %v", c.PollTimeout)
	}
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("silence_timeout must be positive, got %v", c.SilenceTimeout)
	}
	if c.MaxTextLen < 1 {
		return fmt.Errorf("max_text_len must be at least 1, got %d", c.MaxTextLen)
	}
	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}
	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	ok := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.SampleRate, validSampleRates)
	}
	return nil
}
