package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration, loaded from the environment.
type Config struct {
	Service       ServiceConfig
	Widget        WidgetConfig
	Reconnect     ReconnectConfig
	Keepalive     KeepaliveConfig
	Recording     RecordingConfig
	Transcription TranscriptionConfig
	Save          SaveConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

// WidgetConfig selects and parameterizes the conferencing widget.
type WidgetConfig struct {
	// Provider is "mock" or "ws".
	Provider    string
	BridgeURL   string
	RoomID      string
	RoomName    string
	DisplayName string
}

type ReconnectConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

type KeepaliveConfig struct {
	PingInterval        time.Duration
	AudioResumeInterval time.Duration
}

// RecordingConfig parameterizes local audio capture.
type RecordingConfig struct {
	// AudioSource is the prepared audio file standing in for microphone
	// input on headless runs.
	AudioSource string
}

// TranscriptionConfig selects the transcription backend.
type TranscriptionConfig struct {
	// Provider is "mock" or "google".
	Provider     string
	LanguageCode string
	SampleRateHz int
	Timeout      time.Duration
}

type SaveConfig struct {
	Endpoint string
	UserID   string
	Timeout  time.Duration
	// StoreDir is the badger directory for pending saves and capture
	// journals.
	StoreDir string
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicSessions string
	TopicMeetings string
	Principal     string
}

type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	APIAddr     string
}

// Load reads configuration from the environment, applying defaults, and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name: envOrDefault("SERVICE_NAME", "meeting-session-service"),
		},
		Widget: WidgetConfig{
			Provider:    envOrDefault("WIDGET_PROVIDER", "mock"),
			BridgeURL:   envOrDefault("WIDGET_BRIDGE_URL", "ws://localhost:8800/widget"),
			RoomID:      envOrDefault("ROOM_ID", "local-room"),
			RoomName:    envOrDefault("ROOM_NAME", "Local Room"),
			DisplayName: envOrDefault("DISPLAY_NAME", "Guest"),
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: envIntOrDefault("RECONNECT_MAX_ATTEMPTS", 3),
			Backoff:     envDurationOrDefault("RECONNECT_BACKOFF", 2*time.Second),
		},
		Keepalive: KeepaliveConfig{
			PingInterval:        envDurationOrDefault("KEEPALIVE_PING_INTERVAL", 25*time.Second),
			AudioResumeInterval: envDurationOrDefault("KEEPALIVE_AUDIO_RESUME_INTERVAL", 30*time.Second),
		},
		Recording: RecordingConfig{
			AudioSource: envOrDefault("RECORDING_AUDIO_SOURCE", "./data/audio.raw"),
		},
		Transcription: TranscriptionConfig{
			Provider:     envOrDefault("TRANSCRIPTION_PROVIDER", "mock"),
			LanguageCode: envOrDefault("TRANSCRIPTION_LANGUAGE", "en-US"),
			SampleRateHz: envIntOrDefault("TRANSCRIPTION_SAMPLE_RATE", 16000),
			Timeout:      envDurationOrDefault("TRANSCRIPTION_TIMEOUT", 30*time.Second),
		},
		Save: SaveConfig{
			Endpoint: envOrDefault("SAVE_ENDPOINT", "http://localhost:8700/api/meetings"),
			UserID:   os.Getenv("SAVE_USER_ID"),
			Timeout:  envDurationOrDefault("SAVE_TIMEOUT", 15*time.Second),
			StoreDir: envOrDefault("SAVE_STORE_DIR", "./data/pending"),
		},
		Kafka: KafkaConfig{
			Enabled:       envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:       envListOrDefault("KAFKA_BROKERS", nil),
			TopicSessions: envOrDefault("KAFKA_TOPIC_SESSIONS", "meeting.session.transitions"),
			TopicMeetings: envOrDefault("KAFKA_TOPIC_MEETINGS", "meeting.records.saved"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", "meeting-session-service"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			APIAddr:     envOrDefault("API_ADDR", ":8080"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with. Unparseable
// environment values already fell back to defaults; this catches values
// that parse but make no sense.
func (c *Config) Validate() error {
	switch c.Widget.Provider {
	case "mock", "ws":
	default:
		return fmt.Errorf("unknown widget provider %q", c.Widget.Provider)
	}
	if c.Widget.RoomID == "" {
		return fmt.Errorf("room id must not be empty")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect max attempts must be positive, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.Backoff <= 0 {
		return fmt.Errorf("reconnect backoff must be positive, got %v", c.Reconnect.Backoff)
	}
	if c.Keepalive.PingInterval <= 0 {
		return fmt.Errorf("keepalive ping interval must be positive, got %v", c.Keepalive.PingInterval)
	}
	if c.Keepalive.AudioResumeInterval <= 0 {
		return fmt.Errorf("audio resume interval must be positive, got %v", c.Keepalive.AudioResumeInterval)
	}
	switch c.Transcription.Provider {
	case "mock", "google":
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Transcription.Provider)
	}
	if c.Transcription.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Transcription.SampleRateHz)
	}
	if c.Save.Timeout <= 0 {
		return fmt.Errorf("save timeout must be positive, got %v", c.Save.Timeout)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envListOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
