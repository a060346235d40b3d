package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the YoloHome gateway.
// All configuration is loaded from YAML and can be overridden by
// environment variables (see applyEnvOverrides).
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Adafruit  AdafruitConfig  `yaml:"adafruit"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	DoorCam   DoorCamConfig   `yaml:"doorcam"`
	Speech    SpeechConfig    `yaml:"speech"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig contains gateway identity information.
type GatewayConfig struct {
	Name string `yaml:"name"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig    `yaml:"cors"`
}

// TimeoutConfig contains HTTP timeout settings in seconds.
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the /ws status stream.
type WebSocketConfig struct {
	// PushInterval is the snapshot push period in seconds.
	PushInterval int `yaml:"push_interval"`
	// PingInterval / PongTimeout control connection liveness, in seconds.
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	MaxMessageSize int `yaml:"max_message_size"`
	// SendBuffer is the per-subscriber outbound buffer; on overflow the
	// oldest queued snapshot is dropped.
	SendBuffer int `yaml:"send_buffer"`
}

// AdafruitConfig contains Adafruit IO broker and REST API settings.
// Account credentials (username + AIO key) are not configured here; they
// belong to the authenticated user and arrive via the session rebuild.
type AdafruitConfig struct {
	Broker BrokerConfig `yaml:"broker"`
	// RESTURL is the base URL of the feed-listing API.
	RESTURL string `yaml:"rest_url"`
	// DiscoveryTimeout bounds a single feed-listing request, in seconds.
	DiscoveryTimeout int `yaml:"discovery_timeout"`
	// PublishTimeout bounds a single publish acknowledgment, in seconds.
	PublishTimeout int `yaml:"publish_timeout"`
	QoS            int `yaml:"qos"`
}

// BrokerConfig contains MQTT broker connection details.
type BrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MongoDBConfig contains document store connection settings.
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	// ConnectTimeout bounds the initial connection + ping, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
}

// InfluxDBConfig contains sensor telemetry history settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DoorCamConfig contains door camera loop settings. The camera and the
// face classifier run as separate services reached over HTTP.
type DoorCamConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DoorFeed string `yaml:"door_feed"`
	AIFeed   string `yaml:"ai_feed"`
	// SnapshotURL returns a camera frame on GET.
	SnapshotURL string `yaml:"snapshot_url"`
	// ClassifierURL labels a frame on POST.
	ClassifierURL string `yaml:"classifier_url"`
	// Interval is the classification period while the door is open, in
	// seconds.
	Interval int `yaml:"interval"`
}

// SpeechConfig contains speech-to-text service settings.
type SpeechConfig struct {
	Enabled bool `yaml:"enabled"`
	// ServiceURL transcribes posted audio and returns plain text.
	ServiceURL string `yaml:"service_url"`
	// Timeout bounds one transcription request, in seconds.
	Timeout int `yaml:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration from a YAML file, applies environment
// variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Name: "yolohome-gateway",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			PushInterval:   1,
			PingInterval:   30,
			PongTimeout:    60,
			MaxMessageSize: 4096,
			SendBuffer:     8,
		},
		Adafruit: AdafruitConfig{
			Broker: BrokerConfig{
				Host: "io.adafruit.com",
				Port: 8883,
				TLS:  true,
			},
			RESTURL:          "https://io.adafruit.com/api/v2",
			DiscoveryTimeout: 10,
			PublishTimeout:   5,
			QoS:              1,
		},
		MongoDB: MongoDBConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "yolohome",
			ConnectTimeout: 20,
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		DoorCam: DoorCamConfig{
			Enabled:  false,
			DoorFeed: "dadn-door",
			AIFeed:   "dadn-ai",
			Interval: 1,
		},
		Speech: SpeechConfig{
			Enabled: false,
			Timeout: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides overrides selected settings from environment variables.
// These mirror the variables the deployment scripts already export.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.MongoDB.URI = v
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		cfg.MongoDB.Database = v
	}
	if v := os.Getenv("ADAFRUIT_REST_URL"); v != "" {
		cfg.Adafruit.RESTURL = v
	}
	if v := os.Getenv("ADAFRUIT_BROKER_HOST"); v != "" {
		cfg.Adafruit.Broker.Host = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.WebSocket.PushInterval <= 0 {
		return fmt.Errorf("websocket push_interval must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send_buffer must be positive")
	}
	if c.Adafruit.RESTURL == "" {
		return fmt.Errorf("adafruit rest_url is required")
	}
	if c.Adafruit.Broker.Host == "" {
		return fmt.Errorf("adafruit broker host is required")
	}
	if c.Adafruit.QoS < 0 || c.Adafruit.QoS > 2 {
		return fmt.Errorf("adafruit qos must be 0, 1, or 2")
	}
	if c.MongoDB.URI == "" {
		return fmt.Errorf("mongodb uri is required")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("influxdb url is required when influxdb is enabled")
	}
	if c.DoorCam.Enabled && (c.DoorCam.SnapshotURL == "" || c.DoorCam.ClassifierURL == "") {
		return fmt.Errorf("doorcam snapshot_url and classifier_url are required when doorcam is enabled")
	}
	if c.Speech.Enabled && c.Speech.ServiceURL == "" {
		return fmt.Errorf("speech service_url is required when speech is enabled")
	}
	return nil
}
