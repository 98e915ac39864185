package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the catpoint binaries.
type Config struct {
	// ServerAddress is the gRPC address of the security controller.
	ServerAddress string `yaml:"server_addr"`
	// StateFile is the path to the JSON file storing sensors and statuses.
	StateFile string `yaml:"state_file"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of emitted log entries.
	LogLevel string `yaml:"log_level"`
	// MetricsAddress enables the Prometheus endpoint when set, e.g. ":9100".
	MetricsAddress string `yaml:"metrics_addr"`
	// Classifier selects and tunes the image classifier.
	Classifier ClassifierConfig `yaml:"classifier"`
	// Camera configures the periodic snapshot capture loop.
	Camera CameraConfig `yaml:"camera"`
	// MQTT configures publishing of status notifications to a broker.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// ClassifierConfig selects the classifier backend.
type ClassifierConfig struct {
	// Kind is one of "random", "fixed" or "labels".
	Kind string `yaml:"kind"`
	// Subject is the label that counts as a detection.
	Subject string `yaml:"subject"`
	// MinConfidence is the lowest label confidence (0-100) that counts.
	MinConfidence float64 `yaml:"min_confidence"`
	// Endpoint is the label detection URL used by the "labels" kind.
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds a single classification.
	Timeout time.Duration `yaml:"timeout"`
	// FixedResult is the answer of the "fixed" kind.
	FixedResult bool `yaml:"fixed_result"`
}

// CameraConfig configures the snapshot loop. An empty SnapshotPath disables it.
type CameraConfig struct {
	SnapshotPath string        `yaml:"snapshot_path"`
	Interval     time.Duration `yaml:"interval"`
}

// MQTTConfig configures the notification publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Classifier kinds.
const (
	ClassifierRandom = "random"
	ClassifierFixed  = "fixed"
	ClassifierLabels = "labels"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "catpoint-settings.yaml"

	// DefaultStateFilename is the default filename for controller state JSON.
	DefaultStateFilename = "catpoint-state.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultClassifyTimeout bounds one classification when not configured.
	DefaultClassifyTimeout = 10 * time.Second

	// DefaultSubject is the monitored subject.
	DefaultSubject = "cat"

	// DefaultMinConfidence is the label confidence threshold in percent.
	DefaultMinConfidence = 90.0

	// DefaultCameraInterval is the snapshot period.
	DefaultCameraInterval = 30 * time.Second

	// DefaultTopicPrefix is prepended to every MQTT topic.
	DefaultTopicPrefix = "catpoint"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownClassifier is returned for an unsupported classifier kind.
	errUnknownClassifier = errors.New("unknown classifier kind")
	// errEndpointRequired is returned when the labels classifier has no endpoint.
	errEndpointRequired = errors.New("classifier endpoint must be provided for the labels kind")
	// errBadConfidence is returned when the confidence threshold is out of range.
	errBadConfidence = errors.New("min_confidence must be within 0..100")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(settings *Config) error {
	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if err := validateClassifier(&settings.Classifier); err != nil {
		return err
	}

	if settings.Camera.Interval <= 0 {
		settings.Camera.Interval = DefaultCameraInterval
	}

	if settings.MQTT.TopicPrefix == "" {
		settings.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if settings.MQTT.Broker == "" {
		return nil
	}

	if _, err := url.Parse(settings.MQTT.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker URL: %w", err)
	}

	return nil
}

func validateClassifier(c *ClassifierConfig) error {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if c.Kind == "" {
		c.Kind = ClassifierRandom
	}

	if c.Subject == "" {
		c.Subject = DefaultSubject
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultClassifyTimeout
	}

	if c.MinConfidence == 0 {
		c.MinConfidence = DefaultMinConfidence
	}

	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return errBadConfidence
	}

	switch c.Kind {
	case ClassifierRandom, ClassifierFixed:
		return nil
	case ClassifierLabels:
		if c.Endpoint == "" {
			return errEndpointRequired
		}

		if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
			return fmt.Errorf("invalid classifier endpoint: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownClassifier, c.Kind)
	}
}
