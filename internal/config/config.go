package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cvacare/gaitsession/internal/serialmux"
	"github.com/cvacare/gaitsession/internal/units"
)

// Config is the runtime configuration shared by gaitctl and gaitproxy.
// Every field is optional in the file; the Get* accessors supply defaults.
type Config struct {
	// External services
	AnalysisURL    *string `json:"analysis_url,omitempty"`
	PlanURL        *string `json:"plan_url,omitempty"`
	UpstreamURL    *string `json:"upstream_url,omitempty"`    // prescriptive/priority backend
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "30s"

	// Proxy server
	Listen    *string `json:"listen,omitempty"`
	AdminRole *string `json:"admin_role,omitempty"`

	// Recording
	SampleInterval *string `json:"sample_interval,omitempty"` // duration string like "100ms"
	MinSamples     *int    `json:"min_samples,omitempty"`
	MinSeconds     *int    `json:"min_seconds,omitempty"`
	VelocityUnit   *string `json:"velocity_unit,omitempty"`

	// IMU over MQTT
	MQTTBroker     *string `json:"mqtt_broker,omitempty"`
	MQTTClientID   *string `json:"mqtt_client_id,omitempty"`
	MQTTTopicAccel *string `json:"mqtt_topic_accel,omitempty"`
	MQTTTopicGyro  *string `json:"mqtt_topic_gyro,omitempty"`

	// IMU over a serial line
	SerialPort *string                `json:"serial_port,omitempty"`
	Serial     *serialmux.PortOptions `json:"serial,omitempty"`
}

// Empty returns a Config with all fields unset, i.e. all defaults.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB. Fields omitted from the file keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]*string{
		"analysis_url": c.AnalysisURL,
		"plan_url":     c.PlanURL,
		"upstream_url": c.UpstreamURL,
	} {
		if raw == nil || *raw == "" {
			continue
		}
		u, err := url.Parse(*raw)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) URL, got '%s'", name, *raw)
		}
	}

	if c.RequestTimeout != nil && *c.RequestTimeout != "" {
		d, err := time.ParseDuration(*c.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout '%s': %w", *c.RequestTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("request_timeout must be positive, got %s", d)
		}
	}

	if c.SampleInterval != nil && *c.SampleInterval != "" {
		d, err := time.ParseDuration(*c.SampleInterval)
		if err != nil {
			return fmt.Errorf("invalid sample_interval '%s': %w", *c.SampleInterval, err)
		}
		if d < time.Millisecond {
			return fmt.Errorf("sample_interval must be at least 1ms, got %s", d)
		}
	}

	if c.MinSamples != nil && *c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be positive, got %d", *c.MinSamples)
	}
	if c.MinSeconds != nil && *c.MinSeconds < 0 {
		return fmt.Errorf("min_seconds must be non-negative, got %d", *c.MinSeconds)
	}

	if c.VelocityUnit != nil && !units.IsValidSpeed(*c.VelocityUnit) {
		return fmt.Errorf("velocity_unit must be one of %s, got '%s'", units.ValidSpeedUnitsString(), *c.VelocityUnit)
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}

	return nil
}

// GetAnalysisURL returns the analysis_url value or the default.
func (c *Config) GetAnalysisURL() string {
	if c.AnalysisURL == nil {
		return "http://localhost:5001"
	}
	return *c.AnalysisURL
}

// GetPlanURL returns the plan_url value or the default.
func (c *Config) GetPlanURL() string {
	if c.PlanURL == nil {
		return "http://localhost:5000"
	}
	return *c.PlanURL
}

// GetUpstreamURL returns the upstream_url value or the default.
func (c *Config) GetUpstreamURL() string {
	if c.UpstreamURL == nil {
		return "http://localhost:5002"
	}
	return *c.UpstreamURL
}

// GetRequestTimeout returns the request_timeout value or the default.
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetListen returns the listen value or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}

// GetAdminRole returns the admin_role value or the default.
func (c *Config) GetAdminRole() string {
	if c.AdminRole == nil {
		return "admin"
	}
	return *c.AdminRole
}

// GetSampleInterval returns the sample_interval value or the default.
func (c *Config) GetSampleInterval() time.Duration {
	if c.SampleInterval == nil || *c.SampleInterval == "" {
		return 100 * time.Millisecond // 10 Hz, as requested from the phone sensors
	}
	d, err := time.ParseDuration(*c.SampleInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetMinSamples returns the min_samples value or the default.
func (c *Config) GetMinSamples() int {
	if c.MinSamples == nil {
		return 10
	}
	return *c.MinSamples
}

// GetMinSeconds returns the min_seconds value or the default.
func (c *Config) GetMinSeconds() int {
	if c.MinSeconds == nil {
		return 10
	}
	return *c.MinSeconds
}

// GetVelocityUnit returns the velocity_unit value or the default.
func (c *Config) GetVelocityUnit() string {
	if c.VelocityUnit == nil {
		return units.MPS
	}
	return *c.VelocityUnit
}

// GetMQTTBroker returns the mqtt_broker value or the default.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return "tcp://localhost:1883"
	}
	return *c.MQTTBroker
}

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *Config) GetMQTTClientID() string {
	if c.MQTTClientID == nil {
		return "gaitctl-recorder"
	}
	return *c.MQTTClientID
}

// GetMQTTTopicAccel returns the mqtt_topic_accel value or the default.
func (c *Config) GetMQTTTopicAccel() string {
	if c.MQTTTopicAccel == nil {
		return "gait/imu/accelerometer"
	}
	return *c.MQTTTopicAccel
}

// GetMQTTTopicGyro returns the mqtt_topic_gyro value or the default.
func (c *Config) GetMQTTTopicGyro() string {
	if c.MQTTTopicGyro == nil {
		return "gait/imu/gyroscope"
	}
	return *c.MQTTTopicGyro
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetSerial returns the serial options or the defaults.
func (c *Config) GetSerial() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.PortOptions{}
	}
	return *c.Serial
}
