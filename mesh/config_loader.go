package mesh

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScanTopic is the MQTT topic pattern scan reports arrive on; the last
// segment is the scanner id
const DefaultScanTopic = "scanmesh/scans/+"

// DefaultPublishPrefix is the MQTT topic prefix results are published under
const DefaultPublishPrefix = "scanmesh"

// DefaultConfig returns a config with every default filled in
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

// Validate checks fields that have no sensible default
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be positive, got %d", c.Threshold)
	}
	if c.Threshold == 1 {
		return fmt.Errorf("threshold of 1 matches any two scans; use at least 2")
	}
	if c.Anchor < 0 {
		return fmt.Errorf("anchor must be a scanner id (>= 0), got %d", c.Anchor)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MinScanners < 0 {
		return fmt.Errorf("minScanners must be positive, got %d", c.MinScanners)
	}
	for id, url := range c.Sources {
		if id < 0 {
			return fmt.Errorf("sources: scanner id must be >= 0, got %d", id)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("sources: scanner %d URL must be http(s), got %q", id, url)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultOverlapThreshold
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MinScanners == 0 {
		c.MinScanners = 2
	}
	if c.MQTT.ScanTopic == "" {
		c.MQTT.ScanTopic = DefaultScanTopic
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = DefaultPublishPrefix
	}
	if c.Render.Scale == 0 {
		c.Render.Scale = 0.25
	}
	if c.Render.Padding == 0 {
		c.Render.Padding = 200
	}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
