package robot

import (
	"encoding/json"
	"os"
)

const DefaultConfigFile = "lerobot.json"

// Transport defaults. The register-level protocol (present/goal position
// addresses, packet framing) is owned by the feetech-servo library.
const (
	DefaultBaudRate  = 1_000_000
	DefaultHz        = 50
	DefaultRecordDir = "records"
)

// Config holds the fixed transport and session parameters.
type Config struct {
	Leader   ArmConfig `json:"leader"`
	Follower ArmConfig `json:"follower"`

	BaudRate  int    `json:"baud_rate,omitempty"`
	Hz        int    `json:"hz,omitempty"`
	RecordDir string `json:"record_dir,omitempty"`
}

// ArmConfig holds configuration for a single arm.
type ArmConfig struct {
	Port string `json:"port"`
}

// ApplyDefaults fills in zero-valued transport parameters.
func (c *Config) ApplyDefaults() {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.Hz <= 0 {
		c.Hz = DefaultHz
	}
	if c.RecordDir == "" {
		c.RecordDir = DefaultRecordDir
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
