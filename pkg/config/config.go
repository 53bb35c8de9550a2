package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default path to the config directory.
	DefaultConfigPath = "./config"
	// DefaultNetwork is the network used when none is specified.
	DefaultNetwork = "privnet"
)

// Version is the version of the application, set at build time.
var Version string

// Config top level struct representing the config for the application.
type Config struct {
	ProtocolConfiguration    ProtocolConfiguration    `yaml:"ProtocolConfiguration"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Load attempts to load the config from the given path for the given
// network (protocol.<network>.yml file).
func Load(path string, network string) (Config, error) {
	return LoadFile(filepath.Join(path, fmt.Sprintf("protocol.%s.yml", network)))
}

// LoadFile loads config from the provided path. Unknown fields are not
// allowed, the result is validated.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return LoadBytes(configData)
}

// LoadBytes parses and validates YAML configuration.
func LoadBytes(configData []byte) (Config, error) {
	config := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Default returns the config with default values for the fields that have
// sensible defaults.
func Default() Config {
	return Config{
		ProtocolConfiguration: ProtocolConfiguration{
			TokenDecimals:    18,
			TransferValidity: DefaultTransferValidity,
		},
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: "info",
			RPCClient: RPCClient{
				DialTimeout:    DefaultDialTimeout,
				RequestTimeout: DefaultRequestTimeout,
			},
			Relay: Relay{
				MaxRequestBodyBytes: DefaultMaxRequestBodyBytes,
				ReadTimeout:         DefaultRelayReadTimeout,
				WaitBlocks:          DefaultWaitBlocks,
				PollInterval:        DefaultPollInterval,
			},
			RelayClient: RelayClient{
				Timeout: DefaultRelayClientTimeout,
			},
			Cache: Cache{
				UsersSize: DefaultUsersCacheSize,
			},
		},
	}
}

// Validate checks the config for consistency.
func (c Config) Validate() error {
	if err := c.ProtocolConfiguration.Validate(); err != nil {
		return fmt.Errorf("ProtocolConfiguration: %w", err)
	}
	if err := c.ApplicationConfiguration.Validate(); err != nil {
		return fmt.Errorf("ApplicationConfiguration: %w", err)
	}
	return nil
}

var errEmpty = errors.New("empty value")
