package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for ApplicationConfiguration values.
const (
	DefaultDialTimeout         = 4 * time.Second
	DefaultRequestTimeout      = 10 * time.Second
	DefaultMaxRequestBodyBytes = 16 * 1024
	DefaultRelayReadTimeout    = 10 * time.Second
	DefaultWaitBlocks          = 50
	DefaultPollInterval        = time.Second
	DefaultRelayClientTimeout  = 2 * time.Minute
	DefaultUsersCacheSize      = 1024
)

type (
	// ApplicationConfiguration config specific to the application instance.
	ApplicationConfiguration struct {
		LogLevel string `yaml:"LogLevel"`
		LogPath  string `yaml:"LogPath"`

		RPCClient    RPCClient    `yaml:"RPCClient"`
		Relay        Relay        `yaml:"Relay"`
		RelayClient  RelayClient  `yaml:"RelayClient"`
		WalletBridge WalletBridge `yaml:"WalletBridge"`
		Wallet       Wallet       `yaml:"Wallet"`
		Cache        Cache        `yaml:"Cache"`
		Prometheus   BasicService `yaml:"Prometheus"`
		Pprof        BasicService `yaml:"Pprof"`
	}

	// RPCClient configures the connection to the chain node.
	RPCClient struct {
		Endpoint        string        `yaml:"Endpoint"`
		DialTimeout     time.Duration `yaml:"DialTimeout"`
		RequestTimeout  time.Duration `yaml:"RequestTimeout"`
		MaxConnsPerHost int           `yaml:"MaxConnsPerHost"`
	}

	// Relay is the relay service configuration.
	Relay struct {
		BasicService         `yaml:",inline"`
		EnableCORSWorkaround bool          `yaml:"EnableCORSWorkaround"`
		MaxRequestBodyBytes  int           `yaml:"MaxRequestBodyBytes"`
		ReadTimeout          time.Duration `yaml:"ReadTimeout"`
		// WaitBlocks is the number of blocks to wait for transaction
		// inclusion, PollInterval is the receipt poll interval.
		WaitBlocks   uint64        `yaml:"WaitBlocks"`
		PollInterval time.Duration `yaml:"PollInterval"`
		// Wallet is the relayer account paying for gas.
		Wallet Wallet `yaml:"UnlockWallet"`
	}

	// RelayClient configures relay endpoint used for gasless transfers.
	RelayClient struct {
		Endpoint string        `yaml:"Endpoint"`
		Timeout  time.Duration `yaml:"Timeout"`
	}

	// WalletBridge configures an external wallet reachable via websocket.
	WalletBridge struct {
		Endpoint    string        `yaml:"Endpoint"`
		DialTimeout time.Duration `yaml:"DialTimeout"`
	}

	// Wallet is a keystore file with its password.
	Wallet struct {
		Path     string `yaml:"Path"`
		Password string `yaml:"Password"`
	}

	// Cache configures in-memory caches.
	Cache struct {
		UsersSize int `yaml:"UsersSize"`
	}
)

// Validate checks ApplicationConfiguration for internal consistency.
func (a ApplicationConfiguration) Validate() error {
	if err := a.Relay.Validate(); err != nil {
		return fmt.Errorf("Relay: %w", err)
	}
	if err := a.Prometheus.Validate(); err != nil {
		return fmt.Errorf("Prometheus: %w", err)
	}
	if err := a.Pprof.Validate(); err != nil {
		return fmt.Errorf("Pprof: %w", err)
	}
	if a.Cache.UsersSize <= 0 {
		return errors.New("Cache: UsersSize must be positive")
	}
	return nil
}

// Validate checks Relay configuration.
func (r Relay) Validate() error {
	if err := r.BasicService.Validate(); err != nil {
		return err
	}
	if r.MaxRequestBodyBytes <= 0 {
		return errors.New("MaxRequestBodyBytes must be positive")
	}
	if r.Enabled && r.Wallet.Path == "" {
		return errors.New("UnlockWallet: relayer wallet is required")
	}
	return nil
}
