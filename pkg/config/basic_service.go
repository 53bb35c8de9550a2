package config

import (
	"fmt"
	"net"
)

// BasicService is used as a simple base for services like the relay,
// Prometheus monitoring or Pprof.
type BasicService struct {
	Enabled bool `yaml:"Enabled"`
	// Addresses holds the list of bind addresses in the form of "address:port".
	Addresses []string `yaml:"Addresses"`
}

// GetAddresses returns a copy of the list of bind addresses.
func (s BasicService) GetAddresses() []string {
	addrs := make([]string, len(s.Addresses))
	copy(addrs, s.Addresses)
	return addrs
}

// Validate checks enabled services to have valid addresses.
func (s BasicService) Validate() error {
	if !s.Enabled {
		return nil
	}
	if len(s.Addresses) == 0 {
		return fmt.Errorf("no addresses for enabled service")
	}
	for _, addr := range s.Addresses {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("bad address %q: %w", addr, err)
		}
	}
	return nil
}
