// Package config provides the scanner's configuration structure, loaded
// from flags, environment variables and an optional config file via viper.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the top-level configuration for a scan invocation.
type Config struct {
	Target string `json:"target" yaml:"target" mapstructure:"target"` // host to scan; the port comes from Port
	Port   uint16 `json:"port" yaml:"port" mapstructure:"port"`       // default 443

	Protocol  string `json:"protocol" yaml:"protocol" mapstructure:"protocol"`   // "auto", "tls1.0" .. "tls1.3", "ssl3.0"
	StartTLS  string `json:"starttls" yaml:"starttls" mapstructure:"starttls"`   // "", "smtp", "ftp", "imap", "pop3"
	SNI       string `json:"sni" yaml:"sni" mapstructure:"sni"`                  // overrides Target as the SNI host name
	TrustFile []string `json:"trustFile" yaml:"trustFile" mapstructure:"trustFile"`
	JKSFile   string `json:"jksFile" yaml:"jksFile" mapstructure:"jksFile"`
	JKSPass   string `json:"jksPass" yaml:"-" mapstructure:"jksPass"`

	DialTimeout time.Duration `json:"dialTimeout" yaml:"dialTimeout" mapstructure:"dialTimeout"`
	ReadTimeout time.Duration `json:"readTimeout" yaml:"readTimeout" mapstructure:"readTimeout"`

	Resolver Resolver `json:"resolver" yaml:"resolver" mapstructure:"resolver"`

	Enumerate   bool `json:"enumerate" yaml:"enumerate" mapstructure:"enumerate"`
	HonorOrder  bool `json:"honorOrder" yaml:"honorOrder" mapstructure:"honorOrder"`
	FetchCert   bool `json:"fetchCert" yaml:"fetchCert" mapstructure:"fetchCert"`
	Rate        bool `json:"rate" yaml:"rate" mapstructure:"rate"` // not read by the scan command; no ratings enrichment pass runs

	Debug        bool     `json:"debug" yaml:"debug" mapstructure:"debug"`
	DebugModules []string `json:"debugModules" yaml:"debugModules" mapstructure:"debugModules"`
	DisableANSI  bool     `json:"disableANSI" yaml:"disableANSI" mapstructure:"disableANSI"`

	RegistryDir string `json:"registryDir" yaml:"registryDir" mapstructure:"registryDir"` // not read; the embedded JSON tables are always used
}

// Resolver configures an optional custom DNS resolver used instead of the
// host's stub resolver.
type Resolver struct {
	Server  string        `json:"server" yaml:"server" mapstructure:"server"` // e.g. "1.1.1.1:53"
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Default returns a Config with the scanner's baseline values.
func Default() Config {
	return Config{
		Port:        443,
		Protocol:    "auto",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
		Enumerate:   true,
		HonorOrder:  true,
		FetchCert:   true,
	}
}

// Validate checks the fields that must be set for a scan to make sense.
func (c Config) Validate() error {
	if c.Target == "" {
		return errors.New("target is required")
	}
	if c.Port == 0 {
		return errors.New("port must be non-zero")
	}
	switch c.StartTLS {
	case "", "smtp", "ftp", "imap", "pop3":
	default:
		return fmt.Errorf("unsupported starttls protocol: %s", c.StartTLS)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("readTimeout must be positive")
	}
	return nil
}

// SNIHost returns the host name to present in the ClientHello's
// server_name extension: SNI if set, otherwise Target.
func (c Config) SNIHost() string {
	if c.SNI != "" {
		return c.SNI
	}
	return c.Target
}
