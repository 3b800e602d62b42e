// Package config holds the runtime configuration for both the relay and the
// calling peer.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Role represents the process role (relay or peer).
type Role string

const (
	RoleRelay Role = "relay"
	RolePeer  Role = "peer"
)

const (
	DefaultRelayPort     = 8000
	DefaultRelayPath     = "/ws"
	DefaultAnswerTimeout = 30 * time.Second
	DefaultPingInterval  = 20 * time.Second
)

// DefaultICEServers is the public discovery endpoint used when none is configured.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

// Config stores all parameters gathered from the config file, CLI flags and
// interactive prompts.
type Config struct {
	Role Role `yaml:"role"`

	// Peer: where the relay lives. The URL is derived from these.
	RelayHost string `yaml:"relay_host"`
	RelayPort int    `yaml:"relay_port"`
	RelayPath string `yaml:"relay_path"`
	TLS       bool   `yaml:"tls"`

	// Relay: listen address and keepalive.
	ListenAddr   string        `yaml:"listen"`
	PingInterval time.Duration `yaml:"ping_interval"`

	// Peer: negotiation.
	ICEServers    []string      `yaml:"ice_servers"`
	AnswerTimeout time.Duration `yaml:"answer_timeout"` // 0 waits forever
	AutoCall      bool          `yaml:"auto_call"`
	EarlyMedia    bool          `yaml:"early_media"` // capture before any call so answers carry media
	NoMedia       bool          `yaml:"no_media"`

	Debug bool `yaml:"debug"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		RelayHost:     "localhost",
		RelayPort:     DefaultRelayPort,
		RelayPath:     DefaultRelayPath,
		ListenAddr:    fmt.Sprintf(":%d", DefaultRelayPort),
		PingInterval:  DefaultPingInterval,
		ICEServers:    append([]string(nil), DefaultICEServers...),
		AnswerTimeout: DefaultAnswerTimeout,
		EarlyMedia:    true,
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Role {
	case RoleRelay:
		if c.ListenAddr == "" {
			return errors.New("missing listen address")
		}
		if c.PingInterval < 0 {
			return errors.New("ping interval must not be negative")
		}
	case RolePeer:
		if c.RelayHost == "" {
			return errors.New("missing relay host")
		}
		if c.RelayPort < 1 || c.RelayPort > 65535 {
			return fmt.Errorf("invalid relay port %d (must be 1~65535)", c.RelayPort)
		}
		if c.AnswerTimeout < 0 {
			return errors.New("answer timeout must not be negative")
		}
	default:
		return fmt.Errorf("invalid role %q: must be 'relay' or 'peer'", c.Role)
	}
	return nil
}

// RelayURL derives the signaling endpoint from the relay host, the fixed port
// and path, using wss when TLS is enabled.
func (c Config) RelayURL() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	path := c.RelayPath
	if path == "" {
		path = DefaultRelayPath
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(c.RelayHost, strconv.Itoa(c.RelayPort)), path)
}

// SecureContext reports whether local capture is allowed: the relay must be
// reached over TLS unless it is on the loopback interface.
func (c Config) SecureContext() bool {
	if c.TLS {
		return true
	}
	if c.RelayHost == "localhost" {
		return true
	}
	ip := net.ParseIP(c.RelayHost)
	return ip != nil && ip.IsLoopback()
}
