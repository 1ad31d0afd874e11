// Package config implements the node's configuration service: a TOML file
// loaded once at startup and exposed through typed accessors. The real
// configuration service is an external collaborator per spec.md §1, but a
// concrete implementation is required to actually run the node, so this one
// follows the teacher's own [Section]-style TOML layout (mailproxy.go).
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultServerPort is used when Remote.Server.Port is unset or zero.
const DefaultServerPort = 7420

// DefaultRecvTimeout is used when Remote.RecvTimeout is unset or zero.
const DefaultRecvTimeout = 2 * time.Second

// Config is the root of the node's configuration file.
type Config struct {
	Identity IdentityConfig `toml:"Identity"`
	Remote   RemoteConfig   `toml:"Remote"`
	Plugin   PluginConfig   `toml:"Plugin"`
}

// IdentityConfig carries the node's static identity (spec §6: id.uuid, id.secret).
type IdentityConfig struct {
	// UUID is the node's 128-bit identity, in canonical string form.
	UUID string `toml:"UUID"`
	// Secret is the base64-encoded node secret, decoded to >= 16 bytes.
	Secret string `toml:"Secret"`
}

// RemoteConfig carries the controller endpoint and session tuning (spec §6:
// remote.server.*, remote.recv_timeout).
type RemoteConfig struct {
	Server RemoteServerConfig `toml:"Server"`
	// RecvTimeoutSeconds is the unicast session's read timeout, in seconds.
	// Zero means DefaultRecvTimeout.
	RecvTimeoutSeconds float64 `toml:"RecvTimeout"`
}

// RemoteServerConfig is the controller's address (spec §3 "Server endpoint").
type RemoteServerConfig struct {
	Address  string `toml:"Address"`
	Port     uint16 `toml:"Port"`
	IPv4Only bool   `toml:"IPv4Only"`
}

// PluginConfig points at the (externally implemented) output-plugin directory.
type PluginConfig struct {
	Path string `toml:"Path"`
}

// Load reads and parses a TOML configuration file, then validates the
// required fields. A missing/malformed identity or server address is a
// ConfigInvalid error (spec §7): startup fails, no retry.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Identity.UUID == "" {
		return fmt.Errorf("config: Identity.UUID is required")
	}
	if c.Identity.Secret == "" {
		return fmt.Errorf("config: Identity.Secret is required")
	}
	if c.Remote.Server.Address == "" {
		return fmt.Errorf("config: Remote.Server.Address is required")
	}
	return nil
}

// EffectivePort returns the configured server port, or DefaultServerPort if unset.
func (r *RemoteServerConfig) EffectivePort() uint16 {
	if r.Port == 0 {
		return DefaultServerPort
	}
	return r.Port
}

// RecvTimeout returns the configured unicast read timeout, or
// DefaultRecvTimeout if unset.
func (r *RemoteConfig) RecvTimeout() time.Duration {
	if r.RecvTimeoutSeconds <= 0 {
		return DefaultRecvTimeout
	}
	return time.Duration(r.RecvTimeoutSeconds * float64(time.Second))
}
