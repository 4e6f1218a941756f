// Package config loads gateway and tag profiles from YAML, the way a
// long-running collector or the TUI monitor would describe a fleet of
// PLCs up front instead of building every Tag from an attribute string
// at the call site. It mirrors the teacher's config.go shape (struct-
// tagged YAML, load-then-apply-defaults-then-validate) narrowed from
// CIP-probe scenario configuration to gateway/tag profiles.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tturner/ab-eip-client/internal/plc/cippath"
	"github.com/tturner/ab-eip-client/internal/plc/status"
	"github.com/tturner/ab-eip-client/internal/plc/tag"
)

// GatewayConfig describes one PLC endpoint a Session connects to. CPU
// (yaml `plc`) is the spec's real family selector; Protocol is kept as
// the "ab_eip"-style fallback for profiles written before CPU existed,
// and is tried second (see effectiveFamily).
type GatewayConfig struct {
	Name           string `yaml:"name"`
	Protocol       string `yaml:"protocol"` // "logix", "plc5", "slc", "micrologix", "micro800", "omron"
	CPU            string `yaml:"plc,omitempty"`
	Host           string `yaml:"host"`
	Port           uint16 `yaml:"port,omitempty"`
	GatewayPort    uint16 `yaml:"gateway_port,omitempty"` // overrides Port when set
	ConnectionPath string `yaml:"connection_path,omitempty"`

	// ShareSession and UseConnectedMsg default to true (libplctag's
	// convention); nil means "not set in the profile".
	ShareSession    *bool `yaml:"share_session,omitempty"`
	UseConnectedMsg *bool `yaml:"use_connected_msg,omitempty"`
	AllowPacking    bool  `yaml:"allow_packing,omitempty"`
}

// effectiveFamily returns CPU if set, else Protocol, matching
// pkg/plctag.Create's cpu/plc-over-protocol precedence for the family
// selector.
func (g GatewayConfig) effectiveFamily() string {
	if g.CPU != "" {
		return g.CPU
	}
	return g.Protocol
}

// effectivePort returns GatewayPort if set, else Port.
func (g GatewayConfig) effectivePort() uint16 {
	if g.GatewayPort != 0 {
		return g.GatewayPort
	}
	return g.Port
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// TagConfig describes one value read from / written to a gateway.
// ElemType (yaml `elem_type`) is the spec's lowercase vocabulary and is
// tried before DataType, which is kept as the legacy uppercase
// alternative.
type TagConfig struct {
	Name         string `yaml:"name"`
	Gateway      string `yaml:"gateway"` // references a GatewayConfig.Name
	Address      string `yaml:"address"` // symbolic tag name or PCCC logical address
	DataType     string `yaml:"data_type"`
	ElemType     string `yaml:"elem_type,omitempty"`
	ElemSize     int    `yaml:"elem_size,omitempty"`
	ElementCount int    `yaml:"element_count,omitempty"`
	CacheMs      int    `yaml:"cache_ms,omitempty"`
}

// effectiveDataType returns ElemType if set, else DataType.
func (t TagConfig) effectiveDataType() string {
	if t.ElemType != "" {
		return t.ElemType
	}
	return t.DataType
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level   string `yaml:"level,omitempty"` // "silent","error","info","verbose","debug"
	LogFile string `yaml:"log_file,omitempty"`
}

// Config is the top-level gateway/tag profile document.
type Config struct {
	Gateways []GatewayConfig `yaml:"gateways"`
	Tags     []TagConfig     `yaml:"tags"`
	Logging  LoggingConfig   `yaml:"logging,omitempty"`
}

const defaultPort uint16 = 44818

// Load reads and parses path, applies defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, status.New(status.NotFound, "config: read %s: %v", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, status.New(status.BadData, "config: parse %s: %v", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Gateways {
		if c.Gateways[i].effectivePort() == 0 {
			c.Gateways[i].Port = defaultPort
		}
	}
	for i := range c.Tags {
		if c.Tags[i].ElementCount == 0 {
			c.Tags[i].ElementCount = 1
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks structural integrity: every gateway has a
// recognized protocol, every tag references a declared gateway and a
// recognized data type.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Gateways))
	for _, gw := range c.Gateways {
		if gw.Name == "" {
			return status.New(status.BadParam, "config: a gateway entry is missing its name")
		}
		if seen[gw.Name] {
			return status.New(status.Duplicate, "config: duplicate gateway name %q", gw.Name)
		}
		seen[gw.Name] = true
		if gw.Host == "" {
			return status.New(status.BadParam, "config: gateway %q is missing a host", gw.Name)
		}
		if _, ok := cippath.ParseFamily(gw.effectiveFamily()); !ok {
			return status.New(status.BadParam, "config: gateway %q: unrecognized plc/protocol %q", gw.Name, gw.effectiveFamily())
		}
	}
	for _, tg := range c.Tags {
		if tg.Name == "" {
			return status.New(status.BadParam, "config: a tag entry is missing its name")
		}
		if !seen[tg.Gateway] {
			return status.New(status.NotFound, "config: tag %q references undeclared gateway %q", tg.Name, tg.Gateway)
		}
		dtName := tg.effectiveDataType()
		if _, ok := tag.ParseDataType(dtName); !ok {
			if _, ok := tag.ParseElemType(dtName); !ok {
				return status.New(status.BadParam, "config: tag %q: unrecognized elem_type/data_type %q", tg.Name, dtName)
			}
		}
	}
	return nil
}

// AttribString renders gw and tg as the libplctag-style attribute string
// pkg/plctag.Create expects, so a config-driven caller (a fleet
// collector, the TUI monitor) can build Tags the same way a one-off CLI
// invocation does instead of duplicating Create's parsing.
func AttribString(gw GatewayConfig, tg TagConfig) string {
	count := tg.ElementCount
	if count == 0 {
		count = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "protocol=%s&gateway=%s&gateway_port=%d&name=%s",
		gw.effectiveFamily(), gw.Host, gw.effectivePort(), tg.Address)
	if gw.ConnectionPath != "" {
		fmt.Fprintf(&b, "&path=%s", gw.ConnectionPath)
	}
	if tg.ElemType != "" {
		fmt.Fprintf(&b, "&elem_type=%s", tg.ElemType)
	} else {
		fmt.Fprintf(&b, "&data_type=%s", tg.DataType)
	}
	if tg.ElemSize > 0 {
		fmt.Fprintf(&b, "&elem_size=%d", tg.ElemSize)
	}
	fmt.Fprintf(&b, "&elem_count=%d&read_cache_ms=%d", count, tg.CacheMs)
	fmt.Fprintf(&b, "&share_session=%t&use_connected_msg=%t&allow_packing=%t",
		boolOrDefault(gw.ShareSession, true), boolOrDefault(gw.UseConnectedMsg, true), gw.AllowPacking)
	return b.String()
}

// GatewayByName returns the gateway profile with the given name.
func (c *Config) GatewayByName(name string) (*GatewayConfig, bool) {
	for i := range c.Gateways {
		if c.Gateways[i].Name == name {
			return &c.Gateways[i], true
		}
	}
	return nil, false
}

// WriteDefault writes a minimal example config to path, for a first-run
// experience analogous to the teacher's WriteDefaultClientConfig.
func WriteDefault(path string) error {
	cfg := Config{
		Gateways: []GatewayConfig{
			{Name: "plc1", Protocol: "logix", Host: "192.168.1.10", Port: defaultPort},
		},
		Tags: []TagConfig{
			{Name: "Counter", Gateway: "plc1", Address: "Counter", DataType: "DINT", ElementCount: 1},
		},
		Logging: LoggingConfig{Level: "info"},
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal default: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
