package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

const (
	DefaultPort          = 547
	DefaultFactorT1      = 0.5
	DefaultFactorT2      = 0.8
	DefaultMetricsListen = ":9547"
	DefaultMetricsPath   = "/metrics"
	DefaultReadTimeout   = time.Second

	DefaultPreferredLifetime uint32 = 3600
	DefaultValidLifetime     uint32 = 7200
)

// Load reads a YAML or TOML file, chosen by extension, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml" or "toml"), applies
// defaults and validates the result.
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config

	switch format {
	case "toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Get(logger.Config).Warn("Ignoring unknown configuration keys", "keys", strings.Join(keys, ","))
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func Save(path string, cfg *Config) error {
	var data []byte
	var err error

	if formatOf(path) == "toml" {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logger.LogLevelInfo)
	}

	c.IANATiming.applyDefaults()
	c.IAPDTiming.applyDefaults()

	if c.Assignments.AddressPreferred == 0 {
		c.Assignments.AddressPreferred = DefaultPreferredLifetime
	}
	if c.Assignments.AddressValid == 0 {
		c.Assignments.AddressValid = DefaultValidLifetime
	}
	if c.Assignments.PrefixPreferred == 0 {
		c.Assignments.PrefixPreferred = DefaultPreferredLifetime
	}
	if c.Assignments.PrefixValid == 0 {
		c.Assignments.PrefixValid = DefaultValidLifetime
	}

	if c.Listener.Address == "" {
		c.Listener.Address = "::"
	}
	if c.Listener.Port == 0 {
		c.Listener.Port = DefaultPort
	}
	if c.Listener.ReadTimeout == 0 {
		c.Listener.ReadTimeout = DefaultReadTimeout
	}

	if c.Monitoring.Listen == "" {
		c.Monitoring.Listen = DefaultMetricsListen
	}
	if c.Monitoring.Path == "" {
		c.Monitoring.Path = DefaultMetricsPath
	}
}

func (t *Timing) applyDefaults() {
	if t.FactorT1 == 0 {
		t.FactorT1 = DefaultFactorT1
	}
	if t.FactorT2 == 0 {
		t.FactorT2 = DefaultFactorT2
	}
	if t.MaxT1 == 0 {
		t.MaxT1 = protocol.Infinity
	}
	if t.MaxT2 == 0 {
		t.MaxT2 = protocol.Infinity
	}
}

func (c *Config) Validate() error {
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level '%s'", c.Logging.Level)
	}
	for name, level := range c.Logging.Components {
		if !logger.ValidLevel(level) {
			return fmt.Errorf("logging.components.%s: unknown level '%s'", name, level)
		}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format '%s'", c.Logging.Format)
	}

	if err := c.Server.validate(); err != nil {
		return fmt.Errorf("server.%w", err)
	}
	if err := c.IANATiming.Validate(); err != nil {
		return fmt.Errorf("iana_timing: %w", err)
	}
	if err := c.IAPDTiming.Validate(); err != nil {
		return fmt.Errorf("iapd_timing: %w", err)
	}
	if err := c.Options.validate(); err != nil {
		return fmt.Errorf("options.%w", err)
	}

	if c.Assignments.Type != "" && c.Assignments.Path == "" {
		return fmt.Errorf("assignments.path is required for backend '%s'", c.Assignments.Type)
	}
	if c.Assignments.AddressPreferred > c.Assignments.AddressValid {
		return fmt.Errorf("assignments: address preferred lifetime %d exceeds valid lifetime %d", c.Assignments.AddressPreferred, c.Assignments.AddressValid)
	}
	if c.Assignments.PrefixPreferred > c.Assignments.PrefixValid {
		return fmt.Errorf("assignments: prefix preferred lifetime %d exceeds valid lifetime %d", c.Assignments.PrefixPreferred, c.Assignments.PrefixValid)
	}

	if _, err := ParseIPv6(c.Listener.Address); err != nil {
		return fmt.Errorf("listener.address: %w", err)
	}
	if c.Listener.Port < 1 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port: %d out of range", c.Listener.Port)
	}

	return nil
}

func (s *Server) validate() error {
	if s.DUID != "" {
		if _, err := protocol.ParseDUIDHex(s.DUID); err != nil {
			return fmt.Errorf("duid: %w", err)
		}
	}
	if s.UnicastAddress != "" {
		addr, err := ParseIPv6(s.UnicastAddress)
		if err != nil {
			return fmt.Errorf("unicast_address: %w", err)
		}
		if addr.IsMulticast() || addr.IsUnspecified() || addr.IsLoopback() {
			return fmt.Errorf("unicast_address: %s is not a routable unicast address", addr)
		}
	}
	return nil
}

// Validate rejects limits that cannot all hold at once instead of letting
// one silently override the other.
func (t *Timing) Validate() error {
	if t.FactorT1 <= 0 || t.FactorT1 > 1 {
		return fmt.Errorf("factor_t1 %v must be in (0, 1]", t.FactorT1)
	}
	if t.FactorT2 <= 0 || t.FactorT2 > 1 {
		return fmt.Errorf("factor_t2 %v must be in (0, 1]", t.FactorT2)
	}
	if t.FactorT1 > t.FactorT2 {
		return fmt.Errorf("factor_t1 %v exceeds factor_t2 %v", t.FactorT1, t.FactorT2)
	}
	if t.MinT1 > t.MaxT1 {
		return fmt.Errorf("min_t1 %d exceeds max_t1 %d", t.MinT1, t.MaxT1)
	}
	if t.MinT2 > t.MaxT2 {
		return fmt.Errorf("min_t2 %d exceeds max_t2 %d", t.MinT2, t.MaxT2)
	}
	if t.MinT1 > t.MaxT2 {
		return fmt.Errorf("min_t1 %d exceeds max_t2 %d", t.MinT1, t.MaxT2)
	}
	return nil
}

func (o *Options) validate() error {
	if _, err := ParseIPv6List(o.DNSServers); err != nil {
		return fmt.Errorf("dns_servers: %w", err)
	}
	if _, err := ParseIPv6List(o.SNTPServers); err != nil {
		return fmt.Errorf("sntp_servers: %w", err)
	}
	if o.InformationRefreshTime != 0 && o.InformationRefreshTime < 600 {
		return fmt.Errorf("information_refresh_time: %d is below the minimum of 600", o.InformationRefreshTime)
	}
	if o.SolMaxRT != 0 && (o.SolMaxRT < 60 || o.SolMaxRT > 86400) {
		return fmt.Errorf("sol_max_rt: %d must be in [60, 86400]", o.SolMaxRT)
	}
	if o.InfMaxRT != 0 && (o.InfMaxRT < 60 || o.InfMaxRT > 86400) {
		return fmt.Errorf("inf_max_rt: %d must be in [60, 86400]", o.InfMaxRT)
	}
	for i, rule := range o.S46Rules {
		if _, _, err := rule.Prefixes(); err != nil {
			return fmt.Errorf("s46_rules[%d]: %w", i, err)
		}
		if rule.EALength > 48 {
			return fmt.Errorf("s46_rules[%d]: ea_length %d exceeds 48", i, rule.EALength)
		}
	}
	return nil
}
