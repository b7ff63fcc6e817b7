package config

import "time"

type Config struct {
	Logging     Logging     `yaml:"logging" toml:"logging"`
	Server      Server      `yaml:"server" toml:"server"`
	IANATiming  Timing      `yaml:"iana_timing" toml:"iana_timing"`
	IAPDTiming  Timing      `yaml:"iapd_timing" toml:"iapd_timing"`
	Options     Options     `yaml:"options,omitempty" toml:"options"`
	Assignments Assignments `yaml:"assignments,omitempty" toml:"assignments"`
	Listener    Listener    `yaml:"listener" toml:"listener"`
	Monitoring  Monitoring  `yaml:"monitoring,omitempty" toml:"monitoring"`
}

type Logging struct {
	Format     string            `yaml:"format" toml:"format"`
	Level      string            `yaml:"level" toml:"level"`
	Components map[string]string `yaml:"components,omitempty" toml:"components"`
}

type Server struct {
	// DUID is the server identity in hex. When empty a DUID-UUID is derived
	// from the host name.
	DUID                  string `yaml:"duid,omitempty" toml:"duid"`
	Authoritative         bool   `yaml:"authoritative" toml:"authoritative"`
	AllowRapidCommit      bool   `yaml:"allow_rapid_commit" toml:"allow_rapid_commit"`
	RapidCommitRejections bool   `yaml:"rapid_commit_rejections" toml:"rapid_commit_rejections"`
	AllowUnicast          bool   `yaml:"allow_unicast" toml:"allow_unicast"`
	UnicastAddress        string `yaml:"unicast_address,omitempty" toml:"unicast_address"`
	Preference            *uint8 `yaml:"preference,omitempty" toml:"preference"`
}

// Timing bounds the T1 and T2 values sent in IA_NA or IA_PD options. Zero
// factors and maximums are replaced by defaults; a maximum of 4294967295
// means infinity.
type Timing struct {
	FactorT1 float64 `yaml:"factor_t1" toml:"factor_t1"`
	FactorT2 float64 `yaml:"factor_t2" toml:"factor_t2"`
	MinT1    uint32  `yaml:"min_t1" toml:"min_t1"`
	MaxT1    uint32  `yaml:"max_t1" toml:"max_t1"`
	MinT2    uint32  `yaml:"min_t2" toml:"min_t2"`
	MaxT2    uint32  `yaml:"max_t2" toml:"max_t2"`
}

type Options struct {
	// OnlyIfRequested sends the configured options only to clients that
	// list them in their Option Request option.
	OnlyIfRequested        bool      `yaml:"only_if_requested" toml:"only_if_requested"`
	DNSServers             []string  `yaml:"dns_servers,omitempty" toml:"dns_servers"`
	SNTPServers            []string  `yaml:"sntp_servers,omitempty" toml:"sntp_servers"`
	InformationRefreshTime uint32    `yaml:"information_refresh_time,omitempty" toml:"information_refresh_time"`
	SolMaxRT               uint32    `yaml:"sol_max_rt,omitempty" toml:"sol_max_rt"`
	InfMaxRT               uint32    `yaml:"inf_max_rt,omitempty" toml:"inf_max_rt"`
	S46Rules               []S46Rule `yaml:"s46_rules,omitempty" toml:"s46_rules"`
}

type S46Rule struct {
	IPv4Prefix string `yaml:"ipv4_prefix" toml:"ipv4_prefix"`
	IPv6Prefix string `yaml:"ipv6_prefix" toml:"ipv6_prefix"`
	EALength   uint8  `yaml:"ea_length" toml:"ea_length"`
	Forwarding bool   `yaml:"forwarding,omitempty" toml:"forwarding"`
}

type Assignments struct {
	// Type selects a registered backend, "csv" or "sqlite". Empty disables
	// static assignments.
	Type             string `yaml:"type,omitempty" toml:"type"`
	Path             string `yaml:"path,omitempty" toml:"path"`
	AddressPreferred uint32 `yaml:"address_preferred_lifetime,omitempty" toml:"address_preferred_lifetime"`
	AddressValid     uint32 `yaml:"address_valid_lifetime,omitempty" toml:"address_valid_lifetime"`
	PrefixPreferred  uint32 `yaml:"prefix_preferred_lifetime,omitempty" toml:"prefix_preferred_lifetime"`
	PrefixValid      uint32 `yaml:"prefix_valid_lifetime,omitempty" toml:"prefix_valid_lifetime"`
}

type Listener struct {
	Interfaces []string `yaml:"interfaces" toml:"interfaces"`
	Address    string   `yaml:"address,omitempty" toml:"address"`
	Port       int      `yaml:"port,omitempty" toml:"port"`

	// ReadTimeout bounds each blocking read so shutdown is noticed.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" toml:"read_timeout"`
}

type Monitoring struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen,omitempty" toml:"listen"`
	Path    string `yaml:"path,omitempty" toml:"path"`
}
