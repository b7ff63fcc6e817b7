package protocol

import (
	"encoding/binary"
	"net/netip"
)

const (
	minMaxRT = 60
	maxMaxRT = 86400
)

// RecursiveNameServersOption lists DNS resolvers (RFC 3646).
type RecursiveNameServersOption struct {
	Servers []netip.Addr
}

func (o *RecursiveNameServersOption) Code() OptionCode { return OptionRecursiveNameServers }

func (o *RecursiveNameServersOption) Validate() error {
	return validateServerList("RecursiveNameServers", o.Servers)
}

func (o *RecursiveNameServersOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionRecursiveNameServers, appendAddrList(o.Servers))
}

func (o *RecursiveNameServersOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionRecursiveNameServers, -1)
	if err != nil {
		return 0, err
	}
	if o.Servers, err = readAddrList("RecursiveNameServers", payload); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

// SNTPServersOption lists SNTP servers (RFC 4075).
type SNTPServersOption struct {
	Servers []netip.Addr
}

func (o *SNTPServersOption) Code() OptionCode { return OptionSNTPServers }

func (o *SNTPServersOption) Validate() error {
	return validateServerList("SNTPServers", o.Servers)
}

func (o *SNTPServersOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionSNTPServers, appendAddrList(o.Servers))
}

func (o *SNTPServersOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionSNTPServers, -1)
	if err != nil {
		return 0, err
	}
	if o.Servers, err = readAddrList("SNTPServers", payload); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

func validateServerList(element string, servers []netip.Addr) error {
	if 16*len(servers) > maxOptionPayload {
		return invalid(element, ErrOutOfRange, "%d servers", len(servers))
	}
	for _, s := range servers {
		if err := validateRoutable(element, s); err != nil {
			return err
		}
	}
	return nil
}

func appendAddrList(addrs []netip.Addr) []byte {
	buf := make([]byte, 0, 16*len(addrs))
	for _, a := range addrs {
		buf = appendAddr(buf, a)
	}
	return buf
}

// InformationRefreshTimeOption bounds how long a client waits before
// refreshing configuration obtained with Information-request (RFC 4242).
type InformationRefreshTimeOption struct {
	RefreshTime uint32
}

func (o *InformationRefreshTimeOption) Code() OptionCode { return OptionInformationRefreshTime }

func (o *InformationRefreshTimeOption) Validate() error {
	if o.RefreshTime < 600 {
		return invalid("InformationRefreshTime", ErrOutOfRange, "refresh time %d below 600", o.RefreshTime)
	}
	return nil
}

func (o *InformationRefreshTimeOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionInformationRefreshTime, binary.BigEndian.AppendUint32(nil, o.RefreshTime))
}

func (o *InformationRefreshTimeOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionInformationRefreshTime, 4)
	if err != nil {
		return 0, err
	}
	o.RefreshTime = binary.BigEndian.Uint32(payload)
	return optionHeaderLen + 4, nil
}

// SolMaxRTOption overrides the client's Solicit retransmission ceiling
// (RFC 7083).
type SolMaxRTOption struct {
	MaxRT uint32
}

func (o *SolMaxRTOption) Code() OptionCode { return OptionSolMaxRT }

func (o *SolMaxRTOption) Validate() error {
	return validateRange("SolMaxRT", "SOL_MAX_RT", uint64(o.MaxRT), minMaxRT, maxMaxRT)
}

func (o *SolMaxRTOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionSolMaxRT, binary.BigEndian.AppendUint32(nil, o.MaxRT))
}

func (o *SolMaxRTOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionSolMaxRT, 4)
	if err != nil {
		return 0, err
	}
	o.MaxRT = binary.BigEndian.Uint32(payload)
	return optionHeaderLen + 4, nil
}

// InfMaxRTOption overrides the client's Information-request retransmission
// ceiling (RFC 7083).
type InfMaxRTOption struct {
	MaxRT uint32
}

func (o *InfMaxRTOption) Code() OptionCode { return OptionInfMaxRT }

func (o *InfMaxRTOption) Validate() error {
	return validateRange("InfMaxRT", "INF_MAX_RT", uint64(o.MaxRT), minMaxRT, maxMaxRT)
}

func (o *InfMaxRTOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionInfMaxRT, binary.BigEndian.AppendUint32(nil, o.MaxRT))
}

func (o *InfMaxRTOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionInfMaxRT, 4)
	if err != nil {
		return 0, err
	}
	o.MaxRT = binary.BigEndian.Uint32(payload)
	return optionHeaderLen + 4, nil
}

// S46RuleOption is a MAP-E/MAP-T mapping rule (RFC 7598). Both prefixes
// are carried in the minimal number of bytes covering their length.
type S46RuleOption struct {
	Flags      uint8
	EALen      uint8
	IPv4Prefix netip.Prefix
	IPv6Prefix netip.Prefix
	Opts       []Option
}

const S46RuleFlagForwarding uint8 = 0x01

func (o *S46RuleOption) Code() OptionCode { return OptionS46Rule }

func (o *S46RuleOption) Options() []Option { return o.Opts }

func (o *S46RuleOption) Constraints() Constraints { return s46RuleConstraints }

func (o *S46RuleOption) Validate() error {
	if !o.IPv4Prefix.IsValid() || !o.IPv4Prefix.Addr().Is4() {
		return invalid("S46Rule", ErrInvalidAddress, "IPv4 prefix %v", o.IPv4Prefix)
	}
	if !o.IPv6Prefix.IsValid() || !o.IPv6Prefix.Addr().Is6() || o.IPv6Prefix.Addr().Is4In6() {
		return invalid("S46Rule", ErrInvalidAddress, "IPv6 prefix %v", o.IPv6Prefix)
	}
	if err := validateRange("S46Rule", "EA length", uint64(o.EALen), 0, 48); err != nil {
		return err
	}
	return ValidateContainment("S46Rule", s46RuleConstraints, o.Opts)
}

func (o *S46RuleOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	opts, err := marshalOptions(o.Opts)
	if err != nil {
		return nil, err
	}
	payload := []byte{o.Flags, o.EALen, byte(o.IPv4Prefix.Bits())}
	payload = appendPrefix(payload, o.IPv4Prefix)
	payload = append(payload, byte(o.IPv6Prefix.Bits()))
	payload = appendPrefix(payload, o.IPv6Prefix)
	return encodeOption(OptionS46Rule, append(payload, opts...))
}

func (o *S46RuleOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionS46Rule, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 3 {
		return 0, shortPayload("S46Rule", len(payload), 3)
	}
	o.Flags = payload[0]
	o.EALen = payload[1]

	offset := 2
	v4Bits := int(payload[offset])
	offset++
	if v4Bits > 32 {
		return 0, invalid("S46Rule", ErrOutOfRange, "IPv4 prefix length %d", v4Bits)
	}
	if o.IPv4Prefix, err = readPrefix(payload[offset:], v4Bits, 4); err != nil {
		return 0, err
	}
	offset += prefixLen(v4Bits)

	if offset >= len(payload) {
		return 0, shortPayload("S46Rule", len(payload), offset+1)
	}
	v6Bits := int(payload[offset])
	offset++
	if v6Bits > 128 {
		return 0, invalid("S46Rule", ErrOutOfRange, "IPv6 prefix length %d", v6Bits)
	}
	if o.IPv6Prefix, err = readPrefix(payload[offset:], v6Bits, 16); err != nil {
		return 0, err
	}
	offset += prefixLen(v6Bits)

	if o.Opts, err = r.parseOptions(payload[offset:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

var s46RuleConstraints = Constraints{
	AtMost(0, OptionRelayMessage),
	AtMost(0, GroupIA...),
	AnyNumber(),
}
