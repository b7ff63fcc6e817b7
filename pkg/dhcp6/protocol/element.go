// Package protocol implements the DHCPv6 wire codec: messages, options,
// their containment rules and the registry that maps type codes to Go types.
package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	optionHeaderLen       = 4
	clientServerHeaderLen = 4
	relayHeaderLen        = 34
	maxOptionPayload      = 0xffff

	// Infinity is the lifetime value that never expires.
	Infinity uint32 = 0xffffffff

	ClientPort = 546
	ServerPort = 547
)

// AllDHCPRelayAgentsAndServers is the link-scoped group clients send to.
var AllDHCPRelayAgentsAndServers = netip.MustParseAddr("ff02::1:2")

// Element is anything the codec can put on the wire.
type Element interface {
	// Validate checks field ranges and containment, recursing into children.
	Validate() error
	// Marshal validates the element and returns its wire encoding.
	Marshal() ([]byte, error)
}

// Option is a TLV encoded option.
type Option interface {
	Element
	Code() OptionCode
	// Unmarshal decodes the option from buf, which starts at the option
	// header and may extend past the end of the option. It returns the
	// number of bytes consumed.
	Unmarshal(r *Registry, buf []byte) (int, error)
}

// Message is a client-server message, a relay message or an unknown message.
type Message interface {
	Element
	Type() MessageType
	// Unmarshal decodes the message from buf; a message always consumes
	// the whole buffer.
	Unmarshal(r *Registry, buf []byte) (int, error)
	Options() []Option
}

// Container is implemented by elements that hold child options.
type Container interface {
	Options() []Option
	Constraints() Constraints
}

// parseOptionHeader checks the header at the start of buf and returns the
// payload. fixedLen < 0 accepts any declared length.
func parseOptionHeader(buf []byte, code OptionCode, fixedLen int) ([]byte, error) {
	if len(buf) < optionHeaderLen {
		return nil, fmt.Errorf("%w: need %d header bytes, have %d", ErrShortBuffer, optionHeaderLen, len(buf))
	}

	got := OptionCode(binary.BigEndian.Uint16(buf[0:2]))
	if got != code {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrTypeMismatch, got, code)
	}

	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if optionHeaderLen+length > len(buf) {
		return nil, fmt.Errorf("%w: declared %d payload bytes, %d available", ErrLengthMismatch, length, len(buf)-optionHeaderLen)
	}

	if fixedLen >= 0 && length != fixedLen {
		return nil, fmt.Errorf("%w: declared %d, want %d", ErrFixedLength, length, fixedLen)
	}

	return buf[optionHeaderLen : optionHeaderLen+length], nil
}

func encodeOption(code OptionCode, payload []byte) ([]byte, error) {
	if len(payload) > maxOptionPayload {
		return nil, invalid(code.String(), ErrOutOfRange, "payload of %d bytes does not fit the length field", len(payload))
	}

	buf := make([]byte, optionHeaderLen, optionHeaderLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(code))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	return append(buf, payload...), nil
}

func marshalOptions(opts []Option) ([]byte, error) {
	var out []byte
	for _, opt := range opts {
		b, err := opt.Marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func readAddr(b []byte) netip.Addr {
	return netip.AddrFrom16([16]byte(b[:16]))
}

func appendAddr(buf []byte, addr netip.Addr) []byte {
	a := addr.As16()
	return append(buf, a[:]...)
}

func validateIPv6(element string, addr netip.Addr) error {
	if !addr.IsValid() || !addr.Is6() || addr.Is4In6() {
		return invalid(element, ErrInvalidAddress, "%v is not an IPv6 address", addr)
	}
	return nil
}

// validateAddr16 accepts anything stored in a 16 byte address field,
// IPv4-mapped addresses included.
func validateAddr16(element string, addr netip.Addr) error {
	if !addr.IsValid() || !addr.Is6() {
		return invalid(element, ErrInvalidAddress, "%v is not a 16 byte address", addr)
	}
	return nil
}

// validateRoutable rejects multicast, unspecified and loopback addresses.
func validateRoutable(element string, addr netip.Addr) error {
	if err := validateIPv6(element, addr); err != nil {
		return err
	}
	if addr.IsMulticast() || addr.IsUnspecified() || addr.IsLoopback() {
		return invalid(element, ErrInvalidAddress, "%v is not a routable unicast address", addr)
	}
	return nil
}

// validateNonMulticast accepts any IPv6 address except multicast ones.
func validateNonMulticast(element string, addr netip.Addr) error {
	if err := validateIPv6(element, addr); err != nil {
		return err
	}
	if addr.IsMulticast() {
		return invalid(element, ErrInvalidAddress, "%v is a multicast address", addr)
	}
	return nil
}

func validateRange(element, field string, v, min, max uint64) error {
	if v < min || v > max {
		return invalid(element, ErrOutOfRange, "%s %d must be in [%d, %d]", field, v, min, max)
	}
	return nil
}

// prefixLen returns the number of bytes needed to carry a prefix of bits.
func prefixLen(bits int) int {
	return (bits + 7) / 8
}

// appendPrefix writes only the bytes covering the prefix length.
func appendPrefix(buf []byte, p netip.Prefix) []byte {
	a := p.Addr().AsSlice()
	return append(buf, a[:prefixLen(p.Bits())]...)
}

// readPrefix reads a prefix written by appendPrefix, padding the address
// with zero bytes. Host bits present on the wire are kept as received.
func readPrefix(b []byte, bits int, size int) (netip.Prefix, error) {
	n := prefixLen(bits)
	if len(b) < n {
		return netip.Prefix{}, fmt.Errorf("%w: prefix /%d needs %d bytes, have %d", ErrShortBuffer, bits, n, len(b))
	}

	var addr netip.Addr
	switch size {
	case 4:
		var a [4]byte
		copy(a[:], b[:n])
		addr = netip.AddrFrom4(a)
	default:
		var a [16]byte
		copy(a[:], b[:n])
		addr = netip.AddrFrom16(a)
	}
	return netip.PrefixFrom(addr, bits), nil
}

// readStringList decodes a sequence of 2-byte length prefixed opaque values.
func readStringList(b []byte) ([][]byte, error) {
	var out [][]byte
	for offset := 0; offset < len(b); {
		if offset+2 > len(b) {
			return nil, fmt.Errorf("%w: truncated length prefix at %d", ErrShortBuffer, offset)
		}
		n := int(binary.BigEndian.Uint16(b[offset : offset+2]))
		offset += 2
		if offset+n > len(b) {
			return nil, fmt.Errorf("%w: value of %d bytes overruns %d remaining", ErrLengthMismatch, n, len(b)-offset)
		}
		out = append(out, cloneBytes(b[offset:offset+n]))
		offset += n
	}
	return out, nil
}

func appendStringList(buf []byte, values [][]byte) []byte {
	for _, v := range values {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

func validateStringList(element string, values [][]byte) error {
	for i, v := range values {
		if len(v) > maxOptionPayload {
			return invalid(element, ErrOutOfRange, "value %d is %d bytes long", i, len(v))
		}
	}
	return nil
}

func readAddrList(element string, b []byte) ([]netip.Addr, error) {
	if len(b)%16 != 0 {
		return nil, fmt.Errorf("%w: %s address list of %d bytes is not a multiple of 16", ErrLengthMismatch, element, len(b))
	}
	out := make([]netip.Addr, 0, len(b)/16)
	for i := 0; i < len(b); i += 16 {
		out = append(out, readAddr(b[i:]))
	}
	return out, nil
}

// FindOption returns the first option with the given code.
func FindOption(opts []Option, code OptionCode) Option {
	for _, opt := range opts {
		if opt.Code() == code {
			return opt
		}
	}
	return nil
}

// FindOptions returns all options matching any of codes.
func FindOptions(opts []Option, codes ...OptionCode) []Option {
	var out []Option
	for _, opt := range opts {
		for _, c := range codes {
			if opt.Code() == c {
				out = append(out, opt)
				break
			}
		}
	}
	return out
}

// RemoveOptions drops all options with the given code and returns the rest.
func RemoveOptions(opts []Option, code OptionCode) []Option {
	out := make([]Option, 0, len(opts))
	for _, opt := range opts {
		if opt.Code() != code {
			out = append(out, opt)
		}
	}
	return out
}
