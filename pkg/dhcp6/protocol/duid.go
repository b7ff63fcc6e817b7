package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"

	"github.com/google/uuid"
)

type DUIDType uint16

const (
	DUIDTypeLLT  DUIDType = 1
	DUIDTypeEN   DUIDType = 2
	DUIDTypeLL   DUIDType = 3
	DUIDTypeUUID DUIDType = 4

	maxDUIDLen = 130

	HardwareTypeEthernet uint16 = 1
)

// DUID identifies a client or server (RFC 8415 section 11).
type DUID interface {
	DUIDType() DUIDType
	Validate() error
	Marshal() ([]byte, error)
}

// LinkLayerTimeDUID is DUID-LLT. Time counts seconds since 2000-01-01 UTC.
type LinkLayerTimeDUID struct {
	HardwareType     uint16
	Time             uint32
	LinkLayerAddress net.HardwareAddr
}

func (d *LinkLayerTimeDUID) DUIDType() DUIDType { return DUIDTypeLLT }

func (d *LinkLayerTimeDUID) Validate() error {
	if 8+len(d.LinkLayerAddress) > maxDUIDLen {
		return invalid("DUID-LLT", ErrOutOfRange, "link-layer address of %d bytes", len(d.LinkLayerAddress))
	}
	return nil
}

func (d *LinkLayerTimeDUID) Marshal() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 8, 8+len(d.LinkLayerAddress))
	binary.BigEndian.PutUint16(buf[0:2], uint16(DUIDTypeLLT))
	binary.BigEndian.PutUint16(buf[2:4], d.HardwareType)
	binary.BigEndian.PutUint32(buf[4:8], d.Time)
	return append(buf, d.LinkLayerAddress...), nil
}

// EnterpriseDUID is DUID-EN.
type EnterpriseDUID struct {
	EnterpriseNumber uint32
	Identifier       []byte
}

func (d *EnterpriseDUID) DUIDType() DUIDType { return DUIDTypeEN }

func (d *EnterpriseDUID) Validate() error {
	if 6+len(d.Identifier) > maxDUIDLen {
		return invalid("DUID-EN", ErrOutOfRange, "identifier of %d bytes", len(d.Identifier))
	}
	return nil
}

func (d *EnterpriseDUID) Marshal() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 6, 6+len(d.Identifier))
	binary.BigEndian.PutUint16(buf[0:2], uint16(DUIDTypeEN))
	binary.BigEndian.PutUint32(buf[2:6], d.EnterpriseNumber)
	return append(buf, d.Identifier...), nil
}

// LinkLayerDUID is DUID-LL.
type LinkLayerDUID struct {
	HardwareType     uint16
	LinkLayerAddress net.HardwareAddr
}

func (d *LinkLayerDUID) DUIDType() DUIDType { return DUIDTypeLL }

func (d *LinkLayerDUID) Validate() error {
	if 4+len(d.LinkLayerAddress) > maxDUIDLen {
		return invalid("DUID-LL", ErrOutOfRange, "link-layer address of %d bytes", len(d.LinkLayerAddress))
	}
	return nil
}

func (d *LinkLayerDUID) Marshal() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 4, 4+len(d.LinkLayerAddress))
	binary.BigEndian.PutUint16(buf[0:2], uint16(DUIDTypeLL))
	binary.BigEndian.PutUint16(buf[2:4], d.HardwareType)
	return append(buf, d.LinkLayerAddress...), nil
}

// UUIDDUID is DUID-UUID (RFC 6355).
type UUIDDUID struct {
	UUID uuid.UUID
}

func (d *UUIDDUID) DUIDType() DUIDType { return DUIDTypeUUID }

func (d *UUIDDUID) Validate() error { return nil }

func (d *UUIDDUID) Marshal() ([]byte, error) {
	buf := make([]byte, 2, 18)
	binary.BigEndian.PutUint16(buf, uint16(DUIDTypeUUID))
	return append(buf, d.UUID[:]...), nil
}

// UnknownDUID keeps DUIDs of unregistered types verbatim.
type UnknownDUID struct {
	Type DUIDType
	Data []byte
}

func (d *UnknownDUID) DUIDType() DUIDType { return d.Type }

func (d *UnknownDUID) Validate() error {
	if 2+len(d.Data) > maxDUIDLen {
		return invalid("DUID", ErrOutOfRange, "%d bytes of DUID data", len(d.Data))
	}
	return nil
}

func (d *UnknownDUID) Marshal() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 2, 2+len(d.Data))
	binary.BigEndian.PutUint16(buf, uint16(d.Type))
	return append(buf, d.Data...), nil
}

// ParseDUID decodes a complete DUID.
func ParseDUID(b []byte) (DUID, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: DUID of %d bytes", ErrShortBuffer, len(b))
	}
	if len(b) > maxDUIDLen {
		return nil, fmt.Errorf("%w: DUID of %d bytes exceeds %d", ErrOutOfRange, len(b), maxDUIDLen)
	}

	t := DUIDType(binary.BigEndian.Uint16(b[0:2]))
	switch t {
	case DUIDTypeLLT:
		if len(b) < 8 {
			return nil, fmt.Errorf("%w: DUID-LLT of %d bytes", ErrShortBuffer, len(b))
		}
		return &LinkLayerTimeDUID{
			HardwareType:     binary.BigEndian.Uint16(b[2:4]),
			Time:             binary.BigEndian.Uint32(b[4:8]),
			LinkLayerAddress: net.HardwareAddr(cloneBytes(b[8:])),
		}, nil
	case DUIDTypeEN:
		if len(b) < 6 {
			return nil, fmt.Errorf("%w: DUID-EN of %d bytes", ErrShortBuffer, len(b))
		}
		return &EnterpriseDUID{
			EnterpriseNumber: binary.BigEndian.Uint32(b[2:6]),
			Identifier:       cloneBytes(b[6:]),
		}, nil
	case DUIDTypeLL:
		if len(b) < 4 {
			return nil, fmt.Errorf("%w: DUID-LL of %d bytes", ErrShortBuffer, len(b))
		}
		return &LinkLayerDUID{
			HardwareType:     binary.BigEndian.Uint16(b[2:4]),
			LinkLayerAddress: net.HardwareAddr(cloneBytes(b[4:])),
		}, nil
	case DUIDTypeUUID:
		if len(b) != 18 {
			return nil, fmt.Errorf("%w: DUID-UUID of %d bytes, want 18", ErrFixedLength, len(b))
		}
		id, err := uuid.FromBytes(b[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return &UUIDDUID{UUID: id}, nil
	default:
		return &UnknownDUID{Type: t, Data: cloneBytes(b[2:])}, nil
	}
}

// ParseDUIDHex decodes a DUID written as hex, with or without colons.
func ParseDUIDHex(s string) (DUID, error) {
	b, err := hex.DecodeString(stripColons(s))
	if err != nil {
		return nil, fmt.Errorf("decode duid %q: %w", s, err)
	}
	return ParseDUID(b)
}

func stripColons(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ':' && s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// DUIDString renders a DUID as lowercase hex, the form used for lookups.
func DUIDString(d DUID) string {
	if d == nil {
		return ""
	}
	b, err := d.Marshal()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

func EqualDUID(a, b DUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, err := a.Marshal()
	if err != nil {
		return false
	}
	bb, err := b.Marshal()
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// NameBasedDUID derives a stable DUID-UUID from name, so a host keeps its
// identity across restarts without persisting anything.
func NameBasedDUID(name string) *UUIDDUID {
	return &UUIDDUID{UUID: uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name))}
}
