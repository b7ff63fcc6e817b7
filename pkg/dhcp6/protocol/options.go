package protocol

import (
	"encoding/binary"
	"net"
	"net/netip"
	"unicode/utf8"
)

// ClientIDOption carries the client's DUID.
type ClientIDOption struct {
	DUID DUID
}

func (o *ClientIDOption) Code() OptionCode { return OptionClientID }

func (o *ClientIDOption) Validate() error { return validateDUID("ClientID", o.DUID) }

func (o *ClientIDOption) Marshal() ([]byte, error) { return marshalDUIDOption(OptionClientID, o.DUID) }

func (o *ClientIDOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	d, n, err := unmarshalDUIDOption(OptionClientID, buf)
	if err != nil {
		return 0, err
	}
	o.DUID = d
	return n, nil
}

// ServerIDOption carries the server's DUID.
type ServerIDOption struct {
	DUID DUID
}

func (o *ServerIDOption) Code() OptionCode { return OptionServerID }

func (o *ServerIDOption) Validate() error { return validateDUID("ServerID", o.DUID) }

func (o *ServerIDOption) Marshal() ([]byte, error) { return marshalDUIDOption(OptionServerID, o.DUID) }

func (o *ServerIDOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	d, n, err := unmarshalDUIDOption(OptionServerID, buf)
	if err != nil {
		return 0, err
	}
	o.DUID = d
	return n, nil
}

func validateDUID(element string, d DUID) error {
	if d == nil {
		return invalid(element, ErrInvalidValue, "missing DUID")
	}
	return d.Validate()
}

func marshalDUIDOption(code OptionCode, d DUID) ([]byte, error) {
	if err := validateDUID(code.String(), d); err != nil {
		return nil, err
	}
	payload, err := d.Marshal()
	if err != nil {
		return nil, err
	}
	return encodeOption(code, payload)
}

func unmarshalDUIDOption(code OptionCode, buf []byte) (DUID, int, error) {
	payload, err := parseOptionHeader(buf, code, -1)
	if err != nil {
		return nil, 0, err
	}
	d, err := ParseDUID(payload)
	if err != nil {
		return nil, 0, err
	}
	return d, optionHeaderLen + len(payload), nil
}

// OptionRequestOption lists the option codes a client asks for.
type OptionRequestOption struct {
	Requested []OptionCode
}

func (o *OptionRequestOption) Code() OptionCode { return OptionOptionRequest }

func (o *OptionRequestOption) Validate() error {
	if 2*len(o.Requested) > maxOptionPayload {
		return invalid("OptionRequest", ErrOutOfRange, "%d requested options", len(o.Requested))
	}
	return nil
}

// Has reports whether code was requested.
func (o *OptionRequestOption) Has(code OptionCode) bool {
	for _, c := range o.Requested {
		if c == code {
			return true
		}
	}
	return false
}

func (o *OptionRequestOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 2*len(o.Requested))
	for _, c := range o.Requested {
		payload = binary.BigEndian.AppendUint16(payload, uint16(c))
	}
	return encodeOption(OptionOptionRequest, payload)
}

func (o *OptionRequestOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionOptionRequest, -1)
	if err != nil {
		return 0, err
	}
	if len(payload)%2 != 0 {
		return 0, invalid("OptionRequest", ErrLengthMismatch, "odd payload length %d", len(payload))
	}
	o.Requested = nil
	for i := 0; i < len(payload); i += 2 {
		o.Requested = append(o.Requested, OptionCode(binary.BigEndian.Uint16(payload[i:i+2])))
	}
	return optionHeaderLen + len(payload), nil
}

type PreferenceOption struct {
	Preference uint8
}

func (o *PreferenceOption) Code() OptionCode { return OptionPreference }

func (o *PreferenceOption) Validate() error { return nil }

func (o *PreferenceOption) Marshal() ([]byte, error) {
	return encodeOption(OptionPreference, []byte{o.Preference})
}

func (o *PreferenceOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionPreference, 1)
	if err != nil {
		return 0, err
	}
	o.Preference = payload[0]
	return optionHeaderLen + 1, nil
}

// ElapsedTimeOption is the time since the client began the exchange, in
// hundredths of a second.
type ElapsedTimeOption struct {
	ElapsedTime uint16
}

func (o *ElapsedTimeOption) Code() OptionCode { return OptionElapsedTime }

func (o *ElapsedTimeOption) Validate() error { return nil }

func (o *ElapsedTimeOption) Marshal() ([]byte, error) {
	return encodeOption(OptionElapsedTime, binary.BigEndian.AppendUint16(nil, o.ElapsedTime))
}

func (o *ElapsedTimeOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionElapsedTime, 2)
	if err != nil {
		return 0, err
	}
	o.ElapsedTime = binary.BigEndian.Uint16(payload)
	return optionHeaderLen + 2, nil
}

// ServerUnicastOption tells the client which address it may unicast to.
type ServerUnicastOption struct {
	Address netip.Addr
}

func (o *ServerUnicastOption) Code() OptionCode { return OptionServerUnicast }

func (o *ServerUnicastOption) Validate() error {
	return validateRoutable("ServerUnicast", o.Address)
}

func (o *ServerUnicastOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionServerUnicast, appendAddr(nil, o.Address))
}

func (o *ServerUnicastOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionServerUnicast, 16)
	if err != nil {
		return 0, err
	}
	o.Address = readAddr(payload)
	return optionHeaderLen + 16, nil
}

type StatusCodeOption struct {
	Status  StatusCode
	Message string
}

func (o *StatusCodeOption) Code() OptionCode { return OptionStatusCode }

func (o *StatusCodeOption) Validate() error {
	if !utf8.ValidString(o.Message) {
		return invalid("StatusCode", ErrInvalidValue, "message is not valid UTF-8")
	}
	if 2+len(o.Message) > maxOptionPayload {
		return invalid("StatusCode", ErrOutOfRange, "message of %d bytes", len(o.Message))
	}
	return nil
}

func (o *StatusCodeOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(o.Message)), uint16(o.Status))
	return encodeOption(OptionStatusCode, append(payload, o.Message...))
}

func (o *StatusCodeOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionStatusCode, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 {
		return 0, shortPayload("StatusCode", len(payload), 2)
	}
	o.Status = StatusCode(binary.BigEndian.Uint16(payload[0:2]))
	o.Message = string(payload[2:])
	return optionHeaderLen + len(payload), nil
}

type RapidCommitOption struct{}

func (o *RapidCommitOption) Code() OptionCode { return OptionRapidCommit }

func (o *RapidCommitOption) Validate() error { return nil }

func (o *RapidCommitOption) Marshal() ([]byte, error) {
	return encodeOption(OptionRapidCommit, nil)
}

func (o *RapidCommitOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	if _, err := parseOptionHeader(buf, OptionRapidCommit, 0); err != nil {
		return 0, err
	}
	return optionHeaderLen, nil
}

type UserClassOption struct {
	Data [][]byte
}

func (o *UserClassOption) Code() OptionCode { return OptionUserClass }

func (o *UserClassOption) Validate() error { return validateStringList("UserClass", o.Data) }

func (o *UserClassOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionUserClass, appendStringList(nil, o.Data))
}

func (o *UserClassOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionUserClass, -1)
	if err != nil {
		return 0, err
	}
	if o.Data, err = readStringList(payload); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

type VendorClassOption struct {
	EnterpriseNumber uint32
	Data             [][]byte
}

func (o *VendorClassOption) Code() OptionCode { return OptionVendorClass }

func (o *VendorClassOption) Validate() error { return validateStringList("VendorClass", o.Data) }

func (o *VendorClassOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	payload := binary.BigEndian.AppendUint32(nil, o.EnterpriseNumber)
	return encodeOption(OptionVendorClass, appendStringList(payload, o.Data))
}

func (o *VendorClassOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionVendorClass, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, shortPayload("VendorClass", len(payload), 4)
	}
	o.EnterpriseNumber = binary.BigEndian.Uint32(payload[0:4])
	if o.Data, err = readStringList(payload[4:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

// InterfaceIDOption is set by a relay to identify the link a request came
// from. Servers copy it unchanged into the matching Relay-reply.
type InterfaceIDOption struct {
	InterfaceID []byte
}

func (o *InterfaceIDOption) Code() OptionCode { return OptionInterfaceID }

func (o *InterfaceIDOption) Validate() error {
	if len(o.InterfaceID) > maxOptionPayload {
		return invalid("InterfaceID", ErrOutOfRange, "interface id of %d bytes", len(o.InterfaceID))
	}
	return nil
}

func (o *InterfaceIDOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(OptionInterfaceID, o.InterfaceID)
}

func (o *InterfaceIDOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionInterfaceID, -1)
	if err != nil {
		return 0, err
	}
	o.InterfaceID = cloneBytes(payload)
	return optionHeaderLen + len(payload), nil
}

type ReconfigureAcceptOption struct{}

func (o *ReconfigureAcceptOption) Code() OptionCode { return OptionReconfigureAccept }

func (o *ReconfigureAcceptOption) Validate() error { return nil }

func (o *ReconfigureAcceptOption) Marshal() ([]byte, error) {
	return encodeOption(OptionReconfigureAccept, nil)
}

func (o *ReconfigureAcceptOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	if _, err := parseOptionHeader(buf, OptionReconfigureAccept, 0); err != nil {
		return 0, err
	}
	return optionHeaderLen, nil
}

// RemoteIDOption is added by relays (RFC 4649).
type RemoteIDOption struct {
	EnterpriseNumber uint32
	RemoteID         []byte
}

func (o *RemoteIDOption) Code() OptionCode { return OptionRemoteID }

func (o *RemoteIDOption) Validate() error {
	if 4+len(o.RemoteID) > maxOptionPayload {
		return invalid("RemoteID", ErrOutOfRange, "remote id of %d bytes", len(o.RemoteID))
	}
	return nil
}

func (o *RemoteIDOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	payload := binary.BigEndian.AppendUint32(nil, o.EnterpriseNumber)
	return encodeOption(OptionRemoteID, append(payload, o.RemoteID...))
}

func (o *RemoteIDOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionRemoteID, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, shortPayload("RemoteID", len(payload), 4)
	}
	o.EnterpriseNumber = binary.BigEndian.Uint32(payload[0:4])
	o.RemoteID = cloneBytes(payload[4:])
	return optionHeaderLen + len(payload), nil
}

// ClientLinkLayerAddressOption is added by first-hop relays (RFC 6939).
type ClientLinkLayerAddressOption struct {
	LinkLayerType    uint16
	LinkLayerAddress net.HardwareAddr
}

func (o *ClientLinkLayerAddressOption) Code() OptionCode { return OptionClientLinkLayerAddress }

func (o *ClientLinkLayerAddressOption) Validate() error {
	if 2+len(o.LinkLayerAddress) > maxOptionPayload {
		return invalid("ClientLinkLayerAddress", ErrOutOfRange, "address of %d bytes", len(o.LinkLayerAddress))
	}
	return nil
}

func (o *ClientLinkLayerAddressOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	payload := binary.BigEndian.AppendUint16(nil, o.LinkLayerType)
	return encodeOption(OptionClientLinkLayerAddress, append(payload, o.LinkLayerAddress...))
}

func (o *ClientLinkLayerAddressOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionClientLinkLayerAddress, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 {
		return 0, shortPayload("ClientLinkLayerAddress", len(payload), 2)
	}
	o.LinkLayerType = binary.BigEndian.Uint16(payload[0:2])
	o.LinkLayerAddress = net.HardwareAddr(cloneBytes(payload[2:]))
	return optionHeaderLen + len(payload), nil
}
