package protocol

import (
	"fmt"
	"net/netip"
)

// RelayMessage is a Relay-forward or Relay-reply envelope. Exactly one of
// its options is a RelayMessageOption holding the next message inwards.
type RelayMessage struct {
	MsgType     MessageType
	HopCount    uint8
	LinkAddress netip.Addr
	PeerAddress netip.Addr
	Opts        []Option
}

func (m *RelayMessage) Type() MessageType { return m.MsgType }

func (m *RelayMessage) Options() []Option { return m.Opts }

func (m *RelayMessage) Constraints() Constraints { return relayConstraints }

func (m *RelayMessage) Option(code OptionCode) Option {
	return FindOption(m.Opts, code)
}

func (m *RelayMessage) AddOption(opt Option) {
	m.Opts = append(m.Opts, opt)
}

// RelayedMessage returns the embedded message, or nil if there is none.
func (m *RelayMessage) RelayedMessage() Message {
	if opt, ok := m.Option(OptionRelayMessage).(*RelayMessageOption); ok {
		return opt.Msg
	}
	return nil
}

// SetRelayedMessage replaces the embedded message, adding the option when
// the envelope does not carry one yet.
func (m *RelayMessage) SetRelayedMessage(msg Message) {
	if opt, ok := m.Option(OptionRelayMessage).(*RelayMessageOption); ok {
		opt.Msg = msg
		return
	}
	m.Opts = append(m.Opts, &RelayMessageOption{Msg: msg})
}

func (m *RelayMessage) Validate() error {
	if !m.MsgType.IsRelay() {
		return invalid(m.MsgType.String(), ErrInvalidValue, "not a relay message type")
	}
	if err := validateAddr16(m.MsgType.String()+" link-address", m.LinkAddress); err != nil {
		return err
	}
	if err := validateAddr16(m.MsgType.String()+" peer-address", m.PeerAddress); err != nil {
		return err
	}
	return ValidateContainment(m.MsgType.String(), relayConstraints, m.Opts)
}

func (m *RelayMessage) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	opts, err := marshalOptions(m.Opts)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, relayHeaderLen+len(opts))
	buf = append(buf, byte(m.MsgType), m.HopCount)
	buf = appendAddr(buf, m.LinkAddress)
	buf = appendAddr(buf, m.PeerAddress)
	return append(buf, opts...), nil
}

func (m *RelayMessage) Unmarshal(r *Registry, buf []byte) (int, error) {
	if len(buf) < relayHeaderLen {
		return 0, fmt.Errorf("%w: relay header needs %d bytes, have %d", ErrShortBuffer, relayHeaderLen, len(buf))
	}
	if MessageType(buf[0]) != m.MsgType {
		return 0, fmt.Errorf("%w: got message type %d, want %d", ErrTypeMismatch, buf[0], m.MsgType)
	}

	m.HopCount = buf[1]
	m.LinkAddress = readAddr(buf[2:18])
	m.PeerAddress = readAddr(buf[18:34])

	opts, err := r.parseOptions(buf[relayHeaderLen:])
	if err != nil {
		return 0, err
	}
	m.Opts = opts
	return len(buf), nil
}

var relayConstraints = Constraints{
	Exactly(1, OptionRelayMessage),
	AtMost(1, OptionInterfaceID),
	AtMost(1, OptionRemoteID),
	AtMost(1, OptionClientLinkLayerAddress),
	AnyNumber(),
}

// RelayMessageOption embeds one message inside a relay envelope.
type RelayMessageOption struct {
	Msg Message
}

func (o *RelayMessageOption) Code() OptionCode { return OptionRelayMessage }

func (o *RelayMessageOption) Validate() error {
	if o.Msg == nil {
		return invalid("RelayMessage", ErrInvalidValue, "no relayed message")
	}
	return o.Msg.Validate()
}

func (o *RelayMessageOption) Marshal() ([]byte, error) {
	if o.Msg == nil {
		return nil, invalid("RelayMessage", ErrInvalidValue, "no relayed message")
	}
	payload, err := o.Msg.Marshal()
	if err != nil {
		return nil, err
	}
	return encodeOption(OptionRelayMessage, payload)
}

func (o *RelayMessageOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionRelayMessage, -1)
	if err != nil {
		return 0, err
	}
	_, msg, err := r.parseMessage(payload, 0, len(payload))
	if err != nil {
		return 0, err
	}
	o.Msg = msg
	return optionHeaderLen + len(payload), nil
}
