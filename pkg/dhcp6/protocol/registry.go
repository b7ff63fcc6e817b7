package protocol

import (
	"encoding/binary"
	"fmt"
	"maps"
)

type OptionFactory func() Option

type MessageFactory func() Message

// Registry maps wire type codes to constructors. It is built once and only
// read afterwards; WithOption and WithMessage return extended copies.
type Registry struct {
	options  map[OptionCode]OptionFactory
	messages map[MessageType]MessageFactory
}

// NewRegistry returns a registry holding every option and message type
// defined in this package.
func NewRegistry() *Registry {
	r := &Registry{
		options:  make(map[OptionCode]OptionFactory),
		messages: make(map[MessageType]MessageFactory),
	}

	r.options[OptionClientID] = func() Option { return &ClientIDOption{} }
	r.options[OptionServerID] = func() Option { return &ServerIDOption{} }
	r.options[OptionIANA] = func() Option { return &IANAOption{} }
	r.options[OptionIATA] = func() Option { return &IATAOption{} }
	r.options[OptionIAAddress] = func() Option { return &IAAddressOption{} }
	r.options[OptionOptionRequest] = func() Option { return &OptionRequestOption{} }
	r.options[OptionPreference] = func() Option { return &PreferenceOption{} }
	r.options[OptionElapsedTime] = func() Option { return &ElapsedTimeOption{} }
	r.options[OptionRelayMessage] = func() Option { return &RelayMessageOption{} }
	r.options[OptionServerUnicast] = func() Option { return &ServerUnicastOption{} }
	r.options[OptionStatusCode] = func() Option { return &StatusCodeOption{} }
	r.options[OptionRapidCommit] = func() Option { return &RapidCommitOption{} }
	r.options[OptionUserClass] = func() Option { return &UserClassOption{} }
	r.options[OptionVendorClass] = func() Option { return &VendorClassOption{} }
	r.options[OptionInterfaceID] = func() Option { return &InterfaceIDOption{} }
	r.options[OptionReconfigureAccept] = func() Option { return &ReconfigureAcceptOption{} }
	r.options[OptionRecursiveNameServers] = func() Option { return &RecursiveNameServersOption{} }
	r.options[OptionIAPD] = func() Option { return &IAPDOption{} }
	r.options[OptionIAPrefix] = func() Option { return &IAPrefixOption{} }
	r.options[OptionSNTPServers] = func() Option { return &SNTPServersOption{} }
	r.options[OptionInformationRefreshTime] = func() Option { return &InformationRefreshTimeOption{} }
	r.options[OptionRemoteID] = func() Option { return &RemoteIDOption{} }
	r.options[OptionClientLinkLayerAddress] = func() Option { return &ClientLinkLayerAddressOption{} }
	r.options[OptionSolMaxRT] = func() Option { return &SolMaxRTOption{} }
	r.options[OptionInfMaxRT] = func() Option { return &InfMaxRTOption{} }
	r.options[OptionS46Rule] = func() Option { return &S46RuleOption{} }

	for _, t := range []MessageType{
		MessageTypeSolicit, MessageTypeAdvertise, MessageTypeRequest, MessageTypeConfirm,
		MessageTypeRenew, MessageTypeRebind, MessageTypeReply, MessageTypeRelease,
		MessageTypeDecline, MessageTypeReconfigure, MessageTypeInformationRequest,
	} {
		r.messages[t] = func() Message { return &ClientServerMessage{MsgType: t} }
	}
	r.messages[MessageTypeRelayForward] = func() Message { return &RelayMessage{MsgType: MessageTypeRelayForward} }
	r.messages[MessageTypeRelayReply] = func() Message { return &RelayMessage{MsgType: MessageTypeRelayReply} }

	return r
}

// WithOption returns a copy of r that decodes code with factory.
func (r *Registry) WithOption(code OptionCode, factory OptionFactory) *Registry {
	out := r.clone()
	out.options[code] = factory
	return out
}

// WithMessage returns a copy of r that decodes t with factory.
func (r *Registry) WithMessage(t MessageType, factory MessageFactory) *Registry {
	out := r.clone()
	out.messages[t] = factory
	return out
}

func (r *Registry) clone() *Registry {
	return &Registry{
		options:  maps.Clone(r.options),
		messages: maps.Clone(r.messages),
	}
}

func (r *Registry) NewOption(code OptionCode) Option {
	if factory, ok := r.options[code]; ok {
		return factory()
	}
	return &UnknownOption{OptionType: code}
}

func (r *Registry) NewMessage(t MessageType) Message {
	if factory, ok := r.messages[t]; ok {
		return factory()
	}
	return &UnknownMessage{MsgType: t}
}

// ParseOption decodes and validates one option from buf[offset:offset+length].
func (r *Registry) ParseOption(buf []byte, offset, length int) (int, Option, error) {
	n, opt, err := r.parseOption(buf, offset, length)
	if err != nil {
		return 0, nil, err
	}
	if err := opt.Validate(); err != nil {
		return 0, nil, &ParseError{Element: opt.Code().String(), Offset: offset, Err: err}
	}
	return n, opt, nil
}

func (r *Registry) parseOption(buf []byte, offset, length int) (int, Option, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return 0, nil, &ParseError{Element: "option", Offset: offset, Err: fmt.Errorf("%w: window [%d:+%d] outside %d byte buffer", ErrShortBuffer, offset, length, len(buf))}
	}
	data := buf[offset : offset+length]
	if len(data) < 2 {
		return 0, nil, &ParseError{Element: "option", Offset: offset, Err: fmt.Errorf("%w: no room for an option type", ErrShortBuffer)}
	}

	code := OptionCode(binary.BigEndian.Uint16(data[0:2]))
	opt := r.NewOption(code)
	n, err := opt.Unmarshal(r, data)
	if err != nil {
		return 0, nil, &ParseError{Element: code.String(), Offset: offset, Err: err}
	}
	return n, opt, nil
}

// parseOptions decodes options until exactly len(buf) bytes are consumed.
func (r *Registry) parseOptions(buf []byte) ([]Option, error) {
	var opts []Option
	maxOffset := len(buf)
	offset := 0
	for offset < maxOffset {
		n, opt, err := r.parseOption(buf, offset, maxOffset-offset)
		if err != nil {
			return nil, err
		}
		if n < optionHeaderLen {
			return nil, fmt.Errorf("%w: %s consumed %d bytes", ErrLengthMismatch, opt.Code(), n)
		}
		offset += n
		if offset > maxOffset {
			return nil, fmt.Errorf("%w: %s overran its container by %d bytes", ErrLengthMismatch, opt.Code(), offset-maxOffset)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// ParseMessage decodes and validates the message in buf[offset:offset+length].
func (r *Registry) ParseMessage(buf []byte, offset, length int) (int, Message, error) {
	n, msg, err := r.parseMessage(buf, offset, length)
	if err != nil {
		return 0, nil, err
	}
	if err := msg.Validate(); err != nil {
		return 0, nil, &ParseError{Element: msg.Type().String(), Offset: offset, Err: err}
	}
	return n, msg, nil
}

func (r *Registry) parseMessage(buf []byte, offset, length int) (int, Message, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return 0, nil, &ParseError{Element: "message", Offset: offset, Err: fmt.Errorf("%w: window [%d:+%d] outside %d byte buffer", ErrShortBuffer, offset, length, len(buf))}
	}
	data := buf[offset : offset+length]
	if len(data) < 1 {
		return 0, nil, &ParseError{Element: "message", Offset: offset, Err: fmt.Errorf("%w: empty message", ErrShortBuffer)}
	}

	t := MessageType(data[0])
	msg := r.NewMessage(t)
	n, err := msg.Unmarshal(r, data)
	if err != nil {
		return 0, nil, &ParseError{Element: t.String(), Offset: offset, Err: err}
	}
	if n != len(data) {
		return 0, nil, &ParseError{Element: t.String(), Offset: offset, Err: fmt.Errorf("%w: consumed %d of %d bytes", ErrLengthMismatch, n, len(data))}
	}
	return n, msg, nil
}

// DecodeMessage decodes a complete datagram.
func (r *Registry) DecodeMessage(buf []byte) (Message, error) {
	_, msg, err := r.ParseMessage(buf, 0, len(buf))
	return msg, err
}

// EncodeMessage validates and serializes msg.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, invalid("message", ErrInvalidValue, "nil message")
	}
	return msg.Marshal()
}
