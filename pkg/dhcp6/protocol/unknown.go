package protocol

import "fmt"

// UnknownOption carries an option whose code has no registered type.
// The payload is kept verbatim so it can be sent on unchanged.
type UnknownOption struct {
	OptionType OptionCode
	Data       []byte
}

func (o *UnknownOption) Code() OptionCode { return o.OptionType }

func (o *UnknownOption) Validate() error {
	if len(o.Data) > maxOptionPayload {
		return invalid(o.OptionType.String(), ErrOutOfRange, "payload of %d bytes", len(o.Data))
	}
	return nil
}

func (o *UnknownOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return encodeOption(o.OptionType, o.Data)
}

func (o *UnknownOption) Unmarshal(_ *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, o.OptionType, -1)
	if err != nil {
		return 0, err
	}
	o.Data = cloneBytes(payload)
	return optionHeaderLen + len(payload), nil
}

// UnknownMessage carries a message with an unregistered type. Data holds
// everything after the type byte.
type UnknownMessage struct {
	MsgType MessageType
	Data    []byte
}

func (m *UnknownMessage) Type() MessageType { return m.MsgType }

func (m *UnknownMessage) Options() []Option { return nil }

func (m *UnknownMessage) Validate() error { return nil }

func (m *UnknownMessage) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 1+len(m.Data))
	buf = append(buf, byte(m.MsgType))
	return append(buf, m.Data...), nil
}

func (m *UnknownMessage) Unmarshal(_ *Registry, buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("%w: empty message", ErrShortBuffer)
	}
	if MessageType(buf[0]) != m.MsgType {
		return 0, fmt.Errorf("%w: got message type %d, want %d", ErrTypeMismatch, buf[0], m.MsgType)
	}
	m.Data = cloneBytes(buf[1:])
	return len(buf), nil
}
