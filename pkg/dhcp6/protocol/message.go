package protocol

import "fmt"

// ClientServerMessage is any non-relay message: a type byte, a 3 byte
// transaction id and a flat list of options.
type ClientServerMessage struct {
	MsgType       MessageType
	TransactionID [3]byte
	Opts          []Option
}

func NewMessage(t MessageType, transactionID [3]byte, opts ...Option) *ClientServerMessage {
	return &ClientServerMessage{
		MsgType:       t,
		TransactionID: transactionID,
		Opts:          opts,
	}
}

func (m *ClientServerMessage) Type() MessageType { return m.MsgType }

func (m *ClientServerMessage) Options() []Option { return m.Opts }

func (m *ClientServerMessage) Constraints() Constraints {
	if c, ok := messageConstraints[m.MsgType]; ok {
		return c
	}
	return baseMessageConstraints
}

func (m *ClientServerMessage) Option(code OptionCode) Option {
	return FindOption(m.Opts, code)
}

func (m *ClientServerMessage) OptionsOf(codes ...OptionCode) []Option {
	return FindOptions(m.Opts, codes...)
}

func (m *ClientServerMessage) AddOption(opt Option) {
	m.Opts = append(m.Opts, opt)
}

func (m *ClientServerMessage) RemoveOptions(code OptionCode) {
	m.Opts = RemoveOptions(m.Opts, code)
}

func (m *ClientServerMessage) Validate() error {
	if m.MsgType.IsRelay() {
		return invalid(m.MsgType.String(), ErrInvalidValue, "relay message type in a client-server message")
	}
	return ValidateContainment(m.MsgType.String(), m.Constraints(), m.Opts)
}

func (m *ClientServerMessage) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	opts, err := marshalOptions(m.Opts)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, clientServerHeaderLen+len(opts))
	buf = append(buf, byte(m.MsgType))
	buf = append(buf, m.TransactionID[:]...)
	return append(buf, opts...), nil
}

func (m *ClientServerMessage) Unmarshal(r *Registry, buf []byte) (int, error) {
	if len(buf) < clientServerHeaderLen {
		return 0, fmt.Errorf("%w: client-server header needs %d bytes, have %d", ErrShortBuffer, clientServerHeaderLen, len(buf))
	}
	if MessageType(buf[0]) != m.MsgType {
		return 0, fmt.Errorf("%w: got message type %d, want %d", ErrTypeMismatch, buf[0], m.MsgType)
	}

	copy(m.TransactionID[:], buf[1:4])

	opts, err := r.parseOptions(buf[clientServerHeaderLen:])
	if err != nil {
		return 0, err
	}
	m.Opts = opts
	return len(buf), nil
}

// Occurrence limits shared by every client-server message; types add to
// or override these below.
var baseMessageConstraints = Constraints{
	AtMost(1, OptionClientID),
	AtMost(1, OptionServerID),
	AtMost(1, OptionOptionRequest),
	AtMost(1, OptionElapsedTime),
	AtMost(1, OptionPreference),
	AtMost(1, OptionStatusCode),
	AtMost(1, OptionServerUnicast),
	AtMost(1, OptionRapidCommit),
	AtMost(1, OptionReconfigureAccept),
	AtMost(1, OptionInformationRefreshTime),
	AtMost(1, OptionSolMaxRT),
	AtMost(1, OptionInfMaxRT),
	AtMost(0, OptionRelayMessage),
	AtMost(0, OptionIAAddress, OptionIAPrefix),
	AnyNumber(),
}

func withConstraints(extra ...Constraint) Constraints {
	out := make(Constraints, 0, len(baseMessageConstraints)+len(extra))
	for _, c := range baseMessageConstraints {
		overridden := false
		for _, e := range extra {
			if len(e.Codes) == 1 && len(c.Codes) == 1 && e.Codes[0] == c.Codes[0] {
				overridden = true
				break
			}
		}
		if !overridden {
			out = append(out, c)
		}
	}
	return append(out, extra...)
}

var messageConstraints = map[MessageType]Constraints{
	MessageTypeSolicit:            withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionStatusCode)),
	MessageTypeRequest:            withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode)),
	MessageTypeConfirm:            withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode)),
	MessageTypeRenew:              withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode)),
	MessageTypeRebind:             withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode)),
	MessageTypeRelease:            withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode)),
	MessageTypeDecline:            withConstraints(Exactly(1, OptionClientID), AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode)),
	MessageTypeInformationRequest: withConstraints(AtMost(0, OptionRapidCommit), AtMost(0, OptionStatusCode), AtMost(0, GroupIA...)),
	MessageTypeAdvertise:          withConstraints(AtMost(0, OptionRapidCommit)),
	MessageTypeReconfigure:        withConstraints(AtMost(0, OptionRapidCommit), AtMost(0, GroupIA...)),
}
