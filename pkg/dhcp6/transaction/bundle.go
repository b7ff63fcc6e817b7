// Package transaction holds the per-request state shared by all handlers
// while a single request is answered.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/relay"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

var ErrWrongDirection = errors.New("response is not a server to client message")

// Bundle is created for every received packet and discarded after the reply
// has been sent. It is never shared between goroutines.
type Bundle struct {
	Ctx context.Context

	// Request is nil when the packet did not contain a usable client
	// message; the pipeline does nothing for such bundles.
	Request               *protocol.ClientServerMessage
	IncomingRelayMessages []*protocol.RelayMessage
	ReceivedOverMulticast bool

	// Marks are free-form tags from the transport, such as the name of the
	// receiving interface.
	Marks []string

	Response *protocol.ClientServerMessage

	allowRapidCommit      bool
	outgoingRelayMessages []*protocol.RelayMessage
	handled               map[protocol.Option]struct{}
	log                   *slog.Logger
}

type Option func(*Bundle)

func WithMarks(marks ...string) Option {
	return func(b *Bundle) {
		b.Marks = append(b.Marks, marks...)
	}
}

// WithRapidCommit sets the server policy. Handlers can only take it away.
func WithRapidCommit(allow bool) Option {
	return func(b *Bundle) {
		b.allowRapidCommit = allow
	}
}

// New splits msg into the client request and its relay chain.
func New(ctx context.Context, msg protocol.Message, receivedOverMulticast bool, opts ...Option) *Bundle {
	if ctx == nil {
		ctx = context.Background()
	}
	req, envelopes := relay.Split(msg)
	b := &Bundle{
		Ctx:                   ctx,
		Request:               req,
		IncomingRelayMessages: envelopes,
		ReceivedOverMulticast: receivedOverMulticast,
		handled:               make(map[protocol.Option]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Relayed reports whether the request arrived through at least one relay.
func (b *Bundle) Relayed() bool {
	return len(b.IncomingRelayMessages) > 0
}

func (b *Bundle) AllowRapidCommit() bool {
	return b.allowRapidCommit
}

// DisallowRapidCommit turns rapid commit off for this transaction. There is
// no way to turn it back on.
func (b *Bundle) DisallowRapidCommit() {
	b.allowRapidCommit = false
}

// MarkHandled records that opt from the request has been answered.
func (b *Bundle) MarkHandled(opt protocol.Option) {
	if b.handled == nil {
		b.handled = make(map[protocol.Option]struct{})
	}
	b.handled[opt] = struct{}{}
}

func (b *Bundle) IsHandled(opt protocol.Option) bool {
	_, ok := b.handled[opt]
	return ok
}

// UnhandledOptions returns the request options matching codes that no
// handler has marked yet, in request order.
func (b *Bundle) UnhandledOptions(codes ...protocol.OptionCode) []protocol.Option {
	if b.Request == nil {
		return nil
	}
	var out []protocol.Option
	for _, opt := range b.Request.OptionsOf(codes...) {
		if !b.IsHandled(opt) {
			out = append(out, opt)
		}
	}
	return out
}

// LinkAddress returns the first useful link address, starting at the relay
// closest to the client. Relays on the client link may leave it unspecified
// or fill in a link-local address; those are skipped.
func (b *Bundle) LinkAddress() netip.Addr {
	for _, rm := range b.IncomingRelayMessages {
		addr := rm.LinkAddress
		if !addr.IsValid() || addr.IsUnspecified() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			continue
		}
		return addr
	}
	return netip.IPv6Unspecified()
}

// responseTypes maps request types to the type of the response. Confirm is
// special cased in InitResponse.
var responseTypes = map[protocol.MessageType]protocol.MessageType{
	protocol.MessageTypeSolicit:            protocol.MessageTypeAdvertise,
	protocol.MessageTypeRequest:            protocol.MessageTypeReply,
	protocol.MessageTypeConfirm:            protocol.MessageTypeReply,
	protocol.MessageTypeRenew:              protocol.MessageTypeReply,
	protocol.MessageTypeRebind:             protocol.MessageTypeReply,
	protocol.MessageTypeRelease:            protocol.MessageTypeReply,
	protocol.MessageTypeDecline:            protocol.MessageTypeReply,
	protocol.MessageTypeInformationRequest: protocol.MessageTypeReply,
}

// InitResponse creates the empty response for the request type. It leaves
// Response nil for request types that get no answer and for a Confirm
// without any address or prefix to confirm.
func (b *Bundle) InitResponse() {
	if b.Request == nil {
		return
	}

	respType, ok := responseTypes[b.Request.MsgType]
	if !ok {
		b.Logger().Warn("Do not know how to respond to this message type")
		return
	}

	if b.Request.MsgType == protocol.MessageTypeConfirm && !hasBindings(b.Request) {
		b.Logger().Debug("Not responding to Confirm without addresses")
		return
	}

	b.Response = protocol.NewMessage(respType, b.Request.TransactionID)
}

func hasBindings(msg *protocol.ClientServerMessage) bool {
	for _, opt := range msg.OptionsOf(protocol.GroupIA...) {
		c, ok := opt.(protocol.Container)
		if !ok {
			continue
		}
		if len(protocol.FindOptions(c.Options(), protocol.OptionIAAddress, protocol.OptionIAPrefix)) > 0 {
			return true
		}
	}
	return false
}

// OutgoingRelayMessages returns the Relay-reply envelopes the response will
// be wrapped in, building them from the incoming chain on first use.
// Handlers may add options to them.
func (b *Bundle) OutgoingRelayMessages() []*protocol.RelayMessage {
	if b.outgoingRelayMessages == nil && len(b.IncomingRelayMessages) > 0 {
		b.outgoingRelayMessages = relay.Mirror(b.IncomingRelayMessages)
	}
	return b.outgoingRelayMessages
}

// OutgoingMessage returns the message to send: the response, wrapped in the
// reply envelopes when the request was relayed. It returns nil without an
// error when there is nothing to send.
func (b *Bundle) OutgoingMessage() (protocol.Message, error) {
	if b.Response == nil {
		return nil, nil
	}
	if !b.Response.MsgType.FromServerToClient() {
		return nil, fmt.Errorf("%w: %s", ErrWrongDirection, b.Response.MsgType)
	}
	if !b.Relayed() {
		return b.Response, nil
	}
	return relay.Embed(b.OutgoingRelayMessages(), b.Response), nil
}

// Logger returns a pipeline logger carrying the transaction attributes.
func (b *Bundle) Logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}

	attrs := logger.TransactionAttrs{Relayed: b.Relayed(), Marks: b.Marks}
	if b.Request != nil {
		attrs.TransactionID = b.Request.TransactionID[:]
		attrs.MessageType = b.Request.MsgType.String()
	}
	if b.Relayed() {
		attrs.LinkAddress = b.LinkAddress().String()
		attrs.Peer = b.IncomingRelayMessages[0].PeerAddress.String()
	}
	b.log = logger.WithTransaction(logger.Get(logger.Pipeline), attrs)
	return b.log
}

func (b *Bundle) String() string {
	if b.Request == nil {
		return "empty transaction"
	}
	s := fmt.Sprintf("%s %x", b.Request.MsgType, b.Request.TransactionID)
	if b.Relayed() {
		s += fmt.Sprintf(" via %s", b.LinkAddress())
	}
	return s
}
