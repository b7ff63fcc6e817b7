package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

var testIAID = [4]byte{0xc4, 0x3c, 0xb2, 0xf1}

func testClientID() *ClientIDOption {
	return &ClientIDOption{DUID: &LinkLayerDUID{
		HardwareType:     HardwareTypeEthernet,
		LinkLayerAddress: net.HardwareAddr{0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
	}}
}

func testSolicit() *ClientServerMessage {
	return NewMessage(MessageTypeSolicit, [3]byte{0xab, 0xcd, 0xef},
		testClientID(),
		&ElapsedTimeOption{ElapsedTime: 100},
		&OptionRequestOption{Requested: []OptionCode{OptionRecursiveNameServers, OptionSNTPServers}},
		&RapidCommitOption{},
		&IANAOption{IAID: testIAID},
		&IAPDOption{IAID: [4]byte{0, 0, 0, 1}, Opts: []Option{
			&IAPrefixOption{
				PreferredLifetime: 3600,
				ValidLifetime:     7200,
				Prefix:            netip.MustParsePrefix("2001:db8:100::/56"),
			},
		}},
	)
}

func TestDecodeMessage_BitExact(t *testing.T) {
	raw := []byte{
		0x01, 0xab, 0xcd, 0xef,
		0x00, 0x01, 0x00, 0x0a, 0x00, 0x03, 0x00, 0x01, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05,
		0x00, 0x08, 0x00, 0x02, 0x00, 0x00,
	}

	msg, err := NewRegistry().DecodeMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	solicit, ok := msg.(*ClientServerMessage)
	if !ok {
		t.Fatalf("got %T, want *ClientServerMessage", msg)
	}
	if solicit.TransactionID != [3]byte{0xab, 0xcd, 0xef} {
		t.Errorf("got transaction id %x", solicit.TransactionID)
	}
	if len(solicit.Opts) != 2 {
		t.Fatalf("got %d options, want 2", len(solicit.Opts))
	}

	out, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Errorf("got %x, want %x", out, raw)
	}
}

func TestRoundTrip_Messages(t *testing.T) {
	reply := NewMessage(MessageTypeReply, [3]byte{1, 2, 3},
		testClientID(),
		&ServerIDOption{DUID: &LinkLayerTimeDUID{HardwareType: 1, Time: 0x2a2a2a2a, LinkLayerAddress: net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0, 1}}},
		&PreferenceOption{Preference: 255},
		&IANAOption{IAID: testIAID, T1: 1800, T2: 2880, Opts: []Option{
			&IAAddressOption{Address: netip.MustParseAddr("2001:db8::10"), PreferredLifetime: 3600, ValidLifetime: 7200},
			&StatusCodeOption{Status: StatusSuccess, Message: "ok"},
		}},
		&RecursiveNameServersOption{Servers: []netip.Addr{netip.MustParseAddr("2001:4860:4860::8888")}},
		&SNTPServersOption{Servers: []netip.Addr{netip.MustParseAddr("2001:db8::123")}},
		&ServerUnicastOption{Address: netip.MustParseAddr("2001:db8::1")},
		&SolMaxRTOption{MaxRT: 3600},
		&InfMaxRTOption{MaxRT: 3600},
		&S46RuleOption{
			Flags:      S46RuleFlagForwarding,
			EALen:      16,
			IPv4Prefix: netip.MustParsePrefix("192.0.2.0/24"),
			IPv6Prefix: netip.MustParsePrefix("2001:db8:ff00::/40"),
		},
		&UnknownOption{OptionType: 0xfe01, Data: []byte{0xca, 0xfe}},
	)

	info := NewMessage(MessageTypeInformationRequest, [3]byte{9, 9, 9},
		&UserClassOption{Data: [][]byte{[]byte("router"), []byte("lab")}},
		&VendorClassOption{EnterpriseNumber: 9, Data: [][]byte{[]byte("cpe")}},
		&ReconfigureAcceptOption{},
		&InformationRefreshTimeOption{RefreshTime: 86400},
	)

	for _, tc := range []struct {
		name string
		msg  Message
	}{
		{"solicit", testSolicit()},
		{"reply", reply},
		{"information-request", info},
		{"unknown message", &UnknownMessage{MsgType: 0xf0, Data: []byte{1, 2, 3, 4, 5}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			raw, err := EncodeMessage(tc.msg)
			require.NoError(t, err)

			n, decoded, err := r.ParseMessage(raw, 0, len(raw))
			require.NoError(t, err)
			require.Equal(t, len(raw), n)
			require.Equal(t, tc.msg, decoded)
		})
	}
}

func TestRoundTrip_RelayChain(t *testing.T) {
	inner := &RelayMessage{
		MsgType:     MessageTypeRelayForward,
		HopCount:    0,
		LinkAddress: netip.MustParseAddr("2001:db8:1::1"),
		PeerAddress: netip.MustParseAddr("fe80::1"),
		Opts: []Option{
			&InterfaceIDOption{InterfaceID: []byte("ge-0/0/1.100")},
			&RemoteIDOption{EnterpriseNumber: 4874, RemoteID: []byte{1, 2, 3}},
			&ClientLinkLayerAddressOption{LinkLayerType: 1, LinkLayerAddress: net.HardwareAddr{0, 1, 2, 3, 4, 5}},
			&RelayMessageOption{Msg: testSolicit()},
		},
	}
	outer := &RelayMessage{
		MsgType:     MessageTypeRelayForward,
		HopCount:    1,
		LinkAddress: netip.IPv6Unspecified(),
		PeerAddress: netip.MustParseAddr("2001:db8:1::1"),
		Opts:        []Option{&RelayMessageOption{Msg: inner}},
	}

	raw, err := EncodeMessage(outer)
	require.NoError(t, err)
	require.Equal(t, byte(MessageTypeRelayForward), raw[0])
	require.Equal(t, byte(1), raw[1])

	decoded, err := NewRegistry().DecodeMessage(raw)
	require.NoError(t, err)
	require.Equal(t, outer, decoded)

	relay := decoded.(*RelayMessage)
	next, ok := relay.RelayedMessage().(*RelayMessage)
	require.True(t, ok)
	require.Equal(t, MessageTypeSolicit, next.RelayedMessage().Type())
}

func TestRelay_MappedAddresses(t *testing.T) {
	relay := &RelayMessage{
		MsgType:     MessageTypeRelayForward,
		LinkAddress: netip.MustParseAddr("::ffff:192.0.2.1"),
		PeerAddress: netip.MustParseAddr("::ffff:198.51.100.7"),
		Opts:        []Option{&RelayMessageOption{Msg: testSolicit()}},
	}

	raw, err := EncodeMessage(relay)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 192, 0, 2, 1}, raw[2:18])

	decoded, err := NewRegistry().DecodeMessage(raw)
	require.NoError(t, err)
	require.Equal(t, relay, decoded)

	relay.PeerAddress = netip.MustParseAddr("198.51.100.7")
	_, err = EncodeMessage(relay)
	require.True(t, errors.Is(err, ErrInvalidAddress), "got %v", err)
}

func TestUnknownOptionPassthrough(t *testing.T) {
	r := NewRegistry()
	for _, payload := range [][]byte{nil, {0x00}, bytes.Repeat([]byte{0x5a}, 300)} {
		opt := &UnknownOption{OptionType: 0xbeef, Data: payload}
		raw, err := opt.Marshal()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		n, decoded, err := r.ParseOption(raw, 0, len(raw))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != len(raw) {
			t.Errorf("consumed %d, want %d", n, len(raw))
		}
		got, ok := decoded.(*UnknownOption)
		if !ok {
			t.Fatalf("got %T, want *UnknownOption", decoded)
		}
		if got.OptionType != 0xbeef || !bytes.Equal(got.Data, payload) {
			t.Errorf("got %v %x, want %v %x", got.OptionType, got.Data, OptionCode(0xbeef), payload)
		}
	}
}

func TestParseOption_Window(t *testing.T) {
	opt := &StatusCodeOption{Status: StatusNoBinding, Message: "gone"}
	raw, err := opt.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := append([]byte{0xff, 0xff, 0xff}, raw...)
	buf = append(buf, 0xee)

	n, decoded, err := NewRegistry().ParseOption(buf, 3, len(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Errorf("consumed %d, want %d", n, len(raw))
	}
	sc := decoded.(*StatusCodeOption)
	if sc.Status != StatusNoBinding || sc.Message != "gone" {
		t.Errorf("got %v %q", sc.Status, sc.Message)
	}
}

func TestLengthMismatch(t *testing.T) {
	r := NewRegistry()

	ia := &IANAOption{IAID: testIAID, Opts: []Option{
		&IAAddressOption{Address: netip.MustParseAddr("2001:db8::10"), PreferredLifetime: 10, ValidLifetime: 20},
	}}
	raw, err := ia.Marshal()
	require.NoError(t, err)

	t.Run("truncated window", func(t *testing.T) {
		_, _, err := r.ParseOption(raw, 0, len(raw)-1)
		require.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("truncated container", func(t *testing.T) {
		short := bytes.Clone(raw[:len(raw)-1])
		binary.BigEndian.PutUint16(short[2:4], uint16(len(short)-optionHeaderLen))
		_, _, err := r.ParseOption(short, 0, len(short))
		require.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("padded container", func(t *testing.T) {
		padded := append(bytes.Clone(raw), 0x00)
		binary.BigEndian.PutUint16(padded[2:4], uint16(len(padded)-optionHeaderLen))
		_, _, err := r.ParseOption(padded, 0, len(padded))
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("padded message", func(t *testing.T) {
		msg, err := EncodeMessage(testSolicit())
		require.NoError(t, err)
		_, err = r.DecodeMessage(append(msg, 0x00))
		require.Error(t, err)
	})

	t.Run("fixed length", func(t *testing.T) {
		_, _, err := r.ParseOption([]byte{0x00, 0x07, 0x00, 0x02, 0x01, 0x02}, 0, 6)
		require.ErrorIs(t, err, ErrFixedLength)
	})

	t.Run("short header", func(t *testing.T) {
		_, _, err := r.ParseOption([]byte{0x00, 0x07, 0x00}, 0, 3)
		require.ErrorIs(t, err, ErrShortBuffer)
	})

	t.Run("short client-server header", func(t *testing.T) {
		_, err := r.DecodeMessage([]byte{0x01, 0x00})
		require.ErrorIs(t, err, ErrShortBuffer)
	})
}

func TestContainment(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  Element
		ok   bool
	}{
		{"solicit with client id", NewMessage(MessageTypeSolicit, [3]byte{}, testClientID()), true},
		{"solicit without client id", NewMessage(MessageTypeSolicit, [3]byte{}), false},
		{"solicit with two client ids", NewMessage(MessageTypeSolicit, [3]byte{}, testClientID(), testClientID()), false},
		{"request with rapid commit", NewMessage(MessageTypeRequest, [3]byte{}, testClientID(), &RapidCommitOption{}), false},
		{"information-request with IA_PD", NewMessage(MessageTypeInformationRequest, [3]byte{}, &IAPDOption{}), false},
		{"information-request without client id", NewMessage(MessageTypeInformationRequest, [3]byte{}), true},
		{"reply with bare IAAddress", NewMessage(MessageTypeReply, [3]byte{}, &IAAddressOption{Address: netip.MustParseAddr("2001:db8::1")}), false},
		{"reply with two status codes", NewMessage(MessageTypeReply, [3]byte{}, &StatusCodeOption{}, &StatusCodeOption{}), false},
		{"reply with many IAs", NewMessage(MessageTypeReply, [3]byte{}, &IANAOption{}, &IANAOption{IAID: [4]byte{1}}, &IAPDOption{}), true},
		{"IA_NA with IAPrefix", &IANAOption{Opts: []Option{&IAPrefixOption{Prefix: netip.MustParsePrefix("2001:db8::/48")}}}, false},
		{"IA_NA with two status codes", &IANAOption{Opts: []Option{&StatusCodeOption{}, &StatusCodeOption{}}}, false},
		{"IA_PD with nested IA_NA", &IAPDOption{Opts: []Option{&IANAOption{}}}, false},
		{"relay without relayed message", &RelayMessage{MsgType: MessageTypeRelayForward, LinkAddress: netip.IPv6Unspecified(), PeerAddress: netip.IPv6Unspecified()}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected containment error")
				}
				if !errors.Is(err, ErrContainment) {
					t.Fatalf("got %v, want ErrContainment", err)
				}
			}
		})
	}
}

func TestContainment_ChildValidation(t *testing.T) {
	msg := NewMessage(MessageTypeReply, [3]byte{},
		&IANAOption{IAID: testIAID, Opts: []Option{
			&IAAddressOption{Address: netip.MustParseAddr("ff02::1:2"), PreferredLifetime: 1, ValidLifetime: 2},
		}},
	)
	err := msg.Validate()
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("got %v, want ErrInvalidAddress", err)
	}

	if _, err := msg.Marshal(); err == nil {
		t.Fatal("expected marshal of invalid message to fail")
	}
}

func TestFieldValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		opt  Option
		want error
	}{
		{"preferred above valid", &IAAddressOption{Address: netip.MustParseAddr("2001:db8::1"), PreferredLifetime: 10, ValidLifetime: 5}, ErrOutOfRange},
		{"T1 above T2", &IANAOption{T1: 100, T2: 50}, ErrOutOfRange},
		{"multicast server unicast", &ServerUnicastOption{Address: netip.MustParseAddr("ff05::1:3")}, ErrInvalidAddress},
		{"IPv4 name server", &RecursiveNameServersOption{Servers: []netip.Addr{netip.MustParseAddr("192.0.2.1")}}, ErrInvalidAddress},
		{"SOL_MAX_RT too small", &SolMaxRTOption{MaxRT: 10}, ErrOutOfRange},
		{"refresh time too small", &InformationRefreshTimeOption{RefreshTime: 60}, ErrOutOfRange},
		{"invalid utf-8 status", &StatusCodeOption{Message: string([]byte{0xff, 0xfe})}, ErrInvalidValue},
		{"missing DUID", &ServerIDOption{}, ErrInvalidValue},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opt.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %T, want *ValidationError", err)
			}
		})
	}
}

func TestS46Rule_MinimalPrefixBytes(t *testing.T) {
	opt := &S46RuleOption{
		EALen:      12,
		IPv4Prefix: netip.MustParsePrefix("198.51.100.0/22"),
		IPv6Prefix: netip.MustParsePrefix("2001:db8:f000::/36"),
	}
	raw, err := opt.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// flags, ea-len, v4 len, 3 v4 bytes, v6 len, 5 v6 bytes
	if got, want := len(raw), optionHeaderLen+3+3+1+5; got != want {
		t.Fatalf("got %d bytes, want %d", got, want)
	}

	_, decoded, err := NewRegistry().ParseOption(raw, 0, len(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule := decoded.(*S46RuleOption)
	if rule.IPv4Prefix != opt.IPv4Prefix || rule.IPv6Prefix != opt.IPv6Prefix {
		t.Errorf("got %v %v, want %v %v", rule.IPv4Prefix, rule.IPv6Prefix, opt.IPv4Prefix, opt.IPv6Prefix)
	}
}

func TestRegistry_WithOption(t *testing.T) {
	base := NewRegistry()
	custom := base.WithOption(OptionNTPServer, func() Option { return &UnknownOption{OptionType: OptionNTPServer} })
	custom = custom.WithOption(OptionPreference, func() Option { return &UnknownOption{OptionType: OptionPreference} })

	if _, ok := base.NewOption(OptionPreference).(*PreferenceOption); !ok {
		t.Error("base registry was modified by WithOption")
	}
	if _, ok := custom.NewOption(OptionPreference).(*UnknownOption); !ok {
		t.Error("custom registry did not pick up the override")
	}
	if _, ok := base.NewMessage(MessageType(200)).(*UnknownMessage); !ok {
		t.Error("unregistered message type should decode as UnknownMessage")
	}
}
