package handlers

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/assignment"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
	"github.com/veesix-networks/dhcp6d/pkg/provider"
)

var (
	serverDUID = &protocol.LinkLayerDUID{
		HardwareType:     protocol.HardwareTypeEthernet,
		LinkLayerAddress: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xff},
	}
	otherDUID = &protocol.LinkLayerDUID{
		HardwareType:     protocol.HardwareTypeEthernet,
		LinkLayerAddress: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xee},
	}
	testIAID = [4]byte{0xc4, 0x3c, 0xb2, 0xf1}
)

func clientID() *protocol.ClientIDOption {
	return &protocol.ClientIDOption{DUID: &protocol.LinkLayerDUID{
		HardwareType:     protocol.HardwareTypeEthernet,
		LinkLayerAddress: net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
	}}
}

func serverID() *protocol.ServerIDOption {
	return &protocol.ServerIDOption{DUID: serverDUID}
}

func ia(addresses ...string) *protocol.IANAOption {
	opt := &protocol.IANAOption{IAID: testIAID}
	for _, a := range addresses {
		opt.Opts = append(opt.Opts, &protocol.IAAddressOption{
			Address:           netip.MustParseAddr(a),
			PreferredLifetime: 3600,
			ValidLifetime:     7200,
		})
	}
	return opt
}

func pd(prefix string) *protocol.IAPDOption {
	return &protocol.IAPDOption{IAID: [4]byte{0, 0, 0, 1}, Opts: []protocol.Option{
		&protocol.IAPrefixOption{Prefix: netip.MustParsePrefix(prefix), PreferredLifetime: 3600, ValidLifetime: 7200},
	}}
}

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml), "yaml")
	require.NoError(t, err)
	return cfg
}

// run builds the default chain for cfg and runs req through it.
func run(t *testing.T, cfg *config.Config, source assignment.Source, req protocol.Message, multicast bool) (*transaction.Bundle, Verdict, error) {
	t.Helper()
	chain, err := Default(cfg, serverDUID, source)
	require.NoError(t, err)

	b := transaction.New(context.Background(), req, multicast, transaction.WithRapidCommit(cfg.Server.AllowRapidCommit))
	v, err := NewPipeline(serverDUID, chain...).Run(b)
	return b, v, err
}

func statusOf(opts []protocol.Option) (protocol.StatusCode, bool) {
	s, ok := protocol.FindOption(opts, protocol.OptionStatusCode).(*protocol.StatusCodeOption)
	if !ok {
		return 0, false
	}
	return s.Status, true
}

type fakeSource struct {
	a   assignment.Assignment
	err error
}

func (s *fakeSource) Info() provider.Info { return provider.Info{Name: "fake"} }

func (s *fakeSource) Assignment(context.Context, *transaction.Bundle) (assignment.Assignment, error) {
	return s.a, s.err
}

func (s *fakeSource) Close() error { return nil }

type recorder struct {
	Base
	name  string
	calls *[]string
	pre   Verdict
	err   error
}

func (h *recorder) Name() string { return h.name }

func (h *recorder) Pre(*transaction.Bundle) (Verdict, error) {
	*h.calls = append(*h.calls, h.name+".pre")
	return h.pre, h.err
}

func (h *recorder) Handle(*transaction.Bundle) (Verdict, error) {
	*h.calls = append(*h.calls, h.name+".handle")
	return Continue, nil
}

func (h *recorder) Post(*transaction.Bundle) (Verdict, error) {
	*h.calls = append(*h.calls, h.name+".post")
	return Continue, nil
}

func TestPipeline_PhaseOrder(t *testing.T) {
	var calls []string
	p := NewPipeline(serverDUID,
		&recorder{name: "a", calls: &calls},
		&recorder{name: "b", calls: &calls},
	)

	b := transaction.New(context.Background(), protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID()), true)
	v, err := p.Run(b)
	require.NoError(t, err)
	assert.Equal(t, Continue, v)
	assert.Equal(t, []string{"a.pre", "b.pre", "a.handle", "b.handle", "a.post", "b.post"}, calls)
}

func TestPipeline_NoHandleWithoutResponse(t *testing.T) {
	var calls []string
	p := NewPipeline(serverDUID, &recorder{name: "a", calls: &calls})

	b := transaction.New(context.Background(), protocol.NewMessage(protocol.MessageTypeConfirm, [3]byte{}, clientID()), true)
	_, err := p.Run(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pre", "a.post"}, calls)
}

func TestPipeline_DropStopsChain(t *testing.T) {
	var calls []string
	p := NewPipeline(serverDUID,
		&recorder{name: "a", calls: &calls, pre: Drop},
		&recorder{name: "b", calls: &calls},
	)

	b := transaction.New(context.Background(), protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID()), true)
	v, err := p.Run(b)
	require.NoError(t, err)
	assert.Equal(t, Drop, v)
	assert.Equal(t, []string{"a.pre"}, calls)
	assert.Nil(t, b.Response)
}

func TestPipeline_HandlerError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	p := NewPipeline(serverDUID, &recorder{name: "a", calls: &calls, err: boom})

	b := transaction.New(context.Background(), protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID()), true)
	v, err := p.Run(b)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Drop, v)
	assert.Nil(t, b.Response)
}

func TestPipeline_NoRequest(t *testing.T) {
	b := transaction.New(context.Background(), protocol.NewMessage(protocol.MessageTypeReply, [3]byte{}), true)
	v, err := NewPipeline(serverDUID).Run(b)
	require.NoError(t, err)
	assert.Equal(t, Drop, v)
}

func TestRedirectMulticast(t *testing.T) {
	var calls []string
	p := NewPipeline(serverDUID, &recorder{name: "policy", calls: &calls, pre: RedirectMulticast})
	req := protocol.NewMessage(protocol.MessageTypeRequest, [3]byte{9, 9, 9}, clientID(), serverID())

	t.Run("unicast request", func(t *testing.T) {
		b := transaction.New(context.Background(), req, false)
		v, err := p.Run(b)
		require.NoError(t, err)
		assert.Equal(t, RedirectMulticast, v)

		require.NotNil(t, b.Response)
		assert.Equal(t, protocol.MessageTypeReply, b.Response.MsgType)
		assert.Equal(t, req.TransactionID, b.Response.TransactionID)
		assert.NotNil(t, b.Response.Option(protocol.OptionClientID))
		assert.NotNil(t, b.Response.Option(protocol.OptionServerID))
		code, ok := statusOf(b.Response.Opts)
		require.True(t, ok)
		assert.Equal(t, protocol.StatusUseMulticast, code)

		_, err = b.Response.Marshal()
		assert.NoError(t, err)
	})

	t.Run("multicast request", func(t *testing.T) {
		b := transaction.New(context.Background(), req, true)
		v, err := p.Run(b)
		assert.ErrorIs(t, err, ErrRedirectOverMulticast)
		assert.Equal(t, Drop, v)
		assert.Nil(t, b.Response)
	})
}

func TestUnicastPolicy(t *testing.T) {
	req := protocol.NewMessage(protocol.MessageTypeRenew, [3]byte{1}, clientID(), serverID(), ia("2001:db8::1"))

	b, v, err := run(t, testConfig(t, ""), nil, req, false)
	require.NoError(t, err)
	assert.Equal(t, RedirectMulticast, v)
	code, _ := statusOf(b.Response.Opts)
	assert.Equal(t, protocol.StatusUseMulticast, code)

	cfg := testConfig(t, "server:\n  allow_unicast: true\n  unicast_address: 2001:db8::547\n")
	b, v, err = run(t, cfg, nil, req, false)
	require.NoError(t, err)
	assert.Equal(t, Continue, v)
	su, ok := b.Response.Option(protocol.OptionServerUnicast).(*protocol.ServerUnicastOption)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("2001:db8::547"), su.Address)
}

func TestServerID_Gate(t *testing.T) {
	foreign := &protocol.ServerIDOption{DUID: otherDUID}

	tests := []struct {
		name string
		req  *protocol.ClientServerMessage
		drop bool
	}{
		{"foreign server id", protocol.NewMessage(protocol.MessageTypeRequest, [3]byte{}, clientID(), foreign, ia()), true},
		{"foreign server id on information request", protocol.NewMessage(protocol.MessageTypeInformationRequest, [3]byte{}, foreign), true},
		{"our server id", protocol.NewMessage(protocol.MessageTypeRequest, [3]byte{}, clientID(), serverID(), ia()), false},
		{"request without server id", protocol.NewMessage(protocol.MessageTypeRequest, [3]byte{}, clientID(), ia()), true},
		{"solicit with our server id", protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID(), serverID()), true},
		{"solicit without client id", protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}), true},
		{"information request without ids", protocol.NewMessage(protocol.MessageTypeInformationRequest, [3]byte{}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, v, err := run(t, testConfig(t, ""), nil, tt.req, true)
			require.NoError(t, err)
			if tt.drop {
				assert.Equal(t, Drop, v)
				assert.Nil(t, b.Response)
				return
			}
			assert.Equal(t, Continue, v)
			require.NotNil(t, b.Response)
			sid, ok := b.Response.Option(protocol.OptionServerID).(*protocol.ServerIDOption)
			require.True(t, ok)
			assert.True(t, protocol.EqualDUID(serverDUID, sid.DUID))
		})
	}
}

func TestServerID_MismatchBeatsRedirect(t *testing.T) {
	var calls []string
	chain := []Handler{
		NewServerID(serverDUID),
		&recorder{name: "policy", calls: &calls, pre: RedirectMulticast},
	}
	req := protocol.NewMessage(protocol.MessageTypeRequest, [3]byte{}, clientID(), &protocol.ServerIDOption{DUID: otherDUID})

	b := transaction.New(context.Background(), req, false)
	v, err := NewPipeline(serverDUID, chain...).Run(b)
	require.NoError(t, err)
	assert.Equal(t, Drop, v)
	assert.Nil(t, b.Response)
	assert.Empty(t, calls)
}

func TestUnanswered_Solicit(t *testing.T) {
	req := protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{1, 2, 3}, clientID(), ia(), pd("::/0"))

	b, _, err := run(t, testConfig(t, ""), nil, req, true)
	require.NoError(t, err)
	require.NotNil(t, b.Response)
	assert.Equal(t, protocol.MessageTypeAdvertise, b.Response.MsgType)

	got, ok := b.Response.Option(protocol.OptionIANA).(*protocol.IANAOption)
	require.True(t, ok)
	assert.Equal(t, testIAID, got.IAID)
	code, ok := statusOf(got.Opts)
	require.True(t, ok)
	assert.Equal(t, protocol.StatusNoAddrsAvail, code)

	gotPD, ok := b.Response.Option(protocol.OptionIAPD).(*protocol.IAPDOption)
	require.True(t, ok)
	code, _ = statusOf(gotPD.Opts)
	assert.Equal(t, protocol.StatusNoPrefixAvail, code)

	assert.Empty(t, b.UnhandledOptions(protocol.GroupIA...))

	out, err := b.OutgoingMessage()
	require.NoError(t, err)
	_, err = protocol.EncodeMessage(out)
	assert.NoError(t, err)
}

func TestUnanswered_PerMessageType(t *testing.T) {
	tests := []struct {
		name          string
		msgType       protocol.MessageType
		authoritative bool
		wantDrop      bool
		check         func(t *testing.T, resp *protocol.ClientServerMessage)
	}{
		{
			name:          "confirm authoritative",
			msgType:       protocol.MessageTypeConfirm,
			authoritative: true,
			check: func(t *testing.T, resp *protocol.ClientServerMessage) {
				code, ok := statusOf(resp.Opts)
				require.True(t, ok)
				assert.Equal(t, protocol.StatusNotOnLink, code)
				assert.Len(t, resp.OptionsOf(protocol.OptionStatusCode), 1)
				assert.Nil(t, resp.Option(protocol.OptionIANA))
			},
		},
		{
			name:     "confirm not authoritative",
			msgType:  protocol.MessageTypeConfirm,
			wantDrop: true,
		},
		{
			name:          "renew authoritative",
			msgType:       protocol.MessageTypeRenew,
			authoritative: true,
			check: func(t *testing.T, resp *protocol.ClientServerMessage) {
				got := resp.Option(protocol.OptionIANA).(*protocol.IANAOption)
				addr := got.Option(protocol.OptionIAAddress).(*protocol.IAAddressOption)
				assert.Equal(t, netip.MustParseAddr("2001:db8::1"), addr.Address)
				assert.Zero(t, addr.PreferredLifetime)
				assert.Zero(t, addr.ValidLifetime)
				assert.Zero(t, got.T1)
				assert.Zero(t, got.T2)
			},
		},
		{
			name:    "renew not authoritative",
			msgType: protocol.MessageTypeRenew,
			check: func(t *testing.T, resp *protocol.ClientServerMessage) {
				got := resp.Option(protocol.OptionIANA).(*protocol.IANAOption)
				code, _ := statusOf(got.Opts)
				assert.Equal(t, protocol.StatusNoBinding, code)
			},
		},
		{
			name:          "rebind authoritative",
			msgType:       protocol.MessageTypeRebind,
			authoritative: true,
			check: func(t *testing.T, resp *protocol.ClientServerMessage) {
				got := resp.Option(protocol.OptionIANA).(*protocol.IANAOption)
				addr := got.Option(protocol.OptionIAAddress).(*protocol.IAAddressOption)
				assert.Zero(t, addr.ValidLifetime)
			},
		},
		{
			name:     "rebind not authoritative",
			msgType:  protocol.MessageTypeRebind,
			wantDrop: true,
		},
		{
			name:    "release",
			msgType: protocol.MessageTypeRelease,
			check: func(t *testing.T, resp *protocol.ClientServerMessage) {
				got := resp.Option(protocol.OptionIANA).(*protocol.IANAOption)
				code, _ := statusOf(got.Opts)
				assert.Equal(t, protocol.StatusNoBinding, code)
				// top level status is defaulted
				code, ok := statusOf(resp.Opts)
				require.True(t, ok)
				assert.Equal(t, protocol.StatusSuccess, code)
			},
		},
		{
			name:    "decline",
			msgType: protocol.MessageTypeDecline,
			check: func(t *testing.T, resp *protocol.ClientServerMessage) {
				got := resp.Option(protocol.OptionIANA).(*protocol.IANAOption)
				code, _ := statusOf(got.Opts)
				assert.Equal(t, protocol.StatusNoBinding, code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []protocol.Option{clientID(), ia("2001:db8::1")}
			switch tt.msgType {
			case protocol.MessageTypeRenew, protocol.MessageTypeRelease, protocol.MessageTypeDecline:
				opts = append(opts, serverID())
			}
			cfg := testConfig(t, "")
			cfg.Server.Authoritative = tt.authoritative

			b, v, err := run(t, cfg, nil, protocol.NewMessage(tt.msgType, [3]byte{7}, opts...), true)
			require.NoError(t, err)
			if tt.wantDrop {
				assert.Equal(t, Drop, v)
				assert.Nil(t, b.Response)
				return
			}
			require.NotNil(t, b.Response)
			tt.check(t, b.Response)

			_, err = b.Response.Marshal()
			assert.NoError(t, err)
		})
	}
}

func TestConfirmWithoutBindings(t *testing.T) {
	req := protocol.NewMessage(protocol.MessageTypeConfirm, [3]byte{'a', 'b', 'c'}, clientID())
	cfg := testConfig(t, "server:\n  authoritative: true\n")

	b, _, err := run(t, cfg, nil, req, true)
	require.NoError(t, err)
	out, err := b.OutgoingMessage()
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRapidCommit(t *testing.T) {
	solicit := func(opts ...protocol.Option) *protocol.ClientServerMessage {
		opts = append([]protocol.Option{clientID(), &protocol.RapidCommitOption{}}, opts...)
		return protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{0xab, 0xcd, 0xef}, opts...)
	}
	staticSource := &fakeSource{a: assignment.Assignment{Address: netip.MustParseAddr("2001:db8::10")}}

	tests := []struct {
		name   string
		config string
		source assignment.Source
		req    *protocol.ClientServerMessage
		want   protocol.MessageType
	}{
		{
			name:   "no bindings requested",
			config: "server:\n  allow_rapid_commit: true\n  rapid_commit_rejections: true\n",
			req:    solicit(),
			want:   protocol.MessageTypeReply,
		},
		{
			name:   "rejections allowed",
			config: "server:\n  allow_rapid_commit: true\n  rapid_commit_rejections: true\n",
			req:    solicit(ia()),
			want:   protocol.MessageTypeReply,
		},
		{
			name:   "rejections not allowed",
			config: "server:\n  allow_rapid_commit: true\n",
			req:    solicit(ia()),
			want:   protocol.MessageTypeAdvertise,
		},
		{
			name:   "assigned without rejections",
			config: "server:\n  allow_rapid_commit: true\n",
			source: staticSource,
			req:    solicit(ia()),
			want:   protocol.MessageTypeReply,
		},
		{
			name:   "not allowed",
			config: "server:\n  rapid_commit_rejections: true\n",
			req:    solicit(),
			want:   protocol.MessageTypeAdvertise,
		},
		{
			name:   "client did not ask",
			config: "server:\n  allow_rapid_commit: true\n  rapid_commit_rejections: true\n",
			req:    protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{1}, clientID()),
			want:   protocol.MessageTypeAdvertise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, err := run(t, testConfig(t, tt.config), tt.source, tt.req, true)
			require.NoError(t, err)

			out, err := b.OutgoingMessage()
			require.NoError(t, err)
			resp := out.(*protocol.ClientServerMessage)
			assert.Equal(t, tt.want, resp.MsgType)
			assert.Equal(t, tt.req.TransactionID, resp.TransactionID)

			rc := resp.Option(protocol.OptionRapidCommit)
			if tt.want == protocol.MessageTypeReply {
				require.NotNil(t, rc)
				assert.Same(t, rc, resp.Opts[0])
			} else {
				assert.Nil(t, rc)
			}

			_, err = protocol.EncodeMessage(out)
			assert.NoError(t, err)
		})
	}
}

func TestRapidCommit_Refusals(t *testing.T) {
	req := protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{1}, clientID(), &protocol.RapidCommitOption{})

	tests := []struct {
		name string
		opts []protocol.Option
		want protocol.MessageType
	}{
		{
			name: "message level no addresses",
			opts: []protocol.Option{&protocol.StatusCodeOption{Status: protocol.StatusNoAddrsAvail}},
			want: protocol.MessageTypeAdvertise,
		},
		{
			name: "message level no prefixes",
			opts: []protocol.Option{&protocol.StatusCodeOption{Status: protocol.StatusNoPrefixAvail}},
			want: protocol.MessageTypeAdvertise,
		},
		{
			name: "success",
			opts: []protocol.Option{&protocol.StatusCodeOption{Status: protocol.StatusSuccess}},
			want: protocol.MessageTypeReply,
		},
		{
			name: "status code of another type",
			opts: []protocol.Option{&protocol.UnknownOption{OptionType: protocol.OptionStatusCode, Data: []byte{0, 2}}},
			want: protocol.MessageTypeReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := transaction.New(context.Background(), req, true, transaction.WithRapidCommit(true))
			b.InitResponse()
			require.NotNil(t, b.Response)
			b.Response.Opts = append(b.Response.Opts, tt.opts...)

			v, err := NewRapidCommit(false).Post(b)
			require.NoError(t, err)
			assert.Equal(t, Continue, v)
			assert.Equal(t, tt.want, b.Response.MsgType)
			assert.Equal(t, tt.want == protocol.MessageTypeReply, b.AllowRapidCommit())
		})
	}
}

func TestRapidCommit_StaysDisallowed(t *testing.T) {
	req := protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{1}, clientID(), &protocol.RapidCommitOption{})
	b := transaction.New(context.Background(), req, true, transaction.WithRapidCommit(true))
	b.InitResponse()
	b.DisallowRapidCommit()

	_, err := NewRapidCommit(true).Post(b)
	require.NoError(t, err)
	assert.Equal(t, protocol.MessageTypeAdvertise, b.Response.MsgType)
	assert.False(t, b.AllowRapidCommit())
}

func TestTimingLimits(t *testing.T) {
	defaults := config.Timing{FactorT1: 0.5, FactorT2: 0.8, MaxT1: protocol.Infinity, MaxT2: protocol.Infinity}
	lease := func(preferred ...uint32) []protocol.Option {
		var opts []protocol.Option
		for i, p := range preferred {
			opts = append(opts, &protocol.IAAddressOption{
				Address:           netip.AddrFrom16([16]byte{0x20, 0x01, 0x0d, 0xb8, 15: byte(i + 1)}),
				PreferredLifetime: p,
				ValidLifetime:     protocol.Infinity,
			})
		}
		return opts
	}

	tests := []struct {
		name           string
		limits         config.Timing
		t1, t2         uint32
		opts           []protocol.Option
		wantT1, wantT2 uint32
	}{
		{"derived from shortest", defaults, 0, 0, lease(7200, 3600), 1800, 2880},
		{"explicit kept", defaults, 1000, 2000, lease(3600), 1000, 2000},
		{"t2 capped at shortest", defaults, 1000, 5000, lease(3600), 1000, 3600},
		{"t1 capped at t2", defaults, 3000, 2000, lease(3600), 2000, 2000},
		{"infinite lifetime", defaults, 0, 0, lease(protocol.Infinity), protocol.Infinity, protocol.Infinity},
		{"no leases", defaults, 0, 0, nil, 0, 0},
		{"withdrawn", defaults, 0, 0, lease(0), 0, 0},
		{
			name:   "clamped to minimum",
			limits: config.Timing{FactorT1: 0.5, FactorT2: 0.8, MinT1: 1000, MaxT1: protocol.Infinity, MinT2: 2000, MaxT2: protocol.Infinity},
			opts:   lease(600), wantT1: 600, wantT2: 600,
		},
		{
			name:   "clamped to maximum",
			limits: config.Timing{FactorT1: 0.5, FactorT2: 0.8, MaxT1: 600, MaxT2: 900},
			opts:   lease(86400), wantT1: 600, wantT2: 900,
		},
		{
			name:   "minimum below shortest",
			limits: config.Timing{FactorT1: 0.5, FactorT2: 0.8, MinT1: 2000, MaxT1: protocol.Infinity, MinT2: 3000, MaxT2: protocol.Infinity},
			opts:   lease(3600), wantT1: 2000, wantT2: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t1, t2 := NewIANATimingLimits(tt.limits).Limit(tt.t1, tt.t2, tt.opts)
			assert.Equal(t, tt.wantT1, t1, "t1")
			assert.Equal(t, tt.wantT2, t2, "t2")
			if len(tt.opts) > 0 {
				assert.LessOrEqual(t, t1, t2)
			}
		})
	}
}

func TestTimingLimits_Handle(t *testing.T) {
	source := &fakeSource{a: assignment.Assignment{
		Address: netip.MustParseAddr("2001:db8::10"),
		Prefix:  netip.MustParsePrefix("2001:db8:100::/56"),
	}}
	cfg := testConfig(t, "iapd_timing:\n  factor_t1: 0.25\n  factor_t2: 0.5\n")
	req := protocol.NewMessage(protocol.MessageTypeRequest, [3]byte{}, clientID(), serverID(), ia(), &protocol.IAPDOption{IAID: [4]byte{1}})

	b, _, err := run(t, cfg, source, req, true)
	require.NoError(t, err)

	na := b.Response.Option(protocol.OptionIANA).(*protocol.IANAOption)
	assert.Equal(t, uint32(1800), na.T1)
	assert.Equal(t, uint32(2880), na.T2)

	ipd := b.Response.Option(protocol.OptionIAPD).(*protocol.IAPDOption)
	assert.Equal(t, uint32(900), ipd.T1)
	assert.Equal(t, uint32(1800), ipd.T2)
}

func TestStaticAssignment(t *testing.T) {
	source := &fakeSource{a: assignment.Assignment{Address: netip.MustParseAddr("2001:db8::10")}}

	t.Run("old addresses withdrawn", func(t *testing.T) {
		req := protocol.NewMessage(protocol.MessageTypeRenew, [3]byte{}, clientID(), serverID(), ia("2001:db8::10", "2001:db8::99"))
		b, _, err := run(t, testConfig(t, ""), source, req, true)
		require.NoError(t, err)

		got := b.Response.Option(protocol.OptionIANA).(*protocol.IANAOption)
		addrs := protocol.FindOptions(got.Opts, protocol.OptionIAAddress)
		require.Len(t, addrs, 2)
		assert.Equal(t, netip.MustParseAddr("2001:db8::10"), addrs[0].(*protocol.IAAddressOption).Address)
		assert.Equal(t, config.DefaultValidLifetime, addrs[0].(*protocol.IAAddressOption).ValidLifetime)
		assert.Equal(t, netip.MustParseAddr("2001:db8::99"), addrs[1].(*protocol.IAAddressOption).Address)
		assert.Zero(t, addrs[1].(*protocol.IAAddressOption).ValidLifetime)
	})

	t.Run("confirm on link", func(t *testing.T) {
		req := protocol.NewMessage(protocol.MessageTypeConfirm, [3]byte{}, clientID(), ia("2001:db8::10"))
		b, _, err := run(t, testConfig(t, "server:\n  authoritative: true\n"), source, req, true)
		require.NoError(t, err)
		code, _ := statusOf(b.Response.Opts)
		assert.Equal(t, protocol.StatusSuccess, code)
	})

	t.Run("confirm off link", func(t *testing.T) {
		req := protocol.NewMessage(protocol.MessageTypeConfirm, [3]byte{}, clientID(), ia("2001:db8::77"))
		b, _, err := run(t, testConfig(t, "server:\n  authoritative: true\n"), source, req, true)
		require.NoError(t, err)
		code, _ := statusOf(b.Response.Opts)
		assert.Equal(t, protocol.StatusNotOnLink, code)
	})

	t.Run("second IA unanswered", func(t *testing.T) {
		second := ia()
		second.IAID = [4]byte{9}
		req := protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID(), ia(), second)
		b, _, err := run(t, testConfig(t, ""), source, req, true)
		require.NoError(t, err)

		got := b.Response.OptionsOf(protocol.OptionIANA)
		require.Len(t, got, 2)
		_, ok := statusOf(got[0].(*protocol.IANAOption).Opts)
		assert.False(t, ok)
		code, _ := statusOf(got[1].(*protocol.IANAOption).Opts)
		assert.Equal(t, protocol.StatusNoAddrsAvail, code)
	})

	t.Run("lookup failure", func(t *testing.T) {
		req := protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID(), ia())
		b, v, err := run(t, testConfig(t, ""), &fakeSource{err: errors.New("db down")}, req, true)
		assert.Error(t, err)
		assert.Equal(t, Drop, v)
		assert.Nil(t, b.Response)
	})
}

func TestStaticOptions(t *testing.T) {
	cfg := testConfig(t, `
server:
  preference: 200
options:
  only_if_requested: true
  dns_servers: ["2001:4860:4860::8888"]
  information_refresh_time: 3600
  s46_rules:
    - ipv4_prefix: 192.0.2.0/24
      ipv6_prefix: 2001:db8:ff00::/40
      ea_length: 16
`)

	oro := &protocol.OptionRequestOption{Requested: []protocol.OptionCode{protocol.OptionRecursiveNameServers}}

	t.Run("solicit", func(t *testing.T) {
		b, _, err := run(t, cfg, nil, protocol.NewMessage(protocol.MessageTypeSolicit, [3]byte{}, clientID(), oro), true)
		require.NoError(t, err)
		assert.NotNil(t, b.Response.Option(protocol.OptionPreference))
		assert.NotNil(t, b.Response.Option(protocol.OptionRecursiveNameServers))
		assert.Nil(t, b.Response.Option(protocol.OptionS46Rule), "not requested")
		assert.Nil(t, b.Response.Option(protocol.OptionInformationRefreshTime))
	})

	t.Run("information request", func(t *testing.T) {
		b, _, err := run(t, cfg, nil, protocol.NewMessage(protocol.MessageTypeInformationRequest, [3]byte{}, clientID()), true)
		require.NoError(t, err)
		assert.Nil(t, b.Response.Option(protocol.OptionPreference), "reply carries no preference")
		assert.Nil(t, b.Response.Option(protocol.OptionRecursiveNameServers), "not requested")
		assert.NotNil(t, b.Response.Option(protocol.OptionInformationRefreshTime))

		_, err = b.Response.Marshal()
		assert.NoError(t, err)
	})
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "drop", Drop.String())
	assert.Equal(t, "redirect-multicast", RedirectMulticast.String())
	assert.Equal(t, "verdict(7)", Verdict(7).String())
}
