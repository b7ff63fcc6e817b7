package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
)

func writeMessage(w io.Writer, msg protocol.Message, depth int) {
	indent := strings.Repeat("  ", depth)

	switch m := msg.(type) {
	case *protocol.RelayMessage:
		fmt.Fprintf(w, "%s%s hop=%d link=%s peer=%s\n", indent, m.MsgType, m.HopCount, m.LinkAddress, m.PeerAddress)
	case *protocol.ClientServerMessage:
		fmt.Fprintf(w, "%s%s xid=%x\n", indent, m.MsgType, m.TransactionID)
	default:
		fmt.Fprintf(w, "%s%s\n", indent, msg.Type())
	}

	for _, opt := range msg.Options() {
		writeOption(w, opt, depth+1)
	}
}

func writeOption(w io.Writer, opt protocol.Option, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s%s\n", indent, opt.Code(), describe(opt))

	switch o := opt.(type) {
	case *protocol.RelayMessageOption:
		if o.Msg != nil {
			writeMessage(w, o.Msg, depth+1)
		}
	case protocol.Container:
		for _, child := range o.Options() {
			writeOption(w, child, depth+1)
		}
	}
}

func describe(opt protocol.Option) string {
	switch o := opt.(type) {
	case *protocol.ClientIDOption:
		return " " + protocol.DUIDString(o.DUID)
	case *protocol.ServerIDOption:
		return " " + protocol.DUIDString(o.DUID)
	case *protocol.IANAOption:
		return fmt.Sprintf(" iaid=%x t1=%d t2=%d", o.IAID, o.T1, o.T2)
	case *protocol.IAPDOption:
		return fmt.Sprintf(" iaid=%x t1=%d t2=%d", o.IAID, o.T1, o.T2)
	case *protocol.IAAddressOption:
		return fmt.Sprintf(" %s preferred=%d valid=%d", o.Address, o.PreferredLifetime, o.ValidLifetime)
	case *protocol.IAPrefixOption:
		return fmt.Sprintf(" %s preferred=%d valid=%d", o.Prefix, o.PreferredLifetime, o.ValidLifetime)
	case *protocol.StatusCodeOption:
		if o.Message == "" {
			return " " + o.Status.String()
		}
		return fmt.Sprintf(" %s %q", o.Status, o.Message)
	case *protocol.OptionRequestOption:
		codes := make([]string, len(o.Requested))
		for i, c := range o.Requested {
			codes[i] = c.String()
		}
		return " " + strings.Join(codes, ",")
	case *protocol.PreferenceOption:
		return fmt.Sprintf(" %d", o.Preference)
	case *protocol.ElapsedTimeOption:
		return fmt.Sprintf(" %d", o.ElapsedTime)
	case *protocol.InterfaceIDOption:
		return fmt.Sprintf(" %q", o.InterfaceID)
	case *protocol.RemoteIDOption:
		return fmt.Sprintf(" enterprise=%d %x", o.EnterpriseNumber, o.RemoteID)
	case *protocol.UnknownOption:
		return fmt.Sprintf(" %x", o.Data)
	}
	return ""
}
