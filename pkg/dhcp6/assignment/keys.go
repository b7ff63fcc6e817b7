package assignment

import (
	"fmt"
	"strings"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

const (
	KeyDUID        = "duid"
	KeyInterfaceID = "interface-id"
	KeyRemoteID    = "remote-id"
)

// Keys returns the lookup keys for a transaction, most specific first: the
// client DUID, then the interface-id and remote-id added by the relay
// closest to the client.
func Keys(b *transaction.Bundle) []string {
	if b.Request == nil {
		return nil
	}

	var keys []string
	if cid, ok := b.Request.Option(protocol.OptionClientID).(*protocol.ClientIDOption); ok && cid.DUID != nil {
		keys = append(keys, DUIDKey(cid.DUID))
	}

	for _, rm := range b.IncomingRelayMessages {
		if opt, ok := rm.Option(protocol.OptionInterfaceID).(*protocol.InterfaceIDOption); ok {
			keys = append(keys, KeyInterfaceID+":"+string(opt.InterfaceID))
			break
		}
	}
	for _, rm := range b.IncomingRelayMessages {
		if opt, ok := rm.Option(protocol.OptionRemoteID).(*protocol.RemoteIDOption); ok {
			keys = append(keys, fmt.Sprintf("%s:%d:%x", KeyRemoteID, opt.EnterpriseNumber, opt.RemoteID))
			break
		}
	}

	return keys
}

func DUIDKey(d protocol.DUID) string {
	return KeyDUID + ":" + protocol.DUIDString(d)
}

// NormalizeKey brings a key written by an operator into the form produced
// by Keys, so that "duid:00:03:00:01:..." and "duid:00030001..." match.
func NormalizeKey(key string) (string, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok || value == "" {
		return "", fmt.Errorf("key '%s' is not of the form <kind>:<value>", key)
	}

	switch strings.ToLower(kind) {
	case KeyDUID:
		d, err := protocol.ParseDUIDHex(value)
		if err != nil {
			return "", fmt.Errorf("key '%s': %w", key, err)
		}
		return DUIDKey(d), nil
	case KeyInterfaceID:
		return KeyInterfaceID + ":" + value, nil
	case KeyRemoteID:
		enterprise, id, ok := strings.Cut(value, ":")
		if !ok {
			return "", fmt.Errorf("key '%s': remote-id needs <enterprise>:<hex>", key)
		}
		return KeyRemoteID + ":" + enterprise + ":" + strings.ToLower(strings.ReplaceAll(id, ":", "")), nil
	default:
		return "", fmt.Errorf("key '%s': unknown kind '%s'", key, kind)
	}
}
