package protocol

import "fmt"

type OptionCode uint16

const (
	OptionClientID               OptionCode = 1
	OptionServerID               OptionCode = 2
	OptionIANA                   OptionCode = 3
	OptionIATA                   OptionCode = 4
	OptionIAAddress              OptionCode = 5
	OptionOptionRequest          OptionCode = 6
	OptionPreference             OptionCode = 7
	OptionElapsedTime            OptionCode = 8
	OptionRelayMessage           OptionCode = 9
	OptionAuth                   OptionCode = 11
	OptionServerUnicast          OptionCode = 12
	OptionStatusCode             OptionCode = 13
	OptionRapidCommit            OptionCode = 14
	OptionUserClass              OptionCode = 15
	OptionVendorClass            OptionCode = 16
	OptionVendorOpts             OptionCode = 17
	OptionInterfaceID            OptionCode = 18
	OptionReconfigureMessage     OptionCode = 19
	OptionReconfigureAccept      OptionCode = 20
	OptionRecursiveNameServers   OptionCode = 23
	OptionDomainList             OptionCode = 24
	OptionIAPD                   OptionCode = 25
	OptionIAPrefix               OptionCode = 26
	OptionSNTPServers            OptionCode = 31
	OptionInformationRefreshTime OptionCode = 32
	OptionRemoteID               OptionCode = 37
	OptionNTPServer              OptionCode = 56
	OptionClientLinkLayerAddress OptionCode = 79
	OptionSolMaxRT               OptionCode = 82
	OptionInfMaxRT               OptionCode = 83
	OptionS46Rule                OptionCode = 89
)

var optionNames = map[OptionCode]string{
	OptionClientID:               "ClientID",
	OptionServerID:               "ServerID",
	OptionIANA:                   "IA_NA",
	OptionIATA:                   "IA_TA",
	OptionIAAddress:              "IAAddress",
	OptionOptionRequest:          "OptionRequest",
	OptionPreference:             "Preference",
	OptionElapsedTime:            "ElapsedTime",
	OptionRelayMessage:           "RelayMessage",
	OptionAuth:                   "Auth",
	OptionServerUnicast:          "ServerUnicast",
	OptionStatusCode:             "StatusCode",
	OptionRapidCommit:            "RapidCommit",
	OptionUserClass:              "UserClass",
	OptionVendorClass:            "VendorClass",
	OptionVendorOpts:             "VendorOpts",
	OptionInterfaceID:            "InterfaceID",
	OptionReconfigureMessage:     "ReconfigureMessage",
	OptionReconfigureAccept:      "ReconfigureAccept",
	OptionRecursiveNameServers:   "RecursiveNameServers",
	OptionDomainList:             "DomainList",
	OptionIAPD:                   "IA_PD",
	OptionIAPrefix:               "IAPrefix",
	OptionSNTPServers:            "SNTPServers",
	OptionInformationRefreshTime: "InformationRefreshTime",
	OptionRemoteID:               "RemoteID",
	OptionNTPServer:              "NTPServer",
	OptionClientLinkLayerAddress: "ClientLinkLayerAddress",
	OptionSolMaxRT:               "SolMaxRT",
	OptionInfMaxRT:               "InfMaxRT",
	OptionS46Rule:                "S46Rule",
}

func (c OptionCode) String() string {
	if name, ok := optionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Option(%d)", uint16(c))
}

type MessageType uint8

const (
	MessageTypeSolicit            MessageType = 1
	MessageTypeAdvertise          MessageType = 2
	MessageTypeRequest            MessageType = 3
	MessageTypeConfirm            MessageType = 4
	MessageTypeRenew              MessageType = 5
	MessageTypeRebind             MessageType = 6
	MessageTypeReply              MessageType = 7
	MessageTypeRelease            MessageType = 8
	MessageTypeDecline            MessageType = 9
	MessageTypeReconfigure        MessageType = 10
	MessageTypeInformationRequest MessageType = 11
	MessageTypeRelayForward       MessageType = 12
	MessageTypeRelayReply         MessageType = 13
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSolicit:
		return "SOLICIT"
	case MessageTypeAdvertise:
		return "ADVERTISE"
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeConfirm:
		return "CONFIRM"
	case MessageTypeRenew:
		return "RENEW"
	case MessageTypeRebind:
		return "REBIND"
	case MessageTypeReply:
		return "REPLY"
	case MessageTypeRelease:
		return "RELEASE"
	case MessageTypeDecline:
		return "DECLINE"
	case MessageTypeReconfigure:
		return "RECONFIGURE"
	case MessageTypeInformationRequest:
		return "INFORMATION-REQUEST"
	case MessageTypeRelayForward:
		return "RELAY-FORW"
	case MessageTypeRelayReply:
		return "RELAY-REPL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// FromClientToServer reports whether messages of this type travel towards
// the server. Relay-forward counts: it carries client traffic.
func (t MessageType) FromClientToServer() bool {
	switch t {
	case MessageTypeSolicit, MessageTypeRequest, MessageTypeConfirm, MessageTypeRenew,
		MessageTypeRebind, MessageTypeRelease, MessageTypeDecline,
		MessageTypeInformationRequest, MessageTypeRelayForward:
		return true
	}
	return false
}

func (t MessageType) FromServerToClient() bool {
	switch t {
	case MessageTypeAdvertise, MessageTypeReply, MessageTypeReconfigure, MessageTypeRelayReply:
		return true
	}
	return false
}

func (t MessageType) IsRelay() bool {
	return t == MessageTypeRelayForward || t == MessageTypeRelayReply
}

type StatusCode uint16

const (
	StatusSuccess       StatusCode = 0
	StatusUnspecFail    StatusCode = 1
	StatusNoAddrsAvail  StatusCode = 2
	StatusNoBinding     StatusCode = 3
	StatusNotOnLink     StatusCode = 4
	StatusUseMulticast  StatusCode = 5
	StatusNoPrefixAvail StatusCode = 6
)

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusUnspecFail:
		return "UnspecFail"
	case StatusNoAddrsAvail:
		return "NoAddrsAvail"
	case StatusNoBinding:
		return "NoBinding"
	case StatusNotOnLink:
		return "NotOnLink"
	case StatusUseMulticast:
		return "UseMulticast"
	case StatusNoPrefixAvail:
		return "NoPrefixAvail"
	default:
		return fmt.Sprintf("Status(%d)", uint16(s))
	}
}
