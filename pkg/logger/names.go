package logger

const (
	Main       = "main"
	Config     = "config"
	Listener   = "listener"
	Metrics    = "metrics"
	Codec      = "dhcp6.codec"
	Relay      = "dhcp6.relay"
	Pipeline   = "dhcp6.pipeline"
	Assignment = "dhcp6.assignment"
	Server     = "dhcp6.server"
	Replay     = "replay"
	Shell      = "shell"
)
