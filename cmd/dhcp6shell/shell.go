package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/assignment"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/server"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
	"github.com/veesix-networks/dhcp6d/pkg/version"
)

type command struct {
	usage       string
	description string
	run         func(s *Shell, args []string) error
}

var commands = map[string]command{
	"decode": {
		usage:       "decode <hex>",
		description: "Decode a message and print its options",
		run:         (*Shell).decode,
	},
	"handle": {
		usage:       "handle <hex>",
		description: "Run a message through the server and print the reply",
		run:         (*Shell).handle,
	},
	"multicast": {
		usage:       "multicast on|off",
		description: "Treat handled messages as received over multicast",
		run:         (*Shell).setMulticast,
	},
	"show": {
		usage:       "show config|handlers",
		description: "Show the running server configuration",
		run:         (*Shell).show,
	},
	"log": {
		usage:       "log [<component> <level>|clear]",
		description: "Show or change log levels",
		run:         (*Shell).logLevel,
	},
	"reload": {
		usage:       "reload",
		description: "Reload the configuration file",
		run:         (*Shell).reload,
	},
	"save": {
		usage:       "save <path>",
		description: "Write the running configuration to a file",
		run:         (*Shell).save,
	},
	"assign": {
		usage:       "assign <id> <address|-> [prefix]",
		description: "Store a static assignment in the database",
		run:         (*Shell).assign,
	},
	"unassign": {
		usage:       "unassign <id>",
		description: "Remove a static assignment from the database",
		run:         (*Shell).unassign,
	},
}

var commandOrder = []string{"decode", "handle", "multicast", "show", "log", "reload", "save", "assign", "unassign"}

// assignmentStore is implemented by sources that can be changed at runtime.
type assignmentStore interface {
	Put(ctx context.Context, id string, a assignment.Assignment) error
	Delete(ctx context.Context, id string) error
}

type Shell struct {
	srv        *server.Server
	registry   *protocol.Registry
	configPath string
	out        io.Writer
	rl         *readline.Instance
	running    bool
	multicast  bool
}

func NewShell(srv *server.Server, configPath string, out io.Writer) *Shell {
	return &Shell{
		srv:        srv,
		registry:   protocol.NewRegistry(),
		configPath: configPath,
		out:        out,
		running:    true,
		multicast:  true,
	}
}

func (s *Shell) Run() error {
	var err error
	s.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "dhcp6> ",
		HistoryFile:     os.ExpandEnv("$HOME/.dhcp6shell_history"),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer s.rl.Close()

	fmt.Fprintln(s.out, version.String("dhcp6shell"))
	fmt.Fprintf(s.out, "Server ID: %s\n", protocol.DUIDString(s.srv.ServerID()))
	fmt.Fprintln(s.out, "Type 'help' for available commands")

	for s.running {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					break
				}
				continue
			} else if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := s.Execute(line); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}

	return nil
}

func (s *Shell) Stop() {
	s.running = false
}

func completer() readline.AutoCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
	}
	for _, name := range commandOrder {
		switch name {
		case "multicast":
			items = append(items, readline.PcItem(name, readline.PcItem("on"), readline.PcItem("off")))
		case "log":
			var names []readline.PrefixCompleterInterface
			for _, component := range []string{logger.Listener, logger.Codec, logger.Relay, logger.Pipeline, logger.Assignment, logger.Server} {
				names = append(names, readline.PcItem(component,
					readline.PcItem(string(logger.LogLevelDebug)),
					readline.PcItem(string(logger.LogLevelInfo)),
					readline.PcItem(string(logger.LogLevelWarn)),
					readline.PcItem(string(logger.LogLevelError)),
					readline.PcItem("clear"),
				))
			}
			items = append(items, readline.PcItem(name, names...))
		case "show":
			items = append(items, readline.PcItem(name, readline.PcItem("config"), readline.PcItem("handlers")))
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

// Execute runs one command line.
func (s *Shell) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "exit", "quit":
		s.running = false
		return nil
	case "help", "?":
		s.help()
		return nil
	}

	cmd, ok := commands[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command '%s'", fields[0])
	}
	return cmd.run(s, fields[1:])
}

func (s *Shell) help() {
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Fprintf(s.out, "  %-20s %s\n", cmd.usage, cmd.description)
	}
	fmt.Fprintf(s.out, "  %-20s %s\n", "exit", "Leave the shell")
}

func parseHex(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("missing hex data")
	}
	joined := strings.NewReplacer(":", "", "-", "").Replace(strings.Join(args, ""))
	data, err := hex.DecodeString(joined)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func (s *Shell) decode(args []string) error {
	data, err := parseHex(args)
	if err != nil {
		return err
	}
	msg, err := s.registry.DecodeMessage(data)
	if err != nil {
		return err
	}
	writeMessage(s.out, msg, 0)
	return nil
}

func (s *Shell) handle(args []string) error {
	data, err := parseHex(args)
	if err != nil {
		return err
	}

	reply, err := s.srv.HandlePacket(context.Background(), server.Packet{
		Data:                  data,
		ReceivedOverMulticast: s.multicast,
		Marks:                 []string{"shell"},
	})
	if err != nil {
		return err
	}
	if reply == nil {
		fmt.Fprintln(s.out, "No reply")
		return nil
	}

	fmt.Fprintln(s.out, hex.EncodeToString(reply))
	msg, err := s.registry.DecodeMessage(reply)
	if err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	writeMessage(s.out, msg, 0)
	return nil
}

func (s *Shell) setMulticast(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: multicast on|off")
	}
	switch args[0] {
	case "on":
		s.multicast = true
	case "off":
		s.multicast = false
	default:
		return fmt.Errorf("expected on or off, got '%s'", args[0])
	}
	return nil
}

func (s *Shell) show(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show config|handlers")
	}

	switch args[0] {
	case "config":
		cfg := s.srv.Config()
		fmt.Fprintf(s.out, "Server ID:         %s\n", protocol.DUIDString(s.srv.ServerID()))
		fmt.Fprintf(s.out, "Authoritative:     %t\n", cfg.Server.Authoritative)
		fmt.Fprintf(s.out, "Rapid commit:      %t\n", cfg.Server.AllowRapidCommit)
		fmt.Fprintf(s.out, "Unicast:           %t\n", cfg.Server.AllowUnicast)
		if cfg.Assignments.Type != "" {
			fmt.Fprintf(s.out, "Assignments:       %s %s\n", cfg.Assignments.Type, cfg.Assignments.Path)
		}
	case "handlers":
		for i, name := range s.srv.Handlers() {
			fmt.Fprintf(s.out, "  %2d %s\n", i+1, name)
		}
	default:
		return fmt.Errorf("unknown item '%s'", args[0])
	}
	return nil
}

func (s *Shell) logLevel(args []string) error {
	switch len(args) {
	case 0:
		fmt.Fprintf(s.out, "  %-20s %s\n", "default", logger.GetDefaultLevel())
		levels := logger.GetComponentLevels()
		names := make([]string, 0, len(levels))
		for name := range levels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(s.out, "  %-20s %s\n", name, levels[name])
		}
		return nil
	case 2:
		if args[1] == "clear" {
			logger.ClearComponentLevel(args[0])
			return nil
		}
		if !logger.ValidLevel(args[1]) {
			return fmt.Errorf("unknown level '%s'", args[1])
		}
		logger.SetComponentLevel(args[0], logger.LogLevel(args[1]))
		return nil
	}
	return errors.New("usage: log [<component> <level>|clear]")
}

func (s *Shell) reload(args []string) error {
	if s.configPath == "" {
		return errors.New("no configuration file given")
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	if err := s.srv.Reload(cfg); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Configuration reloaded")
	return nil
}

func (s *Shell) save(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: save <path>")
	}
	if err := config.Save(args[0], s.srv.Config()); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Configuration written to %s\n", args[0])
	return nil
}

func (s *Shell) store() (assignmentStore, error) {
	src := s.srv.Assignments()
	if src == nil {
		return nil, errors.New("no assignment source configured")
	}
	store, ok := src.(assignmentStore)
	if !ok {
		return nil, fmt.Errorf("assignment source '%s' is read-only", src.Info().Name)
	}
	return store, nil
}

func (s *Shell) assign(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: assign <id> <address|-> [prefix]")
	}
	store, err := s.store()
	if err != nil {
		return err
	}

	var a assignment.Assignment
	if args[1] != "-" {
		if a.Address, err = config.ParseIPv6(args[1]); err != nil {
			return err
		}
	}
	if len(args) == 3 {
		p, err := netip.ParsePrefix(args[2])
		if err != nil {
			return fmt.Errorf("invalid prefix: %w", err)
		}
		if !p.Addr().Is6() {
			return fmt.Errorf("%s is not an IPv6 prefix", p)
		}
		a.Prefix = p.Masked()
	}
	if a.IsZero() {
		return errors.New("an address or a prefix is required")
	}

	return store.Put(context.Background(), args[0], a)
}

func (s *Shell) unassign(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: unassign <id>")
	}
	store, err := s.store()
	if err != nil {
		return err
	}
	return store.Delete(context.Background(), args[0])
}
