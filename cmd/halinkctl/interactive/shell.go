// Package interactive provides the interactive command-line interface
// for halinkctl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/halink-protocol/halink-go/pkg/session"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Devices gives the shell access to the running sessions.
type Devices interface {
	Devices() []*session.Session
	Device(id string) (*session.Session, bool)
}

// Shell handles interactive mode for halinkctl.
type Shell struct {
	devices Devices
	rl      *readline.Instance
	out     io.Writer
}

// New creates a new interactive shell.
func New(devices Devices) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "halink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{devices: devices, rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Exec(strings.Fields(line)) {
			cancel()
			return
		}
	}
}

// Exec runs one command. It returns false when the shell should exit.
func (s *Shell) Exec(args []string) bool {
	if len(args) == 0 {
		return true
	}

	switch args[0] {
	case "devices", "list":
		s.cmdDevices()
	case "entities":
		s.cmdEntities(args[1:])
	case "show":
		s.cmdShow(args[1:])
	case "set":
		s.cmdSet(args[1:])
	case "press":
		s.cmdPress(args[1:])
	case "raw":
		s.cmdRaw(args[1:])
	case "stats":
		s.cmdStats(args[1:])
	case "help", "?":
		s.printHelp()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", args[0])
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Commands:
  devices                        - List devices and their connection state
  entities <device>              - List entities of a device
  show <device> <entity>         - Show one entity
  set <device> <entity> <value>  - Set a switch, number or select
  press <device> <entity>        - Press a button
  raw <device> <key>=<value>...  - Send a raw SET command
  stats <device>                 - Show session counters
  help                           - Show this help
  quit                           - Exit`)
}

func (s *Shell) session(id string) (*session.Session, bool) {
	sess, ok := s.devices.Device(id)
	if !ok {
		fmt.Fprintf(s.out, "Unknown device: %s\n", id)
	}
	return sess, ok
}

func (s *Shell) cmdDevices() {
	list := s.devices.Devices()
	if len(list) == 0 {
		fmt.Fprintln(s.out, "No devices configured")
		return
	}
	fmt.Fprintf(s.out, "%-20s %-20s %-24s %s\n", "DEVICE", "STATE", "NAME", "ENTITIES")
	for _, sess := range list {
		name := "-"
		if model := sess.Config(); model != nil && model.Device != nil {
			name = model.Device.Name
		}
		fmt.Fprintf(s.out, "%-20s %-20s %-24s %d\n",
			sess.DeviceID(), sess.State(), name, len(sess.Entities()))
	}
}

func (s *Shell) cmdEntities(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: entities <device>")
		return
	}
	sess, ok := s.session(args[0])
	if !ok {
		return
	}
	snaps := sess.Entities()
	if len(snaps) == 0 {
		fmt.Fprintln(s.out, "No entities (waiting for CONFIG)")
		return
	}
	fmt.Fprintf(s.out, "%-40s %-14s %s\n", "ENTITY", "KIND", "VALUE")
	for _, snap := range snaps {
		fmt.Fprintf(s.out, "%-40s %-14s %s\n",
			snap.Descriptor.EntityID, snap.Descriptor.Kind, formatValue(snap.View.Value))
	}
}

func (s *Shell) cmdShow(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: show <device> <entity>")
		return
	}
	sess, ok := s.session(args[0])
	if !ok {
		return
	}
	snap, found := sess.Entity(args[1])
	if !found {
		fmt.Fprintf(s.out, "Unknown entity: %s\n", args[1])
		return
	}

	fmt.Fprintf(s.out, "Entity:   %s\n", snap.Descriptor.EntityID)
	fmt.Fprintf(s.out, "Name:     %s\n", snap.Descriptor.FriendlyName)
	fmt.Fprintf(s.out, "Kind:     %s\n", snap.Descriptor.Kind)
	fmt.Fprintf(s.out, "Value:    %s\n", formatValue(snap.View.Value))
	if snap.View.IsOn != nil {
		fmt.Fprintf(s.out, "On:       %t\n", *snap.View.IsOn)
	}
	if len(snap.View.Options) > 0 {
		fmt.Fprintf(s.out, "Options:  %s\n", strings.Join(snap.View.Options, ", "))
	}
	if !snap.View.Updated.IsZero() {
		fmt.Fprintf(s.out, "Updated:  %s\n", snap.View.Updated.Format("15:04:05.000"))
	}
	keys := make([]string, 0, len(snap.View.Attributes))
	for k := range snap.View.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "  %s: %v\n", k, snap.View.Attributes[k])
	}
}

func (s *Shell) cmdSet(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.out, "Usage: set <device> <entity> <value>")
		return
	}
	sess, ok := s.session(args[0])
	if !ok {
		return
	}
	s.report(sess.SetValue(args[1], parseInput(strings.Join(args[2:], " "))))
}

func (s *Shell) cmdPress(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: press <device> <entity>")
		return
	}
	sess, ok := s.session(args[0])
	if !ok {
		return
	}
	s.report(sess.SetValue(args[1], nil))
}

func (s *Shell) cmdRaw(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: raw <device> <key>=<value>...")
		return
	}
	sess, ok := s.session(args[0])
	if !ok {
		return
	}
	cmd, err := parseAssignments(args[1:])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.report(sess.SendSet(cmd))
}

func (s *Shell) report(res session.SendResult, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "%s: %v\n", res, err)
		return
	}
	fmt.Fprintln(s.out, res)
}

func (s *Shell) cmdStats(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: stats <device>")
		return
	}
	sess, ok := s.session(args[0])
	if !ok {
		return
	}
	st := sess.Stats()
	fmt.Fprintf(s.out, "State:         %s\n", st.State)
	if st.ConnectionID != "" {
		fmt.Fprintf(s.out, "Connection:    %s\n", st.ConnectionID)
	}
	fmt.Fprintf(s.out, "Connects:      %d (reconnects %d, backoff %s)\n", st.Connects, st.Reconnects, st.Backoff)
	fmt.Fprintf(s.out, "Frames:        %d in, %d out, %d overflows\n", st.FramesIn, st.FramesOut, st.Overflows)
	fmt.Fprintf(s.out, "Errors:        %d parse, %d config\n", st.ParseErrors, st.ConfigErrors)
	fmt.Fprintf(s.out, "Configs:       %d\n", st.Configs)
	fmt.Fprintf(s.out, "Events:        %d\n", st.Events)
	fmt.Fprintf(s.out, "Sets:          %d sent, %d queued, %d rejected, %d expired\n",
		st.SetsSent, st.SetsQueued, st.SetsRejected, st.SetsExpired)
	fmt.Fprintf(s.out, "Queue depth:   %d\n", st.QueueDepth)
	fmt.Fprintf(s.out, "Entities:      %d\n", st.Entities)
	if !st.LastConfig.IsZero() {
		fmt.Fprintf(s.out, "Last config:   %s\n", st.LastConfig.Format("15:04:05"))
	}
	if c := st.Connection; c != nil {
		fmt.Fprintf(s.out, "Socket:        %d frames in, %d out, %d pings\n", c.FramesIn, c.FramesOut, c.KeepAlive.PingsSent)
	}
}

// parseAssignments builds a SET command from key=value arguments.
func parseAssignments(args []string) (wire.SetCommand, error) {
	var cmd wire.SetCommand
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return wire.SetCommand{}, fmt.Errorf("expected key=value, got %q", arg)
		}
		cmd = cmd.With(key, parseInput(value))
	}
	return cmd, nil
}

func formatValue(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

// parseInput converts shell text to a typed value: booleans, numbers and
// otherwise the raw string.
func parseInput(text string) any {
	switch strings.ToLower(text) {
	case "on", "true":
		return true
	case "off", "false":
		return false
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}
