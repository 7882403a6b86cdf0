package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/halink-protocol/halink-go/internal/devicesim"
)

// shell handles interactive mode for halink-sim.
type shell struct {
	dev *devicesim.Device
	cfg devicesim.Config
	rl  *readline.Instance
	out io.Writer
}

func newShell(dev *devicesim.Device, cfg devicesim.Config) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{dev: dev, cfg: cfg, rl: rl, out: rl.Stdout()}, nil
}

func (s *shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

func (s *shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

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
			cancel()
			return
		}
		if !s.exec(strings.Fields(line)) {
			cancel()
			return
		}
	}
}

func (s *shell) exec(args []string) bool {
	if len(args) == 0 {
		return true
	}

	var err error
	switch args[0] {
	case "state":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "Usage: state <key> <value>")
			return true
		}
		err = s.dev.SendState(args[1], stateValue(strings.Join(args[2:], " ")))
	case "event":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: event <key>")
			return true
		}
		err = s.dev.SendEvent(args[1], nil)
	case "config":
		err = s.dev.SendConfig()
	case "drop":
		s.dev.DropConnections()
	case "status":
		fmt.Fprintf(s.out, "Device:    %s\n", s.cfg.Name)
		fmt.Fprintf(s.out, "Address:   %s\n", s.dev.Addr())
		fmt.Fprintf(s.out, "Clients:   %d connected, %d accepted\n", s.dev.Connected(), s.dev.Accepted())
		for _, e := range s.cfg.Entities {
			v, _ := s.dev.Value(e.Key())
			fmt.Fprintf(s.out, "  %-14s %-24s %v\n", e.Platform, e.Key(), v)
		}
	case "help", "?":
		fmt.Fprintln(s.out, "Commands: state <key> <value>, event <key>, config, drop, status, quit")
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", args[0])
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return true
}

// stateValue parses shell text into a JSON-friendly value.
func stateValue(text string) any {
	switch text {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}
