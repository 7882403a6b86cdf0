package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/halink-protocol/halink-go/pkg/log"
)

// RunStats summarizes the log file.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := log.NewStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.Add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, s *log.Stats) {
	fmt.Fprintf(w, "Events:       %d\n", s.Events)
	if s.Events == 0 {
		return
	}
	fmt.Fprintf(w, "Time range:   %s - %s (%s)\n",
		s.First.UTC().Format(time.RFC3339), s.Last.UTC().Format(time.RFC3339), s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Connections:  %d\n", len(s.Connections))
	fmt.Fprintf(w, "Reconnects:   %d\n", s.Reconnects)
	fmt.Fprintf(w, "Configs:      %d accepted\n", s.ConfigsTaken)
	fmt.Fprintf(w, "Frames:       %d in (%d bytes), %d out (%d bytes)\n", s.FramesIn, s.BytesIn, s.FramesOut, s.BytesOut)
	fmt.Fprintf(w, "Pings:        %d\n", s.Pings)
	fmt.Fprintf(w, "Transitions:  %d\n", s.Transitions)

	if len(s.Devices) > 0 {
		fmt.Fprintln(w, "\nDevices:")
		ids := make([]string, 0, len(s.Devices))
		for id := range s.Devices {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %-24s %d events\n", id, s.Devices[id])
		}
	}

	if len(s.Messages) > 0 {
		fmt.Fprintln(w, "\nMessages:")
		for _, mt := range []log.MessageType{log.MessageTypeConfig, log.MessageTypeState, log.MessageTypeEvent, log.MessageTypeSet} {
			if n := s.Messages[mt]; n > 0 {
				fmt.Fprintf(w, "  %-8s %d\n", mt, n)
			}
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, reason := range s.ErrorReasons() {
			fmt.Fprintf(w, "  %-24s %d\n", reason, s.Errors[reason])
		}
	}
}
