package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

// Filter selects which messages reach the console. Type matches the packet
// type exactly; Text is a case-insensitive substring of the text rendering.
// Empty values match everything.
type Filter struct {
	Type string
	Text string
}

func (f Filter) Match(msg model.DecodedMessage, line string) bool {
	if f.Type != "" && msg.PacketType != f.Type {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

// Console writes one line per accepted message.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	filter Filter
}

func NewConsole(w io.Writer, format string, filter Filter) *Console {
	if format != FormatJSONLine {
		format = FormatText
	}
	return &Console{w: w, format: format, filter: filter}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Publish(_ context.Context, msg model.DecodedMessage) error {
	line := FormatLine(msg)
	if !c.filter.Match(msg, line) {
		return nil
	}
	if c.format == FormatJSONLine {
		var err error
		if line, err = FormatJSON(msg); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, line); err != nil {
		return fmt.Errorf("write console: %w", err)
	}
	return nil
}
