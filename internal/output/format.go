// Package output renders decoded messages for the console.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

// Console output formats, as accepted by OUTPUT_FORMAT.
const (
	FormatText     = "text"
	FormatJSONLine = "json"
)

const broadcast = "!ffffffff"

const maxValueLen = 100

// FormatLine renders one message as a single line:
//
//	[2024-05-01 12:00:00] | [POSITION] | Channel: LongFast | From: !a1b2c3d4 | latitude: 37.774900
//
// The To part is left out for broadcasts.
func FormatLine(msg model.DecodedMessage) string {
	parts := []string{
		"[" + msg.Timestamp.Format("2006-01-02 15:04:05") + "]",
		"[" + msg.PacketType + "]",
		"Channel: " + msg.Channel,
		"From: " + msg.From,
	}
	if msg.To != broadcast {
		parts = append(parts, "To: "+msg.To)
	}
	for _, f := range msg.Fields {
		parts = append(parts, f.Key+": "+formatValue(f.Key, f.Value))
	}
	return strings.Join(parts, " | ")
}

// FormatJSON renders the message as one JSON object, fields in decode order.
func FormatJSON(msg model.DecodedMessage) (string, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal %s message: %w", msg.PacketType, err)
	}
	return string(b), nil
}

func formatValue(key string, v any) string {
	switch x := v.(type) {
	case float32:
		return formatFloat(key, float64(x))
	case float64:
		return formatFloat(key, x)
	case time.Time:
		return x.Format("15:04:05")
	case string:
		return `"` + truncate(x, maxValueLen) + `"`
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(key string, v float64) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "latitude"), strings.Contains(k, "longitude"):
		return fmt.Sprintf("%.6f", v)
	case strings.Contains(k, "voltage"):
		return fmt.Sprintf("%.2fV", v)
	case strings.Contains(k, "temperature"):
		return fmt.Sprintf("%.1f°C", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// truncate cuts s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
