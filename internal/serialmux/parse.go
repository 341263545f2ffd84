package serialmux

import "strings"

const (
	EventTypeFrame   = "frame"
	EventTypeAck     = "ack"
	EventTypeUnknown = "unknown"
)

// ClassifyLine inspects a line read from the IMU and returns a coarse event
// type. Frames are JSON objects carrying a "sensor" key; acknowledgements are
// the OK/ERR replies the firmware sends to commands.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "{") && strings.Contains(line, `"sensor"`):
		return EventTypeFrame
	case line == "OK" || strings.HasPrefix(line, "OK ") || strings.HasPrefix(line, "ERR"):
		return EventTypeAck
	default:
		return EventTypeUnknown
	}
}
