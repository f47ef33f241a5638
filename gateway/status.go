package gateway

import (
	"fmt"
	"strings"
	"time"
)

// StatusCommand is DLE EOT 1, real-time printer status
var StatusCommand = []byte{0x10, 0x04, 0x01}

// DefaultStatusTimeout bounds how long a status query waits for a reply
const DefaultStatusTimeout = time.Second

// Status bits of the first response byte. Mobile printers use them to
// report battery state.
const (
	statusBitCritical = 0x04
	statusBitLow      = 0x08
)

// Level is the decoded printer power state
type Level int

const (
	LevelUnsupported Level = iota
	LevelNormal
	LevelLow
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelLow:
		return "low"
	case LevelCritical:
		return "critical"
	default:
		return "unsupported"
	}
}

// BatteryPercent is a rough estimate derived from the level, or -1 when the
// printer did not answer
func (l Level) BatteryPercent() int {
	switch l {
	case LevelCritical:
		return 15
	case LevelLow:
		return 25
	case LevelNormal:
		return 85
	default:
		return -1
	}
}

// Status is the result of a status query
type Status struct {
	Level Level
	Raw   []byte
}

// DecodeStatus interprets a reply to StatusCommand
func DecodeStatus(response []byte) Status {
	if len(response) == 0 {
		return Status{Level: LevelUnsupported}
	}

	s := Status{Raw: response}
	switch b := response[0]; {
	case b&statusBitCritical != 0:
		s.Level = LevelCritical
	case b&statusBitLow != 0:
		s.Level = LevelLow
	default:
		s.Level = LevelNormal
	}
	return s
}

// Hex returns the raw reply as space separated hex, or "no response"
func (s Status) Hex() string {
	if len(s.Raw) == 0 {
		return "no response"
	}
	parts := make([]string, len(s.Raw))
	for i, b := range s.Raw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
