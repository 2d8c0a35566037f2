package model

import (
	"fmt"
	"strings"
)

// Level classifies a notice attached to a result.
type Level int

const (
	// LevelInfo is a neutral status line, e.g. "No objects were detected in the image."
	LevelInfo Level = iota

	// LevelWarning is a soft failure that left the result usable, e.g. an
	// image entry with an unexpected format.
	LevelWarning

	// LevelError is a failure that produced no usable output.
	LevelError
)

// String returns the label used by the text and Markdown renderers.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the level as its lower-case name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	switch l {
	case LevelInfo:
		return []byte("info"), nil
	case LevelWarning:
		return []byte("warning"), nil
	case LevelError:
		return []byte("error"), nil
	default:
		return []byte("unknown"), nil
	}
}

// UnmarshalText decodes a level name written by MarshalText. Matching is
// case-insensitive so the upper-case String form is accepted too.
func (l *Level) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "info":
		*l = LevelInfo
	case "warning":
		*l = LevelWarning
	case "error":
		*l = LevelError
	default:
		return fmt.Errorf("unknown notice level %q", b)
	}
	return nil
}

// Notice is a status message attached to a result.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}
