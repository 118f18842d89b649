package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr with the key "error" and the error's message as the value.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// ByteString creates a slog.Attr with the given key and the byte slice rendered as a string.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer creates a slog.Attr with the provided key and the string representation
// of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

const (
	// KeyLoggerName is the key for the logger name.
	KeyLoggerName = "logger"
	// KeyProvider is the key for the model provider name.
	KeyProvider = "provider"
	// KeyRunID is the key for the id of a completion run.
	KeyRunID = "run_id"
	// KeyToolCallID is the key for a tool call id.
	KeyToolCallID = "tool_call_id"
)

// LoggerName creates a slog.Attr with the provided logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Provider creates a slog.Attr naming the model provider.
func Provider(name string) slog.Attr {
	return slog.String(KeyProvider, name)
}

// RunID creates a slog.Attr for the id of a completion run.
func RunID(id fmt.Stringer) slog.Attr {
	return Stringer(KeyRunID, id)
}

// ToolCallID creates a slog.Attr for a tool call id.
func ToolCallID(id string) slog.Attr {
	return slog.String(KeyToolCallID, id)
}
