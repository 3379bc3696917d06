package log

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Format represents the output format for logs
type Format int

const (
	// FormatText outputs logs in human-readable key=value form
	FormatText Format = iota
	// FormatJSON outputs one JSON object per line
	FormatJSON
)

// String returns the string representation of the format
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q (want text or json)", s)
	}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level

	// Format is the output format (JSON or Text)
	Format Format

	// Output is where logs are written. Nil means stderr, which keeps stdout
	// free for command output such as `foundry order`.
	Output io.Writer

	// AddSource includes source file and line number in logs
	AddSource bool

	// ServiceVersion is attached to every record as "version"
	ServiceVersion string
}

// DefaultConfig logs at INFO in text format to stderr.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatText,
		Output:         os.Stderr,
		ServiceVersion: "dev",
	}
}

// DevelopmentConfig logs at DEBUG with source locations.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.AddSource = true
	return cfg
}

// FromStrings builds a Config from user-supplied level and format names.
func FromStrings(level, format string, w io.Writer) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if cfg.Level, err = ParseLevel(level); err != nil {
		return cfg, err
	}
	if cfg.Format, err = ParseFormat(format); err != nil {
		return cfg, err
	}
	if w != nil {
		cfg.Output = w
	}
	return cfg, nil
}
