// Package logging configures the process logger: structured slog records
// written to a size-rotated file, plus attribute helpers shared by every
// component. User-controlled values are sanitized before they reach a record
// to prevent log injection.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy for server.log.
const (
	maxSizeMB  = 10
	maxBackups = 5
)

// Config controls logger construction.
type Config struct {
	// File is the log file path. Empty disables file output.
	File string
	// Console mirrors records to stderr, for interactive runs.
	Console bool
	// Level defaults to Info.
	Level slog.Level
}

// New builds the process logger. File output rotates at 10 MiB keeping five
// backups.
func New(cfg Config) *slog.Logger {
	var out io.Writer
	switch {
	case cfg.File != "" && cfg.Console:
		out = io.MultiWriter(rotatingWriter(cfg.File), os.Stderr)
	case cfg.File != "":
		out = rotatingWriter(cfg.File)
	case cfg.Console:
		out = os.Stderr
	default:
		out = io.Discard
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level}))
}

func rotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}

// Sanitize strips ANSI escapes and control characters from user-supplied
// text and escapes newlines so one request cannot forge extra log records.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]
		if c == 0x1b { // ANSI escape sequence: skip until final byte
			i++
			if i < len(s) && s[i] == '[' {
				i++
				for i < len(s) && (s[i] < 0x40 || s[i] > 0x7e) {
					i++
				}
				if i < len(s) {
					i++
				}
			}
			continue
		}
		switch c {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteByte('\t')
		default:
			if c >= 0x20 {
				b.WriteByte(c)
			}
		}
		i++
	}
	return b.String()
}
