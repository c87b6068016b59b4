// Package textcmd is a small text interface to an ST7789 frame: a client
// writes a color name and the whole panel is filled with it.
//
// A command is one ASCII token of at most MaxTokenLen bytes, ended by a
// newline, a NUL byte or the end of the write. Surrounding whitespace is
// ignored and matching is case-insensitive. Two palettes are recognized:
//
//	Names:   red green blue white black coral
//	Aliases: r   g     b    w     k     c
//
// Unlike a character device that truncates long input, an oversized token
// is rejected with ErrTooLong, and an unknown one with ErrUnknownCommand.
// Neither touches the frame.
package textcmd

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"periph.io/x/devices/v3/st7789/rgb565"
)

// MaxTokenLen is the longest accepted token, terminator excluded.
const MaxTokenLen = 31

var (
	// ErrTooLong is returned for a token longer than MaxTokenLen bytes.
	ErrTooLong = errors.New("textcmd: command too long")
	// ErrUnknownCommand is returned for a token found in neither palette.
	ErrUnknownCommand = errors.New("textcmd: unknown command")
)

// Names maps full color names to RGB565 values.
var Names = map[string]rgb565.RGB565{
	"red":   0xF800,
	"green": 0x07E0,
	"blue":  0x001F,
	"white": 0xFFFF,
	"black": 0x0000,
	"coral": 0xFA8D,
}

// Aliases maps one letter shortcuts to RGB565 values.
var Aliases = map[string]rgb565.RGB565{
	"r": 0xF800,
	"g": 0x07E0,
	"b": 0x001F,
	"w": 0xFFFF,
	"k": 0x0000,
	"c": 0xFA8D,
}

// Token returns the command carried by p: the bytes before the first
// newline or NUL, trimmed and lower-cased.
func Token(p []byte) (string, error) {
	if i := bytes.IndexAny(p, "\n\x00"); i >= 0 {
		p = p[:i]
	}
	if len(p) > MaxTokenLen {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrTooLong, len(p), MaxTokenLen)
	}
	return strings.ToLower(strings.TrimSpace(string(p))), nil
}

// Lookup resolves a token against Names, then Aliases.
func Lookup(tok string) (rgb565.RGB565, error) {
	if c, ok := Names[tok]; ok {
		return c, nil
	}
	if c, ok := Aliases[tok]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, tok)
}

// Parse combines Token and Lookup.
func Parse(p []byte) (rgb565.RGB565, error) {
	tok, err := Token(p)
	if err != nil {
		return 0, err
	}
	return Lookup(tok)
}

// Filler fills the whole frame with one color and pushes it to the panel.
// *st7789.Dev implements it.
type Filler interface {
	Fill(c rgb565.RGB565) error
}

// Handler applies text commands to a Filler.
type Handler struct {
	f   Filler
	log *slog.Logger
}

// NewHandler returns a Handler filling f. log may be nil.
func NewHandler(f Filler, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{f: f, log: log}
}

// Exec runs a single command.
func (h *Handler) Exec(cmd string) error {
	_, err := h.Write([]byte(cmd))
	return err
}

// Write implements io.Writer. Each call carries one command; bytes after
// its terminator are ignored. On success the whole of p is reported as
// written.
func (h *Handler) Write(p []byte) (int, error) {
	c, err := Parse(p)
	if err != nil {
		h.log.Warn("textcmd: rejected", "err", err)
		return 0, err
	}
	if err := h.f.Fill(c); err != nil {
		return 0, fmt.Errorf("textcmd: fill %#04x: %w", uint16(c), err)
	}
	h.log.Debug("textcmd: filled", "color", fmt.Sprintf("%#04x", uint16(c)))
	return len(p), nil
}
