package plantuml

import (
	"fmt"
	"strings"
)

// Format selects the renderer's output form.
type Format string

// Supported output formats.
const (
	FormatASCII Format = "ascii"
	FormatPNG   Format = "png"
	FormatSVG   Format = "svg"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatASCII, FormatPNG, FormatSVG:
		return f, nil
	case "txt", "text":
		return FormatASCII, nil
	default:
		return "", fmt.Errorf("unknown format %q (supported: ascii, png, svg)", s)
	}
}

// Valid reports whether f is a supported output format.
func (f Format) Valid() bool {
	switch f {
	case FormatASCII, FormatPNG, FormatSVG:
		return true
	}
	return false
}

// Binary reports whether artifacts of this format are binary bytes rather
// than UTF-8 text.
func (f Format) Binary() bool {
	return f == FormatPNG
}

// Ext returns the file extension for artifacts of this format.
func (f Format) Ext() string {
	switch f {
	case FormatASCII:
		return ".txt"
	case FormatPNG:
		return ".png"
	case FormatSVG:
		return ".svg"
	}
	return ""
}

// flag returns the renderer's output selector argument.
func (f Format) flag() string {
	switch f {
	case FormatASCII:
		return "-ttxt"
	case FormatPNG:
		return "-tpng"
	case FormatSVG:
		return "-tsvg"
	}
	return ""
}
