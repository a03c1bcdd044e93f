// Package coloransi renders the colored component tags used by the host's
// loggers and the colored columns of the CLI output.
package coloransi

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// ColorCode is either a basic ANSI color (low byte) or a 24-bit RGB color
// packed into the upper three bytes.
type ColorCode uint32

const (
	Black   ColorCode = 30
	Red     ColorCode = 31
	Green   ColorCode = 32
	Yellow  ColorCode = 33
	Blue    ColorCode = 34
	Magenta ColorCode = 35
	Cyan    ColorCode = 36
	White   ColorCode = 37

	BrightBlack  ColorCode = Black + 60
	BrightRed    ColorCode = Red + 60
	BrightGreen  ColorCode = Green + 60
	BrightYellow ColorCode = Yellow + 60

	backgroundOffset ColorCode = 10
	rgbMask          ColorCode = 0xFFFFFF00
)

// RGB packs a 24-bit color.
func RGB(r, g, b uint8) ColorCode {
	return ColorCode(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8)
}

// Component palette. Each subsystem logger picks a foreground from here and
// uses ColorOrange as its tag background.
var (
	ColorOrange = RGB(255, 140, 0)
	ColorPurple = RGB(128, 0, 128)
	ColorCyan   = RGB(0, 170, 200)
	ColorGreen  = RGB(30, 150, 60)
	ColorYellow = RGB(200, 170, 0)
	ColorTeal   = RGB(0, 128, 128)
	ColorIndigo = RGB(75, 0, 130)
	ColorWhite  = RGB(255, 255, 255)
)

var enabled atomic.Bool

func init() {
	_, noColor := os.LookupEnv("NO_COLOR")
	enabled.Store(!noColor)
}

// SetEnabled turns escape sequences on or off for every helper in the package.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Enabled reports whether escape sequences are emitted.
func Enabled() bool {
	return enabled.Load()
}

// IsRGB reports whether c is a packed RGB color.
func (c ColorCode) IsRGB() bool {
	return c&rgbMask != 0
}

func (c ColorCode) rgb() (r, g, b uint32) {
	return uint32(c>>24) & 0xFF, uint32(c>>16) & 0xFF, uint32(c>>8) & 0xFF
}

func (c ColorCode) fgSeq() string {
	if c.IsRGB() {
		r, g, b := c.rgb()
		return fmt.Sprintf("\033[38;2;%d;%d;%dm", r, g, b)
	}
	return fmt.Sprintf("\033[%dm", c)
}

func (c ColorCode) bgSeq() string {
	if c.IsRGB() {
		r, g, b := c.rgb()
		return fmt.Sprintf("\033[48;2;%d;%d;%dm", r, g, b)
	}
	return fmt.Sprintf("\033[%dm", c+backgroundOffset)
}

func join(v []any) string {
	parts := make([]string, len(v))
	for i, a := range v {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

// Color formats v with a foreground and background color.
func Color(fg, bg ColorCode, v ...any) string {
	text := join(v)
	if !Enabled() {
		return text
	}
	return fg.fgSeq() + bg.bgSeq() + text + Reset()
}

// Foreground formats v with a foreground color only.
func Foreground(fg ColorCode, v ...any) string {
	text := join(v)
	if !Enabled() {
		return text
	}
	return fg.fgSeq() + text + Reset()
}

// Status colors a pass/fail marker for CLI tables.
func Status(ok bool, v ...any) string {
	if ok {
		return Foreground(BrightGreen, v...)
	}
	return Foreground(BrightRed, v...)
}

// Reset returns the escape sequence that clears all attributes.
func Reset() string {
	return "\033[0m"
}
