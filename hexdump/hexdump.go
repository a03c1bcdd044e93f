// Package hexdump renders raw bytes of the offset region and of probed
// target memory.
package hexdump

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"dwmhost/coloransi"
)

// Options defines options for customizing the hexdump output
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartOffset is added to the offset column, e.g. a module base
	StartOffset uint64

	// OffsetWidth is the width of the offset column in hex digits
	OffsetWidth int

	// ShowASCII determines whether to show the ASCII representation
	ShowASCII bool

	// Label names the line starting at a given offset into data, "" for none
	Label func(offset int) string

	OffsetColor coloransi.ColorCode
	HexColor    coloransi.ColorCode
	ZeroColor   coloransi.ColorCode
	LabelColor  coloransi.ColorCode
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		OffsetWidth:  8,
		ShowASCII:    true,
		OffsetColor:  coloransi.Cyan,
		HexColor:     coloransi.Green,
		ZeroColor:    coloransi.BrightBlack,
		LabelColor:   coloransi.Yellow,
	}
}

// Dump creates a hex dump of data
func Dump(data []byte, opts Options) string {
	var buf bytes.Buffer
	DumpToWriter(&buf, data, opts)
	return buf.String()
}

// DumpToWriter writes a hex dump of data to w
func DumpToWriter(w io.Writer, data []byte, opts Options) {
	if opts.BytesPerLine <= 0 {
		opts.BytesPerLine = 16
	}
	if opts.OffsetWidth <= 0 {
		opts.OffsetWidth = 8
	}

	for off := 0; off < len(data); off += opts.BytesPerLine {
		end := min(off+opts.BytesPerLine, len(data))
		writeLine(w, data[off:end], off, opts)
	}
}

func writeLine(w io.Writer, line []byte, off int, opts Options) {
	fmt.Fprint(w, coloransi.Foreground(opts.OffsetColor, fmt.Sprintf("%0*x", opts.OffsetWidth, opts.StartOffset+uint64(off))), "  ")

	half := opts.BytesPerLine / 2
	for i := 0; i < opts.BytesPerLine; i++ {
		if i > 0 {
			if i == half && opts.BytesPerLine >= 8 {
				fmt.Fprint(w, "  ")
			} else {
				fmt.Fprint(w, " ")
			}
		}
		if i >= len(line) {
			fmt.Fprint(w, "  ")
			continue
		}
		hex := fmt.Sprintf("%02x", line[i])
		if line[i] == 0 {
			fmt.Fprint(w, coloransi.Foreground(opts.ZeroColor, hex))
		} else {
			fmt.Fprint(w, coloransi.Foreground(opts.HexColor, hex))
		}
	}

	if opts.ShowASCII {
		fmt.Fprint(w, "  |", printable(line), strings.Repeat(" ", opts.BytesPerLine-len(line)), "|")
	}
	if opts.Label != nil {
		if label := opts.Label(off); label != "" {
			fmt.Fprint(w, "  ", coloransi.Foreground(opts.LabelColor, label))
		}
	}
	fmt.Fprintln(w)
}

func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 0x20 && c < 0x7F {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
