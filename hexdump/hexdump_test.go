package hexdump

import (
	"strings"
	"testing"

	"dwmhost/coloransi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	coloransi.SetEnabled(false)
	t.Cleanup(func() { coloransi.SetEnabled(true) })

	data := []byte("TSFO\x01\x00\x00\x00generation..!!!!extra")
	opts := DefaultOptions()
	opts.Label = func(off int) string {
		if off == 0 {
			return "header"
		}
		return ""
	}

	lines := strings.Split(strings.TrimSuffix(Dump(data, opts), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "00000000  54 53 46 4f 01 00 00 00  67 65 6e 65 72 61 74 69  |TSFO....generati|  header", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00000010  6f 6e 2e 2e 21 21 21 21  65 78 74 72 61"))
	assert.True(t, strings.HasSuffix(lines[1], "|on..!!!!extra   |"))
}

func TestDump_StartOffset(t *testing.T) {
	coloransi.SetEnabled(false)
	t.Cleanup(func() { coloransi.SetEnabled(true) })

	opts := DefaultOptions()
	opts.StartOffset = 0x7FF700012340
	opts.OffsetWidth = 12
	opts.ShowASCII = false

	out := Dump([]byte{0x48, 0x89, 0x5c, 0x24}, opts)
	assert.True(t, strings.HasPrefix(out, "7ff700012340  48 89 5c 24"))
}
