package coloransi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColor(t *testing.T) {
	SetEnabled(true)
	t.Cleanup(func() { SetEnabled(true) })

	assert.Equal(t, "\033[31m\033[42mfail 1\033[0m", Color(Red, Green, "fail", 1))
	assert.Equal(t, "\033[38;2;255;140;0mx\033[0m", Foreground(ColorOrange, "x"))
	assert.Equal(t, "\033[38;2;255;255;255m\033[48;2;255;140;0mtag\033[0m", Color(ColorWhite, ColorOrange, "tag"))
}

func TestSetEnabled(t *testing.T) {
	SetEnabled(false)
	t.Cleanup(func() { SetEnabled(true) })

	assert.Equal(t, "plain text", Color(Red, Green, "plain", "text"))
	assert.Equal(t, "ok", Status(true, "ok"))
}

func TestIsRGB(t *testing.T) {
	assert.False(t, Cyan.IsRGB())
	assert.True(t, ColorCyan.IsRGB())
	assert.True(t, RGB(0, 0, 1).IsRGB())
}
