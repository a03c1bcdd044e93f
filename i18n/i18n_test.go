package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"en", "zh-cn"}, c.Languages())

	for _, key := range []string{SymLoadFail, SymDownloadFail, NoTarget, ModuleActive} {
		assert.NotEqual(t, key, c.T("en", key), key)
		assert.NotEqual(t, c.T("en", key), c.T("zh-CN", key), key)
	}
}

func TestT_Fallbacks(t *testing.T) {
	c := Default()
	assert.Equal(t, c.T("en", SymLoadFail), c.T("fr", SymLoadFail))
	assert.Equal(t, "nosuchkey", c.T("en", "nosuchkey"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lang.yaml")
	require.NoError(t, os.WriteFile(path, []byte("de:\n  symloadfail: Symbole fehlen\nen:\n  notarget: no dwm\n"), 0o644))

	c := Default()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, "Symbole fehlen", c.T("DE", SymLoadFail))
	assert.Equal(t, "no dwm", c.T("en", NoTarget))
	assert.Equal(t, Default().T("en", ModuleActive), c.T("de", ModuleActive))
	assert.Equal(t, []string{"de", "en", "zh-cn"}, c.Languages())

	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
