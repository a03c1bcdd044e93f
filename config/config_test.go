package config

import (
	"os"
	"path/filepath"
	"testing"

	"dwmhost/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv(EnvInstallDir, "")
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Symbols.Strict)
	assert.Equal(t, "dwm.exe", cfg.Target.Process)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv(EnvInstallDir, "")
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
install_dir: `+dir+`
symbols:
  strict: false
  auto_download: true
target:
  extension: ext/Custom.dll
language: zh-cn
language_file: lang/messages.yaml
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Symbols.Strict)
	assert.True(t, cfg.Symbols.AutoDownload)
	assert.Equal(t, symbols.DefaultServer, cfg.Symbols.Server, "unset keys keep defaults")
	assert.Equal(t, "zh-cn", cfg.Language)

	assert.Equal(t, filepath.Join(dir, "ext", "Custom.dll"), cfg.ExtensionPath())
	assert.Equal(t, filepath.Join(dir, "data", "offsets.bin"), cfg.RegionPath())
	assert.Equal(t, filepath.Join(dir, "data", "symbols"), cfg.SymbolCacheDir())
	assert.Empty(t, cfg.DescriptorPath())
	assert.Equal(t, filepath.Join(dir, "lang", "messages.yaml"), cfg.LanguageFilePath())
	assert.Empty(t, Default().LanguageFilePath())

	sp := cfg.SearchPath()
	assert.Equal(t, "SRV*"+cfg.SymbolCacheDir(), sp.Local())
	assert.Equal(t, "SRV*"+cfg.SymbolCacheDir()+"*"+symbols.DefaultServer, sp.Remote())
}

func TestLoad_EnvInstallDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvInstallDir, dir)

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.InstallDir)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(EnvInstallDir, "")
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("symbols: [unclosed"), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("symbols:\n  server: ftp://example\ntarget:\n  process: \"\"\n"), 0o644))
	_, err = Load(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbols.server")
	assert.Contains(t, err.Error(), "target.process")
}

func TestDbgHelpPath(t *testing.T) {
	cfg := Default()
	cfg.InstallDir = t.TempDir()
	assert.Equal(t, "dbghelp.dll", cfg.DbgHelpPath(), "falls back to the system copy")

	local := filepath.Join(cfg.InstallDir, "dbghelp.dll")
	require.NoError(t, os.WriteFile(local, nil, 0o644))
	assert.Equal(t, local, cfg.DbgHelpPath())
}

func TestMarshal_RoundTrip(t *testing.T) {
	t.Setenv(EnvInstallDir, "")
	cfg := Default()
	cfg.Symbols.Descriptors = "hooks.yaml"

	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
