package config

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
logLevel = "DEBUG"

[fetcher]
timeout = 3000
proxy = ["http://127.0.0.1:8888"]

[engine]
workCount = 8
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, 3*time.Second, c.Fetcher.TimeoutDuration())
	assert.Equal(t, []string{"http://127.0.0.1:8888"}, c.Fetcher.Proxy)
	assert.Equal(t, 8, c.Engine.WorkCount)
	assert.Equal(t, 50, c.Engine.MaxPages)
	assert.Equal(t, 30*time.Minute, c.Script.TTL())
	assert.Equal(t, "bookrule.db", c.Storage.Path)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := Default()
	want.Storage.Path = "/var/lib/bookrule.db"
	require.NoError(t, WriteFile(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.ErrorIs(t, WriteFile(path, want), fs.ErrExist)
}

func TestWriteUsesFileKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Default()))
	assert.Contains(t, buf.String(), `logLevel = "INFO"`)
	assert.Contains(t, buf.String(), "[fetcher]")
	assert.Contains(t, buf.String(), "workCount = 5")
}
