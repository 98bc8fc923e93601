package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "padreel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", cfg.Encoder.Backend)
	assert.Equal(t, "mp4-h264", cfg.Encoder.Profile)
	assert.Equal(t, int64(LargeFileThreshold), cfg.Fake.LargeFileThreshold)
	assert.Equal(t, ":8088", cfg.Server.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, `
encoder:
  backend: gst
  profile: webm-vp9
fake:
  large_file_threshold: 1048576
server:
  addr: "127.0.0.1:9000"
`)
	t.Setenv("PADREEL_ADDR", ":7000")
	t.Setenv("PADREEL_MAX_ALLOC_BYTES", "2097152")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gst", cfg.Encoder.Backend)
	assert.Equal(t, "webm-vp9", cfg.Encoder.Profile)
	assert.Equal(t, "ffmpeg", cfg.Encoder.FFmpegPath, "unset fields fall back to defaults")
	assert.Equal(t, int64(1048576), cfg.Fake.LargeFileThreshold)
	assert.Equal(t, int64(2097152), cfg.Fake.MaxAllocBytes)
	assert.Equal(t, ":7000", cfg.Server.Addr, "env wins over file")
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown backend", body: "encoder:\n  backend: vlc\n"},
		{name: "bad yaml", body: "encoder: [\n"},
		{name: "ceiling below threshold", body: "fake:\n  large_file_threshold: 100\n  max_alloc_bytes: 10\n"},
		{name: "bad env int", body: "", env: map[string]string{"PADREEL_RATE_LIMIT": "lots"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
