package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/1F47E/go-padreel/pkg/config"
)

func TestSaveObject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	data := append([]byte("payload"), make([]byte, 100)...)

	path, err := SaveObject(dir, "gen_640x360_1MB.mp4", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gen_640x360_1MB.mp4"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveObjectReplaces(t *testing.T) {
	dir := t.TempDir()
	_, err := SaveObject(dir, "a.bin", bytes.NewReader([]byte("first version")))
	require.NoError(t, err)
	path, err := SaveObject(dir, "a.bin", bytes.NewReader([]byte("v2")))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestSaveFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, SaveFrame(path, img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	r, _, _, a := decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(200*0x101), r)
	assert.Equal(t, uint32(0xffff), a)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name      string
		data      []byte
		wantZeros int64
		wantFirst byte
	}{
		{"empty", nil, 0, 0},
		{"no padding", []byte{1, 2, 3}, 0, 1},
		{"padded", append([]byte{9, 0, 7}, make([]byte, 10)...), 10, 9},
		{"mock", append([]byte{cfg.FakeMarkerByte}, make([]byte, 3*cfg.ChunkSize+17)...), 3*cfg.ChunkSize + 17, cfg.FakeMarkerByte},
		{"all zero", make([]byte, cfg.ChunkSize+1), cfg.ChunkSize + 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			r, err := Inspect(path)
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.data), r.Size)
			assert.Equal(t, tt.wantZeros, r.TrailingZeros)
			assert.Equal(t, tt.wantFirst, r.FirstByte)
			assert.Equal(t, r.Size-tt.wantZeros, r.Payload())
		})
	}
}

func TestInspectMissing(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
