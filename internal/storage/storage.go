// Package storage writes results and preview frames to disk and inspects written files.
package storage

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	cfg "github.com/1F47E/go-padreel/pkg/config"
	"github.com/1F47E/go-padreel/pkg/logger"
)

// SaveObject streams src into dir/name. The file appears atomically or not at all.
func SaveObject(dir, name string, src io.WriterTo) (string, error) {
	log := logger.Log.WithField("scope", "storage save")
	if dir == "" {
		dir = cfg.PathOutDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}
	path := filepath.Join(dir, name)

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			log.Debugf("cleanup pending file: %v", err)
		}
	}()

	n, err := src.WriteTo(pendingFile)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replace %s: %w", path, err)
	}
	log.Debugf("saved %s (%d bytes)", path, n)
	return path, nil
}

// SaveFrame writes img as PNG.
func SaveFrame(path string, img image.Image) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pendingFile.Cleanup() //nolint:errcheck

	if err := png.Encode(pendingFile, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return pendingFile.CloseAtomicallyReplace()
}

// Report describes a file on disk.
type Report struct {
	Path string
	Size int64
	// TrailingZeros counts zero bytes at the end of the file (padding candidates).
	TrailingZeros int64
	FirstByte     byte
}

// Payload is the size without the zero tail.
func (r Report) Payload() int64 {
	return r.Size - r.TrailingZeros
}

func Inspect(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Report{}, err
	}
	r := Report{Path: path, Size: st.Size()}
	if r.Size == 0 {
		return r, nil
	}

	first := make([]byte, 1)
	if _, err := f.ReadAt(first, 0); err != nil {
		return Report{}, fmt.Errorf("read %s: %w", path, err)
	}
	r.FirstByte = first[0]

	r.TrailingZeros, err = trailingZeros(f, r.Size)
	if err != nil {
		return Report{}, fmt.Errorf("read %s: %w", path, err)
	}
	return r, nil
}

// trailingZeros scans backwards in ChunkSize blocks.
func trailingZeros(f io.ReaderAt, size int64) (int64, error) {
	buf := make([]byte, cfg.ChunkSize)
	var zeros int64
	for end := size; end > 0; {
		start := max(end-int64(len(buf)), 0)
		block := buf[:end-start]
		if _, err := f.ReadAt(block, start); err != nil && err != io.EOF {
			return 0, err
		}
		for i := len(block) - 1; i >= 0; i-- {
			if block[i] != 0 {
				return zeros, nil
			}
			zeros++
		}
		end = start
	}
	return zeros, nil
}
