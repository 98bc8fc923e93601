package core

import (
	"fmt"

	"github.com/1F47E/go-padreel/internal/storage"
	cfg "github.com/1F47E/go-padreel/pkg/config"
)

// Verdict is the outcome of checking a generated file against its target size.
type Verdict struct {
	storage.Report
	Target int64
	// Mock is true for a zero buffer carrying only the marker byte.
	Mock bool
}

func (v Verdict) Exact() bool { return v.Size == v.Target }

// Delta is Size - Target: positive on overshoot.
func (v Verdict) Delta() int64 { return v.Size - v.Target }

// Verify inspects a file on disk and compares its size with target.
func Verify(path string, target int64) (Verdict, error) {
	r, err := storage.Inspect(path)
	if err != nil {
		return Verdict{}, err
	}
	v := Verdict{
		Report: r,
		Target: target,
		Mock:   r.Size > 0 && r.FirstByte == cfg.FakeMarkerByte && r.Payload() == 1,
	}
	if target > 0 && !v.Exact() {
		return v, fmt.Errorf("%s is %d bytes, want %d (%+d)", path, v.Size, target, v.Delta())
	}
	return v, nil
}
