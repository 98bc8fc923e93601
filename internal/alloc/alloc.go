// Package alloc materializes fake media files: exact size, no media structure.
package alloc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	cfg "github.com/1F47E/go-padreel/pkg/config"
	"github.com/1F47E/go-padreel/pkg/logger"
)

var (
	ErrAllocationFailure = errors.New("allocation failed")
	// ErrUserAborted means the large-file confirmation was declined. Not a failure.
	ErrUserAborted = errors.New("aborted by user")
)

// Marker is written at offset 0 so the output is never all zeroes.
const Marker byte = cfg.FakeMarkerByte

// Confirmer decides whether a large allocation may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, sizeBytes int64) (bool, error)
}

type ConfirmFunc func(ctx context.Context, sizeBytes int64) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, sizeBytes int64) (bool, error) {
	return f(ctx, sizeBytes)
}

// Always answers every confirmation with ok.
func Always(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, int64) (bool, error) { return ok, nil })
}

type options struct {
	threshold int64
	ceiling   int64
}

type Option func(*options)

// WithThreshold sets the size above which confirmation is required.
func WithThreshold(n int64) Option {
	return func(o *options) { o.threshold = n }
}

// WithCeiling sets the largest allocation attempted at all.
func WithCeiling(n int64) Option {
	return func(o *options) { o.ceiling = n }
}

// NeedsConfirmation reports whether Allocate would ask before allocating size bytes.
func NeedsConfirmation(size, threshold int64) bool {
	return size > threshold
}

// Allocate returns a zero-filled slice of exactly size bytes with Marker at offset 0.
// A nil confirm counts as a refusal for sizes above the threshold.
func Allocate(ctx context.Context, size int64, confirm Confirmer, opts ...Option) ([]byte, error) {
	log := logger.Log.WithField("scope", "alloc")
	o := options{threshold: cfg.LargeFileThreshold, ceiling: cfg.MaxAllocBytes}
	for _, opt := range opts {
		opt(&o)
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrAllocationFailure, size)
	}

	if NeedsConfirmation(size, o.threshold) {
		ok := false
		if confirm != nil {
			var err error
			ok, err = confirm.Confirm(ctx, size)
			if err != nil {
				return nil, fmt.Errorf("confirm large allocation: %w", err)
			}
		}
		if !ok {
			log.Infof("allocation of %d bytes declined", size)
			return nil, ErrUserAborted
		}
	}

	ceiling := effectiveCeiling(o.ceiling)
	if size > ceiling || int64(int(size)) != size {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocationFailure, size, ceiling)
	}

	// let the caller's goroutines (progress, signals) run before the big allocation
	runtime.Gosched()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := allocate(int(size))
	if err != nil {
		return nil, err
	}
	buf[0] = Marker
	log.Debugf("allocated %d bytes", size)
	return buf, nil
}

// effectiveCeiling lowers the ceiling to the runtime soft memory limit (GOMEMLIMIT) when one is set.
func effectiveCeiling(ceiling int64) int64 {
	if limit := debug.SetMemoryLimit(-1); limit < ceiling {
		return limit
	}
	return ceiling
}

// allocate turns a runtime allocation panic (len out of range) into ErrAllocationFailure.
// Running out of memory is fatal in Go and cannot be recovered; the ceiling is the guard for that.
func allocate(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %v", ErrAllocationFailure, r)
		}
	}()
	return make([]byte, n), nil
}
