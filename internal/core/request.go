package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/1F47E/go-padreel/internal/synth"
	cfg "github.com/1F47E/go-padreel/pkg/config"
)

var ErrInvalidRequest = errors.New("invalid request")

type Mode int

const (
	// ModeReal renders and encodes actual video.
	ModeReal Mode = iota
	// ModeFake allocates a zero-filled buffer labelled as video.
	ModeFake
)

func (m Mode) String() string {
	if m == ModeFake {
		return "fake"
	}
	return "real"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "real":
		return ModeReal, nil
	case "fake", "mock":
		return ModeFake, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s)
}

// Request is immutable once handed to Generate.
type Request struct {
	TargetSizeBytes int64
	Duration        time.Duration
	Width           int
	Height          int
	FrameRate       float64
	Mode            Mode
	Theme           synth.Theme
	// ConfirmLarge pre-approves the large file gate.
	ConfirmLarge bool
	// TargetSizeMB is the size as the user typed it; file names use it when set.
	TargetSizeMB float64
}

// DefaultRequest mirrors the defaults of the generator form: 1280x720, 10 MB, 5 s, 30 fps.
func DefaultRequest() Request {
	return Request{
		TargetSizeBytes: cfg.DefaultSizeMB * cfg.MB,
		TargetSizeMB:    cfg.DefaultSizeMB,
		Duration:        cfg.DefaultDuration,
		Width:           cfg.DefaultWidth,
		Height:          cfg.DefaultHeight,
		FrameRate:       cfg.DefaultFrameRate,
	}
}

// SizeFromMB converts a user-facing MB value to bytes.
func SizeFromMB(mb float64) int64 {
	return int64(mb * cfg.MB)
}

// WithSizeMB sets both the byte target and the MB value shown in file names.
func (r Request) WithSizeMB(mb float64) Request {
	r.TargetSizeBytes = SizeFromMB(mb)
	r.TargetSizeMB = mb
	return r
}

func (r Request) Validate() error {
	if r.TargetSizeBytes <= 0 {
		return fmt.Errorf("%w: target size must be positive", ErrInvalidRequest)
	}
	if r.Mode == ModeFake {
		return nil
	}
	switch {
	case r.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	case r.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate must be positive", ErrInvalidRequest)
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidRequest, r.Width, r.Height)
	}
	return nil
}

// SizeMB is the target in MB as written in file names: 10, 1.5, 0.25.
func (r Request) SizeMB() string {
	if r.TargetSizeMB > 0 {
		return strconv.FormatFloat(r.TargetSizeMB, 'f', -1, 64)
	}
	return strconv.FormatFloat(float64(r.TargetSizeBytes)/cfg.MB, 'f', -1, 64)
}

// FileName is the download name for a result of this request.
func (r Request) FileName(ext string) string {
	if r.Mode == ModeFake {
		return fmt.Sprintf("mock_video_%sMB.mp4", r.SizeMB())
	}
	return fmt.Sprintf("gen_%dx%d_%sMB.%s", r.Width, r.Height, r.SizeMB(), ext)
}
