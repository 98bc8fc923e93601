// Package encodertest provides an in-memory encode service for tests.
package encodertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/1F47E/go-padreel/internal/encoder"
)

// Header is the first chunk of every recording.
var Header = []byte("FAKEHDR0")

// Trailer is the last chunk, emitted by Stop.
var Trailer = []byte("FAKEEND0")

// Service supports exactly the profiles it was created with.
type Service struct {
	mu        sync.Mutex
	supported map[string]bool

	// Unavailable makes Available fail.
	Unavailable error
	// OpenErr makes Open fail.
	OpenErr error
	// StopErr is returned from Stop.
	StopErr error
	// FrameBytes is the size of the chunk emitted per frame.
	FrameBytes int

	opened []*Recorder
}

func NewService(supported ...encoder.Profile) *Service {
	s := &Service{supported: make(map[string]bool), FrameBytes: 1024}
	for _, p := range supported {
		s.supported[p.Name] = true
	}
	return s
}

func (s *Service) Name() string { return "fake" }

func (s *Service) Available(context.Context) error { return s.Unavailable }

func (s *Service) Supports(_ context.Context, p encoder.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported[p.Name]
}

func (s *Service) Open(_ context.Context, opts encoder.Options) (encoder.Recorder, error) {
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	if !s.Supports(context.Background(), opts.Profile) {
		return nil, fmt.Errorf("fake: profile %s not supported", opts.Profile)
	}
	r := &Recorder{
		Opts:       opts,
		frameBytes: s.FrameBytes,
		stopErr:    s.StopErr,
		chunks:     make(chan []byte, 4096),
	}
	r.chunks <- bytes.Clone(Header)

	s.mu.Lock()
	s.opened = append(s.opened, r)
	s.mu.Unlock()
	return r, nil
}

// Recorders returns every recorder opened so far.
func (s *Service) Recorders() []*Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Recorder(nil), s.opened...)
}

// Recorder emits one chunk per frame filled with the frame index (mod 256).
type Recorder struct {
	Opts encoder.Options

	mu         sync.Mutex
	frameBytes int
	frames     int
	stopped    bool
	aborted    bool
	stopErr    error
	chunks     chan []byte
}

func (r *Recorder) WriteFrame(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.aborted {
		return errors.New("fake: recorder closed")
	}
	if img.Rect.Dx() != r.Opts.Width || img.Rect.Dy() != r.Opts.Height {
		return fmt.Errorf("fake: frame %dx%d, want %dx%d", img.Rect.Dx(), img.Rect.Dy(), r.Opts.Width, r.Opts.Height)
	}
	r.chunks <- bytes.Repeat([]byte{byte(r.frames)}, r.frameBytes)
	r.frames++
	return nil
}

func (r *Recorder) Chunks() <-chan []byte { return r.chunks }

func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.aborted {
		return nil
	}
	r.stopped = true
	r.chunks <- bytes.Clone(Trailer)
	close(r.chunks)
	return r.stopErr
}

func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.aborted {
		return
	}
	r.aborted = true
	close(r.chunks)
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func (r *Recorder) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
