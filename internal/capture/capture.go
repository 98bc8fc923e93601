// Package capture runs one generation: it ticks frames through the synthesizer into an
// encoder recorder and collects the chunks the recorder emits.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/metrics"
	"github.com/1F47E/go-padreel/internal/synth"
	"github.com/1F47E/go-padreel/pkg/logger"
)

var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrSessionUsed        = errors.New("capture session already ran")
)

type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinalizing
	StatusDone
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusFinalizing:
		return "finalizing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Request is what one session renders.
type Request struct {
	Width     int
	Height    int
	FrameRate float64
	Duration  time.Duration
	Theme     synth.Theme
}

// Artifact is the concatenated encoder output.
type Artifact struct {
	Bytes    []byte
	MimeType string
	Profile  encoder.Profile
}

func (a *Artifact) Len() int { return len(a.Bytes) }

type Option func(*Session)

// WithProgress is called on every tick with min(elapsed/duration, 1).
func WithProgress(fn func(float64)) Option {
	return func(s *Session) { s.onProgress = fn }
}

// WithProfile sets the profile tried before the fallback order.
func WithProfile(p encoder.Profile) Option {
	return func(s *Session) { s.preferred = p }
}

// Session is single use. Status, Progress, Chunks and Frames are safe to read from
// other goroutines while Run is in flight.
type Session struct {
	id         uuid.UUID
	log        *logrus.Entry
	req        Request
	synth      *synth.Synthesizer
	svc        encoder.Service
	ticks      TickSource
	preferred  encoder.Profile
	onProgress func(float64)

	started  atomic.Bool
	status   atomic.Int32
	progress atomic.Uint64
	frames   atomic.Int64

	mu       sync.Mutex
	chunks   [][]byte
	size     int
	received int
}

func NewSession(req Request, s *synth.Synthesizer, svc encoder.Service, ticks TickSource, opts ...Option) *Session {
	if ticks == nil {
		ticks = Realtime{}
	}
	if s == nil {
		s = synth.NewRandom()
	}
	id := uuid.New()
	sess := &Session{
		id:        id,
		log:       logger.Log.WithFields(logrus.Fields{"scope": "capture", "session": id.String()}),
		req:       req,
		synth:     s,
		svc:       svc,
		ticks:     ticks,
		preferred: encoder.ProfileMP4H264,
	}
	for _, opt := range opts {
		opt(sess)
	}
	return sess
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Status() Status { return Status(s.status.Load()) }

func (s *Session) Progress() float64 { return math.Float64frombits(s.progress.Load()) }

func (s *Session) Frames() int64 { return s.frames.Load() }

// Chunks is the number of encoded chunks received so far.
func (s *Session) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Run blocks until the requested duration has been captured and the recorder has
// finalized. On cancellation or failure the collected chunks are discarded.
func (s *Session) Run(ctx context.Context, bitsPerSecond int64) (*Artifact, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrSessionUsed
	}

	rec, profile, surface, err := s.open(ctx, bitsPerSecond)
	if err != nil {
		s.setStatus(StatusFailed)
		return nil, err
	}
	s.setStatus(StatusRunning)
	s.log.Debugf("recording %dx%d@%g for %s as %s at %d bps",
		s.req.Width, s.req.Height, s.req.FrameRate, s.req.Duration, profile, bitsPerSecond)

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for chunk := range rec.Chunks() {
			s.appendChunk(chunk)
		}
	}()

	if err := s.loop(ctx, rec, surface); err != nil {
		rec.Abort()
		<-consumed
		s.discard()
		if ctx.Err() != nil {
			s.setStatus(StatusCancelled)
			s.log.Debug("cancelled")
			return nil, ctx.Err()
		}
		s.setStatus(StatusFailed)
		return nil, err
	}

	s.setStatus(StatusFinalizing)
	stopErr := rec.Stop()
	<-consumed
	if stopErr != nil {
		s.discard()
		s.setStatus(StatusFailed)
		return nil, fmt.Errorf("capture: finalize: %w", stopErr)
	}

	art := &Artifact{Bytes: s.concat(), MimeType: profile.MimeType, Profile: profile}
	s.setStatus(StatusDone)
	s.log.Debugf("captured %d frames, %d chunks, %d bytes", s.Frames(), s.Chunks(), art.Len())
	return art, nil
}

// open does every fallible setup step before the first tick.
func (s *Session) open(ctx context.Context, bitsPerSecond int64) (encoder.Recorder, encoder.Profile, *image.RGBA, error) {
	fail := func(format string, args ...any) (encoder.Recorder, encoder.Profile, *image.RGBA, error) {
		return nil, encoder.Profile{}, nil, fmt.Errorf("%w: "+format, append([]any{ErrCaptureUnavailable}, args...)...)
	}
	if s.svc == nil {
		return fail("no encode service")
	}
	if err := s.svc.Available(ctx); err != nil {
		return fail("%s: %v", s.svc.Name(), err)
	}
	profile, ok := encoder.Select(ctx, s.svc, s.preferred)
	if !ok {
		return fail("%s supports none of the encode profiles", s.svc.Name())
	}
	surface, err := newSurface(s.req.Width, s.req.Height)
	if err != nil {
		return fail("%v", err)
	}
	rec, err := s.svc.Open(ctx, encoder.Options{
		Width:         s.req.Width,
		Height:        s.req.Height,
		FrameRate:     s.req.FrameRate,
		BitsPerSecond: bitsPerSecond,
		Profile:       profile,
	})
	if err != nil {
		return fail("open recorder: %v", err)
	}
	return rec, profile, surface, nil
}

func (s *Session) loop(ctx context.Context, rec encoder.Recorder, surface *image.RGBA) error {
	epoch, ticks, stop := s.ticks.Start(s.req.FrameRate)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts, ok := <-ticks:
			if !ok {
				return errors.New("capture: tick source closed")
			}
			s.synth.RenderFrame(surface, s.req.Width, s.req.Height, s.req.Theme, ts)
			if err := rec.WriteFrame(surface); err != nil {
				return fmt.Errorf("capture: frame %d: %w", s.Frames(), err)
			}
			s.frames.Add(1)
			metrics.FramesTotal.Inc()

			elapsed := ts.Sub(epoch)
			s.report(min(elapsed.Seconds()/s.req.Duration.Seconds(), 1))
			if elapsed >= s.req.Duration {
				return nil
			}
		}
	}
}

// report keeps progress monotonic even if a tick source delivers out of order.
func (s *Session) report(p float64) {
	if p < s.Progress() {
		p = s.Progress()
	}
	s.progress.Store(math.Float64bits(p))
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func (s *Session) setStatus(st Status) {
	s.status.Store(int32(st))
}

func (s *Session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
	s.received++
	s.mu.Unlock()
}

func (s *Session) concat() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	s.chunks, s.size = nil, 0
	return out
}

func (s *Session) discard() {
	s.mu.Lock()
	s.chunks, s.size = nil, 0
	s.mu.Unlock()
}

func newSurface(width, height int) (img *image.RGBA, err error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface %dx%d", width, height)
	}
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("allocate %dx%d surface: %v", width, height, r)
		}
	}()
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}
