// Package core runs generations and owns the Idle/Generating/Done/Error state machine.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/1F47E/go-padreel/internal/alloc"
	"github.com/1F47E/go-padreel/internal/blob"
	"github.com/1F47E/go-padreel/internal/capture"
	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/metrics"
	"github.com/1F47E/go-padreel/internal/synth"
	cfg "github.com/1F47E/go-padreel/pkg/config"
	"github.com/1F47E/go-padreel/pkg/logger"
)

var ErrBusy = errors.New("generation already in progress")

type Phase int

const (
	Idle Phase = iota
	Generating
	Done
	Error
)

func (p Phase) String() string {
	switch p {
	case Generating:
		return "generating"
	case Done:
		return "done"
	case Error:
		return "error"
	}
	return "idle"
}

// State is a snapshot. Progress is 0-100 while Generating.
type State struct {
	Phase    Phase
	Progress int
	Result   *Result
	Message  string
	Err      error
}

type Observer func(State)

type Option func(*Core)

func WithStore(s *blob.Store) Option { return func(c *Core) { c.blobs = s } }

func WithSynthesizer(s *synth.Synthesizer) Option { return func(c *Core) { c.synth = s } }

func WithTicks(t capture.TickSource) Option { return func(c *Core) { c.ticks = t } }

func WithProfile(p encoder.Profile) Option { return func(c *Core) { c.preferred = p } }

func WithLargeFileThreshold(n int64) Option { return func(c *Core) { c.threshold = n } }

func WithMaxAlloc(n int64) Option { return func(c *Core) { c.ceiling = n } }

func WithObserver(o Observer) Option { return func(c *Core) { c.observers = append(c.observers, o) } }

type Core struct {
	svc       encoder.Service
	blobs     *blob.Store
	synth     *synth.Synthesizer
	ticks     capture.TickSource
	preferred encoder.Profile
	threshold int64
	ceiling   int64
	observers []Observer

	mu      sync.Mutex
	state   State
	results map[string]*Result
}

func NewCore(svc encoder.Service, opts ...Option) *Core {
	c := &Core{
		svc:       svc,
		preferred: encoder.ProfileMP4H264,
		threshold: cfg.LargeFileThreshold,
		ceiling:   cfg.MaxAllocBytes,
		results:   make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.blobs == nil {
		c.blobs = blob.NewStore()
	}
	if c.synth == nil {
		c.synth = synth.NewRandom()
	}
	return c
}

func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result looks up a live result by id.
func (c *Core) Result(id string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[id]
	return r, ok
}

// Release disposes a live result by id.
func (c *Core) Release(id string) bool {
	r, ok := c.Result(id)
	if !ok {
		return false
	}
	r.Dispose()
	return true
}

// Store exposes the blob store results live in.
func (c *Core) Store() *blob.Store { return c.blobs }

// begin moves Idle/Done/Error to Generating, or fails with ErrBusy.
func (c *Core) begin() error {
	c.mu.Lock()
	if c.state.Phase == Generating {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = State{Phase: Generating}
	st := c.state
	c.mu.Unlock()
	c.notify(st)
	return nil
}

// Generate runs one request to a terminal state. Declining the large file gate returns
// alloc.ErrUserAborted and leaves the core Idle. confirm may be nil, which declines.
func (c *Core) Generate(ctx context.Context, req Request, confirm alloc.Confirmer) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	return c.run(ctx, req, confirm)
}

// Start validates and claims the core, then generates in the background.
// The outcome is delivered through observers and State.
func (c *Core) Start(ctx context.Context, req Request, confirm alloc.Confirmer) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	go func() {
		_, _ = c.run(ctx, req, confirm)
	}()
	return nil
}

func (c *Core) run(ctx context.Context, req Request, confirm alloc.Confirmer) (*Result, error) {
	log := logger.Log.WithField("scope", "core generate")
	start := time.Now()
	mode := req.Mode.String()
	defer func() {
		metrics.GenerationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	var (
		res *Result
		err error
	)
	switch req.Mode {
	case ModeFake:
		res, err = c.generateFake(ctx, req, confirm)
	default:
		res, err = c.generateReal(ctx, req)
	}

	switch {
	case errors.Is(err, alloc.ErrUserAborted):
		log.Info("large file declined, back to idle")
		metrics.GenerationsTotal.WithLabelValues(mode, "aborted").Inc()
		c.setState(State{Phase: Idle})
		return nil, err
	case errors.Is(err, context.Canceled):
		log.Info("cancelled, back to idle")
		metrics.GenerationsTotal.WithLabelValues(mode, "cancelled").Inc()
		c.setState(State{Phase: Idle})
		return nil, err
	case err != nil:
		msg := errorMessage(err)
		log.Errorf("%s: %v", msg, err)
		metrics.GenerationsTotal.WithLabelValues(mode, "error").Inc()
		c.setState(State{Phase: Error, Message: msg, Err: err})
		return nil, err
	}

	res.onDispose = c.forget
	c.mu.Lock()
	c.results[res.ID] = res
	c.mu.Unlock()

	outcome := "exact"
	if res.Advisory != nil {
		outcome = "overshoot"
	}
	metrics.GenerationsTotal.WithLabelValues(mode, outcome).Inc()
	log.Infof("done: %s, %s MB, %s", res.FileName, res.SizeMB(), res.Label())
	c.setState(State{Phase: Done, Progress: 100, Result: res})
	return res, nil
}

// forget drops a disposed result. When it is the one State advertises, the core goes back to Idle.
func (c *Core) forget(r *Result) {
	c.mu.Lock()
	delete(c.results, r.ID)
	current := c.state.Phase == Done && c.state.Result == r
	if current {
		c.state = State{Phase: Idle}
	}
	st := c.state
	c.mu.Unlock()
	if current {
		c.notify(st)
	}
}

// setProgress publishes only whole-percent changes.
func (c *Core) setProgress(p float64) {
	pct := int(p * 100)
	c.mu.Lock()
	if c.state.Phase != Generating || pct <= c.state.Progress {
		c.mu.Unlock()
		return
	}
	c.state.Progress = pct
	st := c.state
	c.mu.Unlock()
	c.notify(st)
}

func (c *Core) setState(st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.notify(st)
}

func (c *Core) notify(st State) {
	for _, o := range c.observers {
		o(st)
	}
}

// errorMessage maps a pipeline failure to the message shown to users.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return "Failed: encoder not available or out of memory"
	case errors.Is(err, alloc.ErrAllocationFailure):
		return "Out of memory"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out"
	}
	return fmt.Sprintf("Generation failed: %v", err)
}
