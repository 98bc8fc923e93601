//go:build gst

// Package gst encodes frames with a GStreamer pipeline:
//
//	appsrc → videoconvert → encoder → muxer → appsink
//
// Built only with -tags gst because go-gst needs cgo and the GStreamer dev packages.
package gst

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/1F47E/go-padreel/internal/budget"
	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/metrics"
	"github.com/1F47E/go-padreel/pkg/logger"
)

const backend = "gst"

// element factories per profile: encoder, muxer
var elements = map[string][2]string{
	encoder.ProfileMP4H264.Name: {"x264enc", "mp4mux"},
	encoder.ProfileWebMVP9.Name: {"vp9enc", "webmmux"},
	encoder.ProfileWebM.Name:    {"vp8enc", "webmmux"},
}

var initOnce sync.Once

func initGst() {
	initOnce.Do(func() { gst.Init(nil) })
}

type Service struct{}

func New() *Service { return &Service{} }

func (s *Service) Name() string { return backend }

func (s *Service) Available(context.Context) error {
	initGst()
	for _, name := range []string{"appsrc", "videoconvert", "appsink"} {
		if gst.Find(name) == nil {
			return fmt.Errorf("gst: element %s not installed", name)
		}
	}
	return nil
}

func (s *Service) Supports(ctx context.Context, p encoder.Profile) bool {
	if s.Available(ctx) != nil {
		return false
	}
	pair, ok := elements[p.Name]
	if !ok {
		return false
	}
	return gst.Find(pair[0]) != nil && gst.Find(pair[1]) != nil
}

// PipelineString builds the launch line for opts.
func PipelineString(opts encoder.Options) (string, error) {
	pair, ok := elements[opts.Profile.Name]
	if !ok {
		return "", fmt.Errorf("gst: %w: %s", encoder.ErrUnknownProfile, opts.Profile)
	}
	num, den := fraction(opts.FrameRate)
	caps := fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/%d",
		opts.Width, opts.Height, num, den)

	var enc string
	switch pair[0] {
	case "x264enc":
		enc = fmt.Sprintf("x264enc bitrate=%d speed-preset=veryfast tune=zerolatency", budget.Kbps(opts.BitsPerSecond))
	case "vp9enc", "vp8enc":
		enc = fmt.Sprintf("%s target-bitrate=%d deadline=1 cpu-used=8", pair[0], opts.BitsPerSecond)
	}

	mux := "webmmux streamable=true"
	if pair[1] == "mp4mux" {
		mux = "mp4mux fragment-duration=1000 streamable=true"
	}

	return fmt.Sprintf(
		"appsrc name=src is-live=true format=time do-timestamp=true caps=%s ! videoconvert ! video/x-raw,format=I420 ! %s ! %s ! appsink name=sink sync=false",
		caps, enc, mux,
	), nil
}

// fraction turns 29.97 into 2997/100
func fraction(fps float64) (int, int) {
	num, den := int(math.Round(fps*1000)), 1000
	a, b := num, den
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 0, 1
	}
	return num / a, den / a
}

type recorder struct {
	log      *logrus.Entry
	opts     encoder.Options
	pipeline *gst.Pipeline
	src      *app.Source
	chunks   chan []byte
	frameDur time.Duration

	mu     sync.Mutex
	closed bool

	cancel context.CancelFunc
	done   chan error
	once   sync.Once
	err    error
}

func (s *Service) Open(ctx context.Context, opts encoder.Options) (encoder.Recorder, error) {
	initGst()
	desc, err := PipelineString(opts)
	if err != nil {
		return nil, err
	}
	log := logger.Log.WithFields(logrus.Fields{"scope": "gst recorder", "pipeline_id": uuid.NewString()})
	log.Debugf("launching pipeline: %s", desc)

	fail := func(err error) (encoder.Recorder, error) {
		metrics.EncoderStarts.WithLabelValues(backend, "error").Inc()
		return nil, err
	}

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return fail(fmt.Errorf("gst: create pipeline: %w", err))
	}
	srcElem, err := pipeline.GetElementByName("src")
	if err != nil {
		return fail(fmt.Errorf("gst: appsrc: %w", err))
	}
	sinkElem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fail(fmt.Errorf("gst: appsink: %w", err))
	}

	r := &recorder{
		log:      log,
		opts:     opts,
		pipeline: pipeline,
		src:      app.SrcFromElement(srcElem),
		chunks:   make(chan []byte, 64),
		frameDur: time.Duration(float64(time.Second) / opts.FrameRate),
		done:     make(chan error, 1),
	}

	app.SinkFromElement(sinkElem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: r.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fail(fmt.Errorf("gst: start pipeline: %w", err))
	}
	metrics.EncoderStarts.WithLabelValues(backend, "ok").Inc()

	ctx, r.cancel = context.WithCancel(ctx)
	go r.watch(ctx)
	return r, nil
}

func (r *recorder) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowEOS
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	chunk := make([]byte, len(data))
	copy(chunk, data)
	buffer.Unmap()

	if len(chunk) > 0 {
		r.chunks <- chunk
	}
	return gst.FlowOK
}

// watch polls the bus until EOS, error or cancellation.
func (r *recorder) watch(ctx context.Context) {
	bus := r.pipeline.GetPipelineBus()
	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			break loop
		case gst.MessageError:
			gerr := msg.ParseError()
			err = fmt.Errorf("gst: %s: %s", gerr.Error(), gerr.DebugString())
			break loop
		}
	}
	_ = r.pipeline.SetState(gst.StateNull)
	close(r.chunks)
	r.done <- err
}

func (r *recorder) Chunks() <-chan []byte { return r.chunks }

func (r *recorder) WriteFrame(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("gst: recorder closed")
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w != r.opts.Width || h != r.opts.Height {
		return fmt.Errorf("gst: frame is %dx%d, recorder expects %dx%d", w, h, r.opts.Width, r.opts.Height)
	}
	frame := make([]byte, 0, w*h*4)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		off := img.PixOffset(img.Rect.Min.X, y)
		frame = append(frame, img.Pix[off:off+w*4]...)
	}
	if ret := r.src.PushBuffer(gst.NewBufferFromBytes(frame)); ret != gst.FlowOK {
		return fmt.Errorf("gst: push buffer: %s", ret)
	}
	return nil
}

// Stop sends EOS so the muxer finalizes, then waits for the bus to report it.
func (r *recorder) Stop() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.src.EndStream()
		r.err = <-r.done
		r.cancel()
		if r.err != nil {
			metrics.EncoderExits.WithLabelValues(backend, "error").Inc()
			return
		}
		metrics.EncoderExits.WithLabelValues(backend, "ok").Inc()
		r.log.Debug("pipeline finished")
	})
	return r.err
}

func (r *recorder) Abort() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.cancel()
		<-r.done
		metrics.EncoderExits.WithLabelValues(backend, "aborted").Inc()
		r.err = context.Canceled
	})
}
