package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/metrics"
	cfg "github.com/1F47E/go-padreel/pkg/config"
	"github.com/1F47E/go-padreel/pkg/logger"
)

type recorder struct {
	log    *logrus.Entry
	opts   encoder.Options
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	chunks chan []byte
	ring   *LineRing
	pumps  errgroup.Group
	cancel context.CancelFunc

	frameSize int

	once sync.Once
	err  error
}

// Open starts ffmpeg for one recording. The process lives until Stop or Abort.
func (s *Service) Open(ctx context.Context, opts encoder.Options) (encoder.Recorder, error) {
	args, err := BuildArgs(opts)
	if err != nil {
		return nil, err
	}

	log := logger.Log.WithField("scope", "ffmpeg recorder")
	log.Debugf("Running ffmpeg command: %s %s", s.BinPath, strings.Join(args, " "))

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.BinPath, args...) // #nosec G204
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = cfg.KillGrace

	r := &recorder{
		log:       log,
		opts:      opts,
		cmd:       cmd,
		chunks:    make(chan []byte, 64),
		ring:      NewLineRing(cfg.StderrRingLines),
		cancel:    cancel,
		frameSize: opts.Width * opts.Height * 4,
	}

	fail := func(err error) (encoder.Recorder, error) {
		cancel()
		metrics.EncoderStarts.WithLabelValues(backend, "error").Inc()
		return nil, err
	}

	if r.stdin, err = cmd.StdinPipe(); err != nil {
		return fail(fmt.Errorf("ffmpeg stdin: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("ffmpeg stdout: %w", err))
	}
	cmd.Stderr = r.ring

	if err := cmd.Start(); err != nil {
		return fail(fmt.Errorf("start ffmpeg: %w", err))
	}
	metrics.EncoderStarts.WithLabelValues(backend, "ok").Inc()

	r.pumps.Go(func() error { return r.pump(stdout) })
	return r, nil
}

// pump forwards stdout in chunks until EOF, then closes the chunk channel.
func (r *recorder) pump(stdout io.Reader) error {
	defer close(r.chunks)
	buf := make([]byte, cfg.ChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.chunks <- chunk
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read ffmpeg output: %w", err)
		}
	}
}

func (r *recorder) Chunks() <-chan []byte { return r.chunks }

func (r *recorder) WriteFrame(img *image.RGBA) error {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w != r.opts.Width || h != r.opts.Height {
		return fmt.Errorf("ffmpeg: frame is %dx%d, recorder expects %dx%d", w, h, r.opts.Width, r.opts.Height)
	}

	// contiguous surface: one write
	if img.Stride == w*4 && len(img.Pix) >= r.frameSize {
		return r.write(img.Pix[:r.frameSize])
	}
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		off := img.PixOffset(img.Rect.Min.X, y)
		if err := r.write(img.Pix[off : off+w*4]); err != nil {
			return err
		}
	}
	return nil
}

func (r *recorder) write(p []byte) error {
	if _, err := r.stdin.Write(p); err != nil {
		return fmt.Errorf("write frame to ffmpeg: %w%s", err, r.tail())
	}
	return nil
}

// Stop closes stdin so ffmpeg flushes the container, then waits for it.
func (r *recorder) Stop() error {
	r.once.Do(func() {
		defer r.cancel()
		_ = r.stdin.Close()
		pumpErr := r.pumps.Wait()
		waitErr := r.cmd.Wait()

		switch {
		case waitErr != nil:
			metrics.EncoderExits.WithLabelValues(backend, "error").Inc()
			r.err = fmt.Errorf("ffmpeg exited: %w%s", waitErr, r.tail())
		case pumpErr != nil:
			metrics.EncoderExits.WithLabelValues(backend, "error").Inc()
			r.err = pumpErr
		default:
			metrics.EncoderExits.WithLabelValues(backend, "ok").Inc()
			r.log.Debug("ffmpeg finished")
		}
	})
	return r.err
}

// Abort kills ffmpeg and drops whatever it had not written yet.
func (r *recorder) Abort() {
	r.once.Do(func() {
		r.cancel()
		_ = r.stdin.Close()
		_ = r.pumps.Wait()
		_ = r.cmd.Wait()
		metrics.EncoderExits.WithLabelValues(backend, "aborted").Inc()
		r.err = context.Canceled
		r.log.Debug("ffmpeg aborted")
	})
}

func (r *recorder) tail() string {
	lines := r.ring.LastN(5)
	if len(lines) == 0 {
		return ""
	}
	return ": " + strings.Join(lines, " | ")
}
