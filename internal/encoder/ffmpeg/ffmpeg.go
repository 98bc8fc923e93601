// Package ffmpeg encodes raw RGBA frames with an ffmpeg subprocess: frames go in on
// stdin, the container comes out on stdout in chunks.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/pkg/logger"
)

const backend = "ffmpeg"

// encoder names per codec hint
var codecEncoders = map[string]string{
	"h264": "libx264",
	"vp9":  "libvpx-vp9",
}

type capabilities struct {
	encoders map[string]bool
	muxers   map[string]bool
}

type Service struct {
	BinPath string

	once sync.Once
	caps capabilities
	err  error
}

func New(binPath string) *Service {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Service{BinPath: binPath}
}

func (s *Service) Name() string { return backend }

// Available fails when the binary is missing or its capability listing cannot be read.
func (s *Service) Available(ctx context.Context) error {
	_, err := s.probe(ctx)
	return err
}

func (s *Service) Supports(ctx context.Context, p encoder.Profile) bool {
	caps, err := s.probe(ctx)
	if err != nil {
		return false
	}
	return caps.supports(p)
}

func (c capabilities) supports(p encoder.Profile) bool {
	if !c.muxers[p.Container] {
		return false
	}
	if p.Codec == "" {
		return true
	}
	name, ok := codecEncoders[p.Codec]
	return ok && c.encoders[name]
}

// probe runs "ffmpeg -encoders" and "ffmpeg -muxers" once per service.
func (s *Service) probe(ctx context.Context) (capabilities, error) {
	s.once.Do(func() {
		log := logger.Log.WithField("scope", "ffmpeg probe")
		encOut, err := s.list(ctx, "-encoders")
		if err != nil {
			s.err = err
			return
		}
		muxOut, err := s.list(ctx, "-muxers")
		if err != nil {
			s.err = err
			return
		}
		s.caps = capabilities{
			encoders: parseListing(encOut),
			muxers:   parseListing(muxOut),
		}
		log.Debugf("found %d encoders, %d muxers", len(s.caps.encoders), len(s.caps.muxers))
	})
	return s.caps, s.err
}

func (s *Service) list(ctx context.Context, flag string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.BinPath, "-hide_banner", flag)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w", flag, err)
	}
	return out, nil
}

// parseListing reads the table printed by -encoders / -muxers: a legend, a line of
// dashes, then "<flags> <name[,name]> <description>" rows.
func parseListing(out []byte) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inTable {
			inTable = strings.HasPrefix(line, "--")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}

// BuildArgs returns the ffmpeg argument list for one recording.
func BuildArgs(opts encoder.Options) ([]string, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid frame rate %v", opts.FrameRate)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.FormatFloat(opts.FrameRate, 'f', -1, 64),
		"-i", "pipe:0",
		"-an",
	}

	switch opts.Profile.Codec {
	case "h264":
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-profile:v", "baseline")
	case "vp9":
		args = append(args, "-c:v", "libvpx-vp9", "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1")
	case "":
	default:
		return nil, fmt.Errorf("ffmpeg: %w: codec %q", encoder.ErrUnknownProfile, opts.Profile.Codec)
	}

	if opts.BitsPerSecond > 0 {
		bps := strconv.FormatInt(opts.BitsPerSecond, 10)
		args = append(args,
			"-b:v", bps,
			"-maxrate", bps,
			"-bufsize", strconv.FormatInt(opts.BitsPerSecond*2, 10),
		)
	}
	args = append(args, "-pix_fmt", "yuv420p")

	switch opts.Profile.Container {
	case "mp4":
		// stdout is not seekable, the moov atom has to come first
		args = append(args, "-f", "mp4", "-movflags", "frag_keyframe+empty_moov+default_base_moof")
	case "webm":
		args = append(args, "-f", "webm")
	default:
		return nil, fmt.Errorf("ffmpeg: %w: container %q", encoder.ErrUnknownProfile, opts.Profile.Container)
	}

	return append(args, "pipe:1"), nil
}
