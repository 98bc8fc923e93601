// Package encoder defines the capture/encode service the capture session drives.
// Backends live in subpackages: ffmpeg (subprocess) and gst (GStreamer, build tag gst).
package encoder

import (
	"context"
	"errors"
	"image"

	"github.com/1F47E/go-padreel/pkg/logger"
)

var ErrUnknownProfile = errors.New("unknown encode profile")

// Profile is a container/codec pair. An empty Codec means the container default.
type Profile struct {
	Name      string
	Container string
	Codec     string
	MimeType  string
	Ext       string
}

func (p Profile) String() string {
	return p.Name
}

var (
	ProfileMP4H264 = Profile{Name: "mp4-h264", Container: "mp4", Codec: "h264", MimeType: "video/mp4", Ext: "mp4"}
	ProfileWebMVP9 = Profile{Name: "webm-vp9", Container: "webm", Codec: "vp9", MimeType: "video/webm", Ext: "webm"}
	ProfileWebM    = Profile{Name: "webm", Container: "webm", MimeType: "video/webm", Ext: "webm"}
)

// Fallback is the probe order after the preferred profile.
var Fallback = []Profile{ProfileMP4H264, ProfileWebMVP9, ProfileWebM}

func ProfileByName(name string) (Profile, error) {
	for _, p := range Fallback {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, ErrUnknownProfile
}

// Options configures one recorder.
type Options struct {
	Width         int
	Height        int
	FrameRate     float64
	BitsPerSecond int64
	Profile       Profile
}

// Service is the platform capture/encode capability.
type Service interface {
	Name() string
	// Available fails when the service cannot encode at all.
	Available(ctx context.Context) error
	// Supports answers the capability query for a profile.
	Supports(ctx context.Context, p Profile) bool
	Open(ctx context.Context, opts Options) (Recorder, error)
}

// Recorder consumes frames and emits encoded chunks asynchronously.
type Recorder interface {
	// WriteFrame copies the frame into the encoder; img may be reused after return.
	WriteFrame(img *image.RGBA) error
	// Chunks is closed after the last chunk, once Stop or Abort completes.
	Chunks() <-chan []byte
	// Stop finalizes the stream and waits for the encoder to exit.
	Stop() error
	// Abort discards the stream.
	Abort()
}

// Select returns the preferred profile when supported, otherwise the first supported
// profile in Fallback order. ok is false when nothing is supported.
func Select(ctx context.Context, svc Service, preferred Profile) (Profile, bool) {
	log := logger.Log.WithField("scope", "encoder select")
	candidates := Fallback
	if preferred.Name != "" {
		candidates = append([]Profile{preferred}, Fallback...)
	}
	for _, p := range candidates {
		if svc.Supports(ctx, p) {
			log.Debugf("%s: using profile %s", svc.Name(), p)
			return p, true
		}
		log.Debugf("%s: profile %s not supported", svc.Name(), p)
	}
	return Profile{}, false
}

// Supported lists every profile the service can encode, in Fallback order.
func Supported(ctx context.Context, svc Service) []Profile {
	var out []Profile
	for _, p := range Fallback {
		if svc.Supports(ctx, p) {
			out = append(out, p)
		}
	}
	return out
}
