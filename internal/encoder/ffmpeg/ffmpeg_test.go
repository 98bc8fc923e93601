package ffmpeg

import (
	"context"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-padreel/internal/encoder"
)

const encodersListing = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libvpx               libvpx VP8 (codec vp8)
 A....D aac                  AAC (Advanced Audio Coding)
`

const muxersListing = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
  E mp4             MP4 (MPEG-4 Part 14)
  E matroska,webm   Matroska / WebM
  E null            raw null video
`

func TestParseListing(t *testing.T) {
	enc := parseListing([]byte(encodersListing))
	assert.True(t, enc["libx264"])
	assert.True(t, enc["libvpx"])
	assert.True(t, enc["aac"])
	assert.False(t, enc["libvpx-vp9"])
	assert.False(t, enc["Video"], "legend lines are skipped")

	mux := parseListing([]byte(muxersListing))
	assert.True(t, mux["mp4"])
	assert.True(t, mux["webm"])
	assert.True(t, mux["matroska"])
	assert.False(t, mux["Muxing"])
}

func TestCapabilitiesSupports(t *testing.T) {
	caps := capabilities{
		encoders: parseListing([]byte(encodersListing)),
		muxers:   parseListing([]byte(muxersListing)),
	}
	assert.True(t, caps.supports(encoder.ProfileMP4H264))
	assert.False(t, caps.supports(encoder.ProfileWebMVP9), "no libvpx-vp9 in listing")
	assert.True(t, caps.supports(encoder.ProfileWebM))
}

func TestBuildArgs(t *testing.T) {
	opts := encoder.Options{
		Width:         1280,
		Height:        720,
		FrameRate:     29.97,
		BitsPerSecond: 13421772,
		Profile:       encoder.ProfileMP4H264,
	}
	args, err := BuildArgs(opts)
	require.NoError(t, err)
	line := strings.Join(args, " ")

	assert.Contains(t, line, "-f rawvideo -pix_fmt rgba -s 1280x720 -framerate 29.97 -i pipe:0")
	assert.Contains(t, line, "-c:v libx264")
	assert.Contains(t, line, "-b:v 13421772 -maxrate 13421772 -bufsize 26843544")
	assert.Contains(t, line, "-f mp4 -movflags frag_keyframe+empty_moov+default_base_moof")
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestBuildArgsProfiles(t *testing.T) {
	base := encoder.Options{Width: 64, Height: 48, FrameRate: 30}

	vp9 := base
	vp9.Profile = encoder.ProfileWebMVP9
	args, err := BuildArgs(vp9)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(args, " "), "-c:v libvpx-vp9")
	assert.Contains(t, strings.Join(args, " "), "-f webm pipe:1")

	plain := base
	plain.Profile = encoder.ProfileWebM
	args, err = BuildArgs(plain)
	require.NoError(t, err)
	assert.NotContains(t, args, "-c:v", "container default codec")
	assert.NotContains(t, args, "-b:v", "no bitrate hint when zero")

	bad := base
	bad.Profile = encoder.Profile{Name: "avi", Container: "avi"}
	_, err = BuildArgs(bad)
	assert.ErrorIs(t, err, encoder.ErrUnknownProfile)

	_, err = BuildArgs(encoder.Options{Profile: encoder.ProfileWebM})
	assert.Error(t, err)
}

func TestServiceMissingBinary(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "no-ffmpeg"))
	assert.Error(t, svc.Available(context.Background()))
	assert.False(t, svc.Supports(context.Background(), encoder.ProfileWebM))
}

// fake ffmpeg: prints listings for probes, otherwise copies stdin to stdout
func fakeBinary(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	script := "#!/bin/sh\n" +
		"case \"$2\" in\n" +
		"  -encoders) printf '%s' '" + encodersListing + "' ;;\n" +
		"  -muxers) printf '%s' '" + muxersListing + "' ;;\n" +
		"  *) cat ;;\n" +
		"esac\n"
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRecorderRoundTrip(t *testing.T) {
	svc := New(fakeBinary(t))
	ctx := context.Background()
	require.NoError(t, svc.Available(ctx))
	require.True(t, svc.Supports(ctx, encoder.ProfileMP4H264))

	opts := encoder.Options{Width: 4, Height: 2, FrameRate: 30, Profile: encoder.ProfileMP4H264}
	rec, err := svc.Open(ctx, opts)
	require.NoError(t, err)

	var got []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range rec.Chunks() {
			got = append(got, c...)
		}
	}()

	img := newFrame(4, 2, 7)
	require.NoError(t, rec.WriteFrame(img))
	require.NoError(t, rec.WriteFrame(newFrame(4, 2, 9)))
	require.NoError(t, rec.Stop())
	<-done

	require.Len(t, got, 2*4*2*4)
	assert.Equal(t, byte(7), got[0])
	assert.Equal(t, byte(9), got[len(got)-1])
}

func TestRecorderRejectsWrongSize(t *testing.T) {
	svc := New(fakeBinary(t))
	rec, err := svc.Open(context.Background(), encoder.Options{Width: 4, Height: 2, FrameRate: 30, Profile: encoder.ProfileWebM})
	require.NoError(t, err)
	go func() {
		for range rec.Chunks() {
		}
	}()
	assert.Error(t, rec.WriteFrame(newFrame(2, 2, 1)))
	rec.Abort()
}

func newFrame(w, h int, fill byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}
