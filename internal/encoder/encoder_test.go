package encoder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/encoder/encodertest"
)

func TestSelect(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name      string
		supported []encoder.Profile
		preferred encoder.Profile
		want      encoder.Profile
		ok        bool
	}{
		{
			name:      "primary",
			supported: encoder.Fallback,
			preferred: encoder.ProfileMP4H264,
			want:      encoder.ProfileMP4H264,
			ok:        true,
		},
		{
			name:      "preferred wins over order",
			supported: encoder.Fallback,
			preferred: encoder.ProfileWebM,
			want:      encoder.ProfileWebM,
			ok:        true,
		},
		{
			name:      "secondary",
			supported: []encoder.Profile{encoder.ProfileWebMVP9, encoder.ProfileWebM},
			preferred: encoder.ProfileMP4H264,
			want:      encoder.ProfileWebMVP9,
			ok:        true,
		},
		{
			name:      "container default",
			supported: []encoder.Profile{encoder.ProfileWebM},
			preferred: encoder.ProfileMP4H264,
			want:      encoder.ProfileWebM,
			ok:        true,
		},
		{
			name:      "unsupported preferred falls back",
			supported: []encoder.Profile{encoder.ProfileMP4H264},
			preferred: encoder.ProfileWebMVP9,
			want:      encoder.ProfileMP4H264,
			ok:        true,
		},
		{
			name: "nothing",
			ok:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := encodertest.NewService(tc.supported...)
			got, ok := encoder.Select(ctx, svc, tc.preferred)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProfileByName(t *testing.T) {
	p, err := encoder.ProfileByName("webm-vp9")
	require.NoError(t, err)
	assert.Equal(t, "video/webm", p.MimeType)

	_, err = encoder.ProfileByName("avi")
	assert.ErrorIs(t, err, encoder.ErrUnknownProfile)
}

func TestSupported(t *testing.T) {
	svc := encodertest.NewService(encoder.ProfileWebM, encoder.ProfileMP4H264)
	assert.Equal(t, []encoder.Profile{encoder.ProfileMP4H264, encoder.ProfileWebM}, encoder.Supported(context.Background(), svc))
}
