package reconcile

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

func randomBytes(n int) []byte {
	r := rand.New(rand.NewPCG(7, 11))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

func TestReconcileUndershootPads(t *testing.T) {
	encoded := randomBytes(6 * mib)
	orig := bytes.Clone(encoded)

	out := Reconcile(encoded, 10*mib)

	require.Len(t, out.Bytes, 10*mib)
	assert.True(t, out.Padded)
	assert.True(t, out.Exact())
	assert.Zero(t, out.Overshoot)
	assert.NoError(t, out.Advisory())
	assert.Equal(t, orig, out.Bytes[:6*mib], "prefix must be the encoded stream")
	assert.Equal(t, orig, encoded, "input must not be mutated")
	assert.Equal(t, int64(4*mib), out.PaddingBytes(len(encoded)))

	for i, b := range out.Bytes[6*mib:] {
		if b != 0 {
			t.Fatalf("padding byte %d is %#x", i, b)
		}
	}
}

func TestReconcileOvershootUnchanged(t *testing.T) {
	encoded := randomBytes(12 * mib)

	out := Reconcile(encoded, 10*mib)

	require.Len(t, out.Bytes, 12*mib)
	assert.False(t, out.Padded)
	assert.False(t, out.Exact())
	assert.Equal(t, int64(2*mib), out.Overshoot)
	assert.ErrorIs(t, out.Advisory(), ErrSizeOvershoot)
	assert.Zero(t, out.PaddingBytes(len(encoded)))
	assert.Same(t, &encoded[0], &out.Bytes[0], "overshoot returns the artifact itself")
}

func TestReconcileExactMatch(t *testing.T) {
	encoded := randomBytes(4096)

	out := Reconcile(encoded, 4096)

	assert.False(t, out.Padded)
	assert.True(t, out.Exact())
	assert.NoError(t, out.Advisory())
}

func TestReconcileLengths(t *testing.T) {
	testCases := []struct {
		name    string
		encoded int
		target  int64
		wantLen int
		padded  bool
	}{
		{"empty artifact", 0, 100, 100, true},
		{"one short", 99, 100, 100, true},
		{"one over", 101, 100, 101, false},
		{"tiny target", 5000, 1, 5000, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := randomBytes(tc.encoded)
			out := Reconcile(encoded, tc.target)
			assert.Len(t, out.Bytes, tc.wantLen)
			assert.Equal(t, tc.padded, out.Padded)
			assert.Equal(t, encoded, out.Bytes[:tc.encoded])
		})
	}
}
