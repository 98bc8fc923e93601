package blob

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutHandleOpenRelease(t *testing.T) {
	s := NewStore()
	obj := s.Put([][]byte{[]byte("abc"), nil, []byte("de")}, "video/mp4")
	assert.EqualValues(t, 5, obj.Size())
	assert.Equal(t, "video/mp4", obj.MimeType())

	h := s.Handle(obj)
	assert.True(t, strings.HasPrefix(h.String(), "blob:padreel/"))
	assert.Len(t, h.ID(), 36)
	assert.Equal(t, 1, s.Len())

	got, err := s.Open(h)
	require.NoError(t, err)
	assert.Same(t, obj, got)

	assert.True(t, s.Release(h))
	assert.False(t, s.Release(h))
	assert.Zero(t, s.Len())

	_, err = s.Open(h)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandlesAreUnique(t *testing.T) {
	s := NewStore()
	obj := s.Put([][]byte{{1}}, "video/webm")
	a, b := s.Handle(obj), s.Handle(obj)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, s.Len())
}

func TestObjectStreams(t *testing.T) {
	s := NewStore()
	obj := s.Put([][]byte{[]byte("head"), make([]byte, 4)}, "video/mp4")
	want := append([]byte("head"), 0, 0, 0, 0)

	var buf bytes.Buffer
	n, err := obj.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)
	assert.Equal(t, want, buf.Bytes())

	all, err := io.ReadAll(obj.Reader())
	require.NoError(t, err)
	assert.Equal(t, want, all)
}
