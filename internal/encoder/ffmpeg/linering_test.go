package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	_, _ = r.Write([]byte("one\ntwo\n"))
	assert.Equal(t, []string{"one", "two"}, r.LastN(10))

	_, _ = r.Write([]byte("thr"))
	assert.Equal(t, []string{"one", "two"}, r.LastN(10), "partial line is held back")

	_, _ = r.Write([]byte("ee\r\n\nfour\n"))
	assert.Equal(t, []string{"two", "three", "four"}, r.LastN(10))
	assert.Equal(t, []string{"four"}, r.LastN(1))
}

func TestLineRingWraps(t *testing.T) {
	r := NewLineRing(2)
	for _, l := range []string{"a\n", "b\n", "c\n", "d\n", "e\n"} {
		_, _ = r.Write([]byte(l))
	}
	assert.Equal(t, []string{"d", "e"}, r.LastN(5))
}
