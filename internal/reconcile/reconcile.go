// Package reconcile forces encoded output to the exact target size.
//
// Undershoot is padded with zero bytes after the container data. Players that parse
// permissively ignore the tail; that is a bet on the consumer, not a property of the format.
// Overshoot is never truncated because cutting encoded media corrupts it.
package reconcile

import (
	"errors"
	"fmt"
)

// ErrSizeOvershoot is advisory: the result is still usable, just not exact.
var ErrSizeOvershoot = errors.New("encoded output exceeds target size")

type Outcome struct {
	Bytes     []byte
	Padded    bool
	Target    int64
	Overshoot int64 // bytes above target, 0 when exact or padded
}

// Exact reports whether len(Bytes) == Target.
func (o Outcome) Exact() bool {
	return int64(len(o.Bytes)) == o.Target
}

// PaddingBytes is the number of appended zero bytes.
func (o Outcome) PaddingBytes(encodedLen int) int64 {
	if !o.Padded {
		return 0
	}
	return o.Target - int64(encodedLen)
}

// Advisory returns nil when the target was met, otherwise an error wrapping ErrSizeOvershoot.
func (o Outcome) Advisory() error {
	if o.Overshoot <= 0 {
		return nil
	}
	return fmt.Errorf("%w: %d bytes over %d, caused by encoder variance; try reducing duration or resolution",
		ErrSizeOvershoot, o.Overshoot, o.Target)
}

// Reconcile pads encoded to exactly target bytes, or returns it unchanged when it is
// already at or above target. The first len(encoded) bytes of the result are always
// encoded unchanged.
func Reconcile(encoded []byte, target int64) Outcome {
	n := int64(len(encoded))
	if n >= target {
		return Outcome{
			Bytes:     encoded,
			Target:    target,
			Overshoot: n - target,
		}
	}

	out := make([]byte, target)
	copy(out, encoded)
	return Outcome{
		Bytes:  out,
		Padded: true,
		Target: target,
	}
}
