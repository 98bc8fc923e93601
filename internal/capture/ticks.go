package capture

import (
	"sync"
	"time"
)

// TickSource drives the frame loop. Start returns the session epoch, a channel of
// frame timestamps and a stop func that releases the scheduling handle.
type TickSource interface {
	Start(frameRate float64) (epoch time.Time, ticks <-chan time.Time, stop func())
}

// Realtime ticks on the wall clock every 1/frameRate.
type Realtime struct{}

func (Realtime) Start(frameRate float64) (time.Time, <-chan time.Time, func()) {
	t := time.NewTicker(frameInterval(frameRate))
	return time.Now(), t.C, t.Stop
}

// Virtual emits exact frame timestamps as fast as the loop consumes them.
// Used for offline rendering and tests; frame n lands at epoch + n/frameRate.
type Virtual struct {
	Epoch time.Time
}

func (v Virtual) Start(frameRate float64) (time.Time, <-chan time.Time, func()) {
	epoch := v.Epoch
	if epoch.IsZero() {
		epoch = time.Now()
	}
	ch := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		for n := 1; ; n++ {
			ts := epoch.Add(time.Duration(float64(n) * float64(time.Second) / frameRate))
			select {
			case ch <- ts:
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return epoch, ch, func() { once.Do(func() { close(done) }) }
}

func frameInterval(frameRate float64) time.Duration {
	d := time.Duration(float64(time.Second) / frameRate)
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
