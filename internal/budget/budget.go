package budget

import (
	"math"
	"time"

	cfg "github.com/1F47E/go-padreel/pkg/config"
)

// ComputeBitrate back-calculates the encoder bitrate hint (bits per second) for a file
// of targetSizeBytes over duration. The safety factor leaves headroom for container
// overhead, the reconciler pads the rest.
func ComputeBitrate(targetSizeBytes int64, duration time.Duration) int64 {
	seconds := duration.Seconds()
	if targetSizeBytes <= 0 || seconds <= 0 {
		return 0
	}
	return int64(math.Floor(float64(targetSizeBytes) * cfg.BitrateSafetyFactor * 8 / seconds))
}

// Kbps converts to kbit/s, rounding down, minimum 1.
func Kbps(bitsPerSecond int64) int {
	k := int(bitsPerSecond / 1000)
	if k < 1 {
		return 1
	}
	return k
}

// Mbps is for log lines only.
func Mbps(bitsPerSecond int64) float64 {
	return float64(bitsPerSecond) / 1_000_000
}
