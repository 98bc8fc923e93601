package config

import "time"

// NOTE: all sizes are in bytes unless the name says MB. MB here is MiB, the unit users type.
const (
	MB = 1024 * 1024

	// generation defaults
	DefaultWidth     = 1280
	DefaultHeight    = 720
	DefaultSizeMB    = 10
	DefaultDuration  = 5 * time.Second
	DefaultFrameRate = 30

	// encoder output is systematically above the naive bitrate estimate,
	// aim at 80% and pad the rest
	BitrateSafetyFactor = 0.8

	// mosaic theme
	MinBlockSize     = 20
	BlocksPerRow     = 20
	MinGlyphHeightPx = 24
	GlyphWidthRatio  = 25 // glyph height = width / 25

	// overlay line offsets from the frame center
	CaptionOffsetY   = -20
	TimestampOffsetY = 40

	// fake mode
	LargeFileThreshold = 500 * MB
	MaxAllocBytes      = 8 * 1024 * MB
	FakeMarkerByte     = 0x01

	// encoder plumbing
	ChunkSize       = 64 * 1024
	StderrRingLines = 256
	KillGrace       = 3 * time.Second

	// Path
	PathOutDir = "."
)
