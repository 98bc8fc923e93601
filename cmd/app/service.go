package main

import (
	"fmt"

	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/encoder/ffmpeg"
	cfg "github.com/1F47E/go-padreel/pkg/config"
)

func newService(conf cfg.Config) (encoder.Service, error) {
	switch conf.Encoder.Backend {
	case "ffmpeg", "":
		return ffmpeg.New(conf.Encoder.FFmpegPath), nil
	case "gst":
		return newGstService()
	}
	return nil, fmt.Errorf("unknown encoder backend %q", conf.Encoder.Backend)
}
