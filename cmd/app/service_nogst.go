//go:build !gst

package main

import (
	"errors"

	"github.com/1F47E/go-padreel/internal/encoder"
)

func newGstService() (encoder.Service, error) {
	return nil, errors.New("built without GStreamer support, rebuild with -tags gst")
}
