//go:build gst

package main

import (
	"github.com/1F47E/go-padreel/internal/encoder"
	"github.com/1F47E/go-padreel/internal/encoder/gst"
)

func newGstService() (encoder.Service, error) {
	return gst.New(), nil
}
