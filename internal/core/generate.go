package core

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/1F47E/go-padreel/internal/alloc"
	"github.com/1F47E/go-padreel/internal/budget"
	"github.com/1F47E/go-padreel/internal/capture"
	"github.com/1F47E/go-padreel/internal/meta"
	"github.com/1F47E/go-padreel/internal/metrics"
	"github.com/1F47E/go-padreel/internal/reconcile"
	"github.com/1F47E/go-padreel/internal/storage"
	"github.com/1F47E/go-padreel/pkg/logger"
)

const fakeMimeType = "video/mp4"

// ErrChecksumMismatch means the file on disk does not hash to the result's checksum.
var ErrChecksumMismatch = errors.New("saved file does not match result checksum")

// 1. back-calculate the bitrate from the target size
// 2. capture frames into the encoder for the requested duration
// 3. pad the encoded stream up to the target
func (c *Core) generateReal(ctx context.Context, req Request) (*Result, error) {
	log := logger.Log.WithField("scope", "core real")

	bps := budget.ComputeBitrate(req.TargetSizeBytes, req.Duration)
	log.Infof("target bytes: %d, bitrate: %.2f Mbps", req.TargetSizeBytes, budget.Mbps(bps))

	sess := capture.NewSession(
		capture.Request{
			Width:     req.Width,
			Height:    req.Height,
			FrameRate: req.FrameRate,
			Duration:  req.Duration,
			Theme:     req.Theme,
		},
		c.synth, c.svc, c.ticks,
		capture.WithProfile(c.preferred),
		capture.WithProgress(c.setProgress),
	)
	art, err := sess.Run(ctx, bps)
	if err != nil {
		return nil, err
	}
	metrics.EncodedBytes.Observe(float64(art.Len()))
	log.Debugf("encoded %d bytes as %s", art.Len(), art.MimeType)

	out := reconcile.Reconcile(art.Bytes, req.TargetSizeBytes)
	advisory := out.Advisory()
	if advisory != nil {
		log.Warn(advisory)
		metrics.OvershootTotal.Inc()
	}
	metrics.PaddingBytesTotal.Add(float64(out.PaddingBytes(art.Len())))

	return c.store(req.FileName(art.Profile.Ext), art.MimeType, out.Bytes, func(r *Result) {
		r.Padded = out.Padded
		r.Overshoot = out.Overshoot
		r.Advisory = advisory
	})
}

// Fake mode skips media entirely: a zero buffer with a marker byte, labelled as mp4.
func (c *Core) generateFake(ctx context.Context, req Request, confirm alloc.Confirmer) (*Result, error) {
	if req.ConfirmLarge {
		confirm = alloc.Always(true)
	}
	buf, err := alloc.Allocate(ctx, req.TargetSizeBytes, confirm,
		alloc.WithThreshold(c.threshold),
		alloc.WithCeiling(c.ceiling),
	)
	if err != nil {
		return nil, err
	}
	c.setProgress(1)
	return c.store(req.FileName(""), fakeMimeType, buf, func(r *Result) {
		r.Mock = true
	})
}

func (c *Core) store(name, mimeType string, data []byte, fill func(*Result)) (*Result, error) {
	obj := c.blobs.Put([][]byte{data}, mimeType)
	m, err := meta.Compute(name, obj.Reader())
	if err != nil {
		return nil, fmt.Errorf("checksum: %w", err)
	}
	if !m.IsOk() {
		return nil, fmt.Errorf("checksum: incomplete metadata for %q", name)
	}
	h := c.blobs.Handle(obj)
	r := &Result{
		ID:       h.ID(),
		Handle:   h,
		Size:     obj.Size(),
		MimeType: mimeType,
		FileName: name,
		Meta:     m,
		store:    c.blobs,
	}
	fill(r)
	return r, nil
}

// Save writes the result into dir under its file name and re-hashes the written file.
// A file that fails the check is removed.
func (c *Core) Save(r *Result, dir string) (string, error) {
	obj, err := r.Object()
	if err != nil {
		return "", fmt.Errorf("result %s: %w", r.ID, err)
	}
	path, err := storage.SaveObject(dir, r.FileName, obj)
	if err != nil {
		return "", err
	}
	if err := validateSaved(path, r.Meta); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Log.WithField("scope", "core save").Warnf("remove %s: %v", path, rmErr)
		}
		return "", err
	}
	return path, nil
}

func validateSaved(path string, m meta.Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", path, err)
	}
	defer f.Close()
	ok, err := m.Validate(f)
	if err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s (want %s)", ErrChecksumMismatch, path, m.ChecksumHex())
	}
	return nil
}
