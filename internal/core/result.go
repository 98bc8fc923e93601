package core

import (
	"fmt"
	"sync"

	"github.com/1F47E/go-padreel/internal/blob"
	"github.com/1F47E/go-padreel/internal/meta"
	cfg "github.com/1F47E/go-padreel/pkg/config"
)

const mockLabel = " (mock)"

// Result owns its blob handle until Dispose.
type Result struct {
	ID        string
	Handle    blob.Handle
	Size      int64
	MimeType  string
	FileName  string
	Padded    bool
	Overshoot int64
	Mock      bool
	// Advisory is non-nil when the encoder overshot the target.
	Advisory error
	Meta     meta.Metadata

	store     *blob.Store
	once      sync.Once
	onDispose func(*Result)
}

// Label is the type shown to users; mock results say so.
func (r *Result) Label() string {
	if r.Mock {
		return r.MimeType + mockLabel
	}
	return r.MimeType
}

// SizeMB formats the size with two decimals.
func (r *Result) SizeMB() string {
	return fmt.Sprintf("%.2f", float64(r.Size)/cfg.MB)
}

func (r *Result) Object() (*blob.Object, error) {
	return r.store.Open(r.Handle)
}

// Dispose releases the handle. Safe to call more than once.
func (r *Result) Dispose() {
	r.once.Do(func() {
		r.store.Release(r.Handle)
		if r.onDispose != nil {
			r.onDispose(r)
		}
	})
}
