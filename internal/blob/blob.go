// Package blob keeps generated results in memory behind URL-like handles until they
// are released.
package blob

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/1F47E/go-padreel/internal/metrics"
	"github.com/1F47E/go-padreel/pkg/logger"
)

const handlePrefix = "blob:padreel/"

var ErrNotFound = errors.New("blob: handle not found")

// Handle is the URL-like reference callers pass around instead of the bytes.
type Handle string

func (h Handle) String() string { return string(h) }

// ID is the uuid part of the handle.
func (h Handle) ID() string { return strings.TrimPrefix(string(h), handlePrefix) }

// Object is immutable once stored. Parts are kept as given, not concatenated.
type Object struct {
	parts    [][]byte
	size     int64
	mimeType string
}

func (o *Object) Size() int64 { return o.size }

func (o *Object) MimeType() string { return o.mimeType }

func (o *Object) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, p := range o.parts {
		n, err := w.Write(p)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Reader streams the object without copying it.
func (o *Object) Reader() io.Reader {
	readers := make([]io.Reader, len(o.parts))
	for i, p := range o.parts {
		readers[i] = bytes.NewReader(p)
	}
	return io.MultiReader(readers...)
}

type Store struct {
	mu      sync.Mutex
	objects map[Handle]*Object
}

func NewStore() *Store {
	return &Store{objects: make(map[Handle]*Object)}
}

// Put wraps parts into an object. The store takes ownership of the slices.
func (s *Store) Put(parts [][]byte, mimeType string) *Object {
	obj := &Object{mimeType: mimeType}
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		obj.parts = append(obj.parts, p)
		obj.size += int64(len(p))
	}
	return obj
}

// Handle registers obj and returns a fresh handle for it.
func (s *Store) Handle(obj *Object) Handle {
	h := Handle(handlePrefix + uuid.NewString())
	s.mu.Lock()
	s.objects[h] = obj
	s.mu.Unlock()
	metrics.LiveBlobs.Inc()
	logger.Log.WithField("scope", "blob").Debugf("created %s (%d bytes)", h, obj.size)
	return h
}

func (s *Store) Open(h Handle) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[h]
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

// Release drops the handle; it reports whether the handle was live.
func (s *Store) Release(h Handle) bool {
	s.mu.Lock()
	_, ok := s.objects[h]
	delete(s.objects, h)
	s.mu.Unlock()
	if ok {
		metrics.LiveBlobs.Dec()
		logger.Log.WithField("scope", "blob").Debugf("released %s", h)
	}
	return ok
}

// Len is the number of live handles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
