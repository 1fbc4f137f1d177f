package vector

import (
	"fmt"
	"strings"
	"sync"
)

// Opener opens datasets by URL. Renderers and editors receive one so tests
// can count or redirect opens.
type Opener interface {
	Open(url string, mode AccessMode) (*Vector, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url string, mode AccessMode) (*Vector, error)

func (f OpenerFunc) Open(url string, mode AccessMode) (*Vector, error) { return f(url, mode) }

// FileOpener opens datasets from the file system.
type FileOpener struct{}

func (FileOpener) Open(url string, mode AccessMode) (*Vector, error) { return Open(url, mode) }

// MemoryOpener serves registered in-memory datasets and falls back to
// another opener for everything else.
type MemoryOpener struct {
	mu       sync.Mutex
	datasets map[string]*dataset
	fallback Opener
}

// NewMemoryOpener returns an opener with no registered datasets. A nil
// fallback means non-memory URLs fail.
func NewMemoryOpener(fallback Opener) *MemoryOpener {
	return &MemoryOpener{datasets: make(map[string]*dataset), fallback: fallback}
}

// Add registers v under its URL. Handles opened later share its content.
func (o *MemoryOpener) Add(v *Vector) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.datasets[v.url] = v.ds
}

// Remove forgets the dataset registered under url.
func (o *MemoryOpener) Remove(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.datasets, url)
}

func (o *MemoryOpener) Open(url string, mode AccessMode) (*Vector, error) {
	if !strings.HasPrefix(url, MemoryScheme) {
		if o.fallback == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		return o.fallback.Open(url, mode)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	ds, ok := o.datasets[url]
	if !ok {
		if mode != ReadWrite {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		ds = &dataset{}
		o.datasets[url] = ds
	}
	return &Vector{url: url, mode: mode, format: formatMemory, ds: ds}, nil
}
