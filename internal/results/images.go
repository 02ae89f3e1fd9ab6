package results

import (
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// ImageHandle owns fetched evidence bytes until released. Bytes and Release
// may be called from different goroutines.
type ImageHandle struct {
	registry    *ImageRegistry
	kind        string
	contentType string

	mu       sync.Mutex
	data     []byte
	released bool
}

// Kind is the evidence kind, face or card.
func (h *ImageHandle) Kind() string { return h.kind }

// ContentType is the sniffed MIME type.
func (h *ImageHandle) ContentType() string { return h.contentType }

// Bytes returns the image payload, or nil once released.
func (h *ImageHandle) Bytes() []byte {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

// Release frees the payload. Releasing twice is a no-op.
func (h *ImageHandle) Release() {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.data = nil
	h.mu.Unlock()
	h.registry.forget()
}

// ImageRegistry counts live image handles so leaks across editor sessions
// are observable.
type ImageRegistry struct {
	mu   sync.Mutex
	live int
}

// Acquire wraps data in a new handle.
func (r *ImageRegistry) Acquire(kind string, data []byte) *ImageHandle {
	r.mu.Lock()
	r.live++
	r.mu.Unlock()
	return &ImageHandle{
		registry:    r,
		kind:        kind,
		contentType: mimetype.Detect(data).String(),
		data:        data,
	}
}

// Live returns the number of unreleased handles.
func (r *ImageRegistry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *ImageRegistry) forget() {
	r.mu.Lock()
	r.live--
	r.mu.Unlock()
}
