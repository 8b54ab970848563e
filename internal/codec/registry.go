package codec

import (
	"sort"
	"sync"

	"github.com/zsiec/playcore/internal/media"
)

// Registry maps codecs to backend constructors.
type Registry struct {
	mu       sync.RWMutex
	registry map[media.Codec]func() Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{registry: make(map[media.Codec]func() Backend)}
}

// DefaultRegistry returns a registry holding the built-in PCM and raw video
// backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterDefaults()
	return r
}

// RegisterDefaults registers all built-in backends
func (r *Registry) RegisterDefaults() {
	for _, c := range []media.Codec{media.CodecPCMS16LE, media.CodecPCMS16BE, media.CodecPCMF32LE} {
		r.Register(c, func() Backend { return &pcmBackend{} })
	}
	r.Register(media.CodecRawVideo, func() Backend { return &rawVideoBackend{} })
}

// Register adds or replaces the backend for a codec.
func (r *Registry) Register(c media.Codec, creator func() Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry[c] = creator
}

// Unregister removes the backend for a codec.
func (r *Registry) Unregister(c media.Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.registry, c)
}

// Create returns a fresh backend for c, or false when none is registered.
func (r *Registry) Create(c media.Codec) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creator, ok := r.registry[c]
	if !ok {
		return nil, false
	}
	return creator(), true
}

// IsSupported checks if a codec has a registered backend.
func (r *Registry) IsSupported(c media.Codec) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.registry[c]
	return ok
}

// SupportedCodecs returns the registered codecs in enum order.
func (r *Registry) SupportedCodecs() []media.Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codecs := make([]media.Codec, 0, len(r.registry))
	for c := range r.registry {
		codecs = append(codecs, c)
	}
	sort.Slice(codecs, func(i, j int) bool { return codecs[i] < codecs[j] })
	return codecs
}
