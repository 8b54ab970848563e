package demux

import (
	"sort"
	"sync"

	"github.com/zsiec/playcore/internal/demux/container"
	"github.com/zsiec/playcore/internal/demux/mkv"
	"github.com/zsiec/playcore/internal/demux/mp4"
)

// Registry maps container formats to parser constructors.
type Registry struct {
	mu       sync.RWMutex
	registry map[ContainerFormat]func() container.Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{registry: make(map[ContainerFormat]func() container.Parser)}
}

// DefaultRegistry returns a registry with the built-in MP4 and Matroska
// parsers. WebM shares the Matroska parser.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterDefaults()
	return r
}

// RegisterDefaults registers all built-in parsers.
func (r *Registry) RegisterDefaults() {
	r.Register(FormatMP4, func() container.Parser { return mp4.NewParser() })
	r.Register(FormatMKV, func() container.Parser { return mkv.NewParser() })
	r.Register(FormatWebM, func() container.Parser { return mkv.NewParser() })
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format ContainerFormat, creator func() container.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry[format] = creator
}

// Unregister removes the parser for a format.
func (r *Registry) Unregister(format ContainerFormat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.registry, format)
}

// Create returns a parser for format, or false when none is registered.
func (r *Registry) Create(format ContainerFormat) (container.Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creator, ok := r.registry[format]
	if !ok {
		return nil, false
	}
	return creator(), true
}

// IsSupported checks if a format has a registered parser.
func (r *Registry) IsSupported(format ContainerFormat) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.registry[format]
	return ok
}

// SupportedFormats lists formats with a registered parser.
func (r *Registry) SupportedFormats() []ContainerFormat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]ContainerFormat, 0, len(r.registry))
	for f := range r.registry {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
