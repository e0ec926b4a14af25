package metered

import (
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// Registry binds decorator instances to one metric.Meter and enforces
// cache-name uniqueness within it. Two instances with the same name (or
// two unnamed instances) would emit indistinguishable series, so the
// second registration fails fast with ErrDuplicateName.
//
// A Registry is safe for concurrent use; its lifecycle is the hosting
// application's (typically one per process, built from the app's
// MeterProvider at startup).
type Registry struct {
	meter metric.Meter

	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry creates a Registry publishing through the given meter.
func NewRegistry(meter metric.Meter) *Registry {
	return &Registry{
		meter: meter,
		names: make(map[string]struct{}),
	}
}

// claim reserves a cache name. The empty name is a valid key: at most one
// unnamed instance may exist per Registry.
func (r *Registry) claim(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; ok {
		if name == "" {
			return fmt.Errorf("%w: a second unnamed cache on this registry", ErrDuplicateName)
		}
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.names[name] = struct{}{}
	return nil
}

// release frees a claimed name so it can be registered again.
func (r *Registry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}
