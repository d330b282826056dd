package imageload

import (
	"context"
	"sync"
)

// VisibilityObserver notifies once when a logical viewport-visibility
// predicate becomes true for an anchor. It abstracts the browser's
// IntersectionObserver; a UI toolkit supplies its own implementation and
// tests use SignalObserver.
type VisibilityObserver interface {
	// Observe registers the callback for the anchor. The returned
	// cancel releases the registration; implementations must tolerate
	// cancel after the callback fired.
	Observe(anchor string, callback func()) (cancel func())
}

// LazyLoader defers image loads until their anchor becomes visible.
// Each registration triggers at most one load and is released
// afterwards, so no observer outlives its consumer.
type LazyLoader struct {
	loader *Loader
	obs    VisibilityObserver

	mu     sync.Mutex
	active map[*registration]struct{}
}

type registration struct {
	once   sync.Once
	cancel func()
}

// NewLazyLoader creates a lazy loader on top of an image loader.
func NewLazyLoader(loader *Loader, obs VisibilityObserver) *LazyLoader {
	return &LazyLoader{
		loader: loader,
		obs:    obs,
		active: make(map[*registration]struct{}),
	}
}

// Register defers loading url until anchor becomes visible. The load
// happens once; onLoaded receives its outcome. The returned cancel
// releases the registration early (element torn down before visible).
func (z *LazyLoader) Register(ctx context.Context, anchor, url string, opts Options, onLoaded func(Result, error)) (cancel func()) {
	reg := &registration{}

	z.mu.Lock()
	z.active[reg] = struct{}{}
	z.mu.Unlock()

	reg.cancel = z.obs.Observe(anchor, func() {
		reg.once.Do(func() {
			z.unregister(reg)
			r, err := z.loader.LoadImage(ctx, url, opts)
			if onLoaded != nil {
				onLoaded(r, err)
			}
		})
	})

	return func() {
		reg.once.Do(func() {
			z.unregister(reg)
		})
	}
}

// ActiveRegistrations reports how many registrations are still waiting
// for visibility. Zero after teardown means no dangling observers.
func (z *LazyLoader) ActiveRegistrations() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.active)
}

// Close cancels every outstanding registration.
func (z *LazyLoader) Close() {
	z.mu.Lock()
	regs := make([]*registration, 0, len(z.active))
	for reg := range z.active {
		regs = append(regs, reg)
	}
	z.mu.Unlock()

	for _, reg := range regs {
		reg.once.Do(func() {
			z.unregister(reg)
		})
	}
}

func (z *LazyLoader) unregister(reg *registration) {
	z.mu.Lock()
	delete(z.active, reg)
	z.mu.Unlock()
	if reg.cancel != nil {
		reg.cancel()
	}
}

// SignalObserver is a VisibilityObserver driven by explicit MarkVisible
// calls. It backs tests and headless targets.
type SignalObserver struct {
	mu        sync.Mutex
	callbacks map[string][]*signalEntry
}

type signalEntry struct {
	callback func()
	dead     bool
}

// NewSignalObserver creates an empty observer.
func NewSignalObserver() *SignalObserver {
	return &SignalObserver{callbacks: make(map[string][]*signalEntry)}
}

// Observe registers a callback for the anchor.
func (s *SignalObserver) Observe(anchor string, callback func()) (cancel func()) {
	entry := &signalEntry{callback: callback}
	s.mu.Lock()
	s.callbacks[anchor] = append(s.callbacks[anchor], entry)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		entry.dead = true
		s.mu.Unlock()
	}
}

// MarkVisible fires every live callback registered for the anchor.
func (s *SignalObserver) MarkVisible(anchor string) {
	s.mu.Lock()
	entries := s.callbacks[anchor]
	delete(s.callbacks, anchor)
	s.mu.Unlock()

	for _, e := range entries {
		if !e.dead {
			e.callback()
		}
	}
}
