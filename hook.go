package fieldwire

import "sync"

var (
	hooksMu sync.RWMutex
	hooks   = make(map[string]Hook)
)

// RegisterHook makes h available to the with, with_decode and with_encode
// tag options under name. Registering a name again replaces the hook for
// types planned afterwards.
func RegisterHook(name string, h Hook) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks[name] = h
}

// LookupHook returns the hook registered under name.
func LookupHook(name string) (Hook, bool) {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	h, ok := hooks[name]
	return h, ok
}
