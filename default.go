package emailauth

import "sync/atomic"

// The process-wide default service follows a single-assignment lifecycle:
// SetDefault is called once at startup, before traffic, and never again.
// Swapping services while requests are in flight is not supported.
var defaultService atomic.Pointer[Service]

// SetDefault installs the process-wide default Service. It panics when called
// twice or with nil; construct a new process to change the default.
func SetDefault(s *Service) {
	if s == nil {
		panic("emailauth: SetDefault called with nil service")
	}
	if !defaultService.CompareAndSwap(nil, s) {
		panic("emailauth: default service already set")
	}
}

// Default returns the process-wide default Service, or nil before SetDefault.
func Default() *Service {
	return defaultService.Load()
}
