package main

import (
	"net/http"
	"sync/atomic"
)

// handlerSwapper is an http.Handler whose target can be replaced while
// serving. A config reload swaps in a panel built from the new config.
type handlerSwapper struct {
	handler atomic.Pointer[http.Handler]
}

func newHandlerSwapper(h http.Handler) *handlerSwapper {
	s := &handlerSwapper{}
	s.Swap(h)
	return s
}

func (s *handlerSwapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*s.handler.Load()).ServeHTTP(w, r)
}

// Swap replaces the underlying handler.
func (s *handlerSwapper) Swap(h http.Handler) {
	s.handler.Store(&h)
}
