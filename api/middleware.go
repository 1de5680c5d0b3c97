// Package api wires HTTP routing, authentication, and the request
// coordinator into the object store's handler set.
package api

import "net/http"

// MiddlewareFunc wraps a handler with cross-cutting behavior, the same
// decorator shape the request coordinator's "auth -> transaction scope ->
// handler" pipeline is built from.
type MiddlewareFunc func(http.HandlerFunc) http.HandlerFunc

// Chain applies middlewares to handler in order, so Chain(h, a, b)(w, r)
// runs a(b(h)).
func Chain(handler http.HandlerFunc, middlewares ...MiddlewareFunc) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
