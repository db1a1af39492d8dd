// Package httpmiddleware provides HTTP server middleware: panic recovery,
// CORS, rate limiting, request IDs, and request logging.
package httpmiddleware

import "net/http"

// Middleware is a function that wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// Wrap composes middlewares around h. The first middleware in the list is the
// outermost, so requests traverse the list in declaration order.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
