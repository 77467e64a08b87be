// Package apperr defines the error taxonomy shared by the quote service, the
// watch protocol and the HTTP endpoints.
//
// Every failure that reaches a client is an *Error carrying a Kind. Kinds map
// to HTTP status codes and render as {"error":{"<Kind>":"<message>"}}.
//
// A failed poll cycle is wrapped once in a *Shared and the same pointer is
// broadcast to every subscriber of that cycle.
package apperr
