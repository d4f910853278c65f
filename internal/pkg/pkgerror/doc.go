// Package pkgerror carries errors from the store and usecase layers to the
// HTTP edge. An *Error has a type (validation, business, server) and a code
// that the router maps to a status; ErrNotFound is the store sentinel.
package pkgerror
