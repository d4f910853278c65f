// Package pkglog sets up the process wide slog JSON logger and attaches the
// request correlation id to every record logged with a request context.
package pkglog
