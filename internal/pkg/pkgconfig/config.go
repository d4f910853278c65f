package pkgconfig

import "io"

// Config is the read-only view of the application configuration.
//
// Getters never fail: a missing key returns the zero value for its type, so
// callers are expected to apply their own defaults.
type Config interface {
	io.Closer

	GetInt(key string) int64
	GetBool(key string) bool
	GetFloat(key string) float64
	GetString(key string) string
	GetBinary(key string) []byte
	GetArray(key string) []string
	GetMap(key string) map[string]string
}
