// Package pkgconfig reads the service configuration.
//
// Code depends on the Config interface; Viper backs it in production and
// tests use small map based fakes. Missing keys yield zero values so callers
// apply their own defaults.
package pkgconfig
