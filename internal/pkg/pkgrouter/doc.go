// Package pkgrouter is the HTTP layer shared by modules: an httprouter based
// Router whose handlers return (any, error), the JSON envelope and attachment
// writers, and the recover, correlation id, logging and basic auth
// middleware.
package pkgrouter
