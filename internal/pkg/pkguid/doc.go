// Package pkguid hides how identifiers are minted behind two small
// interfaces: NumberID for dataset ids (snowflake) and StringID for
// correlation and event ids (UUIDv7).
package pkguid
