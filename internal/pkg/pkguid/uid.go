package pkguid

// StringID generates unique string identifiers, used for correlation and
// event ids.
type StringID interface {
	Generate() string
}

// NumberID generates unique positive int64 identifiers, used for dataset ids.
type NumberID interface {
	Generate() int64
}
