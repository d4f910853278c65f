package pkguid

import "github.com/google/uuid"

// UUID produces time-ordered UUIDv7 strings, falling back to a random v4 if
// the clock based variant cannot be built.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (u *UUID) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
