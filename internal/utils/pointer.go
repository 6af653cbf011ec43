// Package utils holds small generic helpers shared across packages.
package utils

// Ptr returns a pointer to v, for optional fields like Session.ExpiresAt.
func Ptr[T any](v T) *T {
	return &v
}
