package utils

// Ptr returns a pointer to v.
//
// Example:
//
//	temperature := utils.Ptr(float32(0.2))
func Ptr[T any](v T) *T {
	return &v
}
