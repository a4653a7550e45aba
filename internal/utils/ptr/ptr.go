// Package ptr returns pointers to values, for optional fields such as
// tri-state query filters and event payloads.
package ptr

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
