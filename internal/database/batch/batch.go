// Package batch splits id lists for IN queries. SQLite caps bound variables per
// statement (32766 by default), so lookups over a whole store go in slices.
package batch

// Size is the number of ids bound per statement.
const Size = 500

// Each calls fn with consecutive slices of items, at most size long, and stops
// at the first error.
func Each[T any](items []T, size int, fn func(chunk []T) error) error {
	if size <= 0 {
		size = Size
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}
