// Package util holds small generic slice helpers shared across the
// server and presence packages.
package util

// MapN maps ts through fn, dropping any element fn errors on. Used where a
// per-element decode step can fail for individual entries without failing
// the whole batch (e.g. decoding a roster of hex-encoded actor IDs).
func MapN[T, V any](ts []T, fn func(T) (V, error)) []V {
	result := make([]V, len(ts))
	i := 0
	for _, t := range ts {
		if v, err := fn(t); err == nil {
			result[i] = v
			i++
		}
	}
	return result[:i]
}

func Filter[T any](ts []T, fn func(T) bool) []T {
	result := make([]T, 0, len(ts))
	for _, v := range ts {
		if fn(v) {
			result = append(result, v)
		}
	}
	return result
}

func Reduce[T, V any](ts []T, acc func(t T, v V) V, base V) V {
	for _, v := range ts {
		base = acc(v, base)
	}
	return base
}
