package clamp

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. When hi < lo, lo wins.
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
