package mathx

import (
	"cmp"
	"math"
)

// Integer is the set of built in integer types.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Float is the set of built in floating point types.
type Float interface {
	~float32 | ~float64
}

// Number is any built in integer or floating point type.
type Number interface {
	Integer | Float
}

// Clamp returns v clamped to the inclusive range [lo, hi].
// NaN inputs follow the semantics of the built in min and max.
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(lo, v), hi)
}

// ClampRange clamps v to the range spanned by bounds. The bounds may be
// given in any order; with no bounds v is returned unchanged.
func ClampRange[T cmp.Ordered](v T, bounds ...T) T {
	if len(bounds) == 0 {
		return v
	}
	lo, hi := bounds[0], bounds[0]
	for _, b := range bounds[1:] {
		lo = min(lo, b)
		hi = max(hi, b)
	}
	return Clamp(v, lo, hi)
}

// Lerp linearly interpolates from v0 towards v1 by weight t.
//
// The interpolation is computed as t*v1 + (-t*v0 + v0) with two fused
// multiply-adds, so Lerp(v0, v1, 1) == v1 exactly.
func Lerp[F Float](v0, v1, t F) F {
	a, b, w := float64(v0), float64(v1), float64(t)
	return F(math.FMA(w, b, math.FMA(-w, a, a)))
}

// RoundCast rounds f to the nearest whole number (half away from zero) and
// converts the result to T.
func RoundCast[T Number](f float64) T {
	return T(math.Round(f))
}
