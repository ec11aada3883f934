// Package vecmath provides the small set of vector primitives the density
// estimators and local search are written in. Every function returns a new
// slice and leaves its inputs untouched. Paired operations expect slices of
// equal length and panic otherwise, mirroring gonum/floats.
package vecmath

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
)

// Number is any element type Index and Insert can work on.
type Number interface {
	constraints.Integer | constraints.Float
}

func clone(x []float64) []float64 {
	return append([]float64(nil), x...)
}

// AddScalar returns x + c.
func AddScalar(x []float64, c float64) []float64 {
	out := clone(x)
	floats.AddConst(c, out)
	return out
}

// Add returns x + y.
func Add(x, y []float64) []float64 {
	return floats.AddTo(make([]float64, len(x)), x, y)
}

// Sub returns x - y.
func Sub(x, y []float64) []float64 {
	return floats.SubTo(make([]float64, len(x)), x, y)
}

// Mul returns the elementwise product of x and y.
func Mul(x, y []float64) []float64 {
	return floats.MulTo(make([]float64, len(x)), x, y)
}

// Div returns the elementwise quotient x / y.
func Div(x, y []float64) []float64 {
	return floats.DivTo(make([]float64, len(x)), x, y)
}

// Scale returns c * x.
func Scale(x []float64, c float64) []float64 {
	return floats.ScaleTo(make([]float64, len(x)), c, x)
}

// DivScalar returns x / c.
func DivScalar(x []float64, c float64) []float64 {
	return Scale(x, 1/c)
}

// Maximum returns max(x[i], c) for every element.
func Maximum(x []float64, c float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(v, c)
	}
	return out
}

// Clip limits every element to [lo, hi].
func Clip(x []float64, lo, hi float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, lo), hi)
	}
	return out
}

// Log returns the natural log of every element.
func Log(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Log(v)
	}
	return out
}

// Norm returns the Euclidean norm of x.
func Norm(x []float64) float64 {
	return floats.Norm(x, 2)
}

// Sum returns the sum of x; zero for an empty slice.
func Sum(x []float64) float64 {
	return floats.Sum(x)
}

// NormalizeToSumOne returns x divided by its sum. The result is undefined
// (Inf or NaN) when the sum is zero.
func NormalizeToSumOne(x []float64) []float64 {
	return DivScalar(x, Sum(x))
}

// ArgMax returns the index of the largest element; the first one wins ties.
// It panics on an empty slice.
func ArgMax(x []float64) int {
	return floats.MaxIdx(x)
}

// ArgSort returns the stable ascending permutation of x.
func ArgSort(x []float64) []int {
	inds := make([]int, len(x))
	floats.ArgsortStable(clone(x), inds)
	return inds
}

// SearchSorted returns the leftmost index at which value can be inserted
// into the ascending slice sorted while keeping it sorted.
func SearchSorted(sorted []float64, value float64) int {
	return sort.SearchFloat64s(sorted, value)
}

// Index gathers x[idx[0]], x[idx[1]], ...
func Index[T Number](x []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

// Insert returns a copy of x with value placed at position i and the tail
// shifted right by one.
func Insert[T Number](x []T, i int, value T) []T {
	out := make([]T, 0, len(x)+1)
	out = append(out, x[:i]...)
	out = append(out, value)
	return append(out, x[i:]...)
}

// Fill returns a slice of n copies of v.
func Fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
