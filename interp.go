/*
Copyright © 2021 the xsar authors.
This file is part of xsar.

xsar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xsar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xsar.  If not, see <http://www.gnu.org/licenses/>.
*/

package xsar

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// RectBilinear is a first-degree interpolating surface over a
// rectangular grid. Points outside of the grid take the value at the
// nearest grid edge.
type RectBilinear struct {
	x, y []float64
	z    *sparse.DenseArray
}

// NewRectBilinear creates a surface with values z, which must have
// shape [len(x), len(y)]. x and y must be strictly increasing.
func NewRectBilinear(x, y []float64, z *sparse.DenseArray) (*RectBilinear, error) {
	if len(z.Shape) != 2 || z.Shape[0] != len(x) || z.Shape[1] != len(y) {
		return nil, fmt.Errorf("xsar: interpolation values have shape %v but axes have lengths %d and %d",
			z.Shape, len(x), len(y))
	}
	if len(x) == 0 || len(y) == 0 {
		return nil, fmt.Errorf("xsar: interpolation axes must not be empty")
	}
	for _, a := range [][]float64{x, y} {
		for i := 1; i < len(a); i++ {
			if !(a[i] > a[i-1]) {
				return nil, fmt.Errorf("xsar: interpolation axis is not strictly increasing at index %d", i)
			}
		}
	}
	return &RectBilinear{x: x, y: y, z: z}, nil
}

// bracket returns the index of the interval that holds v and the
// fractional position of v within it, after clamping v to the axis.
func bracket(a []float64, v float64) (int, float64) {
	n := len(a)
	if n == 1 || v <= a[0] {
		return 0, 0
	}
	if v >= a[n-1] {
		return n - 2, 1
	}
	i := sort.SearchFloat64s(a, v) // a[i-1] < v <= a[i]
	return i - 1, (v - a[i-1]) / (a[i] - a[i-1])
}

// At returns the interpolated value at (x, y).
func (r *RectBilinear) At(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	i, fx := bracket(r.x, x)
	j, fy := bracket(r.y, y)
	i1, j1 := i+1, j+1
	if len(r.x) == 1 {
		i1 = i
	}
	if len(r.y) == 1 {
		j1 = j
	}
	z00 := r.z.Get(i, j)
	z01 := r.z.Get(i, j1)
	z10 := r.z.Get(i1, j)
	z11 := r.z.Get(i1, j1)
	return (1-fx)*((1-fy)*z00+fy*z01) + fx*((1-fy)*z10+fy*z11)
}

// Eval evaluates the surface at the paired points (xs[i], ys[i]).
func (r *RectBilinear) Eval(xs, ys []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("xsar: paired interpolation inputs have lengths %d and %d", len(xs), len(ys))
	}
	o := make([]float64, len(xs))
	for i := range xs {
		o[i] = r.At(xs[i], ys[i])
	}
	return o, nil
}

// Grid evaluates the surface at every combination of xs and ys. The
// result has shape [len(xs), len(ys)].
func (r *RectBilinear) Grid(xs, ys []float64) *sparse.DenseArray {
	o := sparse.ZerosDense(len(xs), len(ys))
	for i, x := range xs {
		for j, y := range ys {
			o.Elements[i*len(ys)+j] = r.At(x, y)
		}
	}
	return o
}
