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

	"github.com/ctessum/geom/proj"
	"gonum.org/v1/gonum/mat"
)

// ApproxTransform is an affine map from image coordinates to
// geographic coordinates:
//
//	lon = A*line + B*sample + C
//	lat = D*line + E*sample + F
//
// Over a whole SAR scene it is biased by up to several hundred meters,
// so it is only used directly when speed matters more than accuracy.
type ApproxTransform struct {
	A, B, C, D, E, F float64
}

// FitApproxTransform fits an ApproxTransform to the given
// correspondences by least squares.
func FitApproxTransform(lines, samples, lons, lats []float64) (ApproxTransform, error) {
	n := len(lines)
	if len(samples) != n || len(lons) != n || len(lats) != n {
		return ApproxTransform{}, fmt.Errorf("xsar: affine fit input lengths differ: "+
			"%d, %d, %d, %d", n, len(samples), len(lons), len(lats))
	}
	if n < 3 {
		return ApproxTransform{}, fmt.Errorf("xsar: affine fit needs at least 3 points, got %d", n)
	}
	a := mat.NewDense(n, 3, nil)
	b := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, lines[i])
		a.Set(i, 1, samples[i])
		a.Set(i, 2, 1)
		b.Set(i, 0, lons[i])
		b.Set(i, 1, lats[i])
	}
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return ApproxTransform{}, fmt.Errorf("xsar: fitting affine transform: %v", err)
	}
	return ApproxTransform{
		A: x.At(0, 0), B: x.At(1, 0), C: x.At(2, 0),
		D: x.At(0, 1), E: x.At(1, 1), F: x.At(2, 1),
	}, nil
}

// Forward maps (x, y) through the transform.
func (t ApproxTransform) Forward(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// Invert returns the inverse transform. It fails if t is singular.
func (t ApproxTransform) Invert() (ApproxTransform, error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return ApproxTransform{}, fmt.Errorf("xsar: affine transform %v is not invertible", t)
	}
	o := ApproxTransform{
		A: t.E / det, B: -t.B / det,
		D: -t.D / det, E: t.A / det,
	}
	o.C = -(o.A*t.C + o.B*t.F)
	o.F = -(o.D*t.C + o.E*t.F)
	return o, nil
}

// GDAL returns the coefficients in GDAL geotransform order.
func (t ApproxTransform) GDAL() [6]float64 {
	return [6]float64{t.C, t.A, t.B, t.F, t.D, t.E}
}

// Transformer returns t as a geometry transformer.
func (t ApproxTransform) Transformer() proj.Transformer {
	return func(x, y float64) (float64, float64, error) {
		xx, yy := t.Forward(x, y)
		return xx, yy, nil
	}
}
