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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Coords holds coordinates, either (line, sample) image coordinates
// or (longitude, latitude) geographic coordinates. It is one of
// ScalarCoords, SequenceCoords, GridCoords or GeometryCoords.
type Coords interface {
	isCoords()
}

// ScalarCoords is a single location.
type ScalarCoords struct {
	X, Y float64
}

// SequenceCoords is a list of locations (X[i], Y[i]) or, when used
// as grid input, the two axes of a grid.
type SequenceCoords struct {
	X, Y []float64
}

// GridCoords holds coordinates evaluated at every combination of two
// axes. X and Y have shape [len(axis0), len(axis1)]. It is only
// returned, never accepted as input.
type GridCoords struct {
	X, Y *sparse.DenseArray
}

// GeometryCoords holds a geometry whose vertices are coordinates.
type GeometryCoords struct {
	Geom geom.Geom
}

func (ScalarCoords) isCoords()   {}
func (SequenceCoords) isCoords() {}
func (GridCoords) isCoords()     {}
func (GeometryCoords) isCoords() {}

// unwrap moves lon into the longitude frame used internally.
func (m *Metadata) unwrap(lon float64) float64 {
	if m.cross {
		return lon360(lon)
	}
	return lon
}

// wrap moves lon from the internal frame back to [-180, 180).
func (m *Metadata) wrap(lon float64) float64 {
	if m.cross {
		return lon180(lon)
	}
	return lon
}

// interpolators returns the exact longitude and latitude surfaces,
// creating them on the first call.
func (m *Metadata) interpolators() (lon, lat *RectBilinear, err error) {
	m.interpOnce.Do(func() {
		lonGrid := m.grid.Longitude()
		if m.cross {
			for i, v := range lonGrid.Elements {
				lonGrid.Elements[i] = lon360(v)
			}
		}
		m.lonInterp, m.interpErr = NewRectBilinear(m.grid.lines, m.grid.samples, lonGrid)
		if m.interpErr != nil {
			return
		}
		m.latInterp, m.interpErr = NewRectBilinear(m.grid.lines, m.grid.samples, m.grid.Latitude())
	})
	return m.lonInterp, m.latInterp, m.interpErr
}

// lonLatPaired returns the geographic coordinates of the points
// (lines[i], samples[i]).
func (m *Metadata) lonLatPaired(lines, samples []float64, approx bool) (lon, lat []float64, err error) {
	if len(lines) != len(samples) {
		return nil, nil, fmt.Errorf("xsar: lines and samples have different lengths: %d != %d",
			len(lines), len(samples))
	}
	if approx {
		lon = make([]float64, len(lines))
		lat = make([]float64, len(lines))
		for i := range lines {
			lon[i], lat[i] = m.approx.Forward(lines[i], samples[i])
		}
	} else {
		lonI, latI, err := m.interpolators()
		if err != nil {
			return nil, nil, err
		}
		if lon, err = lonI.Eval(lines, samples); err != nil {
			return nil, nil, err
		}
		if lat, err = latI.Eval(lines, samples); err != nil {
			return nil, nil, err
		}
	}
	for i, v := range lon {
		lon[i] = m.wrap(v)
	}
	return lon, lat, nil
}

// lonLatGrid returns the geographic coordinates at every combination
// of lines and samples, as arrays of shape [len(lines), len(samples)].
func (m *Metadata) lonLatGrid(lines, samples []float64, approx bool) (lon, lat *sparse.DenseArray, err error) {
	if approx {
		lon = sparse.ZerosDense(len(lines), len(samples))
		lat = sparse.ZerosDense(len(lines), len(samples))
		for i, l := range lines {
			for j, s := range samples {
				x, y := m.approx.Forward(l, s)
				lon.Set(x, i, j)
				lat.Set(y, i, j)
			}
		}
	} else {
		lonI, latI, err := m.interpolators()
		if err != nil {
			return nil, nil, err
		}
		lon = lonI.Grid(lines, samples)
		lat = latI.Grid(lines, samples)
	}
	for i, v := range lon.Elements {
		lon.Elements[i] = m.wrap(v)
	}
	return lon, lat, nil
}

// lonGrid and latGrid evaluate a single exact surface over a grid.
func (m *Metadata) lonGrid(lines, samples []float64) (*sparse.DenseArray, error) {
	lonI, _, err := m.interpolators()
	if err != nil {
		return nil, err
	}
	o := lonI.Grid(lines, samples)
	for i, v := range o.Elements {
		o.Elements[i] = m.wrap(v)
	}
	return o, nil
}

func (m *Metadata) latGrid(lines, samples []float64) (*sparse.DenseArray, error) {
	_, latI, err := m.interpolators()
	if err != nil {
		return nil, err
	}
	return latI.Grid(lines, samples), nil
}

// lineSampleFromLonLat inverts the geographic mapping. Unless approx
// is true, the approximate inverse is corrected once by the error it
// makes at its own estimate.
func (m *Metadata) lineSampleFromLonLat(lon, lat []float64, approx bool) (lines, samples []float64, err error) {
	if len(lon) != len(lat) {
		return nil, nil, fmt.Errorf("xsar: longitudes and latitudes have different lengths: %d != %d",
			len(lon), len(lat))
	}
	l0 := make([]float64, len(lon))
	s0 := make([]float64, len(lon))
	for i := range lon {
		l0[i], s0[i] = m.approxInv.Forward(m.unwrap(lon[i]), lat[i])
	}
	if approx {
		return l0, s0, nil
	}
	lon1, lat1, err := m.lonLatPaired(l0, s0, false)
	if err != nil {
		return nil, nil, err
	}
	lines = make([]float64, len(lon))
	samples = make([]float64, len(lon))
	for i := range lon1 {
		l1, s1 := m.approxInv.Forward(m.unwrap(lon1[i]), lat1[i])
		lines[i] = l0[i] - (l1 - l0[i])
		samples[i] = s0[i] - (s1 - s0[i])
	}
	return lines, samples, nil
}

// CoordsToLonLat converts image coordinates to geographic coordinates.
// If toGrid is true, in must be SequenceCoords holding a line axis
// and a sample axis, and the result is GridCoords evaluated at every
// combination of them. Otherwise the result has the same kind as in.
// If approx is true the affine transform is used instead of the
// exact interpolation.
func (m *Metadata) CoordsToLonLat(in Coords, toGrid, approx bool) (Coords, error) {
	switch c := in.(type) {
	case ScalarCoords:
		if toGrid {
			return nil, fmt.Errorf("xsar: grid evaluation needs a line axis and a sample axis, not a single point")
		}
		lon, lat, err := m.lonLatPaired([]float64{c.X}, []float64{c.Y}, approx)
		if err != nil {
			return nil, err
		}
		return ScalarCoords{X: lon[0], Y: lat[0]}, nil
	case SequenceCoords:
		if toGrid {
			lon, lat, err := m.lonLatGrid(c.X, c.Y, approx)
			if err != nil {
				return nil, err
			}
			return GridCoords{X: lon, Y: lat}, nil
		}
		lon, lat, err := m.lonLatPaired(c.X, c.Y, approx)
		if err != nil {
			return nil, err
		}
		return SequenceCoords{X: lon, Y: lat}, nil
	case GeometryCoords:
		if toGrid {
			return nil, fmt.Errorf("xsar: grid evaluation is not possible for geometries")
		}
		g, err := c.Geom.Transform(m.forward(approx))
		if err != nil {
			return nil, err
		}
		return GeometryCoords{Geom: g}, nil
	default:
		return nil, fmt.Errorf("xsar: unsupported coordinate input %T", in)
	}
}

// LonLatToCoords converts geographic coordinates to image coordinates.
// The result has the same kind as in.
func (m *Metadata) LonLatToCoords(in Coords, approx bool) (Coords, error) {
	switch c := in.(type) {
	case ScalarCoords:
		l, s, err := m.lineSampleFromLonLat([]float64{c.X}, []float64{c.Y}, approx)
		if err != nil {
			return nil, err
		}
		return ScalarCoords{X: l[0], Y: s[0]}, nil
	case SequenceCoords:
		l, s, err := m.lineSampleFromLonLat(c.X, c.Y, approx)
		if err != nil {
			return nil, err
		}
		return SequenceCoords{X: l, Y: s}, nil
	case GeometryCoords:
		g, err := c.Geom.Transform(m.inverse(approx))
		if err != nil {
			return nil, err
		}
		return GeometryCoords{Geom: g}, nil
	default:
		return nil, fmt.Errorf("xsar: unsupported coordinate input %T", in)
	}
}

func (m *Metadata) forward(approx bool) proj.Transformer {
	return func(line, sample float64) (float64, float64, error) {
		lon, lat, err := m.lonLatPaired([]float64{line}, []float64{sample}, approx)
		if err != nil {
			return 0, 0, err
		}
		return lon[0], lat[0], nil
	}
}

func (m *Metadata) inverse(approx bool) proj.Transformer {
	return func(lon, lat float64) (float64, float64, error) {
		l, s, err := m.lineSampleFromLonLat([]float64{lon}, []float64{lat}, approx)
		if err != nil {
			return 0, 0, err
		}
		return l[0], s[0], nil
	}
}

// Heading returns the platform heading [degrees clockwise from north]
// at the given image locations, computed from the bearing between the
// previous and the next line. The result has shape
// [len(lines), len(samples)] if toGrid is true, or [len(lines)]
// otherwise.
func (m *Metadata) Heading(lines, samples []float64, toGrid, approx bool) (*sparse.DenseArray, error) {
	before := make([]float64, len(lines))
	after := make([]float64, len(lines))
	for i, l := range lines {
		before[i] = l - 1
		after[i] = l + 1
	}
	if toGrid {
		lon1, lat1, err := m.lonLatGrid(before, samples, approx)
		if err != nil {
			return nil, err
		}
		lon2, lat2, err := m.lonLatGrid(after, samples, approx)
		if err != nil {
			return nil, err
		}
		o := sparse.ZerosDense(len(lines), len(samples))
		for i := range o.Elements {
			_, o.Elements[i] = Haversine(lon1.Elements[i], lat1.Elements[i],
				lon2.Elements[i], lat2.Elements[i])
		}
		return o, nil
	}
	lon1, lat1, err := m.lonLatPaired(before, samples, approx)
	if err != nil {
		return nil, err
	}
	lon2, lat2, err := m.lonLatPaired(after, samples, approx)
	if err != nil {
		return nil, err
	}
	o := sparse.ZerosDense(len(lines))
	for i := range o.Elements {
		_, o.Elements[i] = Haversine(lon1[i], lat1[i], lon2[i], lat2[i])
	}
	return o, nil
}
