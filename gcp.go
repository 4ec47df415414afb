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
	"sort"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// GCP is a ground control point: a known correspondence between an
// image location and a geographic location.
type GCP struct {
	Line, Sample float64
	Longitude    float64 // degrees
	Latitude     float64 // degrees
	Height       float64 // m
}

// GroundControlGrid holds ground control points arranged on a
// rectangular grid of lines and samples. The grid does not need to be
// evenly spaced, but both axes must be strictly increasing.
// A GroundControlGrid is immutable after it is created.
type GroundControlGrid struct {
	lines, samples []float64

	// lon, lat and height have shape [len(lines), len(samples)].
	lon, lat, height *sparse.DenseArray
}

// NewGroundControlGrid creates a grid from the given points, which can
// be in any order but must cover every (line, sample) combination
// exactly once.
func NewGroundControlGrid(points []GCP) (*GroundControlGrid, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("xsar: ground control grid has no points")
	}
	lineIndex := make(map[float64]int)
	sampleIndex := make(map[float64]int)
	for _, p := range points {
		lineIndex[p.Line] = 0
		sampleIndex[p.Sample] = 0
	}
	g := &GroundControlGrid{
		lines:   sortedKeys(lineIndex),
		samples: sortedKeys(sampleIndex),
	}
	nl, ns := len(g.lines), len(g.samples)
	if nl*ns != len(points) {
		return nil, fmt.Errorf("xsar: %d ground control points do not form a "+
			"rectangular grid of %d lines and %d samples", len(points), nl, ns)
	}
	for i, l := range g.lines {
		lineIndex[l] = i
	}
	for j, s := range g.samples {
		sampleIndex[s] = j
	}
	g.lon = sparse.ZerosDense(nl, ns)
	g.lat = sparse.ZerosDense(nl, ns)
	g.height = sparse.ZerosDense(nl, ns)
	seen := make([]bool, nl*ns)
	for _, p := range points {
		i, j := lineIndex[p.Line], sampleIndex[p.Sample]
		if seen[i*ns+j] {
			return nil, fmt.Errorf("xsar: duplicate ground control point at line %g, sample %g",
				p.Line, p.Sample)
		}
		seen[i*ns+j] = true
		g.lon.Set(p.Longitude, i, j)
		g.lat.Set(p.Latitude, i, j)
		g.height.Set(p.Height, i, j)
	}
	return g, nil
}

func sortedKeys(m map[float64]int) []float64 {
	o := make([]float64, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Float64s(o)
	return o
}

// Lines returns the line axis of the grid.
func (g *GroundControlGrid) Lines() []float64 { return append([]float64{}, g.lines...) }

// Samples returns the sample axis of the grid.
func (g *GroundControlGrid) Samples() []float64 { return append([]float64{}, g.samples...) }

// Longitude returns a copy of the grid longitudes with shape [lines, samples].
func (g *GroundControlGrid) Longitude() *sparse.DenseArray { return g.lon.Copy() }

// Latitude returns a copy of the grid latitudes with shape [lines, samples].
func (g *GroundControlGrid) Latitude() *sparse.DenseArray { return g.lat.Copy() }

// Height returns a copy of the grid heights with shape [lines, samples].
func (g *GroundControlGrid) Height() *sparse.DenseArray { return g.height.Copy() }

// Points returns the grid as a list of points in line-major order.
func (g *GroundControlGrid) Points() []GCP {
	o := make([]GCP, 0, len(g.lon.Elements))
	for i, l := range g.lines {
		for j, s := range g.samples {
			o = append(o, GCP{
				Line:      l,
				Sample:    s,
				Longitude: g.lon.Get(i, j),
				Latitude:  g.lat.Get(i, j),
				Height:    g.height.Get(i, j),
			})
		}
	}
	return o
}

// CrossAntimeridian returns whether the longitudes of the grid span
// more than 180 degrees, which means the footprint crosses the
// antimeridian.
func (g *GroundControlGrid) CrossAntimeridian() bool {
	return floats.Max(g.lon.Elements)-floats.Min(g.lon.Elements) > 180
}

// corners returns the grid points at the four image corners, in the
// order (first line, first sample), (first line, last sample),
// (last line, last sample), (last line, first sample).
func (g *GroundControlGrid) corners() []GCP {
	nl, ns := len(g.lines)-1, len(g.samples)-1
	idx := [][2]int{{0, 0}, {0, ns}, {nl, ns}, {nl, 0}}
	o := make([]GCP, len(idx))
	for k, ij := range idx {
		i, j := ij[0], ij[1]
		o[k] = GCP{
			Line:      g.lines[i],
			Sample:    g.samples[j],
			Longitude: g.lon.Get(i, j),
			Latitude:  g.lat.Get(i, j),
			Height:    g.height.Get(i, j),
		}
	}
	return o
}
