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

// Package product provides sources of SAR product content for the
// xsar package: products held in memory and products described by a
// TOML or YAML descriptor with netCDF measurement files.
package product

import (
	"context"
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/xsar"
)

// Table is a lookup table defined on a rectangular grid. Values has
// shape [len(Lines)][len(Samples)]. It is evaluated by bilinear
// interpolation.
type Table struct {
	Lines   []float64   `toml:"lines" yaml:"lines"`
	Samples []float64   `toml:"samples" yaml:"samples"`
	Values  [][]float64 `toml:"values" yaml:"values"`
}

// LutFunc returns a function evaluating t.
func (t Table) LutFunc() (xsar.LutFunc, error) {
	if len(t.Values) != len(t.Lines) {
		return nil, fmt.Errorf("product: table has %d rows of values but %d lines", len(t.Values), len(t.Lines))
	}
	z := sparse.ZerosDense(len(t.Lines), len(t.Samples))
	for i, row := range t.Values {
		if len(row) != len(t.Samples) {
			return nil, fmt.Errorf("product: table row %d has %d values but there are %d samples",
				i, len(row), len(t.Samples))
		}
		copy(z.Elements[i*len(t.Samples):], row)
	}
	r, err := xsar.NewRectBilinear(t.Lines, t.Samples, z)
	if err != nil {
		return nil, err
	}
	return func(lines, samples []float64) (*sparse.DenseArray, error) {
		return r.Grid(lines, samples), nil
	}, nil
}

// Memory is a product held in memory.
type Memory struct {
	ProductName string
	Info        xsar.Manifest
	GCPs        []xsar.GCP
	PolFiles    []xsar.PolarizationFiles

	// Tables maps file names to the lookup tables they contain.
	Tables map[string]map[string]Table

	// DN holds the full resolution digital number of each
	// polarization, with shape [NLines, NSamples].
	DN map[string]*sparse.DenseArray

	NLines, NSamples int

	DenoisedPols map[string]bool

	LineSpacing, SampleSpacing float64 // m

	Complex bool
}

// Name implements xsar.MetadataProvider.
func (m *Memory) Name() string { return m.ProductName }

// Manifest implements xsar.MetadataProvider.
func (m *Memory) Manifest() xsar.Manifest { return m.Info }

// GroundControlGrid implements xsar.MetadataProvider.
func (m *Memory) GroundControlGrid() (*xsar.GroundControlGrid, error) {
	return xsar.NewGroundControlGrid(m.GCPs)
}

// Files implements xsar.MetadataProvider.
func (m *Memory) Files() []xsar.PolarizationFiles {
	return append([]xsar.PolarizationFiles{}, m.PolFiles...)
}

// HasLut implements xsar.MetadataProvider.
func (m *Memory) HasLut(file, name string) bool {
	_, ok := m.Tables[file][name]
	return ok
}

// Lut implements xsar.MetadataProvider.
func (m *Memory) Lut(file, name string) (xsar.LutFunc, error) {
	t, ok := m.Tables[file][name]
	if !ok {
		return nil, fmt.Errorf("product: lookup table %s is not in %s", name, file)
	}
	return t.LutFunc()
}

// Denoised implements xsar.MetadataProvider.
func (m *Memory) Denoised() map[string]bool {
	o := make(map[string]bool, len(m.DenoisedPols))
	for k, v := range m.DenoisedPols {
		o[k] = v
	}
	return o
}

// PixelSpacing implements xsar.MetadataProvider.
func (m *Memory) PixelSpacing() (line, sample float64) { return m.LineSpacing, m.SampleSpacing }

// RasterShape implements xsar.MetadataProvider.
func (m *Memory) RasterShape() (lines, samples int) { return m.NLines, m.NSamples }

// ComplexDigitalNumber implements xsar.MetadataProvider.
func (m *Memory) ComplexDigitalNumber() bool { return m.Complex }

// ReadDigitalNumber implements xsar.MetadataProvider.
func (m *Memory) ReadDigitalNumber(ctx context.Context, pol string, w xsar.Window, res *xsar.Resolution, r xsar.Resampling) (*sparse.DenseArray, error) {
	dn, ok := m.DN[pol]
	if !ok {
		return nil, fmt.Errorf("product: no digital number for polarization %s", pol)
	}
	src := func(_ context.Context, fw xsar.Window) (*sparse.DenseArray, error) {
		o := sparse.ZerosDense(fw.Lines, fw.Samples)
		for i := 0; i < fw.Lines; i++ {
			for j := 0; j < fw.Samples; j++ {
				o.Elements[i*fw.Samples+j] = dn.Get(fw.Line+i, fw.Sample+j)
			}
		}
		return o, nil
	}
	return readResampled(ctx, src, m.NLines, m.NSamples, w, res, r)
}
