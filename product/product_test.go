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

package product

import (
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/xsar"
)

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func TestTableLutFunc(t *testing.T) {
	tbl := Table{
		Lines:   []float64{0, 10},
		Samples: []float64{0, 10, 20},
		Values:  [][]float64{{0, 10, 20}, {100, 110, 120}},
	}
	f, err := tbl.LutFunc()
	if err != nil {
		t.Fatal(err)
	}
	r, err := f([]float64{0, 5, 10, 50}, []float64{-5, 15})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 15, 50, 65, 100, 115, 100, 115}
	for i, w := range want {
		if absDifferent(r.Elements[i], w, 1e-10) {
			t.Errorf("element %d: have %g, want %g", i, r.Elements[i], w)
		}
	}

	bad := Table{Lines: []float64{0, 1}, Samples: []float64{0, 1}, Values: [][]float64{{1, 2}}}
	if _, err := bad.LutFunc(); err == nil {
		t.Error("expected an error for a ragged table")
	}
}

func TestReadResampled(t *testing.T) {
	full := sparse.ZerosDense(4, 6)
	for i := range full.Elements {
		full.Elements[i] = float64(i)
	}
	src := func(_ context.Context, w xsar.Window) (*sparse.DenseArray, error) {
		o := sparse.ZerosDense(w.Lines, w.Samples)
		for i := 0; i < w.Lines; i++ {
			for j := 0; j < w.Samples; j++ {
				o.Set(full.Get(w.Line+i, w.Sample+j), i, j)
			}
		}
		return o, nil
	}
	ctx := context.Background()
	res := &xsar.Resolution{Line: 2, Sample: 3}

	avg, err := readResampled(ctx, src, 4, 6, xsar.Window{Lines: 2, Samples: 2}, res, xsar.ResamplingAverage)
	if err != nil {
		t.Fatal(err)
	}
	// Block [0:2, 0:3] holds 0 1 2 6 7 8.
	want := []float64{4, 7, 16, 19}
	for i, w := range want {
		if absDifferent(avg.Elements[i], w, 1e-10) {
			t.Errorf("average %d: have %g, want %g", i, avg.Elements[i], w)
		}
	}

	near, err := readResampled(ctx, src, 4, 6, xsar.Window{Line: 1, Sample: 1, Lines: 1, Samples: 1}, res, xsar.ResamplingNearest)
	if err != nil {
		t.Fatal(err)
	}
	if near.Elements[0] != full.Get(3, 4) {
		t.Errorf("nearest: have %g, want %g", near.Elements[0], full.Get(3, 4))
	}

	if _, err := readResampled(ctx, src, 4, 6, xsar.Window{Lines: 3, Samples: 2}, res, xsar.ResamplingAverage); err == nil {
		t.Error("expected an error for a window outside of the raster")
	}
}

func TestMemoryProvider(t *testing.T) {
	m, err := Synthetic(DefaultSyntheticConfig())
	if err != nil {
		t.Fatal(err)
	}
	var _ xsar.MetadataProvider = m

	g, err := m.GroundControlGrid()
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Lines()) != 5 || len(g.Samples()) != 7 {
		t.Errorf("grid shape: have %dx%d, want 5x7", len(g.Lines()), len(g.Samples()))
	}
	if !m.HasLut("calibration-VV", "sigma0_lut") {
		t.Error("missing sigma0_lut")
	}
	if m.HasLut("annotation-VV", "elevation") {
		t.Error("elevation should not be in the synthetic product")
	}
	if _, err := m.Lut("annotation-VV", "elevation"); err == nil {
		t.Error("expected an error for a missing table")
	}
	dn, err := m.ReadDigitalNumber(context.Background(), "VH", xsar.Window{Line: 3, Sample: 4, Lines: 2, Samples: 2}, nil, xsar.ResamplingAverage)
	if err != nil {
		t.Fatal(err)
	}
	if dn.Get(1, 1) != SyntheticDN(4, 5, 1) {
		t.Errorf("digital number: have %g, want %g", dn.Get(1, 1), SyntheticDN(4, 5, 1))
	}
	if _, err := m.ReadDigitalNumber(context.Background(), "HH", xsar.Window{Lines: 1, Samples: 1}, nil, xsar.ResamplingAverage); err == nil {
		t.Error("expected an error for a missing polarization")
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "xsar_product")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	for _, ext := range []string{".toml", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			c := DefaultSyntheticConfig()
			c.Complex = ext == ".yaml"
			m, err := Synthetic(c)
			if err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(dir, "product"+ext)
			if err := m.WriteDescriptor(path); err != nil {
				t.Fatal(err)
			}
			p, err := Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer p.Close()

			if p.Name() != m.Name() {
				t.Errorf("name: have %s, want %s", p.Name(), m.Name())
			}
			if !p.Manifest().StartDate.Equal(m.Manifest().StartDate) {
				t.Errorf("start date: have %v, want %v", p.Manifest().StartDate, m.Manifest().StartDate)
			}
			if len(p.GCPs) != len(m.GCPs) {
				t.Fatalf("gcps: have %d, want %d", len(p.GCPs), len(m.GCPs))
			}
			for i, g := range p.GCPs {
				if g != m.GCPs[i] {
					t.Errorf("gcp %d: have %+v, want %+v", i, g, m.GCPs[i])
				}
			}
			if !p.HasLut("noise-VH", "noise_lut_range") {
				t.Error("missing noise_lut_range")
			}
			if p.ComplexDigitalNumber() != c.Complex {
				t.Errorf("complex: have %v, want %v", p.ComplexDigitalNumber(), c.Complex)
			}

			w := xsar.Window{Line: 2, Sample: 3, Lines: 5, Samples: 7}
			for pi, pol := range c.Pols {
				dn, err := p.ReadDigitalNumber(context.Background(), pol, w, nil, xsar.ResamplingAverage)
				if err != nil {
					t.Fatal(err)
				}
				for i := 0; i < w.Lines; i++ {
					for j := 0; j < w.Samples; j++ {
						want := SyntheticDN(w.Line+i, w.Sample+j, pi)
						if have := dn.Get(i, j); absDifferent(have, want, 1e-6) {
							t.Errorf("%s (%d, %d): have %g, want %g", pol, i, j, have, want)
						}
					}
				}
			}

			res := &xsar.Resolution{Line: 2, Sample: 2}
			dn, err := p.ReadDigitalNumber(context.Background(), "VV", xsar.Window{Lines: 1, Samples: 1}, res, xsar.ResamplingAverage)
			if err != nil {
				t.Fatal(err)
			}
			want := (SyntheticDN(0, 0, 0) + SyntheticDN(0, 1, 0) + SyntheticDN(1, 0, 0) + SyntheticDN(1, 1, 0)) / 4
			if absDifferent(dn.Elements[0], want, 1e-6) {
				t.Errorf("resampled: have %g, want %g", dn.Elements[0], want)
			}
		})
	}
}

func TestLoadDescriptorErrors(t *testing.T) {
	if _, err := LoadDescriptor("product.json"); err == nil {
		t.Error("expected an error for a missing file")
	}
	f, err := ioutil.TempFile("", "xsar_descriptor*.json")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	defer os.Remove(f.Name())
	if _, err := LoadDescriptor(f.Name()); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}
