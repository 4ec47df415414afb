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

package xsar_test

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
	"github.com/spatialmodel/xsar"
	"github.com/spatialmodel/xsar/product"
)

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func openSynthetic(t *testing.T, c product.SyntheticConfig, opts xsar.Options) *xsar.Dataset {
	t.Helper()
	m, err := product.Synthetic(c)
	if err != nil {
		t.Fatal(err)
	}
	d, err := xsar.Open(m, opts)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func smallChunks() xsar.Options {
	o := xsar.DefaultOptions()
	o.Chunks = xsar.Chunks{Line: 16, Sample: 25}
	return o
}

func compute(t *testing.T, d *xsar.Dataset, name, pol string) [][]float64 {
	t.Helper()
	v, err := d.Variable(name)
	if err != nil {
		t.Fatal(err)
	}
	a, err := v.Pol(pol)
	if err != nil {
		t.Fatal(err)
	}
	r, err := a.Compute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	nl, ns := a.Shape()
	o := make([][]float64, nl)
	for i := range o {
		o[i] = r.Elements[i*ns : (i+1)*ns]
	}
	return o
}

func TestPipeline(t *testing.T) {
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())

	wantStages := []xsar.State{xsar.StateRawLoaded, xsar.StateLutsLoaded, xsar.StateCalibrated,
		xsar.StateNoiseComputed, xsar.StateDenoised, xsar.StateReady}
	if !reflect.DeepEqual(d.Stages(), wantStages) {
		t.Errorf("stages: %v", pretty.Diff(d.Stages(), wantStages))
	}
	if d.State() != xsar.StateReady || d.State().String() != "READY" {
		t.Errorf("state: %v", d.State())
	}

	wantVars := []string{"beta0", "beta0_raw", "digital_number", "gamma0", "gamma0_raw",
		"incidence", "latitude", "longitude", "nebz", "negz", "nesz", "sigma0", "sigma0_raw"}
	if !reflect.DeepEqual(d.VariableNames(), wantVars) {
		t.Errorf("variables: %v", pretty.Diff(d.VariableNames(), wantVars))
	}
	if _, err := d.Variable("sigma0_lut"); err == nil {
		t.Error("lookup tables should not be visible")
	} else if _, ok := err.(xsar.ConfigurationError); !ok {
		t.Errorf("error has type %T, want ConfigurationError", err)
	}
	if _, ok := d.Lut("noise_lut"); !ok {
		t.Error("missing noise_lut")
	}

	for p, pol := range d.Pols {
		dn := compute(t, d, "digital_number", pol)
		raw := compute(t, d, "sigma0_raw", pol)
		nesz := compute(t, d, "nesz", pol)
		sigma0 := compute(t, d, "sigma0", pol)
		for i := range raw {
			for j := range raw[i] {
				wantDN := product.SyntheticDN(i, j, p)
				if dn[i][j] != wantDN {
					t.Fatalf("%s dn (%d, %d): have %g, want %g", pol, i, j, dn[i][j], wantDN)
				}
				wantRaw := wantDN * wantDN / (product.SyntheticSigma0 * product.SyntheticSigma0)
				if absDifferent(raw[i][j], wantRaw, 1e-12) {
					t.Fatalf("%s sigma0_raw (%d, %d): have %g, want %g", pol, i, j, raw[i][j], wantRaw)
				}
				noise := product.SyntheticNoise * (1 + d.Samples[j]/60)
				wantNESZ := noise / (product.SyntheticSigma0 * product.SyntheticSigma0)
				if absDifferent(nesz[i][j], wantNESZ, 1e-12) {
					t.Fatalf("%s nesz (%d, %d): have %g, want %g", pol, i, j, nesz[i][j], wantNESZ)
				}
				if absDifferent(sigma0[i][j], wantRaw-wantNESZ, 1e-12) {
					t.Fatalf("%s sigma0 (%d, %d): have %g, want %g", pol, i, j, sigma0[i][j], wantRaw-wantNESZ)
				}
			}
		}
	}

	inc := compute(t, d, "incidence", "")
	if absDifferent(inc[3][30], 30+15*30.5/60, 1e-10) {
		t.Errorf("incidence: have %g, want %g", inc[3][30], 30+15*30.5/60)
	}
	lon := compute(t, d, "longitude", "")
	lat := compute(t, d, "latitude", "")
	if absDifferent(lon[10][20], -5+0.6*20.5/60, 1e-10) || absDifferent(lat[10][20], 48-0.4*10.5/40, 1e-10) {
		t.Errorf("coordinates: have (%g, %g)", lon[10][20], lat[10][20])
	}
	start := time.Date(2021, 1, 1, 6, 0, 0, 0, time.UTC)
	if !d.Times[0].Equal(start) {
		t.Errorf("first line time: have %v, want %v", d.Times[0], start)
	}
	if stop := start.Add(25 * time.Second); !d.Times[len(d.Times)-1].Equal(stop) {
		t.Errorf("last line time: have %v, want %v", d.Times[len(d.Times)-1], stop)
	}
	if mid := start.Add(25 * time.Second * 20 / 39); !d.Times[20].Equal(mid) {
		t.Errorf("line 20 time: have %v, want %v", d.Times[20], mid)
	}
}

func TestPipelineLuts(t *testing.T) {
	o := smallChunks()
	o.Luts = true
	d := openSynthetic(t, product.DefaultSyntheticConfig(), o)
	for _, name := range []string{"sigma0_lut", "gamma0_lut", "beta0_lut", "noise_lut", "noise_lut_range", "noise_lut_azi"} {
		if _, err := d.Variable(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	noise := compute(t, d, "noise_lut", "VH")
	if absDifferent(noise[0][59], product.SyntheticNoise*(1+59.5/60), 1e-9) {
		t.Errorf("noise_lut: have %g", noise[0][59])
	}
}

func TestPipelineDenoisedAtSource(t *testing.T) {
	c := product.DefaultSyntheticConfig()
	c.Denoised = map[string]bool{"VV": true, "VH": true}
	d := openSynthetic(t, c, smallChunks())
	raw := compute(t, d, "sigma0_raw", "VV")
	sigma0 := compute(t, d, "sigma0", "VV")
	if !reflect.DeepEqual(raw, sigma0) {
		t.Error("sigma0 should be sigma0_raw when denoised at the source")
	}

	c.Denoised = map[string]bool{"VV": true}
	m, err := product.Synthetic(c)
	if err != nil {
		t.Fatal(err)
	}
	_, err = xsar.Open(m, smallChunks())
	if _, ok := err.(xsar.UnsupportedStateError); !ok {
		t.Errorf("error: have %v (%T), want UnsupportedStateError", err, err)
	}
}

func TestPipelineCustomStages(t *testing.T) {
	m, err := product.Synthetic(product.DefaultSyntheticConfig())
	if err != nil {
		t.Fatal(err)
	}
	meta, err := xsar.NewMetadata(m)
	if err != nil {
		t.Fatal(err)
	}
	d, err := xsar.NewDataset(meta, smallChunks(), xsar.LoadRaw(), xsar.Calibrate(), xsar.Finalize())
	if err != nil {
		t.Fatal(err)
	}
	want := []xsar.State{xsar.StateRawLoaded, xsar.StateReady}
	if !reflect.DeepEqual(d.Stages(), want) {
		t.Errorf("stages: %v", pretty.Diff(d.Stages(), want))
	}
	if _, err := d.Variable("sigma0_raw"); err == nil {
		t.Error("sigma0_raw should not exist without lookup tables")
	}
}

func TestDenoiseClip(t *testing.T) {
	c := product.DefaultSyntheticConfig()
	m, err := product.Synthetic(c)
	if err != nil {
		t.Fatal(err)
	}
	// A noise level larger than the signal.
	for _, pol := range c.Pols {
		tbl := m.Tables["noise-"+pol]["noise_lut_azi"]
		for i := range tbl.Values {
			for j := range tbl.Values[i] {
				tbl.Values[i][j] = 1e6
			}
		}
	}
	for _, clip := range []bool{true, false} {
		o := smallChunks()
		o.ClipDenoised = clip
		d, err := xsar.Open(m, o)
		if err != nil {
			t.Fatal(err)
		}
		sigma0 := compute(t, d, "sigma0", "VV")
		if clip && sigma0[5][5] != 0 {
			t.Errorf("clipped sigma0: have %g, want 0", sigma0[5][5])
		}
		if !clip && !(sigma0[5][5] < 0) {
			t.Errorf("unclipped sigma0: have %g, want a negative value", sigma0[5][5])
		}
	}
}

func TestResolution(t *testing.T) {
	o := smallChunks()
	o.Resolution = &xsar.Resolution{Line: 2, Sample: 3}
	d := openSynthetic(t, product.DefaultSyntheticConfig(), o)
	if len(d.Lines) != 20 || len(d.Samples) != 20 {
		t.Fatalf("shape: [%d %d]", len(d.Lines), len(d.Samples))
	}
	if d.Lines[0] != 1 || d.Samples[1] != 4.5 {
		t.Errorf("coordinates: %g, %g", d.Lines[0], d.Samples[1])
	}
	dn := compute(t, d, "digital_number", "VH")
	var want float64
	for i := 2; i < 4; i++ {
		for j := 3; j < 6; j++ {
			want += product.SyntheticDN(i, j, 1)
		}
	}
	want /= 6
	if absDifferent(dn[1][1], want, 1e-10) {
		t.Errorf("resampled dn: have %g, want %g", dn[1][1], want)
	}

	o.Resolution = &xsar.Resolution{Line: 100, Sample: 1}
	m, _ := product.Synthetic(product.DefaultSyntheticConfig())
	if _, err := xsar.Open(m, o); err == nil {
		t.Error("expected an error for a resolution coarser than the image")
	}
}

func TestIsel(t *testing.T) {
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())
	s, err := d.Isel(xsar.IndexRange{Start: 5, Stop: 30}, xsar.IndexRange{Start: 10, Stop: 50})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Sliced() || d.Sliced() {
		t.Errorf("sliced: have %v and %v", s.Sliced(), d.Sliced())
	}
	if s.Lines[0] != 5.5 || s.Samples[0] != 10.5 || len(s.Times) != 25 {
		t.Errorf("coordinates: %g, %g, %d", s.Lines[0], s.Samples[0], len(s.Times))
	}
	full := compute(t, d, "sigma0", "VH")
	sub := compute(t, s, "sigma0", "VH")
	if sub[3][7] != full[8][17] {
		t.Errorf("sliced value: have %g, want %g", sub[3][7], full[8][17])
	}
	if _, err := d.Isel(xsar.IndexRange{Start: 0, Stop: 41}, xsar.IndexRange{Start: 0, Stop: 1}); err == nil {
		t.Error("expected an error for an out of bounds selection")
	}

	fp, err := s.Footprint()
	if err != nil {
		t.Fatal(err)
	}
	b := fp.Bounds()
	if absDifferent(b.Min.X, -5+0.6*10./60, 1e-9) || absDifferent(b.Max.Y, 48-0.4*5./40, 1e-9) {
		t.Errorf("footprint bounds: %+v", b)
	}
}

func TestDatasetAttrs(t *testing.T) {
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())
	i, err := d.Attrs()
	if err != nil {
		t.Fatal(err)
	}
	if i.Coverage != "44km * 44km (line * sample )" {
		t.Errorf("coverage: %s", i.Coverage)
	}
	if i.Pols != "VV VH" || i.Satellite != "S1A" || i.CrossAntimeridian {
		t.Errorf("attributes: %# v", pretty.Formatter(i))
	}
	if absDifferent(i.PixelLineM, 0.4*math.Pi/180*xsar.EarthRadius/40, 1) {
		t.Errorf("pixel line spacing: %g", i.PixelLineM)
	}
	minimal := d.Meta.Info(xsar.InfoMinimal)
	if minimal.Name != "" || minimal.Swath != "IW" {
		t.Errorf("minimal info: %# v", pretty.Formatter(minimal))
	}
	bb := d.BBoxCoords()
	if bb[0] != [2]float64{0, 0} || bb[2] != [2]float64{40, 60} {
		t.Errorf("bbox: %v", bb)
	}
}

func TestCoordsRoundTrip(t *testing.T) {
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())
	ll, err := d.CoordsToLonLat(xsar.ScalarCoords{X: 10.5, Y: 20.5}, false)
	if err != nil {
		t.Fatal(err)
	}
	p := ll.(xsar.ScalarCoords)
	if absDifferent(p.X, -5+0.6*20.5/60, 1e-10) || absDifferent(p.Y, 48-0.4*10.5/40, 1e-10) {
		t.Errorf("lon/lat: %+v", p)
	}

	exact, err := d.Meta.LonLatToCoords(p, false)
	if err != nil {
		t.Fatal(err)
	}
	e := exact.(xsar.ScalarCoords)
	if absDifferent(e.X, 10.5, 0.5) || absDifferent(e.Y, 20.5, 0.5) {
		t.Errorf("round trip: %+v", e)
	}

	snapped, err := d.LonLatToCoords(xsar.SequenceCoords{X: []float64{p.X, 0}, Y: []float64{p.Y, 0}})
	if err != nil {
		t.Fatal(err)
	}
	s := snapped.(xsar.SequenceCoords)
	if s.X[0] != 10.5 || s.Y[0] != 20.5 {
		t.Errorf("snapped: (%g, %g), want (10.5, 20.5)", s.X[0], s.Y[0])
	}
	if !math.IsNaN(s.X[1]) || !math.IsNaN(s.Y[1]) {
		t.Errorf("point outside of the dataset: (%g, %g), want NaN", s.X[1], s.Y[1])
	}
}

// curvedProduct returns a synthetic product whose geolocation grid
// bends along samples, so that the affine transform is only
// approximate.
func curvedProduct(t *testing.T, lon0 float64) *product.Memory {
	t.Helper()
	c := product.DefaultSyntheticConfig()
	c.Samples = 400
	c.GCPSamples = 21
	c.Lon0 = lon0
	m, err := product.Synthetic(c)
	if err != nil {
		t.Fatal(err)
	}
	for i, g := range m.GCPs {
		u := g.Sample / float64(c.Samples)
		lon := g.Longitude + 0.08*u*u
		if lon >= 180 {
			lon -= 360
		}
		m.GCPs[i].Longitude = lon
		m.GCPs[i].Latitude = g.Latitude + 0.1*u*u
	}
	return m
}

func TestLonLatToCoordsCorrection(t *testing.T) {
	for _, lon0 := range []float64{-5, 179.5} {
		t.Run(fmt.Sprintf("lon0=%g", lon0), func(t *testing.T) {
			d, err := xsar.Open(curvedProduct(t, lon0), smallChunks())
			if err != nil {
				t.Fatal(err)
			}
			if cross := d.Meta.CrossAntimeridian(); cross != (lon0 > 0) {
				t.Errorf("crosses antimeridian: %v", cross)
			}
			var lines, samples []float64
			for l := 5.; l <= 35; l += 7.5 {
				for s := 60.; s <= 340; s += 14 {
					lines = append(lines, l)
					samples = append(samples, s)
				}
			}
			ll, err := d.Meta.CoordsToLonLat(xsar.SequenceCoords{X: lines, Y: samples}, false, false)
			if err != nil {
				t.Fatal(err)
			}
			approx, err := d.Meta.LonLatToCoords(ll, true)
			if err != nil {
				t.Fatal(err)
			}
			exact, err := d.Meta.LonLatToCoords(ll, false)
			if err != nil {
				t.Fatal(err)
			}
			maxError := func(c xsar.Coords) float64 {
				sc := c.(xsar.SequenceCoords)
				var e float64
				for i := range lines {
					e = math.Max(e, math.Hypot(sc.X[i]-lines[i], sc.Y[i]-samples[i]))
				}
				return e
			}
			if e := maxError(approx); e < 3 {
				t.Errorf("affine-only error is %g pixels; the grid should be curved enough to exceed 3", e)
			}
			if e := maxError(exact); e > 0.5 || math.IsNaN(e) {
				t.Errorf("corrected error is %g pixels, want < 0.5", e)
			}
		})
	}
}

func TestCoordsKinds(t *testing.T) {
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())
	lines := []float64{1, 2, 3}

	g, err := d.CoordsToLonLat(xsar.SequenceCoords{X: lines, Y: []float64{4, 5}}, true)
	if err != nil {
		t.Fatal(err)
	}
	grid := g.(xsar.GridCoords)
	if !reflect.DeepEqual(grid.X.Shape, []int{3, 2}) || !reflect.DeepEqual(grid.Y.Shape, []int{3, 2}) {
		t.Errorf("grid shape: %v", grid.X.Shape)
	}
	if _, err := d.CoordsToLonLat(xsar.SequenceCoords{X: lines, Y: []float64{4, 5}}, false); err == nil {
		t.Error("expected an error for paired inputs of different lengths")
	}
	p, err := d.CoordsToLonLat(xsar.SequenceCoords{X: lines, Y: []float64{4, 5, 6}}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.(xsar.SequenceCoords).X) != 3 {
		t.Errorf("paired length: %d", len(p.(xsar.SequenceCoords).X))
	}

	approx, err := d.Meta.CoordsToLonLat(xsar.ScalarCoords{X: 7, Y: 9}, false, true)
	if err != nil {
		t.Fatal(err)
	}
	exact, err := d.Meta.CoordsToLonLat(xsar.ScalarCoords{X: 7, Y: 9}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	a, e := approx.(xsar.ScalarCoords), exact.(xsar.ScalarCoords)
	if absDifferent(a.X, e.X, 1e-9) || absDifferent(a.Y, e.Y, 1e-9) {
		t.Errorf("approx %+v and exact %+v differ on a linear grid", a, e)
	}

	ls := geom.LineString{{X: 0, Y: 0}, {X: 40, Y: 60}}
	lg, err := d.CoordsToLonLat(xsar.GeometryCoords{Geom: ls}, false)
	if err != nil {
		t.Fatal(err)
	}
	lls, ok := lg.(xsar.GeometryCoords).Geom.(geom.LineString)
	if !ok {
		t.Fatalf("geometry type: %T", lg.(xsar.GeometryCoords).Geom)
	}
	if absDifferent(lls[1].X, -4.4, 1e-9) || absDifferent(lls[1].Y, 47.6, 1e-9) {
		t.Errorf("line string end: %+v", lls[1])
	}
	if _, err := d.CoordsToLonLat(xsar.GeometryCoords{Geom: ls}, true); err == nil {
		t.Error("expected an error for a geometry evaluated on a grid")
	}
	if _, err := d.Meta.CoordsToLonLat(xsar.ScalarCoords{X: 7, Y: 9}, true, false); err == nil {
		t.Error("expected an error for a scalar evaluated on a grid")
	}

	poly := geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 60}, {X: 40, Y: 60}, {X: 20, Y: 30}}}
	for _, in := range []geom.Geom{poly, geom.MultiPolygon{poly, poly}} {
		out, err := d.CoordsToLonLat(xsar.GeometryCoords{Geom: in}, false)
		if err != nil {
			t.Fatal(err)
		}
		var p geom.Polygon
		switch g := out.(xsar.GeometryCoords).Geom.(type) {
		case geom.Polygon:
			p = g
		case geom.MultiPolygon:
			if len(g) != 2 {
				t.Fatalf("multipolygon length: %d", len(g))
			}
			p = g[1]
		default:
			t.Fatalf("geometry type: %T", g)
		}
		if reflect.TypeOf(out.(xsar.GeometryCoords).Geom) != reflect.TypeOf(in) {
			t.Errorf("geometry type %T, want %T", out.(xsar.GeometryCoords).Geom, in)
		}
		v := p[0][3]
		if absDifferent(v.X, -4.7, 1e-9) || absDifferent(v.Y, 47.8, 1e-9) {
			t.Errorf("%T vertex: %+v", in, v)
		}
		back, err := d.Meta.LonLatToCoords(out, false)
		if err != nil {
			t.Fatal(err)
		}
		bp := back.(xsar.GeometryCoords).Geom
		if b, ok := bp.(geom.MultiPolygon); ok {
			bp = b[0]
		}
		if w := bp.(geom.Polygon)[0][3]; absDifferent(w.X, 20, 1e-6) || absDifferent(w.Y, 30, 1e-6) {
			t.Errorf("%T round trip vertex: %+v", in, w)
		}
	}

	heading, err := d.Meta.Heading([]float64{10, 20}, []float64{5}, false, false)
	if err == nil {
		t.Errorf("expected an error for paired inputs of different lengths, got %v", heading)
	}
	heading, err = d.Meta.Heading([]float64{10, 20}, []float64{5, 30}, true, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range heading.Elements {
		if absDifferent(math.Abs(h), 180, 1e-9) {
			t.Errorf("heading: have %g, want 180", h)
		}
	}
}

func TestLonLatToCoordsPolygon(t *testing.T) {
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())
	poly := geom.Polygon{{{X: -4.9, Y: 47.7}, {X: -4.0, Y: 47.7}, {X: -4.0, Y: 47.9}, {X: -4.9, Y: 47.9}, {X: -4.9, Y: 47.7}}}
	c, err := d.LonLatToCoords(xsar.GeometryCoords{Geom: poly})
	if err != nil {
		t.Fatal(err)
	}
	g, ok := c.(xsar.GeometryCoords).Geom.(geom.Polygon)
	if !ok {
		t.Fatalf("geometry type: %T", c.(xsar.GeometryCoords).Geom)
	}
	b := g.Bounds()
	want := geom.Bounds{Min: geom.Point{X: 10, Y: 10}, Max: geom.Point{X: 30, Y: 60}}
	if absDifferent(b.Min.X, want.Min.X, 1e-6) || absDifferent(b.Min.Y, want.Min.Y, 1e-6) ||
		absDifferent(b.Max.X, want.Max.X, 1e-6) || absDifferent(b.Max.Y, want.Max.Y, 1e-6) {
		t.Errorf("bounds: %v", pretty.Diff(*b, want))
	}
}

func TestAntimeridian(t *testing.T) {
	c := product.DefaultSyntheticConfig()
	c.Lon0 = 179.7
	d := openSynthetic(t, c, smallChunks())
	if !d.Meta.CrossAntimeridian() {
		t.Fatal("product should cross the antimeridian")
	}
	ll, err := d.CoordsToLonLat(xsar.SequenceCoords{X: []float64{20, 20}, Y: []float64{15, 45}}, false)
	if err != nil {
		t.Fatal(err)
	}
	s := ll.(xsar.SequenceCoords)
	for i, want := range []float64{179.85, -179.85} {
		if absDifferent(s.X[i], want, 1e-9) {
			t.Errorf("longitude %d: have %g, want %g", i, s.X[i], want)
		}
		if s.X[i] < -180 || s.X[i] >= 180 {
			t.Errorf("longitude %d = %g is out of range", i, s.X[i])
		}
	}
	back, err := d.Meta.LonLatToCoords(xsar.ScalarCoords{X: -179.85, Y: s.Y[1]}, false)
	if err != nil {
		t.Fatal(err)
	}
	b := back.(xsar.ScalarCoords)
	if absDifferent(b.X, 20, 1e-6) || absDifferent(b.Y, 45, 1e-6) {
		t.Errorf("inverse across the antimeridian: %+v", b)
	}
	lon := compute(t, d, "longitude", "")
	for _, row := range lon {
		for _, v := range row {
			if v < -180 || v >= 180 {
				t.Fatalf("longitude %g is out of range", v)
			}
		}
	}
	i, err := d.Attrs()
	if err != nil {
		t.Fatal(err)
	}
	if !i.CrossAntimeridian {
		t.Error("attributes should report the antimeridian crossing")
	}
}

func TestReverseCalibration(t *testing.T) {
	for _, cplx := range []bool{false, true} {
		c := product.DefaultSyntheticConfig()
		c.Complex = cplx
		d := openSynthetic(t, c, smallChunks())
		v, warn, err := d.ReverseCalibration("gamma0_raw")
		if err != nil {
			t.Fatal(err)
		}
		if (warn != nil) != cplx {
			t.Errorf("complex %v: warning %v", cplx, warn)
		}
		a, err := v.Pol("VV")
		if err != nil {
			t.Fatal(err)
		}
		r, err := a.Compute(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if absDifferent(r.Get(3, 4), product.SyntheticDN(3, 4, 0), 1e-9) {
			t.Errorf("reconstructed dn: have %g, want %g", r.Get(3, 4), product.SyntheticDN(3, 4, 0))
		}
	}
	d := openSynthetic(t, product.DefaultSyntheticConfig(), smallChunks())
	if _, _, err := d.ReverseCalibration("sigma0"); err == nil {
		t.Error("expected an error for a variable that is not raw")
	}
}
