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

package xsarutil

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/spatialmodel/xsar"
)

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) string {
	t.Helper()
	var b bytes.Buffer
	Root.SetOutput(&b)
	Root.SetArgs(args)
	if err := Root.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return b.String()
}

// synthProduct writes a synthetic product to a temporary directory
// and configures it as the product to use.
func synthProduct(t *testing.T) (dir string) {
	t.Helper()
	dir, err := ioutil.TempDir("", "xsarutil")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "s1.toml")
	Cfg.Set("loglevel", "error")
	Cfg.Set("output", path)
	run(t, "synth")
	Cfg.Set("product", path)
	Cfg.Set("resolution", []int{})
	return dir
}

func TestVersion(t *testing.T) {
	if out := run(t, "version"); out != fmt.Sprintf("xsar v%s\n", xsar.Version) {
		t.Errorf("version: %s", out)
	}
}

func TestInfo(t *testing.T) {
	dir := synthProduct(t)
	defer os.RemoveAll(dir)

	Cfg.Set("infolevel", "all")
	out := run(t, "info")
	for _, want := range []string{"S1A", "IW", "GRD", "VV VH", "s1", "2021-01-01T06:00:00Z", "km (line * sample )", "Polygon"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output is missing %q:\n%s", want, out)
		}
	}
	Cfg.Set("infolevel", "minimal")
	out = run(t, "info")
	if strings.Contains(out, "footprint") || !strings.Contains(out, "S1A") {
		t.Errorf("minimal info output:\n%s", out)
	}
}

func TestCoords(t *testing.T) {
	dir := synthProduct(t)
	defer os.RemoveAll(dir)
	Cfg.Set("approx", false)

	out := run(t, "coords2ll", "--", "10", "30", "20", "0")
	var lon, lat [2]float64
	if _, err := fmt.Sscan(out, &lon[0], &lat[0], &lon[1], &lat[1]); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	want := [][2]float64{{-4.7, 47.9}, {-5, 47.8}}
	for i, w := range want {
		if absDifferent(lon[i], w[0], 1e-9) || absDifferent(lat[i], w[1], 1e-9) {
			t.Errorf("point %d: have (%g, %g), want %v", i, lon[i], lat[i], w)
		}
	}

	out = run(t, "ll2coords", "--", "-4.6975", "47.885", "20", "0")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("ll2coords output:\n%s", out)
	}
	if lines[0] != "11.5 30.5" {
		t.Errorf("snapped point: have %s, want 11.5 30.5", lines[0])
	}
	if lines[1] != "NaN NaN" {
		t.Errorf("outside point: have %s, want NaN NaN", lines[1])
	}

	// Lines before the first ground control point take its values.
	out = run(t, "coords2ll", "--", "-5", "30")
	if _, err := fmt.Sscan(out, &lon[0], &lat[0]); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	if absDifferent(lon[0], -4.7, 1e-9) || absDifferent(lat[0], 48, 1e-9) {
		t.Errorf("negative line: have (%g, %g), want (-4.7, 48)", lon[0], lat[0])
	}

	Root.SetArgs([]string{"coords2ll", "--", "10"})
	Root.SetOutput(ioutil.Discard)
	if err := Root.Execute(); err == nil {
		t.Error("expected an error for an odd number of coordinates")
	}
}

func TestFootprint(t *testing.T) {
	dir := synthProduct(t)
	defer os.RemoveAll(dir)

	t.Run("geojson", func(t *testing.T) {
		Cfg.Set("output", "")
		out := run(t, "footprint")
		g, err := geojson.Decode([]byte(strings.TrimSpace(out)))
		if err != nil {
			t.Fatal(err)
		}
		b := g.Bounds()
		if absDifferent(b.Min.X, -5, 0.02) || absDifferent(b.Max.X, -4.4, 0.02) ||
			absDifferent(b.Min.Y, 47.6, 0.02) || absDifferent(b.Max.Y, 48, 0.02) {
			t.Errorf("footprint bounds: %+v", b)
		}
	})
	t.Run("shapefile", func(t *testing.T) {
		path := filepath.Join(dir, "footprint.shp")
		Cfg.Set("output", path)
		run(t, "footprint")
		if _, err := os.Stat(filepath.Join(dir, "footprint.prj")); err != nil {
			t.Error(err)
		}
		d, err := shp.NewDecoder(path)
		if err != nil {
			t.Fatal(err)
		}
		defer d.Close()
		g, fields, _ := d.DecodeRowFields("name", "pols")
		if err := d.Error(); err != nil {
			t.Fatal(err)
		}
		if _, ok := g.(geom.Polygon); !ok {
			t.Errorf("footprint geometry has type %T", g)
		}
		if strings.Trim(fields["name"], " \x00") != "s1" || strings.Trim(fields["pols"], " \x00") != "VV VH" {
			t.Errorf("fields: %v", fields)
		}
	})
}

func TestConvert(t *testing.T) {
	dir := synthProduct(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "out.nc")
	Cfg.Set("output", path)
	Cfg.Set("resolution", []int{2, 3})
	Cfg.Set("variables", []string{"sigma0"})
	Cfg.Set("OutputVariables", `{"sigma0_db":"dB(sigma0)"}`)
	run(t, "convert")
	Cfg.Set("resolution", []int{})

	ff, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatal(err)
	}
	sigma0, err := xsar.ReadNCF(f, "sigma0")
	if err != nil {
		t.Fatal(err)
	}
	db, err := xsar.ReadNCF(f, "sigma0_db")
	if err != nil {
		t.Fatal(err)
	}
	if s := db.Shape; len(s) != 3 || s[0] != 2 || s[1] != 20 || s[2] != 20 {
		t.Fatalf("shape: %v", s)
	}
	for i, v := range sigma0.Elements {
		if absDifferent(db.Elements[i], 10*math.Log10(v), 1e-4) {
			t.Fatalf("element %d: have %g, want %g", i, db.Elements[i], 10*math.Log10(v))
		}
	}
	if _, err := xsar.ReadNCF(f, "gamma0"); err == nil {
		t.Error("gamma0 should not have been written")
	}
}

func TestDatasetOptions(t *testing.T) {
	Cfg.Set("resolution", "[4]")
	Cfg.Set("chunks", []int{100, 200})
	Cfg.Set("resampling", "nearest")
	defer Cfg.Set("resolution", []int{})
	defer Cfg.Set("resampling", "average")
	defer Cfg.Set("chunks", []int{5000, 5000})

	opts, err := datasetOptions(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Resolution == nil || *opts.Resolution != (xsar.Resolution{Line: 4, Sample: 4}) {
		t.Errorf("resolution: %+v", opts.Resolution)
	}
	if opts.Chunks != (xsar.Chunks{Line: 100, Sample: 200}) {
		t.Errorf("chunks: %+v", opts.Chunks)
	}
	if opts.Resampling != xsar.ResamplingNearest {
		t.Errorf("resampling: %v", opts.Resampling)
	}

	Cfg.Set("resolution", "1, 2, 3")
	if _, err := datasetOptions(Cfg); err == nil {
		t.Error("expected an error for three resolution values")
	}
	Cfg.Set("resolution", []int{0, 2})
	if _, err := datasetOptions(Cfg); err == nil {
		t.Error("expected an error for a zero resolution")
	}
}

func TestParsePairs(t *testing.T) {
	x, y, err := parsePairs([]string{"1", "2.5", "-3", "4"})
	if err != nil {
		t.Fatal(err)
	}
	if x[0] != 1 || y[0] != 2.5 || x[1] != -3 || y[1] != 4 {
		t.Errorf("pairs: %v, %v", x, y)
	}
	if _, _, err := parsePairs([]string{"1", "a"}); err == nil {
		t.Error("expected a parsing error")
	}
	if _, _, err := parsePairs(nil); err == nil {
		t.Error("expected an error for no arguments")
	}
}
