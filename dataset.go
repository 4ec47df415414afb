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
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xsar/internal/hash"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Options configures how a dataset is opened.
type Options struct {
	// Resolution is the downsampling factor. nil means full resolution.
	Resolution *Resolution

	// Resampling is the method used to downsample the digital number.
	Resampling Resampling

	// Chunks is the size of the blocks arrays are computed in.
	Chunks Chunks

	// Luts specifies whether the lookup tables are visible as variables.
	Luts bool

	// ClipDenoised specifies whether negative denoised values are
	// replaced by zero.
	ClipDenoised bool

	// Cache holds the computed chunks of the dataset arrays. nil
	// selects SharedChunkCache.
	Cache *ChunkCache
}

// DefaultOptions returns the default dataset options.
func DefaultOptions() Options {
	return Options{
		Resampling:   ResamplingAverage,
		Chunks:       Chunks{Line: 5000, Sample: 5000},
		ClipDenoised: true,
	}
}

// Dataset holds the variables of a product over (pol, line, sample).
// Variable values are only computed when requested.
type Dataset struct {
	Meta *Metadata

	// Lines and Samples are the image coordinates of the pixel
	// centers, in full resolution pixels.
	Lines, Samples []float64

	// Times holds the acquisition time of each line.
	Times []time.Time

	Pols []string

	opts   Options
	vars   map[string]*Variable
	luts   map[string]*Variable
	state  State
	stages []State
	sliced bool
	token  string

	Log logrus.FieldLogger
}

// Open opens the product provided by p.
func Open(p MetadataProvider, opts Options, metaOpts ...MetadataOption) (*Dataset, error) {
	meta, err := NewMetadata(p, metaOpts...)
	if err != nil {
		return nil, err
	}
	return NewDataset(meta, opts)
}

// NewDataset creates a dataset from meta and runs the given stages,
// or DefaultPipeline if none are given.
func NewDataset(meta *Metadata, opts Options, stages ...DatasetManipulator) (*Dataset, error) {
	if len(stages) == 0 {
		stages = DefaultPipeline()
	}
	nl, ns := meta.provider.RasterShape()
	rl, rs := 1, 1
	if opts.Resolution != nil {
		rl, rs = opts.Resolution.Line, opts.Resolution.Sample
	}
	keyOpts := opts
	keyOpts.Cache = nil
	d := &Dataset{
		Meta:  meta,
		Pols:  append([]string{}, meta.manifest.Polarizations...),
		opts:  opts,
		vars:  make(map[string]*Variable),
		luts:  make(map[string]*Variable),
		state: StateNew,
		token: hash.Short(struct {
			Name string
			Opts Options
		}{Name: meta.Name(), Opts: keyOpts}, 12),
		Log: meta.Log,
	}
	var err error
	if d.Lines, err = pixelCenters(nl, rl); err != nil {
		return nil, err
	}
	if d.Samples, err = pixelCenters(ns, rs); err != nil {
		return nil, err
	}
	d.Times = lineTimes(d.Lines, meta.manifest.StartDate, meta.manifest.StopDate)
	for name, c := range map[string][]float64{"line": d.Lines, "sample": d.Samples} {
		if !regular(c) {
			d.Log.WithFields(logrus.Fields{"dim": name}).Warn("xsar: coordinates are not regularly spaced")
		}
	}
	for _, s := range stages {
		if err := s(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// pixelCenters returns the coordinates of the centers of the pixels
// of a dimension with n full resolution pixels downsampled by r.
func pixelCenters(n, r int) ([]float64, error) {
	if r <= 1 {
		o := make([]float64, n)
		for i := range o {
			o[i] = float64(i) + 0.5
		}
		return o, nil
	}
	outN := n / r
	if outN == 0 {
		return nil, fmt.Errorf("xsar: resolution %d is coarser than the %d pixel image", r, n)
	}
	step := float64(outN*r) / float64(outN)
	o := make([]float64, outN)
	for i := range o {
		o[i] = float64(i)*step + float64(r-1)/2 + 0.5
	}
	return o, nil
}

// lineTimes interpolates the acquisition time of each line linearly
// from start at the first line to stop at the last one.
func lineTimes(lines []float64, start, stop time.Time) []time.Time {
	o := make([]time.Time, len(lines))
	if len(lines) == 0 {
		return o
	}
	first, last := lines[0], lines[len(lines)-1]
	dt := stop.Sub(start)
	for i, l := range lines {
		if last == first {
			o[i] = start
			continue
		}
		o[i] = start.Add(time.Duration(float64(dt) * (l - first) / (last - first)))
	}
	return o
}

func regular(c []float64) bool {
	if len(c) < 3 {
		return true
	}
	d0 := c[1] - c[0]
	for i := 2; i < len(c); i++ {
		if math.Abs(c[i]-c[i-1]-d0) > 1e-9*math.Abs(d0) {
			return false
		}
	}
	return true
}

// State returns the last processing stage entered.
func (d *Dataset) State() State { return d.state }

// Stages returns the processing stages entered, in order.
func (d *Dataset) Stages() []State { return append([]State{}, d.stages...) }

// Sliced returns whether d is a subset of an opened dataset.
func (d *Dataset) Sliced() bool { return d.sliced }

// Options returns the options d was opened with.
func (d *Dataset) Options() Options { return d.opts }

// VariableNames returns the names of the variables of d, sorted.
// Lookup tables are only included if Options.Luts is set.
func (d *Dataset) VariableNames() []string {
	o := make([]string, 0, len(d.vars)+len(d.luts))
	for k := range d.vars {
		o = append(o, k)
	}
	if d.opts.Luts {
		for k := range d.luts {
			o = append(o, k)
		}
	}
	sort.Strings(o)
	return o
}

// Variable returns the named variable.
func (d *Dataset) Variable(name string) (*Variable, error) {
	if v, ok := d.vars[name]; ok {
		return v, nil
	}
	if v, ok := d.luts[name]; ok && d.opts.Luts {
		return v, nil
	}
	return nil, ConfigurationError{Kind: "variable", Name: name, Allowed: d.VariableNames()}
}

// Lut returns the named lookup table, whether or not lookup tables
// are visible.
func (d *Dataset) Lut(name string) (*Variable, bool) {
	v, ok := d.luts[name]
	return v, ok
}

// ReverseCalibration reconstructs the digital number from the raw
// variable varName, e.g. "sigma0_raw".
func (d *Dataset) ReverseCalibration(varName string) (*Variable, *PrecisionWarning, error) {
	lutName, err := CalibrationLut(varName)
	if err != nil {
		return nil, nil, err
	}
	raw, ok := d.vars[varName]
	if !ok {
		return nil, nil, fmt.Errorf("xsar: variable %s is not in the dataset", varName)
	}
	lut, ok := d.luts[lutName]
	if !ok {
		return nil, nil, fmt.Errorf("xsar: lookup table %s is not in the dataset", lutName)
	}
	v, warn, err := ReverseCalibration(raw, lut, d.Meta.provider.ComplexDigitalNumber())
	if err != nil {
		return nil, nil, err
	}
	if warn != nil {
		d.Log.WithFields(logrus.Fields{"var": varName}).Warn(warn.Error())
	}
	return v, warn, nil
}

// Isel returns the subset of d within the given index ranges.
func (d *Dataset) Isel(lines, samples IndexRange) (*Dataset, error) {
	if lines.Start < 0 || lines.Stop > len(d.Lines) || lines.Len() <= 0 ||
		samples.Start < 0 || samples.Stop > len(d.Samples) || samples.Len() <= 0 {
		return nil, fmt.Errorf("xsar: invalid selection [%d:%d, %d:%d] of dataset with shape [%d %d]",
			lines.Start, lines.Stop, samples.Start, samples.Stop, len(d.Lines), len(d.Samples))
	}
	o := *d
	o.Lines = d.Lines[lines.Start:lines.Stop]
	o.Samples = d.Samples[samples.Start:samples.Stop]
	o.Times = d.Times[lines.Start:lines.Stop]
	o.stages = append([]State{}, d.stages...)
	o.sliced = true
	o.vars = make(map[string]*Variable, len(d.vars))
	o.luts = make(map[string]*Variable, len(d.luts))
	for _, m := range []struct{ src, dst map[string]*Variable }{{d.vars, o.vars}, {d.luts, o.luts}} {
		for k, v := range m.src {
			vv, err := v.Slice(lines, samples)
			if err != nil {
				return nil, err
			}
			m.dst[k] = vv
		}
	}
	return &o, nil
}

// p90Spacing returns the 90th percentile of the spacing of c.
func p90Spacing(c []float64) float64 {
	if len(c) < 2 {
		return 1
	}
	diff := make([]float64, len(c)-1)
	for i := range diff {
		diff[i] = c[i+1] - c[i]
	}
	sort.Float64s(diff)
	return stat.Quantile(0.9, stat.Empirical, diff, nil)
}

// BBoxCoords returns the (line, sample) corners of the dataset,
// including the half pixel around the outer pixel centers.
func (d *Dataset) BBoxCoords() [4][2]float64 {
	lpad := p90Spacing(d.Lines) / 2
	spad := p90Spacing(d.Samples) / 2
	l0, l1 := d.Lines[0]-lpad, d.Lines[len(d.Lines)-1]+lpad
	s0, s1 := d.Samples[0]-spad, d.Samples[len(d.Samples)-1]+spad
	return [4][2]float64{{l0, s0}, {l0, s1}, {l1, s1}, {l1, s0}}
}

// bboxLonLat returns the geographic corners of the dataset.
func (d *Dataset) bboxLonLat() (lon, lat []float64, err error) {
	bb := d.BBoxCoords()
	lines := make([]float64, len(bb))
	samples := make([]float64, len(bb))
	for i, c := range bb {
		lines[i], samples[i] = c[0], c[1]
	}
	return d.Meta.lonLatPaired(lines, samples, false)
}

// Footprint returns the polygon bounding the dataset.
func (d *Dataset) Footprint() (geom.Polygon, error) {
	lon, lat, err := d.bboxLonLat()
	if err != nil {
		return nil, err
	}
	ring := make([]geom.Point, 0, len(lon)+1)
	for i := range lon {
		ring = append(ring, geom.Point{X: lon[i], Y: lat[i]})
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}, nil
}

// Lengths returns the ground length of the dataset along lines and
// along samples [m].
func (d *Dataset) Lengths() (line, sample float64, err error) {
	lon, lat, err := d.bboxLonLat()
	if err != nil {
		return 0, 0, err
	}
	sample, _ = Haversine(lon[0], lat[0], lon[1], lat[1])
	line, _ = Haversine(lon[1], lat[1], lon[2], lat[2])
	return line, sample, nil
}

// PixelSpacing returns the ground size of a dataset pixel along lines
// and along samples [m].
func (d *Dataset) PixelSpacing() (line, sample float64, err error) {
	line, sample, err = d.Lengths()
	if err != nil {
		return 0, 0, err
	}
	return line / float64(len(d.Lines)), sample / float64(len(d.Samples)), nil
}

// Coverage returns a description of the ground size of the dataset.
func (d *Dataset) Coverage() (string, error) {
	line, sample, err := d.Lengths()
	if err != nil {
		return "", err
	}
	return coverage(line, sample), nil
}

// Attrs returns the description of the product, with the geometry
// computed for the extent of d.
func (d *Dataset) Attrs() (Info, error) {
	i := d.Meta.Info(InfoAll)
	var err error
	if i.Footprint, err = d.Footprint(); err != nil {
		return Info{}, err
	}
	if i.Coverage, err = d.Coverage(); err != nil {
		return Info{}, err
	}
	if i.PixelLineM, i.PixelSampleM, err = d.PixelSpacing(); err != nil {
		return Info{}, err
	}
	return i, nil
}

// CoordsToLonLat converts image coordinates to geographic coordinates
// using the exact interpolation.
func (d *Dataset) CoordsToLonLat(in Coords, toGrid bool) (Coords, error) {
	return d.Meta.CoordsToLonLat(in, toGrid, false)
}

// LonLatToCoords converts geographic coordinates to the nearest
// dataset coordinates. Points farther than the snapping tolerance from
// the dataset are returned as NaN. Polygonal geometries are clipped to
// the dataset footprint before conversion and are not snapped.
func (d *Dataset) LonLatToCoords(in Coords) (Coords, error) {
	switch c := in.(type) {
	case GeometryCoords:
		if poly, ok := c.Geom.(geom.Polygonal); ok {
			fp, err := d.Footprint()
			if err != nil {
				return nil, err
			}
			c = GeometryCoords{Geom: poly.Intersection(fp)}
		}
		return d.Meta.LonLatToCoords(c, false)
	case ScalarCoords:
		l, s, err := d.Meta.lineSampleFromLonLat([]float64{c.X}, []float64{c.Y}, false)
		if err != nil {
			return nil, err
		}
		d.snap(l, s)
		return ScalarCoords{X: l[0], Y: s[0]}, nil
	case SequenceCoords:
		l, s, err := d.Meta.lineSampleFromLonLat(c.X, c.Y, false)
		if err != nil {
			return nil, err
		}
		d.snap(l, s)
		return SequenceCoords{X: l, Y: s}, nil
	default:
		return nil, fmt.Errorf("xsar: unsupported coordinate input %T", in)
	}
}

// snap replaces each point by the nearest dataset coordinates, or
// by NaN if it is beyond the tolerance.
func (d *Dataset) snap(lines, samples []float64) {
	tol := floats.Max([]float64{p90Spacing(d.Lines), p90Spacing(d.Samples)})/2 + 1
	for i := range lines {
		l, okl := nearest(d.Lines, lines[i], tol)
		s, oks := nearest(d.Samples, samples[i], tol)
		if !okl || !oks {
			lines[i], samples[i] = math.NaN(), math.NaN()
			continue
		}
		lines[i], samples[i] = l, s
	}
}

// nearest returns the element of the sorted slice c nearest to v, and
// whether it is within tol of v.
func nearest(c []float64, v, tol float64) (float64, bool) {
	if len(c) == 0 || math.IsNaN(v) {
		return math.NaN(), false
	}
	i := sort.SearchFloat64s(c, v)
	best := math.NaN()
	bestD := math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(c) {
			continue
		}
		if dd := math.Abs(c[j] - v); dd < bestD {
			best, bestD = c[j], dd
		}
	}
	return best, bestD <= tol
}
