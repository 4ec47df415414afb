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
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Manifest holds the scalar product attributes.
type Manifest struct {
	SwathType     string // e.g. "IW", "EW", "SM"
	ProductType   string // e.g. "GRD", "SLC"
	Satellite     string
	Polarizations []string // in product order, e.g. ["VV", "VH"]
	StartDate     time.Time
	StopDate      time.Time
}

// PolarizationFiles holds the file locations for one polarization.
type PolarizationFiles struct {
	Polarization string
	Measurement  string
	Calibration  string
	Noise        string
	Annotation   string
}

// File returns the file holding LUTs of category c.
func (f PolarizationFiles) File(c LutCategory) string {
	switch c {
	case CategoryCalibration:
		return f.Calibration
	case CategoryNoise:
		return f.Noise
	case CategoryAnnotation:
		return f.Annotation
	default:
		return ""
	}
}

// LutFunc evaluates a lookup table at every combination of lines and
// samples. The result must have shape [len(lines), len(samples)].
type LutFunc func(lines, samples []float64) (*sparse.DenseArray, error)

// Resampling specifies how the digital number is reduced when a
// coarser resolution is requested.
type Resampling int

// Supported resampling methods.
const (
	ResamplingAverage Resampling = iota
	ResamplingNearest
)

func (r Resampling) String() string {
	switch r {
	case ResamplingAverage:
		return "average"
	case ResamplingNearest:
		return "nearest"
	default:
		return fmt.Sprintf("Resampling(%d)", int(r))
	}
}

// ParseResampling returns the resampling method with the given name.
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(s) {
	case "average", "":
		return ResamplingAverage, nil
	case "nearest":
		return ResamplingNearest, nil
	default:
		return 0, fmt.Errorf("xsar: invalid resampling method '%s'", s)
	}
}

// Resolution is a downsampling factor along lines and samples.
type Resolution struct {
	Line, Sample int
}

// MetadataProvider gives access to the content of a SAR product.
// It is responsible for all file parsing.
type MetadataProvider interface {
	// Name is a unique identifier for the product.
	Name() string
	Manifest() Manifest
	GroundControlGrid() (*GroundControlGrid, error)

	// Files returns the file locations for each polarization.
	Files() []PolarizationFiles

	// HasLut returns whether the lookup table name is present in file.
	HasLut(file, name string) bool

	// Lut returns a function that evaluates the lookup table name
	// stored in file. Implementations should defer expensive work
	// until the returned function is called.
	Lut(file, name string) (LutFunc, error)

	// Denoised returns, for each polarization, whether the
	// measurement has been denoised at the source.
	Denoised() map[string]bool

	// PixelSpacing returns the full-resolution pixel spacing [m].
	PixelSpacing() (line, sample float64)

	// RasterShape returns the full-resolution number of lines and samples.
	RasterShape() (lines, samples int)

	// ComplexDigitalNumber returns whether the measurement is complex
	// valued. Complex digital numbers are read as their magnitude.
	ComplexDigitalNumber() bool

	// ReadDigitalNumber reads window w of the measurement for the
	// given polarization. w is expressed in the indices of the
	// output grid: when res is not nil each output pixel covers
	// res.Line by res.Sample input pixels reduced with method r.
	ReadDigitalNumber(ctx context.Context, pol string, w Window, res *Resolution, r Resampling) (*sparse.DenseArray, error)
}

// DefaultMaskFeatures returns the default mask features, mapping a
// mask name to its source. A new map is returned on every call.
func DefaultMaskFeatures() map[string]string {
	return map[string]string{
		"land": "naturalearth/physical/land/10m",
	}
}

// Metadata holds the geolocation information of a product: the
// ground control grid, the approximate affine transform and the
// exact interpolators, which are built on first use.
type Metadata struct {
	provider MetadataProvider
	manifest Manifest
	grid     *GroundControlGrid

	// cross is whether the grid crosses the antimeridian. When it
	// does, longitudes are unwrapped to [0, 360) before fitting and
	// interpolating.
	cross bool

	approx, approxInv ApproxTransform

	maskFeatures map[string]string

	interpOnce           sync.Once
	lonInterp, latInterp *RectBilinear
	interpErr            error

	Log logrus.FieldLogger
}

// MetadataOption configures a Metadata object.
type MetadataOption func(*Metadata)

// WithMaskFeatures replaces the default mask features. f is copied.
func WithMaskFeatures(f map[string]string) MetadataOption {
	return func(m *Metadata) {
		m.maskFeatures = make(map[string]string, len(f))
		for k, v := range f {
			m.maskFeatures[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) MetadataOption {
	return func(m *Metadata) { m.Log = l }
}

// NewMetadata reads the ground control grid from p and fits the
// approximate transform.
func NewMetadata(p MetadataProvider, opts ...MetadataOption) (*Metadata, error) {
	grid, err := p.GroundControlGrid()
	if err != nil {
		return nil, errors.Wrapf(err, "xsar: reading ground control grid of %s", p.Name())
	}
	m := &Metadata{
		provider:     p,
		manifest:     p.Manifest(),
		grid:         grid,
		cross:        grid.CrossAntimeridian(),
		maskFeatures: DefaultMaskFeatures(),
		Log:          logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(m)
	}

	pts := grid.Points()
	lines := make([]float64, len(pts))
	samples := make([]float64, len(pts))
	lons := make([]float64, len(pts))
	lats := make([]float64, len(pts))
	for i, pt := range pts {
		lines[i], samples[i], lats[i] = pt.Line, pt.Sample, pt.Latitude
		lons[i] = m.unwrap(pt.Longitude)
	}
	if m.approx, err = FitApproxTransform(lines, samples, lons, lats); err != nil {
		return nil, err
	}
	if m.approxInv, err = m.approx.Invert(); err != nil {
		return nil, err
	}
	return m, nil
}

// Provider returns the underlying metadata provider.
func (m *Metadata) Provider() MetadataProvider { return m.provider }

// Name returns the product name.
func (m *Metadata) Name() string { return m.provider.Name() }

// Manifest returns the scalar product attributes.
func (m *Metadata) Manifest() Manifest { return m.manifest }

// GroundControlGrid returns the ground control grid.
func (m *Metadata) GroundControlGrid() *GroundControlGrid { return m.grid }

// CrossAntimeridian returns whether the footprint crosses the antimeridian.
func (m *Metadata) CrossAntimeridian() bool { return m.cross }

// ApproxTransform returns the affine transform fitted to the ground
// control grid. When the grid crosses the antimeridian, it produces
// longitudes in [0, 360).
func (m *Metadata) ApproxTransform() ApproxTransform { return m.approx }

// MaskFeatures returns a copy of the mask features of m.
func (m *Metadata) MaskFeatures() map[string]string {
	o := make(map[string]string, len(m.maskFeatures))
	for k, v := range m.maskFeatures {
		o[k] = v
	}
	return o
}

// SetMaskFeature adds or replaces a mask feature of m only.
func (m *Metadata) SetMaskFeature(name, source string) {
	m.maskFeatures[name] = source
}

// Footprint returns the polygon joining the corners of the ground
// control grid.
func (m *Metadata) Footprint() geom.Polygon {
	c := m.grid.corners()
	ring := make([]geom.Point, 0, len(c)+1)
	for _, p := range c {
		ring = append(ring, geom.Point{X: p.Longitude, Y: p.Latitude})
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}
}

// lengths returns the acquisition length along lines and samples [m],
// measured between the corners of the ground control grid.
func (m *Metadata) lengths() (line, sample float64) {
	c := m.grid.corners()
	sample, _ = Haversine(c[0].Longitude, c[0].Latitude, c[1].Longitude, c[1].Latitude)
	line, _ = Haversine(c[1].Longitude, c[1].Latitude, c[2].Longitude, c[2].Latitude)
	return
}

func coverage(lineM, sampleM float64) string {
	return fmt.Sprintf("%dkm * %dkm (line * sample )", int(lineM/1000), int(sampleM/1000))
}

// InfoLevel selects how much information Metadata.Info returns.
type InfoLevel int

// Information levels.
const (
	InfoMinimal InfoLevel = iota
	InfoAll
)

// Info is the exported description of a product. With InfoMinimal
// only Satellite, Swath, Product and Pols are set.
type Info struct {
	Satellite string
	Swath     string
	Product   string
	Pols      string // space separated

	Name              string
	StartDate         time.Time
	StopDate          time.Time
	Footprint         geom.Polygon
	Coverage          string
	PixelLineM        float64
	PixelSampleM      float64
	ApproxTransform   [6]float64 // GDAL order
	CrossAntimeridian bool
}

// Info returns a description of the product.
func (m *Metadata) Info(level InfoLevel) Info {
	i := Info{
		Satellite: m.manifest.Satellite,
		Swath:     m.manifest.SwathType,
		Product:   m.manifest.ProductType,
		Pols:      strings.Join(m.manifest.Polarizations, " "),
	}
	if level == InfoMinimal {
		return i
	}
	i.Name = m.Name()
	i.StartDate = m.manifest.StartDate
	i.StopDate = m.manifest.StopDate
	i.Footprint = m.Footprint()
	i.Coverage = coverage(m.lengths())
	i.PixelLineM, i.PixelSampleM = m.provider.PixelSpacing()
	i.ApproxTransform = m.approx.GDAL()
	i.CrossAntimeridian = m.cross
	return i
}
