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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spatialmodel/xsar"
	"gopkg.in/yaml.v2"
)

// DefaultMeasurementVariable is the netCDF variable holding the
// digital number in measurement files.
const DefaultMeasurementVariable = "digital_number"

// Descriptor describes a SAR product whose measurements are stored in
// netCDF files. Lookup tables are stored in the descriptor itself,
// keyed by the file names given in Files.
type Descriptor struct {
	Name      string   `toml:"name" yaml:"name"`
	Satellite string   `toml:"satellite" yaml:"satellite"`
	Swath     string   `toml:"swath" yaml:"swath"`
	Product   string   `toml:"product" yaml:"product"`
	Pols      []string `toml:"pols" yaml:"pols"`

	// StartDate and StopDate are in RFC 3339 format.
	StartDate string `toml:"start_date" yaml:"start_date"`
	StopDate  string `toml:"stop_date" yaml:"stop_date"`

	LineSpacing   float64 `toml:"line_spacing" yaml:"line_spacing"`
	SampleSpacing float64 `toml:"sample_spacing" yaml:"sample_spacing"`

	Lines   int `toml:"lines" yaml:"lines"`
	Samples int `toml:"samples" yaml:"samples"`

	Complex  bool            `toml:"complex" yaml:"complex"`
	Denoised map[string]bool `toml:"denoised" yaml:"denoised"`

	// MeasurementVariable is the netCDF variable holding the digital
	// number. Complex measurements are stored as two variables with
	// suffixes _real and _imag.
	MeasurementVariable string `toml:"measurement_variable" yaml:"measurement_variable"`

	GCPs  []GCPRecord                 `toml:"gcps" yaml:"gcps"`
	Files []FileRecord                `toml:"files" yaml:"files"`
	Luts  map[string]map[string]Table `toml:"luts" yaml:"luts"`

	dir string
}

// GCPRecord is a ground control point in a Descriptor.
type GCPRecord struct {
	Line      float64 `toml:"line" yaml:"line"`
	Sample    float64 `toml:"sample" yaml:"sample"`
	Longitude float64 `toml:"lon" yaml:"lon"`
	Latitude  float64 `toml:"lat" yaml:"lat"`
	Height    float64 `toml:"height" yaml:"height"`
}

// FileRecord holds the files of one polarization in a Descriptor.
// Measurement paths are relative to the descriptor file.
type FileRecord struct {
	Pol         string `toml:"pol" yaml:"pol"`
	Measurement string `toml:"measurement" yaml:"measurement"`
	Calibration string `toml:"calibration" yaml:"calibration"`
	Noise       string `toml:"noise" yaml:"noise"`
	Annotation  string `toml:"annotation" yaml:"annotation"`
}

// LoadDescriptor reads a product descriptor. The format is chosen by
// the file extension: .toml, .yaml or .yml.
func LoadDescriptor(path string) (*Descriptor, error) {
	b, err := ioutil.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, errors.Wrap(err, "product: reading descriptor")
	}
	d := new(Descriptor)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(b), d); err != nil {
			return nil, fmt.Errorf("product: there has been an error parsing descriptor file %s: %v", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, d); err != nil {
			return nil, fmt.Errorf("product: there has been an error parsing descriptor file %s: %v", path, err)
		}
	default:
		return nil, fmt.Errorf("product: unsupported descriptor format '%s'", ext)
	}
	d.dir = filepath.Dir(path)
	if d.MeasurementVariable == "" {
		d.MeasurementVariable = DefaultMeasurementVariable
	}
	return d, nil
}

// Memory converts d to an in-memory product without digital numbers.
func (d *Descriptor) Memory() (*Memory, error) {
	m := &Memory{
		ProductName:   d.Name,
		Tables:        d.Luts,
		NLines:        d.Lines,
		NSamples:      d.Samples,
		DenoisedPols:  d.Denoised,
		LineSpacing:   d.LineSpacing,
		SampleSpacing: d.SampleSpacing,
		Complex:       d.Complex,
	}
	if m.ProductName == "" {
		return nil, fmt.Errorf("product: descriptor has no name")
	}
	if d.Lines <= 0 || d.Samples <= 0 {
		return nil, fmt.Errorf("product: descriptor %s has invalid shape %dx%d", d.Name, d.Lines, d.Samples)
	}
	var err error
	m.Info = xsar.Manifest{
		SwathType:     d.Swath,
		ProductType:   d.Product,
		Satellite:     d.Satellite,
		Polarizations: d.Pols,
	}
	if m.Info.StartDate, err = parseDate(d.StartDate); err != nil {
		return nil, err
	}
	if m.Info.StopDate, err = parseDate(d.StopDate); err != nil {
		return nil, err
	}
	for _, g := range d.GCPs {
		m.GCPs = append(m.GCPs, xsar.GCP{
			Line: g.Line, Sample: g.Sample,
			Longitude: g.Longitude, Latitude: g.Latitude,
			Height: g.Height,
		})
	}
	for _, f := range d.Files {
		m.PolFiles = append(m.PolFiles, xsar.PolarizationFiles{
			Polarization: f.Pol,
			Measurement:  d.path(f.Measurement),
			Calibration:  f.Calibration,
			Noise:        f.Noise,
			Annotation:   f.Annotation,
		})
	}
	return m, nil
}

func (d *Descriptor) path(p string) string {
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.dir, p)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "product: parsing date")
	}
	return t, nil
}

// Open opens the product described by the descriptor at path.
func Open(path string) (*Product, error) {
	d, err := LoadDescriptor(path)
	if err != nil {
		return nil, err
	}
	return d.Open()
}
