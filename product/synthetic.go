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
	"time"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/xsar"
)

// SyntheticConfig holds the parameters of a synthetic product.
type SyntheticConfig struct {
	Name           string
	Lines, Samples int
	Pols           []string

	// Lon0 and Lat0 are the coordinates of the first pixel.
	Lon0, Lat0 float64

	// DLon and DLat are the longitude change across the samples and
	// the latitude change across the lines [degrees].
	DLon, DLat float64

	// GCPLines and GCPSamples are the number of ground control points
	// along each axis.
	GCPLines, GCPSamples int

	Complex  bool
	Denoised map[string]bool
}

// DefaultSyntheticConfig returns a small dual polarization product.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Name:       "synthetic",
		Lines:      40,
		Samples:    60,
		Pols:       []string{"VV", "VH"},
		Lon0:       -5,
		Lat0:       48,
		DLon:       0.6,
		DLat:       -0.4,
		GCPLines:   5,
		GCPSamples: 7,
	}
}

// Synthetic values of the lookup tables.
const (
	SyntheticSigma0 = 500.
	SyntheticGamma0 = 450.
	SyntheticBeta0  = 400.
	SyntheticNoise  = 2000.
)

// SyntheticDN returns the digital number of the synthetic product at
// full resolution pixel (line, sample) for polarization index p.
func SyntheticDN(line, sample, p int) float64 {
	return float64(100 + (line+2*sample)%50 + 10*p)
}

// Synthetic creates a product with a linear geolocation grid,
// constant calibration tables and a noise table that varies along
// samples. Incidence is the only annotation table.
func Synthetic(c SyntheticConfig) (*Memory, error) {
	if c.Lines < 2 || c.Samples < 2 || c.GCPLines < 2 || c.GCPSamples < 2 {
		return nil, fmt.Errorf("product: invalid synthetic product shape")
	}
	start := time.Date(2021, 1, 1, 6, 0, 0, 0, time.UTC)
	m := &Memory{
		ProductName: c.Name,
		Info: xsar.Manifest{
			SwathType:     "IW",
			ProductType:   "GRD",
			Satellite:     "S1A",
			Polarizations: append([]string{}, c.Pols...),
			StartDate:     start,
			StopDate:      start.Add(25 * time.Second),
		},
		Tables:        make(map[string]map[string]Table),
		DN:            make(map[string]*sparse.DenseArray),
		NLines:        c.Lines,
		NSamples:      c.Samples,
		DenoisedPols:  make(map[string]bool),
		LineSpacing:   10,
		SampleSpacing: 10,
		Complex:       c.Complex,
	}
	for k, v := range c.Denoised {
		m.DenoisedPols[k] = v
	}

	gl := linspace(0, float64(c.Lines), c.GCPLines)
	gs := linspace(0, float64(c.Samples), c.GCPSamples)
	for _, l := range gl {
		for _, s := range gs {
			m.GCPs = append(m.GCPs, xsar.GCP{
				Line:      l,
				Sample:    s,
				Longitude: wrapLon(c.Lon0 + c.DLon*s/float64(c.Samples)),
				Latitude:  c.Lat0 + c.DLat*l/float64(c.Lines),
			})
		}
	}

	// Tables are defined on the same grid as the control points.
	table := func(f func(l, s float64) float64) Table {
		t := Table{Lines: gl, Samples: gs, Values: make([][]float64, len(gl))}
		for i, l := range gl {
			t.Values[i] = make([]float64, len(gs))
			for j, s := range gs {
				t.Values[i][j] = f(l, s)
			}
		}
		return t
	}
	constant := func(v float64) Table { return table(func(_, _ float64) float64 { return v }) }
	ns := float64(c.Samples)

	for p, pol := range c.Pols {
		f := xsar.PolarizationFiles{
			Polarization: pol,
			Calibration:  "calibration-" + pol,
			Noise:        "noise-" + pol,
			Annotation:   "annotation-" + pol,
		}
		m.PolFiles = append(m.PolFiles, f)
		m.Tables[f.Calibration] = map[string]Table{
			"sigma0_lut": constant(SyntheticSigma0),
			"gamma0_lut": constant(SyntheticGamma0),
			"beta0_lut":  constant(SyntheticBeta0),
		}
		m.Tables[f.Noise] = map[string]Table{
			"noise_lut_range": table(func(_, s float64) float64 { return SyntheticNoise * (1 + s/ns) }),
			"noise_lut_azi":   constant(1),
		}
		m.Tables[f.Annotation] = map[string]Table{
			"incidence": table(func(_, s float64) float64 { return 30 + 15*s/ns }),
		}
		dn := sparse.ZerosDense(c.Lines, c.Samples)
		for i := 0; i < c.Lines; i++ {
			for j := 0; j < c.Samples; j++ {
				dn.Set(SyntheticDN(i, j, p), i, j)
			}
		}
		m.DN[pol] = dn
	}
	return m, nil
}

func linspace(a, b float64, n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = a + (b-a)*float64(i)/float64(n-1)
	}
	return o
}

func wrapLon(lon float64) float64 {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
