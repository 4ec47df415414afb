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
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// WriteDescriptor saves m as a descriptor at path, with one netCDF
// measurement file per polarization in the same directory. The
// format of the descriptor is chosen by the file extension.
func (m *Memory) WriteDescriptor(path string) error {
	d := &Descriptor{
		Name:                m.ProductName,
		Satellite:           m.Info.Satellite,
		Swath:               m.Info.SwathType,
		Product:             m.Info.ProductType,
		Pols:                m.Info.Polarizations,
		LineSpacing:         m.LineSpacing,
		SampleSpacing:       m.SampleSpacing,
		Lines:               m.NLines,
		Samples:             m.NSamples,
		Complex:             m.Complex,
		Denoised:            m.DenoisedPols,
		MeasurementVariable: DefaultMeasurementVariable,
		Luts:                m.Tables,
	}
	if !m.Info.StartDate.IsZero() {
		d.StartDate = m.Info.StartDate.Format(time.RFC3339Nano)
	}
	if !m.Info.StopDate.IsZero() {
		d.StopDate = m.Info.StopDate.Format(time.RFC3339Nano)
	}
	for _, g := range m.GCPs {
		d.GCPs = append(d.GCPs, GCPRecord{
			Line: g.Line, Sample: g.Sample,
			Longitude: g.Longitude, Latitude: g.Latitude,
			Height: g.Height,
		})
	}
	dir := filepath.Dir(path)
	for _, f := range m.PolFiles {
		r := FileRecord{
			Pol:         f.Polarization,
			Calibration: f.Calibration,
			Noise:       f.Noise,
			Annotation:  f.Annotation,
		}
		if dn, ok := m.DN[f.Polarization]; ok {
			r.Measurement = fmt.Sprintf("%s-%s.nc", m.ProductName, strings.ToLower(f.Polarization))
			if err := writeMeasurement(filepath.Join(dir, r.Measurement), dn, m.Complex); err != nil {
				return err
			}
		}
		d.Files = append(d.Files, r)
	}

	var b []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(d); err != nil {
			return errors.Wrap(err, "product: encoding descriptor")
		}
		b = []byte(sb.String())
	case ".yaml", ".yml":
		var err error
		if b, err = yaml.Marshal(d); err != nil {
			return errors.Wrap(err, "product: encoding descriptor")
		}
	default:
		return fmt.Errorf("product: unsupported descriptor format '%s'", ext)
	}
	return ioutil.WriteFile(path, b, 0644)
}

// writeMeasurement writes dn to a new netCDF file. Complex
// measurements get a zero imaginary part.
func writeMeasurement(path string, dn *sparse.DenseArray, cplx bool) error {
	ff, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "product: creating measurement file")
	}
	defer ff.Close()

	nl, ns := dn.Shape[0], dn.Shape[1]
	h := cdf.NewHeader([]string{"line", "sample"}, []int{nl, ns})
	h.AddAttribute("", "comment", "SAR measurement")
	vars := map[string][]float32{}
	data := make([]float32, len(dn.Elements))
	for i, v := range dn.Elements {
		data[i] = float32(v)
	}
	if cplx {
		vars[DefaultMeasurementVariable+"_real"] = data
		vars[DefaultMeasurementVariable+"_imag"] = make([]float32, len(data))
	} else {
		vars[DefaultMeasurementVariable] = data
	}
	for name := range vars {
		h.AddVariable(name, []string{"line", "sample"}, []float32{0})
		h.AddAttribute(name, "description", "digital number")
		h.AddAttribute(name, "units", "1")
	}
	h.Define()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("product: creating measurement file %s: %v", path, err)
	}
	for name, data := range vars {
		end := f.Header.Lengths(name)
		w := f.Writer(name, make([]int, len(end)), end)
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("product: writing %s to %s: %v", name, path, err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return err
	}
	return ff.Close()
}
