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

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// State is a stage of the processing of a dataset.
type State int

// Processing stages, in the order they are entered.
const (
	StateNew State = iota
	StateRawLoaded
	StateLutsLoaded
	StateCalibrated
	StateNoiseComputed
	StateDenoised
	StateReady
)

var stateNames = [...]string{"NEW", "RAW_LOADED", "LUTS_LOADED", "CALIBRATED",
	"NOISE_COMPUTED", "DENOISED", "READY"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// DatasetManipulator is a processing stage that adds variables to a
// dataset.
type DatasetManipulator func(d *Dataset) error

// DefaultPipeline returns the stages that create every variable the
// product has the lookup tables for.
func DefaultPipeline() []DatasetManipulator {
	return []DatasetManipulator{
		LoadRaw(),
		LoadLuts(),
		Calibrate(),
		ComputeNoise(),
		AddDenoised(),
		Finalize(),
	}
}

func (d *Dataset) enter(s State) {
	d.state = s
	d.stages = append(d.stages, s)
	d.Log.WithFields(logrus.Fields{"stage": s.String()}).Debug("xsar: entered stage")
}

func (d *Dataset) skip(s State, reason string) {
	d.Log.WithFields(logrus.Fields{"stage": s.String()}).Debug("xsar: skipping stage: " + reason)
}

// LoadRaw adds the digital number and the geographic coordinates.
func LoadRaw() DatasetManipulator {
	return func(d *Dataset) error {
		p := d.Meta.provider
		dn := &Variable{
			Name:        "digital_number",
			Description: "digital number",
			Units:       "1",
			Pols:        append([]string{}, d.Pols...),
		}
		for _, pol := range d.Pols {
			pol := pol
			a := NewLazyArray(fmt.Sprintf("digital_number_%s-%s", pol, d.token), d.Lines, d.Samples, d.opts.Chunks,
				func(ctx context.Context, w Window) (*sparse.DenseArray, error) {
					return p.ReadDigitalNumber(ctx, pol, w, d.opts.Resolution, d.opts.Resampling)
				})
			a.SetCache(d.opts.Cache)
			dn.Data = append(dn.Data, a)
		}
		d.vars[dn.Name] = dn

		for _, c := range []struct {
			name, desc string
			f          func(lines, samples []float64) (*sparse.DenseArray, error)
		}{
			{name: "longitude", desc: "longitude", f: d.Meta.lonGrid},
			{name: "latitude", desc: "latitude", f: d.Meta.latGrid},
		} {
			f := c.f
			a := NewLazyArray(c.name+"-"+d.token, d.Lines, d.Samples, d.opts.Chunks,
				func(_ context.Context, w Window) (*sparse.DenseArray, error) {
					return f(d.Lines[w.Line:w.Line+w.Lines], d.Samples[w.Sample:w.Sample+w.Samples])
				})
			a.SetCache(d.opts.Cache)
			d.vars[c.name] = &Variable{Name: c.name, Description: c.desc, Units: "degrees", Data: []*LazyArray{a}}
		}
		d.enter(StateRawLoaded)
		return nil
	}
}

// LoadLuts loads every registered lookup table present in the
// product. Incidence and elevation become dataset variables; the
// other tables are kept for the following stages.
func LoadLuts() DatasetManipulator {
	return func(d *Dataset) error {
		store := NewLutStore(d.Meta, d.Lines, d.Samples, d.opts.Chunks)
		store.Cache = d.opts.Cache
		store.Log = d.Log
		luts, err := store.Load(store.registered()...)
		if err != nil {
			return err
		}
		if len(luts) == 0 {
			d.skip(StateLutsLoaded, "no lookup tables in product")
			return nil
		}
		for name, v := range luts {
			if v.Category == CategoryAnnotation {
				d.vars[name] = v
			} else {
				d.luts[name] = v
			}
		}
		d.enter(StateLutsLoaded)
		return nil
	}
}

// Calibrate adds the raw backscatter variables that have a
// calibration table.
func Calibrate() DatasetManipulator {
	return func(d *Dataset) error {
		dn := d.vars["digital_number"]
		n := 0
		for _, name := range RawVariables() {
			lutName, _ := CalibrationLut(name)
			lut, ok := d.luts[lutName]
			if !ok || dn == nil {
				d.Log.WithFields(logrus.Fields{"var": name, "lut": lutName}).
					Debug("xsar: skipping variable: missing lookup table")
				continue
			}
			v, err := ApplyCalibration(name, dn, lut)
			if err != nil {
				return err
			}
			d.vars[name] = v
			n++
		}
		if n == 0 {
			d.skip(StateCalibrated, "no calibration tables")
			return nil
		}
		d.enter(StateCalibrated)
		return nil
	}
}

// ComputeNoise adds the noise equivalent of each raw variable.
func ComputeNoise() DatasetManipulator {
	return func(d *Dataset) error {
		noise, ok := d.luts["noise_lut"]
		if !ok {
			d.skip(StateNoiseComputed, "no noise tables")
			return nil
		}
		n := 0
		for _, name := range RawVariables() {
			if _, ok := d.vars[name]; !ok {
				continue
			}
			lutName, _ := CalibrationLut(name)
			v, err := NoiseEquivalent(name, noise, d.luts[lutName])
			if err != nil {
				return err
			}
			d.vars[v.Name] = v
			n++
		}
		if n == 0 {
			d.skip(StateNoiseComputed, "no raw variables")
			return nil
		}
		d.enter(StateNoiseComputed)
		return nil
	}
}

// AddDenoised adds the denoised version of each raw variable. If
// every polarization is denoised at the source, the denoised
// variables are the raw ones. An UnsupportedStateError is returned
// if only some of the polarizations are denoised at the source.
func AddDenoised() DatasetManipulator {
	return func(d *Dataset) error {
		denoised := d.Meta.provider.Denoised()
		nDenoised := 0
		for _, p := range d.Pols {
			if denoised[p] {
				nDenoised++
			}
		}
		n := 0
		for _, name := range RawVariables() {
			raw, ok := d.vars[name]
			if !ok {
				continue
			}
			dname := DenoisedName(name)
			log := d.Log.WithFields(logrus.Fields{"var": dname})
			switch {
			case nDenoised == len(d.Pols):
				log.Debug("xsar: product is denoised at the source; using raw values")
				d.vars[dname] = raw.Rename(dname, fmt.Sprintf("%s denoised at the source", dname))
			case nDenoised > 0:
				return UnsupportedStateError{Reason: fmt.Sprintf(
					"computing %s when only some polarizations are denoised: %v", dname, denoised)}
			default:
				noise, ok := d.vars[NoiseEquivalentName(name)]
				if !ok {
					log.Debug("xsar: skipping variable: no noise equivalent")
					continue
				}
				v, err := Denoise(dname, raw, noise, d.opts.ClipDenoised)
				if err != nil {
					return err
				}
				d.vars[dname] = v
			}
			n++
		}
		if n == 0 {
			d.skip(StateDenoised, "nothing to denoise")
			return nil
		}
		d.enter(StateDenoised)
		return nil
	}
}

// Finalize marks the dataset as ready.
func Finalize() DatasetManipulator {
	return func(d *Dataset) error {
		d.enter(StateReady)
		return nil
	}
}
