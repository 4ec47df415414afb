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
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xsar/internal/hash"
)

// LutCategory is the kind of file a lookup table is stored in.
type LutCategory string

// Lookup table categories.
const (
	CategoryCalibration LutCategory = "calibration"
	CategoryNoise       LutCategory = "noise"
	CategoryAnnotation  LutCategory = "annotation"
)

// LutSpec describes a registered lookup table.
type LutSpec struct {
	Category    LutCategory
	PerPol      bool // whether the table differs between polarizations
	Description string
	Units       string
}

// DefaultLutRegistry returns the lookup tables that can be loaded.
// A new map is returned on every call.
func DefaultLutRegistry() map[string]LutSpec {
	return map[string]LutSpec{
		"sigma0_lut":      {Category: CategoryCalibration, PerPol: true, Description: "sigma0 calibration lookup table", Units: "1"},
		"gamma0_lut":      {Category: CategoryCalibration, PerPol: true, Description: "gamma0 calibration lookup table", Units: "1"},
		"beta0_lut":       {Category: CategoryCalibration, PerPol: true, Description: "beta0 calibration lookup table", Units: "1"},
		"noise_lut_range": {Category: CategoryNoise, PerPol: true, Description: "range noise lookup table", Units: "1"},
		"noise_lut_azi":   {Category: CategoryNoise, PerPol: true, Description: "azimuth noise lookup table", Units: "1"},
		"incidence":       {Category: CategoryAnnotation, Description: "incidence angle", Units: "degrees"},
		"elevation":       {Category: CategoryAnnotation, Description: "elevation angle", Units: "degrees"},
	}
}

// LutStore loads lookup tables as arrays aligned to an image grid.
type LutStore struct {
	meta           *Metadata
	lines, samples []float64
	chunks         Chunks
	registry       map[string]LutSpec
	token          string

	// Cache holds the computed chunks of the tables. nil selects
	// SharedChunkCache.
	Cache *ChunkCache

	Log logrus.FieldLogger
}

// NewLutStore creates a store for tables evaluated at the given
// image coordinates.
func NewLutStore(meta *Metadata, lines, samples []float64, chunks Chunks) *LutStore {
	return &LutStore{
		meta:     meta,
		lines:    lines,
		samples:  samples,
		chunks:   chunks,
		registry: DefaultLutRegistry(),
		token:    hash.Short(meta.Name(), 12),
		Log:      meta.Log,
	}
}

// Registry returns a copy of the tables registered in s.
func (s *LutStore) Registry() map[string]LutSpec {
	o := make(map[string]LutSpec, len(s.registry))
	for k, v := range s.registry {
		o[k] = v
	}
	return o
}

// Register adds a table to the registry of s.
func (s *LutStore) Register(name string, spec LutSpec) {
	s.registry[name] = spec
}

func (s *LutStore) registered() []string {
	o := make([]string, 0, len(s.registry))
	for k := range s.registry {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// orderedFiles returns the polarization files in manifest order.
func (s *LutStore) orderedFiles() []PolarizationFiles {
	files := append([]PolarizationFiles{}, s.meta.provider.Files()...)
	code := make(map[string]int)
	for i, p := range s.meta.manifest.Polarizations {
		code[p] = i
	}
	sort.SliceStable(files, func(i, j int) bool {
		ci, ok := code[files[i].Polarization]
		if !ok {
			ci = len(code)
		}
		cj, ok := code[files[j].Polarization]
		if !ok {
			cj = len(code)
		}
		return ci < cj
	})
	return files
}

// deferredLut reads a table from the provider on first use.
type deferredLut struct {
	once sync.Once
	load func() (LutFunc, error)
	f    LutFunc
	err  error
}

func (d *deferredLut) get() (LutFunc, error) {
	d.once.Do(func() { d.f, d.err = d.load() })
	return d.f, d.err
}

// Load returns the named tables. Tables that are not present in the
// product are skipped. If both noise_lut_range and noise_lut_azi are
// loaded, their product is added as noise_lut.
func (s *LutStore) Load(names ...string) (map[string]*Variable, error) {
	names = append([]string{}, names...)
	sort.Strings(names)
	for _, name := range names {
		if _, ok := s.registry[name]; !ok {
			return nil, ConfigurationError{Kind: "lut", Name: name, Allowed: s.registered()}
		}
	}
	files := s.orderedFiles()
	o := make(map[string]*Variable)
	for _, name := range names {
		spec := s.registry[name]
		fs := files
		if !spec.PerPol && len(fs) > 1 {
			fs = fs[:1]
		}
		v, err := s.load(name, spec, fs)
		if err != nil {
			return nil, err
		}
		if v != nil {
			o[name] = v
		}
	}
	rng, okR := o["noise_lut_range"]
	azi, okA := o["noise_lut_azi"]
	if okR && okA {
		n, err := MapVariables("noise_lut", func(v []float64) float64 { return v[0] * v[1] }, rng, azi)
		if err != nil {
			return nil, err
		}
		n.Description = "noise lookup table"
		n.Units = "1"
		n.Category = CategoryNoise
		o["noise_lut"] = n
	}
	return o, nil
}

func (s *LutStore) load(name string, spec LutSpec, files []PolarizationFiles) (*Variable, error) {
	log := s.Log.WithFields(logrus.Fields{"lut": name})
	if len(files) == 0 {
		log.Debug("xsar: skipping lookup table: no files")
		return nil, nil
	}
	v := &Variable{
		Name:        name,
		Description: spec.Description,
		Units:       spec.Units,
		Category:    spec.Category,
	}
	p := s.meta.provider
	for _, f := range files {
		path := f.File(spec.Category)
		if path == "" || !p.HasLut(path, name) {
			log.WithFields(logrus.Fields{"pol": f.Polarization, "file": path}).
				Debug("xsar: skipping lookup table: not in product")
			return nil, nil
		}
		d := &deferredLut{load: func() (LutFunc, error) {
			lf, err := p.Lut(path, name)
			if err != nil {
				return nil, errors.Wrapf(err, "xsar: reading lookup table %s from %s", name, path)
			}
			return lf, nil
		}}
		a := NewLazyArray(fmt.Sprintf("%s_%s-%s", name, f.Polarization, s.token), s.lines, s.samples, s.chunks,
			func(_ context.Context, w Window) (*sparse.DenseArray, error) {
				lf, err := d.get()
				if err != nil {
					return nil, err
				}
				return lf(s.lines[w.Line:w.Line+w.Lines], s.samples[w.Sample:w.Sample+w.Samples])
			})
		a.SetCache(s.Cache)
		v.Data = append(v.Data, a)
		if spec.PerPol {
			v.Pols = append(v.Pols, f.Polarization)
		}
	}
	return v, nil
}
