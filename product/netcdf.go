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
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/xsar"
)

// Product is a product whose digital numbers are read from netCDF
// measurement files. Everything else is held in memory.
type Product struct {
	*Memory

	variable string

	mu    sync.Mutex
	files map[string]*measurement
}

// measurement is an opened measurement file.
type measurement struct {
	once sync.Once
	path string
	ff   *os.File
	f    *cdf.File
	err  error
}

func (m *measurement) open() (*cdf.File, error) {
	m.once.Do(func() {
		m.ff, m.err = os.Open(m.path)
		if m.err != nil {
			return
		}
		m.f, m.err = cdf.Open(m.ff)
		if m.err != nil {
			m.err = fmt.Errorf("product: opening measurement file %s: %v", m.path, m.err)
		}
	})
	return m.f, m.err
}

// Open returns a Product reading the measurement files listed in d.
// Files are opened on first use.
func (d *Descriptor) Open() (*Product, error) {
	m, err := d.Memory()
	if err != nil {
		return nil, err
	}
	p := &Product{
		Memory:   m,
		variable: d.MeasurementVariable,
		files:    make(map[string]*measurement),
	}
	for _, f := range m.PolFiles {
		if f.Measurement == "" {
			continue
		}
		p.files[f.Polarization] = &measurement{path: f.Measurement}
	}
	return p, nil
}

// Close closes the measurement files that have been opened.
func (p *Product) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for _, m := range p.files {
		if m.ff != nil {
			if e := m.ff.Close(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}

// ReadDigitalNumber implements xsar.MetadataProvider.
func (p *Product) ReadDigitalNumber(ctx context.Context, pol string, w xsar.Window, res *xsar.Resolution, r xsar.Resampling) (*sparse.DenseArray, error) {
	p.mu.Lock()
	m, ok := p.files[pol]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("product: no measurement file for polarization %s", pol)
	}
	f, err := m.open()
	if err != nil {
		return nil, err
	}
	src := func(ctx context.Context, fw xsar.Window) (*sparse.DenseArray, error) {
		if !p.Complex {
			return readWindow(ctx, f, p.variable, fw)
		}
		re, err := readWindow(ctx, f, p.variable+"_real", fw)
		if err != nil {
			return nil, err
		}
		im, err := readWindow(ctx, f, p.variable+"_imag", fw)
		if err != nil {
			return nil, err
		}
		for i, v := range re.Elements {
			re.Elements[i] = math.Hypot(v, im.Elements[i])
		}
		return re, nil
	}
	return readResampled(ctx, src, p.NLines, p.NSamples, w, res, r)
}

// readWindow reads window w of the 2-D variable name, one line at a
// time.
func readWindow(ctx context.Context, f *cdf.File, name string, w xsar.Window) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	if len(dims) != 2 {
		return nil, fmt.Errorf("product: measurement variable %s must have 2 dimensions but has %d", name, len(dims))
	}
	if w.Line+w.Lines > dims[0] || w.Sample+w.Samples > dims[1] {
		return nil, fmt.Errorf("product: window %v is outside of variable %s with shape %v", w, name, dims)
	}
	o := sparse.ZerosDense(w.Lines, w.Samples)
	if w.Samples == 0 {
		return o, nil
	}
	for i := 0; i < w.Lines; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		l := w.Line + i
		r := f.Reader(name, []int{l, w.Sample}, []int{l, w.Sample + w.Samples - 1})
		buf := r.Zero(w.Samples)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("product: reading line %d of %s: %v", l, name, err)
		}
		row := o.Elements[i*w.Samples : (i+1)*w.Samples]
		switch b := buf.(type) {
		case []float64:
			copy(row, b)
		case []float32:
			for j, v := range b {
				row[j] = float64(v)
			}
		case []int32:
			for j, v := range b {
				row[j] = float64(v)
			}
		case []int16:
			for j, v := range b {
				row[j] = float64(v)
			}
		case []uint8:
			for j, v := range b {
				row[j] = float64(v)
			}
		default:
			return nil, fmt.Errorf("product: unsupported netcdf type %T for variable %s", buf, name)
		}
	}
	return o, nil
}
