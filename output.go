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
	"math"
	"os"
	"sort"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultDTypes returns the default storage type of variables written
// to netCDF files. Variables that are not listed are stored as "f8".
func DefaultDTypes() map[string]string {
	return map[string]string{
		"longitude":       "f4",
		"latitude":        "f4",
		"incidence":       "f4",
		"elevation":       "f4",
		"noise_lut":       "f4",
		"noise_lut_range": "f4",
		"noise_lut_azi":   "f4",
		"nesz":            "f4",
		"negz":            "f4",
		"nebz":            "f4",
	}
}

// DefaultOutputFunctions returns the functions available in output
// expressions:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'log10(x)' which takes the base-10 logarithm of x.
//
// 'sqrt(x)' which takes the square root of x.
//
// 'dB(x)' which converts a linear value to decibels, 10*log10(x).
func DefaultOutputFunctions() map[string]govaluate.ExpressionFunction {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("xsar: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			return f(arg[0].(float64)), nil
		}
	}
	return map[string]govaluate.ExpressionFunction{
		"exp":   unary("exp", math.Exp),
		"log10": unary("log10", math.Log10),
		"sqrt":  unary("sqrt", math.Sqrt),
		"dB":    unary("dB", func(x float64) float64 { return 10 * math.Log10(x) }),
	}
}

// Writer writes datasets to netCDF files.
type Writer struct {
	// Variables are the names of the dataset variables to write.
	// If empty, every variable is written.
	Variables []string

	// DTypes holds the storage type, "f4" or "f8", of variables.
	DTypes map[string]string

	expressions map[string]*govaluate.EvaluableExpression

	Log logrus.FieldLogger
}

// NewWriter creates a Writer. outputVariables maps the names of
// additional variables to expressions of dataset variables, for
// example {"sigma0_db": "dB(sigma0)"}. outputFunctions are added to
// DefaultOutputFunctions.
func NewWriter(outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Writer, error) {
	funcs := DefaultOutputFunctions()
	for k, f := range outputFunctions {
		funcs[k] = f
	}
	wr := &Writer{
		DTypes:      DefaultDTypes(),
		expressions: make(map[string]*govaluate.EvaluableExpression),
		Log:         logrus.StandardLogger(),
	}
	for name, expr := range outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("xsar: parsing output variable %s: %v", name, err)
		}
		wr.expressions[name] = e
	}
	return wr, nil
}

func uniqueStrings(s []string) []string {
	m := make(map[string]struct{})
	var o []string
	for _, v := range s {
		if _, ok := m[v]; !ok {
			m[v] = struct{}{}
			o = append(o, v)
		}
	}
	return o
}

// Derived returns the variables defined by the output expressions of wr.
func (wr *Writer) Derived(d *Dataset) (map[string]*Variable, error) {
	o := make(map[string]*Variable, len(wr.expressions))
	for name, e := range wr.expressions {
		names := uniqueStrings(e.Vars())
		inputs := make([]*Variable, len(names))
		params := make(map[string]interface{}, len(names))
		for i, n := range names {
			var err error
			if inputs[i], err = d.Variable(n); err != nil {
				return nil, errors.Wrapf(err, "xsar: output variable %s", name)
			}
			params[n] = 1.
		}
		if len(inputs) == 0 {
			return nil, fmt.Errorf("xsar: output variable %s does not use any dataset variables", name)
		}
		// Check the expression once so that evaluation errors are
		// reported here rather than as missing values.
		r, err := e.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("xsar: evaluating output variable %s: %v", name, err)
		}
		if _, ok := r.(float64); !ok {
			return nil, fmt.Errorf("xsar: output variable %s evaluates to %T, not a number", name, r)
		}
		e := e
		v, err := MapVariables(name, func(vals []float64) float64 {
			p := make(map[string]interface{}, len(names))
			for i, n := range names {
				p[n] = vals[i]
			}
			r, err := e.Evaluate(p)
			if err != nil {
				return math.NaN()
			}
			f, ok := r.(float64)
			if !ok {
				return math.NaN()
			}
			return f
		}, inputs...)
		if err != nil {
			return nil, err
		}
		v.Description = e.String()
		o[name] = v
	}
	return o, nil
}

// Write computes the variables of d and writes them with their
// coordinates and the dataset attributes to w.
func (wr *Writer) Write(ctx context.Context, d *Dataset, w *os.File) error {
	names := wr.Variables
	if len(names) == 0 {
		names = d.VariableNames()
	}
	vars := make(map[string]*Variable, len(names))
	for _, n := range names {
		v, err := d.Variable(n)
		if err != nil {
			return err
		}
		vars[n] = v
	}
	derived, err := wr.Derived(d)
	if err != nil {
		return err
	}
	for n, v := range derived {
		if _, ok := vars[n]; ok {
			return fmt.Errorf("xsar: output variable %s has the same name as a dataset variable", n)
		}
		vars[n] = v
	}
	names = names[:0:0]
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	attrs, err := d.Attrs()
	if err != nil {
		return err
	}

	dims := []string{"line", "sample"}
	lengths := []int{len(d.Lines), len(d.Samples)}
	if len(d.Pols) > 0 {
		dims = append(dims, "pol")
		lengths = append(lengths, len(d.Pols))
	}
	h := cdf.NewHeader(dims, lengths)
	if err := addGlobalAttributes(h, d, attrs); err != nil {
		return err
	}
	h.AddVariable("line", []string{"line"}, []float64{0})
	h.AddAttribute("line", "description", "image line of the pixel centers")
	h.AddAttribute("line", "units", "pixel")
	h.AddVariable("sample", []string{"sample"}, []float64{0})
	h.AddAttribute("sample", "description", "image sample of the pixel centers")
	h.AddAttribute("sample", "units", "pixel")

	for _, n := range names {
		v := vars[n]
		vdims := []string{"line", "sample"}
		if v.HasPol() {
			if len(d.Pols) == 0 {
				return fmt.Errorf("xsar: variable %s has polarizations but the dataset has none", n)
			}
			vdims = []string{"pol", "line", "sample"}
		}
		switch dt := wr.dtype(n); dt {
		case "f4":
			h.AddVariable(n, vdims, []float32{0})
		case "f8":
			h.AddVariable(n, vdims, []float64{0})
		default:
			return fmt.Errorf("xsar: invalid dtype '%s' for variable %s", dt, n)
		}
		if v.Description != "" {
			h.AddAttribute(n, "description", v.Description)
		}
		if v.Units != "" {
			h.AddAttribute(n, "units", v.Units)
		}
		if v.Category != "" {
			h.AddAttribute(n, "category", string(v.Category))
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("xsar: creating netcdf file: %v", err)
	}
	if err := writeNCF(f, "line", d.Lines); err != nil {
		return err
	}
	if err := writeNCF(f, "sample", d.Samples); err != nil {
		return err
	}
	for _, n := range names {
		wr.Log.WithFields(logrus.Fields{"var": n}).Debug("xsar: writing variable")
		data, err := computeVariable(ctx, d, vars[n])
		if err != nil {
			return errors.Wrapf(err, "xsar: computing variable %s", n)
		}
		switch wr.dtype(n) {
		case "f4":
			data32 := make([]float32, len(data))
			for i, e := range data {
				data32[i] = float32(e)
			}
			err = writeNCF(f, n, data32)
		default:
			err = writeNCF(f, n, data)
		}
		if err != nil {
			return fmt.Errorf("xsar: writing variable %s to netcdf file: %v", n, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func (wr *Writer) dtype(name string) string {
	if dt, ok := wr.DTypes[name]; ok {
		return dt
	}
	return "f8"
}

func addGlobalAttributes(h *cdf.Header, d *Dataset, i Info) error {
	fp, err := geojson.Encode(i.Footprint)
	if err != nil {
		return fmt.Errorf("xsar: encoding footprint: %v", err)
	}
	h.AddAttribute("", "data_version", DataVersion)
	for _, a := range []struct{ name, val string }{
		{"name", i.Name},
		{"satellite", i.Satellite},
		{"swath", i.Swath},
		{"product", i.Product},
		{"pols", i.Pols},
		{"start_date", i.StartDate.Format(time.RFC3339Nano)},
		{"stop_date", i.StopDate.Format(time.RFC3339Nano)},
		{"footprint", string(fp)},
		{"coverage", i.Coverage},
	} {
		// Empty attributes can't be stored.
		if a.val != "" {
			h.AddAttribute("", a.name, a.val)
		}
	}
	h.AddAttribute("", "pixel_line_m", []float64{i.PixelLineM})
	h.AddAttribute("", "pixel_sample_m", []float64{i.PixelSampleM})
	h.AddAttribute("", "approx_transform", i.ApproxTransform[:])
	cross := int32(0)
	if i.CrossAntimeridian {
		cross = 1
	}
	h.AddAttribute("", "cross_antimeridian", []int32{cross})
	sliced := int32(0)
	if d.Sliced() {
		sliced = 1
	}
	h.AddAttribute("", "sliced", []int32{sliced})
	return nil
}

// computeVariable returns the values of v for every polarization of d,
// in (pol, line, sample) order.
func computeVariable(ctx context.Context, d *Dataset, v *Variable) ([]float64, error) {
	if !v.HasPol() {
		a, err := v.Data[0].Compute(ctx)
		if err != nil {
			return nil, err
		}
		return a.Elements, nil
	}
	n := len(d.Lines) * len(d.Samples)
	o := make([]float64, 0, n*len(d.Pols))
	for _, p := range d.Pols {
		arr, err := v.Pol(p)
		if err != nil {
			return nil, err
		}
		a, err := arr.Compute(ctx)
		if err != nil {
			return nil, err
		}
		o = append(o, a.Elements...)
	}
	return o, nil
}

func writeNCF(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	n := 1
	for _, v := range end {
		n *= v
	}
	var l int
	switch d := data.(type) {
	case []float64:
		l = len(d)
	case []float32:
		l = len(d)
	default:
		return fmt.Errorf("xsar: unsupported netcdf data type %T", data)
	}
	if l != n {
		return fmt.Errorf("dims are %d but array length is %d", n, l)
	}
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data)
	return err
}

// ReadNCF reads variable name from a netCDF file written by Writer.
// The result has the shape of the variable.
func ReadNCF(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("xsar: variable %s is not in the netcdf file", name)
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("xsar: reading netcdf variable %s: %v", name, err)
	}
	o := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float64:
		copy(o.Elements, b)
	case []float32:
		for i, v := range b {
			o.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("xsar: unsupported netcdf type %T for variable %s", buf, name)
	}
	return o, nil
}
