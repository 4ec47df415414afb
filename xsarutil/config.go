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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xsar"
	"github.com/spatialmodel/xsar/product"
	"github.com/spf13/cast"
)

// wgs84 is the projection of footprint shapefiles.
const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// setLogLevel sets the level and format of the standard logger.
func setLogLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("xsar: invalid loglevel: %v", err)
	}
	logrus.SetLevel(l)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
	return nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("xsar: you need to specify an output file (for example: --output=output.nc)")
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("xsar: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("xsar: parsing %s: %v", varName, err)
		}
		return o, nil
	case nil:
		return make(map[string]string), nil
	default:
		return nil, fmt.Errorf("xsar: invalid type for %s: %T", varName, i)
	}
}

// getIntSlice returns a []int from a viper configuration. A single
// integer gives a slice of length one.
func getIntSlice(varName string, cfg *viper.Viper) ([]int, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case string:
		v = strings.Trim(strings.TrimSpace(v), "[]")
		if v == "" {
			return nil, nil
		}
		parts := strings.Split(v, ",")
		o := make([]int, len(parts))
		for j, p := range parts {
			n, err := cast.ToIntE(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("xsar: reading '%s': %v", varName, err)
			}
			o[j] = n
		}
		return o, nil
	case int, int64, float64:
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("xsar: reading '%s': %v", varName, err)
		}
		return []int{n}, nil
	default:
		o, err := cast.ToIntSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("xsar: reading '%s': %v", varName, err)
		}
		return o, nil
	}
}

// pair converts a list of one or two positive integers to a line
// and a sample value.
func pair(name string, v []int) (line, sample int, err error) {
	switch len(v) {
	case 1:
		line, sample = v[0], v[0]
	case 2:
		line, sample = v[0], v[1]
	default:
		return 0, 0, fmt.Errorf("xsar: '%s' must have one or two values but has %d", name, len(v))
	}
	if line < 1 || sample < 1 {
		return 0, 0, fmt.Errorf("xsar: '%s' values must be positive: %v", name, v)
	}
	return line, sample, nil
}

// datasetOptions returns the dataset options specified by cfg.
func datasetOptions(cfg *viper.Viper) (xsar.Options, error) {
	opts := xsar.DefaultOptions()
	res, err := getIntSlice("resolution", cfg)
	if err != nil {
		return opts, err
	}
	if len(res) != 0 {
		l, s, err := pair("resolution", res)
		if err != nil {
			return opts, err
		}
		if l != 1 || s != 1 {
			opts.Resolution = &xsar.Resolution{Line: l, Sample: s}
		}
	}
	chunks, err := getIntSlice("chunks", cfg)
	if err != nil {
		return opts, err
	}
	if len(chunks) != 0 {
		l, s, err := pair("chunks", chunks)
		if err != nil {
			return opts, err
		}
		opts.Chunks = xsar.Chunks{Line: l, Sample: s}
	}
	opts.Resampling, err = xsar.ParseResampling(cfg.GetString("resampling"))
	if err != nil {
		return opts, err
	}
	opts.Luts = cfg.GetBool("luts")
	opts.ClipDenoised = cfg.GetBool("clipdenoised")
	return opts, nil
}

func parseInfoLevel(s string) (xsar.InfoLevel, error) {
	switch strings.ToLower(s) {
	case "minimal":
		return xsar.InfoMinimal, nil
	case "all", "":
		return xsar.InfoAll, nil
	default:
		return 0, fmt.Errorf("xsar: invalid infolevel '%s'", s)
	}
}

// openProduct opens the product descriptor specified by cfg.
func openProduct(cfg *viper.Viper) (*product.Product, error) {
	path := os.ExpandEnv(cfg.GetString("product"))
	if path == "" {
		return nil, fmt.Errorf("xsar: you need to specify a product descriptor (for example: --product=product.toml)")
	}
	return product.Open(path)
}

// openDataset opens the dataset specified by cfg. The returned product
// must be closed once the dataset is no longer needed.
func openDataset(cfg *viper.Viper) (*xsar.Dataset, *product.Product, error) {
	opts, err := datasetOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := openProduct(cfg)
	if err != nil {
		return nil, nil, err
	}
	d, err := xsar.Open(p, opts, xsar.WithLogger(logrus.StandardLogger()))
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return d, p, nil
}

// printInfo writes i to w, one attribute per line.
func printInfo(w io.Writer, i xsar.Info) error {
	type attr struct {
		name  string
		value interface{}
	}
	attrs := []attr{
		{"satellite", i.Satellite},
		{"swath", i.Swath},
		{"product", i.Product},
		{"pols", i.Pols},
	}
	if i.Name != "" {
		fp, err := geojson.Encode(i.Footprint)
		if err != nil {
			return errors.Wrap(err, "xsar: encoding footprint")
		}
		attrs = append(attrs,
			attr{"name", i.Name},
			attr{"start_date", i.StartDate.Format(time.RFC3339Nano)},
			attr{"stop_date", i.StopDate.Format(time.RFC3339Nano)},
			attr{"coverage", i.Coverage},
			attr{"pixel_line_m", i.PixelLineM},
			attr{"pixel_sample_m", i.PixelSampleM},
			attr{"approx_transform", i.ApproxTransform},
			attr{"cross_antimeridian", i.CrossAntimeridian},
			attr{"footprint", string(fp)},
		)
	}
	for _, a := range attrs {
		if _, err := fmt.Fprintf(w, "%-20s%v\n", a.name, a.value); err != nil {
			return err
		}
	}
	return nil
}

// printPairs writes the coordinates in c to w, one pair per line.
func printPairs(w io.Writer, c xsar.SequenceCoords) error {
	for i := range c.X {
		if _, err := fmt.Fprintf(w, "%s %s\n", formatCoord(c.X[i]), formatCoord(c.Y[i])); err != nil {
			return err
		}
	}
	return nil
}

func formatCoord(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return cast.ToString(v)
}

// WriteFootprint writes the footprint of d to path, as a shapefile if
// path ends in ".shp" and as GeoJSON otherwise. If path is empty the
// GeoJSON is written to w.
func WriteFootprint(d *xsar.Dataset, path string, w io.Writer) error {
	fp, err := d.Footprint()
	if err != nil {
		return err
	}
	path = os.ExpandEnv(path)
	if strings.ToLower(filepath.Ext(path)) != ".shp" {
		b, err := geojson.Encode(fp)
		if err != nil {
			return errors.Wrap(err, "xsar: encoding footprint")
		}
		if path == "" {
			_, err = fmt.Fprintln(w, string(b))
			return err
		}
		return errors.Wrap(writeFile(path, b), "xsar: writing footprint")
	}

	attrs, err := d.Attrs()
	if err != nil {
		return err
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON,
		goshp.StringField("name", 80),
		goshp.StringField("pols", 20),
		goshp.StringField("coverage", 40),
		goshp.FloatField("line_m", 14, 3),
		goshp.FloatField("sample_m", 14, 3),
	)
	if err != nil {
		return fmt.Errorf("xsar: creating footprint shapefile: %v", err)
	}
	err = e.EncodeFields(fp, attrs.Name, attrs.Pols, attrs.Coverage, attrs.PixelLineM, attrs.PixelSampleM)
	e.Close()
	if err != nil {
		return fmt.Errorf("xsar: writing footprint shapefile: %v", err)
	}
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	return errors.Wrap(writeFile(prj, []byte(wgs84)), "xsar: writing footprint projection")
}

func writeFile(path string, b []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Convert writes the variables of d named in variables, or all of them
// if variables is empty, and the derived outputVariables to a netCDF
// file at path.
func Convert(ctx context.Context, d *xsar.Dataset, path string, variables []string, outputVariables map[string]string) error {
	wr, err := xsar.NewWriter(outputVariables, nil)
	if err != nil {
		return err
	}
	wr.Variables = variables
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("xsar: creating output file: %v", err)
	}
	if err := wr.Write(ctx, d, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Synthesize writes a synthetic product configured by cfg to the
// descriptor file at path.
func Synthesize(cfg *viper.Viper, path string) error {
	c := product.DefaultSyntheticConfig()
	c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c.Lines = cfg.GetInt("synth.lines")
	c.Samples = cfg.GetInt("synth.samples")
	c.Pols = expandStringSlice(cfg.GetStringSlice("synth.pols"))
	c.Lon0 = cfg.GetFloat64("synth.lon0")
	c.Lat0 = cfg.GetFloat64("synth.lat0")
	c.Complex = cfg.GetBool("synth.complex")
	m, err := product.Synthetic(c)
	if err != nil {
		return err
	}
	if err := m.WriteDescriptor(path); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"product": path, "lines": c.Lines, "samples": c.Samples}).Info("wrote synthetic product")
	return nil
}
