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

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xsar"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to xsar.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "product",
			usage: `
              product specifies the location of the product descriptor
              file (.toml, .yaml or .yml).`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel specifies the minimum level of the log messages
              that are printed: debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "resolution",
			usage: `
              resolution specifies the downsampling factor as a list
              of [line, sample] pixel counts. A single value is used for
              both axes. The default is full resolution.`,
			shorthand:  "r",
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "resampling",
			usage: `
              resampling specifies how the digital number is downsampled:
              average or nearest.`,
			defaultVal: "average",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "chunks",
			usage: `
              chunks specifies the [line, sample] size of the blocks
              that arrays are computed in.`,
			defaultVal: []int{5000, 5000},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "luts",
			usage: `
              luts specifies whether the lookup tables are included in
              the dataset variables.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "clipdenoised",
			usage: `
              clipdenoised specifies whether negative denoised values
              are replaced with zero.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "approx",
			usage: `
              approx specifies whether coordinates are converted with the
              approximate affine transform instead of the exact
              ground control point interpolation.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{coords2llCmd.Flags(), ll2coordsCmd.Flags()},
		},
		{
			name: "infolevel",
			usage: `
              infolevel specifies how much product information is
              printed: minimal or all.`,
			defaultVal: "all",
			flagsets:   []*pflag.FlagSet{infoCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the path to the output file. The footprint
              is written as a shapefile if the path ends in .shp and as
              GeoJSON otherwise. The default for footprint is standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags(), footprintCmd.Flags(), synthCmd.Flags()},
		},
		{
			name: "variables",
			usage: `
              variables specifies the dataset variables to be written.
              If empty, every variable is written.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies additional variables to be written,
              as a map of variable names to expressions of the dataset
              variables, for example {"sigma0_db":"dB(sigma0)"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "synth.lines",
			usage: `
              synth.lines specifies the number of lines of the synthetic product.`,
			defaultVal: 40,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.samples",
			usage: `
              synth.samples specifies the number of samples of the synthetic product.`,
			defaultVal: 60,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.pols",
			usage: `
              synth.pols specifies the polarizations of the synthetic product.`,
			defaultVal: []string{"VV", "VH"},
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.lon0",
			usage: `
              synth.lon0 specifies the longitude of the first pixel of the
              synthetic product.`,
			defaultVal: -5.0,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.lat0",
			usage: `
              synth.lat0 specifies the latitude of the first pixel of the
              synthetic product.`,
			defaultVal: 48.0,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.complex",
			usage: `
              synth.complex specifies whether the synthetic measurement is
              stored as complex values.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("XSAR")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	Root.AddCommand(versionCmd)
	Root.AddCommand(infoCmd)
	Root.AddCommand(coords2llCmd)
	Root.AddCommand(ll2coordsCmd)
	Root.AddCommand(footprintCmd)
	Root.AddCommand(convertCmd)
	Root.AddCommand(synthCmd)
}

// setConfig reads the configuration file, if any, and sets the
// logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("xsar: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel(Cfg.GetString("loglevel"))
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "xsar",
	Short: "Geolocation and calibration of SAR products.",
	Long: `xsar gives access to the geolocation and the calibrated backscatter
of synthetic aperture radar (SAR) products.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'XSAR_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.`,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	DisableAutoGenTag: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of xsar.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xsar v%s\n", xsar.Version)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print product information",
	Long: `info prints the description of the product: the mission, swath,
product type and polarizations and, unless --infolevel=minimal, the dates,
footprint, coverage, pixel spacing and approximate transform.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseInfoLevel(Cfg.GetString("infolevel"))
		if err != nil {
			return err
		}
		p, err := openProduct(Cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		meta, err := xsar.NewMetadata(p, xsar.WithLogger(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		return printInfo(cmd.OutOrStdout(), meta.Info(level))
	},
	DisableAutoGenTag: true,
}

var coords2llCmd = &cobra.Command{
	Use:   "coords2ll [flags] -- line sample [line sample...]",
	Short: "Convert image coordinates to longitude and latitude",
	Long: `coords2ll prints the longitude and latitude of each (line, sample)
pair of image coordinates given as arguments. Coordinates follow "--" so
that negative numbers are not read as flags:

	xsar coords2ll --product s1.toml -- 10 30 20 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, samples, err := parsePairs(args)
		if err != nil {
			return err
		}
		p, err := openProduct(Cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		meta, err := xsar.NewMetadata(p, xsar.WithLogger(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		c, err := meta.CoordsToLonLat(xsar.SequenceCoords{X: lines, Y: samples}, false, Cfg.GetBool("approx"))
		if err != nil {
			return err
		}
		return printPairs(cmd.OutOrStdout(), c.(xsar.SequenceCoords))
	},
	DisableAutoGenTag: true,
}

var ll2coordsCmd = &cobra.Command{
	Use:   "ll2coords [flags] -- lon lat [lon lat...]",
	Short: "Convert longitude and latitude to image coordinates",
	Long: `ll2coords prints the (line, sample) image coordinates of each
(longitude, latitude) pair given as arguments, snapped to the nearest pixel
center of the dataset. Points outside of the dataset are printed as NaN.
Coordinates follow "--" so that negative longitudes are not read as flags:

	xsar ll2coords --product s1.toml -- -4.6975 47.885`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lon, lat, err := parsePairs(args)
		if err != nil {
			return err
		}
		d, p, err := openDataset(Cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		var c xsar.Coords
		if Cfg.GetBool("approx") {
			c, err = d.Meta.LonLatToCoords(xsar.SequenceCoords{X: lon, Y: lat}, true)
		} else {
			c, err = d.LonLatToCoords(xsar.SequenceCoords{X: lon, Y: lat})
		}
		if err != nil {
			return err
		}
		return printPairs(cmd.OutOrStdout(), c.(xsar.SequenceCoords))
	},
	DisableAutoGenTag: true,
}

var footprintCmd = &cobra.Command{
	Use:   "footprint",
	Short: "Write the footprint of the dataset",
	Long: `footprint writes the geographic footprint of the dataset at the
configured resolution, either as a shapefile or as GeoJSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, p, err := openDataset(Cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		return WriteFootprint(d, Cfg.GetString("output"), cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Write the dataset to a netCDF file",
	Long: `convert computes the dataset variables and writes them, along with
any configured OutputVariables, to a netCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("output"))
		if err != nil {
			return err
		}
		outputVars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		d, p, err := openDataset(Cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		return Convert(context.Background(), d, outputFile, expandStringSlice(Cfg.GetStringSlice("variables")), checkOutputVars(outputVars))
	},
	DisableAutoGenTag: true,
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic product",
	Long: `synth writes a synthetic product, with a linear geolocation grid and
constant calibration tables, to the descriptor file given by --output and
measurement files alongside it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("output"))
		if err != nil {
			return err
		}
		return Synthesize(Cfg, outputFile)
	},
	DisableAutoGenTag: true,
}

// parsePairs parses an even number of arguments as (x, y) pairs.
func parsePairs(args []string) (x, y []float64, err error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, nil, fmt.Errorf("xsar: coordinates must be given in pairs but there are %d arguments", len(args))
	}
	for i := 0; i < len(args); i += 2 {
		a, err := cast.ToFloat64E(args[i])
		if err != nil {
			return nil, nil, fmt.Errorf("xsar: parsing coordinate '%s': %v", args[i], err)
		}
		b, err := cast.ToFloat64E(args[i+1])
		if err != nil {
			return nil, nil, fmt.Errorf("xsar: parsing coordinate '%s': %v", args[i+1], err)
		}
		x = append(x, a)
		y = append(y, b)
	}
	return x, y, nil
}
