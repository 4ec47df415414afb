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
	"fmt"
	"math"
	"sort"
	"strings"
)

// calibrationLuts maps each raw backscatter variable to the lookup
// table it is calibrated with.
var calibrationLuts = map[string]string{
	"sigma0_raw": "sigma0_lut",
	"gamma0_raw": "gamma0_lut",
	"beta0_raw":  "beta0_lut",
}

// RawVariables returns the names of the raw backscatter variables.
func RawVariables() []string {
	o := make([]string, 0, len(calibrationLuts))
	for k := range calibrationLuts {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// CalibrationLut returns the name of the lookup table used to
// calibrate the raw variable varName.
func CalibrationLut(varName string) (string, error) {
	lut, ok := calibrationLuts[varName]
	if !ok {
		return "", ConfigurationError{Kind: "variable", Name: varName, Allowed: RawVariables()}
	}
	return lut, nil
}

// NoiseEquivalentName returns the name of the noise equivalent of a
// backscatter variable, e.g. nesz for sigma0 or sigma0_raw.
func NoiseEquivalentName(varName string) string {
	return fmt.Sprintf("ne%sz", varName[:1])
}

// DenoisedName returns the name of the denoised version of a raw variable.
func DenoisedName(rawName string) string {
	return strings.TrimSuffix(rawName, "_raw")
}

// A digital number of exactly zero is the sensor fill value, so its
// calibrated value is missing rather than zero.
func calibrate(dn, lut float64) float64 {
	v := dn * dn / (lut * lut)
	if !(v > 0) {
		return math.NaN()
	}
	return v
}

func reverseCalibrate(raw, lut float64) float64 {
	return math.Sqrt(raw * lut * lut)
}

func noiseEquivalent(noise, lut float64) float64 {
	return noise / (lut * lut)
}

func denoise(raw, noise float64, clip bool) float64 {
	d := raw - noise
	if clip && d < 0 {
		return 0
	}
	return d
}

// ApplyCalibration returns |dn|^2 / lut^2, with the name name.
func ApplyCalibration(name string, dn, lut *Variable) (*Variable, error) {
	v, err := MapVariables(name, func(v []float64) float64 {
		return calibrate(v[0], v[1])
	}, dn, lut)
	if err != nil {
		return nil, err
	}
	v.Description = fmt.Sprintf("%s calibrated with %s", name, lut.Name)
	v.Units = "m2/m2"
	return v, nil
}

// ReverseCalibration reconstructs the digital number from a calibrated
// variable as sqrt(raw * lut^2). If the source digital number was
// complex, only its magnitude can be recovered and a PrecisionWarning
// is returned along with the result.
func ReverseCalibration(raw, lut *Variable, complexSource bool) (*Variable, *PrecisionWarning, error) {
	v, err := MapVariables("digital_number", func(v []float64) float64 {
		return reverseCalibrate(v[0], v[1])
	}, raw, lut)
	if err != nil {
		return nil, nil, err
	}
	v.Description = fmt.Sprintf("digital number reconstructed from %s", raw.Name)
	v.Units = "1"
	if complexSource {
		return v, &PrecisionWarning{
			Variable: v.Name,
			Reason:   "the source digital number is complex; the phase is lost",
		}, nil
	}
	return v, nil, nil
}

// NoiseEquivalent returns noiseLut / lut^2, named after varName.
func NoiseEquivalent(varName string, noiseLut, lut *Variable) (*Variable, error) {
	name := NoiseEquivalentName(varName)
	v, err := MapVariables(name, func(v []float64) float64 {
		return noiseEquivalent(v[0], v[1])
	}, noiseLut, lut)
	if err != nil {
		return nil, err
	}
	v.Description = fmt.Sprintf("noise equivalent %s", DenoisedName(varName))
	v.Units = "m2/m2"
	return v, nil
}

// Denoise returns raw - noise. If clip is true, negative results are
// replaced by zero.
func Denoise(name string, raw, noise *Variable, clip bool) (*Variable, error) {
	v, err := MapVariables(name, func(v []float64) float64 {
		return denoise(v[0], v[1], clip)
	}, raw, noise)
	if err != nil {
		return nil, err
	}
	v.Description = fmt.Sprintf("denoised %s", name)
	v.Units = raw.Units
	return v, nil
}
