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
)

// Variable is a named quantity over (pol, line, sample) or, if it does
// not depend on polarization, over (line, sample).
type Variable struct {
	Name        string
	Description string
	Units       string

	// Category is the LUT category the variable was read from, if any.
	Category LutCategory

	// Pols holds the polarization of each element of Data. It is nil
	// for variables that do not depend on polarization, in which case
	// Data has a single element.
	Pols []string
	Data []*LazyArray
}

// HasPol returns whether v depends on polarization.
func (v *Variable) HasPol() bool { return v.Pols != nil }

// Pol returns the array for polarization pol. Polarization-invariant
// variables return their only array for any pol.
func (v *Variable) Pol(pol string) (*LazyArray, error) {
	if !v.HasPol() {
		return v.Data[0], nil
	}
	for i, p := range v.Pols {
		if p == pol {
			return v.Data[i], nil
		}
	}
	return nil, fmt.Errorf("xsar: variable %s has no polarization %s", v.Name, pol)
}

// Rename returns a shallow copy of v with a new name and description.
// The arrays are shared.
func (v *Variable) Rename(name, description string) *Variable {
	o := *v
	o.Name = name
	o.Description = description
	return &o
}

// Slice returns a copy of v restricted to the given ranges.
func (v *Variable) Slice(lines, samples IndexRange) (*Variable, error) {
	o := *v
	o.Data = make([]*LazyArray, len(v.Data))
	for i, d := range v.Data {
		var err error
		if o.Data[i], err = d.Slice(lines, samples); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

// MapVariables applies f element-wise to the inputs. If any input
// depends on polarization the result has the polarizations of the
// first such input, and polarization-invariant inputs are broadcast.
func MapVariables(name string, f func(vals []float64) float64, inputs ...*Variable) (*Variable, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("xsar: %s: no input variables", name)
	}
	var pols []string
	for _, in := range inputs {
		if in.HasPol() {
			pols = in.Pols
			break
		}
	}
	o := &Variable{Name: name, Pols: pols}
	if pols == nil {
		arrays := make([]*LazyArray, len(inputs))
		for i, in := range inputs {
			arrays[i] = in.Data[0]
		}
		a, err := Map(name, f, arrays...)
		if err != nil {
			return nil, err
		}
		o.Data = []*LazyArray{a}
		return o, nil
	}
	for _, p := range pols {
		arrays := make([]*LazyArray, len(inputs))
		for i, in := range inputs {
			var err error
			if arrays[i], err = in.Pol(p); err != nil {
				return nil, err
			}
		}
		a, err := Map(name+"_"+p, f, arrays...)
		if err != nil {
			return nil, err
		}
		o.Data = append(o.Data, a)
	}
	return o, nil
}
