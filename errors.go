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
	"strings"
)

// ConfigurationError is returned when a LUT or variable is requested
// that is not registered.
type ConfigurationError struct {
	Kind    string // "lut" or "variable"
	Name    string
	Allowed []string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("xsar: %s '%s' is not registered; allowed values are: %s",
		e.Kind, e.Name, strings.Join(e.Allowed, ", "))
}

// UnsupportedStateError is returned when the product is in a state
// that cannot be processed, for example when only some of the
// polarizations have been denoised at the source.
type UnsupportedStateError struct {
	Reason string
}

func (e UnsupportedStateError) Error() string {
	return "xsar: not implemented: " + e.Reason
}

// PrecisionWarning reports a computation that completed but lost
// information, for example reconstructing a complex digital number
// from its magnitude only.
type PrecisionWarning struct {
	Variable string
	Reason   string
}

func (w PrecisionWarning) Error() string {
	return fmt.Sprintf("xsar: precision loss computing %s: %s", w.Variable, w.Reason)
}
