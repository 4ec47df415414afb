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

import "math"

// EarthRadius is the mean radius of the earth [m].
const EarthRadius = 6371000.

const deg2rad = math.Pi / 180

// Haversine returns the great circle distance [m] and the initial
// bearing [degrees clockwise from north] from (lon1, lat1) to
// (lon2, lat2). Inputs are in degrees.
func Haversine(lon1, lat1, lon2, lat2 float64) (distance, bearing float64) {
	phi1, phi2 := lat1*deg2rad, lat2*deg2rad
	dphi := phi2 - phi1
	dlambda := (lon2 - lon1) * deg2rad

	a := math.Pow(math.Sin(dphi/2), 2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dlambda/2), 2)
	distance = 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	y := math.Sin(dlambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dlambda)
	bearing = math.Atan2(y, x) / deg2rad
	return
}

// lon180 wraps a longitude into [-180, 180).
func lon180(lon float64) float64 {
	l := math.Mod(lon+180, 360)
	if l < 0 {
		l += 360
	}
	return l - 180
}

// lon360 wraps a longitude into [0, 360).
func lon360(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l < 0 {
		l += 360
	}
	return l
}
