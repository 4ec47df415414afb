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

// Command xsar is a command-line interface for the geolocation and
// calibration of SAR products.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/xsar/xsarutil"
)

func main() {
	if err := xsarutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
