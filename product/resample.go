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

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/xsar"
)

// rasterSource reads a window of a full resolution raster.
type rasterSource func(ctx context.Context, w xsar.Window) (*sparse.DenseArray, error)

// readResampled reads window w of the output grid, where each output
// pixel covers res.Line by res.Sample pixels of src.
func readResampled(ctx context.Context, src rasterSource, nLines, nSamples int, w xsar.Window, res *xsar.Resolution, method xsar.Resampling) (*sparse.DenseArray, error) {
	rl, rs := 1, 1
	if res != nil {
		rl, rs = res.Line, res.Sample
		if rl < 1 || rs < 1 {
			return nil, fmt.Errorf("product: invalid resolution %+v", *res)
		}
	}
	fw := xsar.Window{Line: w.Line * rl, Sample: w.Sample * rs, Lines: w.Lines * rl, Samples: w.Samples * rs}
	if fw.Line < 0 || fw.Sample < 0 || fw.Line+fw.Lines > nLines || fw.Sample+fw.Samples > nSamples {
		return nil, fmt.Errorf("product: window %v at resolution %dx%d is outside of the %dx%d raster",
			w, rl, rs, nLines, nSamples)
	}
	full, err := src(ctx, fw)
	if err != nil {
		return nil, err
	}
	if rl == 1 && rs == 1 {
		return full, nil
	}
	o := sparse.ZerosDense(w.Lines, w.Samples)
	switch method {
	case xsar.ResamplingAverage:
		for i := 0; i < w.Lines; i++ {
			for j := 0; j < w.Samples; j++ {
				var sum float64
				var n int
				for ii := i * rl; ii < (i+1)*rl; ii++ {
					for jj := j * rs; jj < (j+1)*rs; jj++ {
						if v := full.Get(ii, jj); !math.IsNaN(v) {
							sum += v
							n++
						}
					}
				}
				if n == 0 {
					o.Set(math.NaN(), i, j)
				} else {
					o.Set(sum/float64(n), i, j)
				}
			}
		}
	case xsar.ResamplingNearest:
		for i := 0; i < w.Lines; i++ {
			for j := 0; j < w.Samples; j++ {
				o.Set(full.Get(i*rl+rl/2, j*rs+rs/2), i, j)
			}
		}
	default:
		return nil, fmt.Errorf("product: unsupported resampling %v", method)
	}
	return o, nil
}
