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
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
)

// Window is a rectangular region of an image grid, in grid indices.
type Window struct {
	Line, Sample   int // offset of the first element
	Lines, Samples int // size
}

func (w Window) String() string {
	return fmt.Sprintf("%d_%d_%d_%d", w.Line, w.Sample, w.Lines, w.Samples)
}

// IndexRange is the half-open range [Start, Stop) of indices.
type IndexRange struct {
	Start, Stop int
}

// Len returns the number of indices in r.
func (r IndexRange) Len() int { return r.Stop - r.Start }

// Chunks is the size of the blocks an array is computed in.
type Chunks struct {
	Line, Sample int
}

// BlockFunc computes the values of an array within a window. The
// returned array must have shape [w.Lines, w.Samples].
type BlockFunc func(ctx context.Context, w Window) (*sparse.DenseArray, error)

// DefaultCacheSize is the number of chunks held by SharedChunkCache.
const DefaultCacheSize = 64

// ChunkCache holds the computed chunks of any number of LazyArrays.
// Its workers live as long as the process, so a cache is meant to be
// created once and shared.
type ChunkCache struct {
	c *requestcache.Cache
}

// NewChunkCache creates a cache that keeps up to size chunks in memory.
// Chunks are not kept if size is not positive.
func NewChunkCache(size int) *ChunkCache {
	cf := []requestcache.CacheFunc{requestcache.Deduplicate()}
	if size > 0 {
		cf = append(cf, requestcache.Memory(size))
	}
	return &ChunkCache{
		c: requestcache.NewCache(func(_ context.Context, request interface{}) (interface{}, error) {
			r := request.(chunkRequest)
			return &chunkSlot{a: r.a, w: r.w}, nil
		}, runtime.GOMAXPROCS(-1), cf...),
	}
}

var sharedCache struct {
	once sync.Once
	c    *ChunkCache
}

// SharedChunkCache returns the cache used by arrays that are not
// given one.
func SharedChunkCache() *ChunkCache {
	sharedCache.once.Do(func() {
		sharedCache.c = NewChunkCache(DefaultCacheSize)
	})
	return sharedCache.c
}

type chunkRequest struct {
	a *LazyArray
	w Window
}

// chunkSlot is the cache entry of a chunk. The chunk is computed by
// the first goroutine that asks for it, outside of the cache workers,
// so that computing a chunk can request the chunks of other arrays.
type chunkSlot struct {
	mu sync.Mutex
	a  *LazyArray
	w  Window
	d  *sparse.DenseArray
}

func (s *chunkSlot) get(ctx context.Context) (*sparse.DenseArray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d != nil {
		return s.d, nil
	}
	d, err := s.a.fn(ctx, s.w)
	if err != nil {
		return nil, errors.Wrapf(err, "xsar: computing %s chunk %v", s.a.name, s.w)
	}
	if len(d.Shape) != 2 || d.Shape[0] != s.w.Lines || d.Shape[1] != s.w.Samples {
		return nil, fmt.Errorf("xsar: chunk %v of %s has shape %v", s.w, s.a.name, d.Shape)
	}
	s.d = d
	s.a = nil
	return d, nil
}

var arrayID uint64

// LazyArray is a two-dimensional array over (line, sample) whose values
// are only computed when requested. Values are computed chunk by chunk,
// and computed chunks are cached. Arrays returned by a LazyArray may
// be shared with other callers and must not be modified.
type LazyArray struct {
	id             uint64
	name           string
	lines, samples []float64
	chunks         Chunks
	fn             BlockFunc
	cache          *ChunkCache
}

// NewLazyArray creates an array with coordinates lines and samples
// whose chunks are computed by fn and cached in SharedChunkCache.
// Chunk sizes that are not positive are replaced by the array size.
func NewLazyArray(name string, lines, samples []float64, chunks Chunks, fn BlockFunc) *LazyArray {
	if chunks.Line <= 0 || chunks.Line > len(lines) {
		chunks.Line = len(lines)
	}
	if chunks.Sample <= 0 || chunks.Sample > len(samples) {
		chunks.Sample = len(samples)
	}
	if chunks.Line == 0 {
		chunks.Line = 1
	}
	if chunks.Sample == 0 {
		chunks.Sample = 1
	}
	return &LazyArray{
		id:      atomic.AddUint64(&arrayID, 1),
		name:    name,
		lines:   lines,
		samples: samples,
		chunks:  chunks,
		fn:      fn,
		cache:   SharedChunkCache(),
	}
}

// SetCache sets the cache holding the chunks of a. A nil c selects
// SharedChunkCache. It must be called before any values are requested.
func (a *LazyArray) SetCache(c *ChunkCache) {
	if c == nil {
		c = SharedChunkCache()
	}
	a.cache = c
}

// FromDense creates a LazyArray holding the values in d, which must
// have shape [len(lines), len(samples)].
func FromDense(name string, lines, samples []float64, chunks Chunks, d *sparse.DenseArray) (*LazyArray, error) {
	if len(d.Shape) != 2 || d.Shape[0] != len(lines) || d.Shape[1] != len(samples) {
		return nil, fmt.Errorf("xsar: array %s has shape %v but coordinates have lengths %d and %d",
			name, d.Shape, len(lines), len(samples))
	}
	return NewLazyArray(name, lines, samples, chunks, func(_ context.Context, w Window) (*sparse.DenseArray, error) {
		return subset(d, w), nil
	}), nil
}

// subset copies window w out of the two-dimensional array d.
func subset(d *sparse.DenseArray, w Window) *sparse.DenseArray {
	o := sparse.ZerosDense(w.Lines, w.Samples)
	ns := d.Shape[1]
	for i := 0; i < w.Lines; i++ {
		src := (w.Line+i)*ns + w.Sample
		copy(o.Elements[i*w.Samples:(i+1)*w.Samples], d.Elements[src:src+w.Samples])
	}
	return o
}

// Name returns the name of a.
func (a *LazyArray) Name() string { return a.name }

// Lines returns the line coordinates of a. They must not be modified.
func (a *LazyArray) Lines() []float64 { return a.lines }

// Samples returns the sample coordinates of a. They must not be modified.
func (a *LazyArray) Samples() []float64 { return a.samples }

// Shape returns the number of lines and samples in a.
func (a *LazyArray) Shape() (int, int) { return len(a.lines), len(a.samples) }

// Chunks returns the chunk size of a.
func (a *LazyArray) Chunks() Chunks { return a.chunks }

// chunk returns the chunk that starts at (i*a.chunks.Line, j*a.chunks.Sample).
func (a *LazyArray) chunk(ctx context.Context, i, j int) (*sparse.DenseArray, error) {
	nl, ns := a.Shape()
	w := Window{Line: i * a.chunks.Line, Sample: j * a.chunks.Sample}
	w.Lines = min(a.chunks.Line, nl-w.Line)
	w.Samples = min(a.chunks.Sample, ns-w.Sample)
	req := a.cache.c.NewRequest(ctx, chunkRequest{a: a, w: w}, fmt.Sprintf("%d_%s", a.id, w))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*chunkSlot).get(ctx)
}

// Window returns the values of a within w, computing any chunks that
// are not cached. Chunks are computed concurrently.
func (a *LazyArray) Window(ctx context.Context, w Window) (*sparse.DenseArray, error) {
	nl, ns := a.Shape()
	if w.Line < 0 || w.Sample < 0 || w.Lines < 0 || w.Samples < 0 ||
		w.Line+w.Lines > nl || w.Sample+w.Samples > ns {
		return nil, fmt.Errorf("xsar: window %v is out of bounds for %s with shape [%d %d]",
			w, a.name, nl, ns)
	}
	if w.Lines == 0 || w.Samples == 0 {
		return sparse.ZerosDense(w.Lines, w.Samples), nil
	}
	ci0, ci1 := w.Line/a.chunks.Line, (w.Line+w.Lines-1)/a.chunks.Line
	cj0, cj1 := w.Sample/a.chunks.Sample, (w.Sample+w.Samples-1)/a.chunks.Sample

	// A window that is exactly one chunk is returned without copying.
	if ci0 == ci1 && cj0 == cj1 && w.Line%a.chunks.Line == 0 && w.Sample%a.chunks.Sample == 0 &&
		w.Lines == min(a.chunks.Line, nl-w.Line) && w.Samples == min(a.chunks.Sample, ns-w.Sample) {
		return a.chunk(ctx, ci0, cj0)
	}

	o := sparse.ZerosDense(w.Lines, w.Samples)
	var wg sync.WaitGroup
	errc := make(chan error, (ci1-ci0+1)*(cj1-cj0+1))
	for ci := ci0; ci <= ci1; ci++ {
		for cj := cj0; cj <= cj1; cj++ {
			wg.Add(1)
			go func(ci, cj int) {
				defer wg.Done()
				c, err := a.chunk(ctx, ci, cj)
				if err != nil {
					errc <- err
					return
				}
				// Overlap of the chunk and w, in grid indices.
				l0, s0 := ci*a.chunks.Line, cj*a.chunks.Sample
				lStart, lEnd := max(l0, w.Line), min(l0+c.Shape[0], w.Line+w.Lines)
				sStart, sEnd := max(s0, w.Sample), min(s0+c.Shape[1], w.Sample+w.Samples)
				for l := lStart; l < lEnd; l++ {
					src := (l-l0)*c.Shape[1] + sStart - s0
					dst := (l-w.Line)*w.Samples + sStart - w.Sample
					copy(o.Elements[dst:dst+sEnd-sStart], c.Elements[src:src+sEnd-sStart])
				}
			}(ci, cj)
		}
	}
	wg.Wait()
	close(errc)
	if err := <-errc; err != nil {
		return nil, err
	}
	return o, nil
}

// Compute returns all of the values of a.
func (a *LazyArray) Compute(ctx context.Context) (*sparse.DenseArray, error) {
	nl, ns := a.Shape()
	return a.Window(ctx, Window{Lines: nl, Samples: ns})
}

// Slice returns a new array holding the given ranges of a. The new
// array computes its values from the chunks of a.
func (a *LazyArray) Slice(lines, samples IndexRange) (*LazyArray, error) {
	nl, ns := a.Shape()
	if lines.Start < 0 || lines.Stop > nl || lines.Len() < 0 ||
		samples.Start < 0 || samples.Stop > ns || samples.Len() < 0 {
		return nil, fmt.Errorf("xsar: slice [%d:%d, %d:%d] is out of bounds for %s with shape [%d %d]",
			lines.Start, lines.Stop, samples.Start, samples.Stop, a.name, nl, ns)
	}
	o := NewLazyArray(a.name, a.lines[lines.Start:lines.Stop], a.samples[samples.Start:samples.Stop], a.chunks,
		func(ctx context.Context, w Window) (*sparse.DenseArray, error) {
			w.Line += lines.Start
			w.Sample += samples.Start
			return a.Window(ctx, w)
		})
	o.cache = a.cache
	return o, nil
}

// Map returns an array whose elements are f applied to the
// corresponding elements of the inputs, which must all have the same
// shape. The result takes the coordinates and chunks of the first
// input.
func Map(name string, f func(vals []float64) float64, inputs ...*LazyArray) (*LazyArray, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("xsar: %s: no inputs", name)
	}
	nl, ns := inputs[0].Shape()
	for _, in := range inputs[1:] {
		if l, s := in.Shape(); l != nl || s != ns {
			return nil, fmt.Errorf("xsar: %s: input %s has shape [%d %d] but %s has shape [%d %d]",
				name, in.name, l, s, inputs[0].name, nl, ns)
		}
	}
	o := NewLazyArray(name, inputs[0].lines, inputs[0].samples, inputs[0].chunks,
		func(ctx context.Context, w Window) (*sparse.DenseArray, error) {
			data := make([]*sparse.DenseArray, len(inputs))
			for i, in := range inputs {
				var err error
				if data[i], err = in.Window(ctx, w); err != nil {
					return nil, err
				}
			}
			o := sparse.ZerosDense(w.Lines, w.Samples)
			vals := make([]float64, len(inputs))
			for k := range o.Elements {
				for i, d := range data {
					vals[i] = d.Elements[k]
				}
				o.Elements[k] = f(vals)
			}
			return o, nil
		})
	o.cache = inputs[0].cache
	return o, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
