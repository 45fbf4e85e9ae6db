// Package smt parses the SMT (Spring Map Tile) tile catalogue and
// assembles it, guided by a tile-index map, into one large mosaic raster.
package smt

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/anthonynsimon/bild/transform"

	"github.com/beyond-all-reason/map-parser/byteio"
	"github.com/beyond-all-reason/map-parser/dxt1"
	"github.com/beyond-all-reason/map-parser/maperr"
	"github.com/beyond-all-reason/map-parser/mapdata"
)

const headerSize = 32

// legacyMipOffsets are the fixed internal byte offsets of the four mip
// levels (32², 16², 8², 4²) inside a classic 680-byte tile record.
var legacyMipOffsets = map[int]int{32: 0, 16: 512, 8: 640, 4: 672}

// Header is the 32-byte SMT header.
type Header struct {
	Magic           string
	Version         int32
	NumOfTiles      int32
	TileSize        int32
	CompressionType int32
}

// ParseHeader reads the 32-byte SMT header.
func ParseHeader(data []byte) (Header, error) {
	r := byteio.NewReader(data)
	var h Header
	var err error
	if h.Magic, err = r.ReadString(16); err != nil {
		return h, err
	}
	if h.Version, err = r.ReadI32(); err != nil {
		return h, err
	}
	if h.NumOfTiles, err = r.ReadI32(); err != nil {
		return h, err
	}
	if h.TileSize, err = r.ReadI32(); err != nil {
		return h, err
	}
	if h.CompressionType, err = r.ReadI32(); err != nil {
		return h, err
	}
	return h, nil
}

// dxtByteLen returns the DXT1 compressed byte length of a side*side tile.
func dxtByteLen(side int) int {
	return (side / 4) * (side / 4) * 8
}

// Catalogue decodes and caches tiles from an SMT tile-record blob at a
// chosen output mip size. Uncertain or degenerate layouts (numOfTiles==0,
// or a stride too small for any mip) fall back to an all-black catalogue
// per spec.md §9, rather than guessing.
type Catalogue struct {
	data       []byte // tile records, i.e. everything after the 32-byte header
	numTiles   int
	legacy     bool
	nativeSize int // for non-legacy layouts: the single native mip side
	stride     int
	degenerate bool

	mu    sync.Mutex
	cache map[int]map[int]*mapdata.Raster // tile index -> mip size -> raster
}

// NewCatalogue builds a Catalogue from the bytes following the SMT header.
func NewCatalogue(recordData []byte, numTiles int) *Catalogue {
	c := &Catalogue{
		data:     recordData,
		numTiles: numTiles,
		cache:    make(map[int]map[int]*mapdata.Raster),
	}

	if numTiles <= 0 {
		c.degenerate = true
		return c
	}

	c.stride = len(recordData) / numTiles

	switch {
	case c.stride >= 512:
		c.legacy = true
	case c.stride >= 128:
		c.nativeSize = 16
	case c.stride >= 32:
		c.nativeSize = 8
	case c.stride >= dxtByteLen(4):
		c.nativeSize = 4
	default:
		c.degenerate = true
	}

	return c
}

// blackTile returns an opaque-black raster of the given side, used both
// for the degenerate-catalogue fallback and for individual recovered tile
// failures.
func blackTile(side int) *mapdata.Raster {
	r := mapdata.NewRaster(side, side)
	for i := 3; i < len(r.Pix); i += 4 {
		r.Pix[i] = 255 // alpha opaque, RGB already zero
	}
	return r
}

// Tile returns the decoded tile at index, resampled to mipmapSize. On a
// recoverable failure (short DXT slice, out-of-range index) it returns an
// opaque-black tile of the requested size and a non-nil error wrapping
// maperr.ErrTileDecodeFailed for the caller to log; the error is never
// fatal to mosaic assembly. A degenerate catalogue returns an opaque-black
// tile with a nil error.
func (c *Catalogue) Tile(index, mipmapSize int) (*mapdata.Raster, error) {
	if c.degenerate {
		return blackTile(mipmapSize), nil
	}
	if index < 0 || index >= c.numTiles {
		return blackTile(mipmapSize), fmt.Errorf("tile index %d out of range [0,%d): %w", index, c.numTiles, maperr.ErrTileDecodeFailed)
	}

	c.mu.Lock()
	mips, ok := c.cache[index]
	if !ok {
		mips = make(map[int]*mapdata.Raster)
		c.cache[index] = mips
	}
	if r, ok := mips[mipmapSize]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	decoded, native, err := c.decode(index)
	if err != nil {
		blk := blackTile(mipmapSize)
		c.mu.Lock()
		mips[mipmapSize] = blk
		c.mu.Unlock()
		return blk, err
	}

	c.mu.Lock()
	for side, raster := range decoded {
		mips[side] = raster
	}
	c.mu.Unlock()

	r, ok := decoded[mipmapSize]
	if !ok {
		r = resize(decoded[native], mipmapSize)
		c.mu.Lock()
		mips[mipmapSize] = r
		c.mu.Unlock()
	}
	return r, nil
}

// decode DXT1-decompresses index's record once, returning every mip level
// it holds natively (one for tight-packed tiles, four for legacy ones) plus
// the largest ("native") side it decoded.
func (c *Catalogue) decode(index int) (map[int]*mapdata.Raster, int, error) {
	start := index * c.stride
	if start < 0 || start > len(c.data) {
		return nil, 0, fmt.Errorf("tile %d start %d beyond %d bytes: %w", index, start, len(c.data), maperr.ErrTileDecodeFailed)
	}
	record := c.data[start:minInt(start+c.stride, len(c.data))]

	out := make(map[int]*mapdata.Raster)

	if c.legacy {
		native := 0
		for _, side := range []int{32, 16, 8, 4} {
			off := legacyMipOffsets[side]
			n := dxtByteLen(side)
			if off+n > len(record) {
				continue
			}
			r, err := dxt1.Decode(record[off:off+n], side, side)
			if err != nil {
				continue
			}
			out[side] = r
			if side > native {
				native = side
			}
		}
		if len(out) == 0 {
			return nil, 0, fmt.Errorf("tile %d: no legacy mip decoded: %w", index, maperr.ErrTileDecodeFailed)
		}
		return out, native, nil
	}

	n := dxtByteLen(c.nativeSize)
	if n > len(record) {
		return nil, 0, fmt.Errorf("tile %d: need %d bytes, have %d: %w", index, n, len(record), maperr.ErrTileDecodeFailed)
	}
	r, err := dxt1.Decode(record[:n], c.nativeSize, c.nativeSize)
	if err != nil {
		return nil, 0, fmt.Errorf("tile %d: %w: %v", index, maperr.ErrTileDecodeFailed, err)
	}
	out[c.nativeSize] = r
	return out, c.nativeSize, nil
}

// resize resamples src to side x side via the declared image-library
// surface collaborator (nearest-neighbour, per spec.md §4.F).
func resize(src *mapdata.Raster, side int) *mapdata.Raster {
	if src.Width == side {
		return src
	}
	return mapdata.FromBildImage(transform.Resize(src.AsImage(), side, side, transform.NearestNeighbor))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WarmUp decodes every distinct tile index referenced by indices, in
// parallel across a bounded worker pool, populating the cache before
// BuildMosaic walks it sequentially. This is the optional parallel-decode
// point spec.md §5 allows for 4.F.
func (c *Catalogue) WarmUp(indices []int32, mipmapSize int) {
	seen := make(map[int32]bool, len(indices))
	unique := make([]int32, 0, len(indices))
	for _, idx := range indices {
		if !seen[idx] {
			seen[idx] = true
			unique = append(unique, idx)
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(unique) {
		workers = len(unique)
	}
	if workers < 1 {
		return
	}

	jobs := make(chan int32, len(unique))
	for _, idx := range unique {
		jobs <- idx
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				c.Tile(int(idx), mipmapSize) //nolint:errcheck // recovered internally
			}
		}()
	}
	wg.Wait()
}

// BuildMosaic assembles the full map texture at mipmapSize by expanding
// tileIndices (row-major, mapWidthUnits*32 by mapHeightUnits*32 tiles)
// into one large raster. Recovered per-tile errors are returned for the
// caller to log; they never abort assembly.
func BuildMosaic(c *Catalogue, tileIndices []int32, mapWidthUnits, mapHeightUnits, mipmapSize int32) (*mapdata.Raster, []error) {
	tilesWide := mapWidthUnits * 32
	tilesHigh := mapHeightUnits * 32
	outW := int(mipmapSize * tilesWide)
	outH := int(mipmapSize * tilesHigh)

	out := mapdata.NewRaster(outW, outH)

	want := int(tilesWide * tilesHigh)
	if len(tileIndices) != want {
		// Invariant violated upstream; keep geometry, treat missing
		// entries as tile 0 so the mosaic still has the declared shape.
		padded := make([]int32, want)
		copy(padded, tileIndices)
		tileIndices = padded
	}

	var errs []error
	c.WarmUp(tileIndices, int(mipmapSize))

	for ty := int32(0); ty < tilesHigh; ty++ {
		for tx := int32(0); tx < tilesWide; tx++ {
			idx := tileIndices[ty*tilesWide+tx]
			tile, err := c.Tile(int(idx), int(mipmapSize))
			if err != nil {
				errs = append(errs, err)
			}
			blitTile(out, tile, int(tx)*int(mipmapSize), int(ty)*int(mipmapSize))
		}
	}

	return out, errs
}

// blitTile is core mosaic-assembly logic (spec.md §4.F's 25%-share
// component): a direct byte-copy into the mosaic, not delegated to any
// image library.
func blitTile(dst, tile *mapdata.Raster, x0, y0 int) {
	for y := 0; y < tile.Height; y++ {
		srcOff := y * tile.Width * 4
		dstOff := ((y0+y)*dst.Width + x0) * 4
		copy(dst.Pix[dstOff:dstOff+tile.Width*4], tile.Pix[srcOff:srcOff+tile.Width*4])
	}
}
