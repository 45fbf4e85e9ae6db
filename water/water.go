// Package water tints the mosaic texture below sea level using the SMF
// height layer.
package water

import (
	"runtime"
	"sync"

	"github.com/beyond-all-reason/map-parser/mapdata"
)

// Color is a base RGB tint.
type Color struct {
	R, G, B byte
}

// Modifier is a per-channel multiplier applied after blending.
type Modifier struct {
	R, G, B float32
}

// DefaultColor and DefaultModifier match the historical visual identity of
// generated minimaps (spec.md §4.G). ApplyWithOptions accepts other
// values; Apply, which the pipeline calls, always uses these, and
// config.Config has no option for either.
var (
	DefaultColor    = Color{R: 33, G: 35, B: 77}
	DefaultModifier = Modifier{R: 1, G: 1.2, B: 1}
)

// Apply tints mosaic in place using the default color and modifier. It is
// a no-op when minDepth >= 0 — the map has nothing below sea level.
func Apply(mosaic *mapdata.Raster, heightNorm []float32, heightW, heightH, mipmapSize int, minDepth, maxDepth float32) {
	ApplyWithOptions(mosaic, heightNorm, heightW, heightH, mipmapSize, minDepth, maxDepth, DefaultColor, DefaultModifier)
}

// ApplyWithOptions is Apply with an explicit color and modifier, per
// spec.md §4.G.
func ApplyWithOptions(mosaic *mapdata.Raster, heightNorm []float32, heightW, heightH, mipmapSize int, minDepth, maxDepth float32, color Color, mod Modifier) {
	if minDepth >= 0 {
		return
	}
	if heightW <= 0 || heightH <= 0 || len(heightNorm) < heightW*heightH {
		return
	}

	ratio := mipmapSize / 4
	if ratio < 1 {
		ratio = 1
	}

	waterLevelPercent := -minDepth / (maxDepth - minDepth)
	if waterLevelPercent <= 0 {
		return
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > mosaic.Height {
		numWorkers = mosaic.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	rowsPerWorker := (mosaic.Height + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		y0 := w * rowsPerWorker
		y1 := y0 + rowsPerWorker
		if y1 > mosaic.Height {
			y1 = mosaic.Height
		}
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				tintRow(mosaic, heightNorm, heightW, heightH, ratio, waterLevelPercent, color, mod, y)
			}
		}(y0, y1)
	}
	wg.Wait()
}

func tintRow(mosaic *mapdata.Raster, heightNorm []float32, heightW, heightH, ratio int, waterLevelPercent float32, color Color, mod Modifier, y int) {
	gy := clampInt((y+1)/ratio, 0, heightH-1)
	for x := 0; x < mosaic.Width; x++ {
		gx := clampInt((x+1)/ratio, 0, heightW-1)
		h := heightNorm[gy*heightW+gx]
		if h >= waterLevelPercent {
			continue
		}

		r, g, b, a := mosaic.At(x, y)
		ratioH := h / waterLevelPercent
		nr := blend(color.R, r, ratioH, mod.R)
		ng := blend(color.G, g, ratioH, mod.G)
		nb := blend(color.B, b, ratioH, mod.B)
		mosaic.Set(x, y, nr, ng, nb, a)
	}
}

func blend(base, old byte, ratioH float32, k float32) byte {
	v := ((float32(base) + float32(old)*ratioH) / 2) * k
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
