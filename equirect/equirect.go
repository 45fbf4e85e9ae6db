// Package equirect reprojects a six-face cubemap into a 2:1 equirectangular
// panorama.
package equirect

import (
	"runtime"
	"sync"

	"github.com/anthonynsimon/bild/transform"
	"github.com/chewxy/math32"

	"github.com/beyond-all-reason/map-parser/mapdata"
)

// Face indices into the fixed +X,-X,+Y,-Y,+Z,-Z cubemap face order.
const (
	FacePX = 0
	FaceNX = 1
	FacePY = 2
	FaceNY = 3
	FacePZ = 4
	FaceNZ = 5
)

// flippedFaces is the empirically-determined set of faces whose stored
// orientation needs a vertical flip before sampling. The alternative
// (flipping {FacePY, FaceNY} instead) yields wrong panorama alignment for
// every SpringRTS skybox this module has been tested against, but may not
// hold for cubemaps from other content sources.
var flippedFaces = map[int]bool{FacePX: true, FaceNX: true, FacePZ: true, FaceNZ: true}

// Project reprojects six square RGBA faces (fixed +X,-X,+Y,-Y,+Z,-Z order)
// into an equirectangular panorama of width outW (height outW/2).
func Project(faces [6]*mapdata.Raster, outW int) *mapdata.Raster {
	outH := outW / 2
	out := mapdata.NewRaster(outW, outH)

	prepped := prepareFaces(faces)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > outH {
		numWorkers = outH
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	rowsPerWorker := (outH + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		y0 := w * rowsPerWorker
		y1 := y0 + rowsPerWorker
		if y1 > outH {
			y1 = outH
		}
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				for x := 0; x < outW; x++ {
					r, g, b, a := sample(prepped, outW, outH, x, y)
					out.Set(x, y, r, g, b, a)
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	return out
}

// prepareFaces flips the faces documented as stored upside-down, via the
// declared image-library-surface collaborator (bild/transform).
func prepareFaces(faces [6]*mapdata.Raster) [6]*mapdata.Raster {
	var out [6]*mapdata.Raster
	for i, f := range faces {
		if f == nil {
			continue
		}
		if flippedFaces[i] {
			out[i] = mapdata.FromBildImage(transform.FlipV(f.AsImage()))
		} else {
			out[i] = f
		}
	}
	return out
}

func sample(faces [6]*mapdata.Raster, outW, outH, x, y int) (r, g, b, a byte) {
	theta := (float32(x) / float32(outW)) * 2 * math32.Pi
	phi := (float32(y) / float32(outH)) * math32.Pi

	sinPhi, cosPhi := math32.Sincos(phi)
	sinTheta, cosTheta := math32.Sincos(theta)

	dx := -sinPhi * sinTheta
	dy := cosPhi
	dz := -sinPhi * cosTheta

	ax, ay, az := math32.Abs(dx), math32.Abs(dy), math32.Abs(dz)

	var face int
	var uc, vc float32

	switch {
	case ax >= ay && ax >= az:
		if dx > 0 {
			face, uc, vc = FacePX, -dz/ax, dy/ax
		} else {
			face, uc, vc = FaceNX, dz/ax, dy/ax
		}
	case ay >= ax && ay >= az:
		if dy > 0 {
			face, uc, vc = FacePY, dx/ay, dz/ay
		} else {
			face, uc, vc = FaceNY, dx/ay, -dz/ay
		}
	default:
		if dz > 0 {
			face, uc, vc = FacePZ, dx/az, dy/az
		} else {
			face, uc, vc = FaceNZ, -dx/az, dy/az
		}
	}

	img := faces[face]
	if img == nil {
		return 0, 0, 0, 0
	}

	u := 0.5 * (uc + 1)
	v := 0.5 * (vc + 1)

	s := img.Width
	sx := int(u * float32(s))
	sy := int(v * float32(s))
	sx = clamp(sx, 0, s-1)
	sy = clamp(sy, 0, s-1)

	return img.At(sx, sy)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
