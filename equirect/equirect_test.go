package equirect

import (
	"testing"

	"github.com/beyond-all-reason/map-parser/mapdata"
)

func solidFace(side int, r, g, b byte) *mapdata.Raster {
	f := mapdata.NewRaster(side, side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			f.Set(x, y, r, g, b, 255)
		}
	}
	return f
}

func solidFaces(side int) [6]*mapdata.Raster {
	return [6]*mapdata.Raster{
		FacePX: solidFace(side, 255, 0, 0),
		FaceNX: solidFace(side, 0, 255, 0),
		FacePY: solidFace(side, 0, 0, 255),
		FaceNY: solidFace(side, 255, 255, 0),
		FacePZ: solidFace(side, 0, 255, 255),
		FaceNZ: solidFace(side, 255, 0, 255),
	}
}

func TestProjectAspectIsTwoToOne(t *testing.T) {
	out := Project(solidFaces(8), 64)
	if out.Width != 64 || out.Height != 32 {
		t.Errorf("expect=64x32 result=%dx%d", out.Width, out.Height)
	}
}

func TestProjectOriginSamplesPositiveYOrNeighbour(t *testing.T) {
	faces := solidFaces(8)
	out := Project(faces, 64)
	r, g, b, _ := out.At(0, 0)

	py := [3]byte{0, 0, 255}
	got := [3]byte{r, g, b}
	if got != py {
		// Pole region: accept any of the four equatorial side faces as a
		// neighbour, per spec.md's "or its neighbours" allowance.
		neighbours := [][3]byte{{255, 0, 0}, {0, 255, 0}, {0, 255, 255}, {255, 0, 255}}
		matched := false
		for _, n := range neighbours {
			if got == n {
				matched = true
				break
			}
		}
		if !matched {
			t.Errorf("origin pixel matched no expected face color: %v", got)
		}
	}
}

func TestSampleDominantFaceIsAZAxisFace(t *testing.T) {
	faces := solidFaces(8)
	r, g, b, _ := sample(faces, 64, 32, 32, 16) // x=W/2, y=H/2
	pz := [3]byte{0, 255, 255}
	nz := [3]byte{255, 0, 255}
	got := [3]byte{r, g, b}
	if got != pz && got != nz {
		t.Errorf("center pixel expected +Z or -Z face color, got %v", got)
	}
}
