// Package dxt1 decompresses S3TC DXT1 block streams into RGBA8 buffers.
package dxt1

import (
	"encoding/binary"
	"fmt"

	"github.com/beyond-all-reason/map-parser/maperr"
	"github.com/beyond-all-reason/map-parser/mapdata"
)

// RGBA is a single decoded pixel.
type RGBA struct {
	R, G, B, A byte
}

const blockSize = 8 // bytes per 4x4 DXT1 block

// unpack565 widens a packed RGB565 value to 8-bit-per-channel by
// zero-padding the low bits (bit-shift widening), not bit-replication.
// Deliberate choice: produces smoother gradients on the SpringRTS minimaps
// and tiles this module targets than bit-replication would.
func unpack565(v uint16) (r, g, b byte) {
	r = byte((v & 0xF800) >> 8)
	g = byte((v & 0x07E0) >> 3)
	b = byte((v & 0x001F) << 3)
	return
}

// palette builds the 4-entry DXT1 color table for one block's two
// endpoints, per spec: opaque 4-color mode when c0 > c1, 1-bit-alpha mode
// (index 3 transparent) otherwise.
func palette(c0, c1 uint16) [4]RGBA {
	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)

	var p [4]RGBA
	p[0] = RGBA{r0, g0, b0, 255}
	p[1] = RGBA{r1, g1, b1, 255}

	if c0 > c1 {
		p[2] = RGBA{
			R: byte((2*int(r0) + int(r1)) / 3),
			G: byte((2*int(g0) + int(g1)) / 3),
			B: byte((2*int(b0) + int(b1)) / 3),
			A: 255,
		}
		p[3] = RGBA{
			R: byte((int(r0) + 2*int(r1)) / 3),
			G: byte((int(g0) + 2*int(g1)) / 3),
			B: byte((int(b0) + 2*int(b1)) / 3),
			A: 255,
		}
	} else {
		p[2] = RGBA{
			R: byte((int(r0) + int(r1)) / 2),
			G: byte((int(g0) + int(g1)) / 2),
			B: byte((int(b0) + int(b1)) / 2),
			A: 255,
		}
		p[3] = RGBA{0, 0, 0, 0}
	}
	return p
}

// DecodeBlock decodes one 8-byte DXT1 block into its 16 pixels, row-major
// top-down, left-right. Indices are packed LSB-first.
func DecodeBlock(block [8]byte) [16]RGBA {
	c0 := binary.LittleEndian.Uint16(block[0:2])
	c1 := binary.LittleEndian.Uint16(block[2:4])
	indices := binary.LittleEndian.Uint32(block[4:8])

	pal := palette(c0, c1)

	var out [16]RGBA
	for i := 0; i < 16; i++ {
		idx := (indices >> uint(2*i)) & 0x3
		out[i] = pal[idx]
	}
	return out
}

// Decode decompresses a DXT1 block stream into an RGBA8 raster of the
// given dimensions. width and height must each be >=4 and multiples of 4.
func Decode(data []byte, width, height int) (*mapdata.Raster, error) {
	if width < 4 || height < 4 || width%4 != 0 || height%4 != 0 {
		return nil, fmt.Errorf("dxt1: invalid dimensions %dx%d", width, height)
	}

	bw, bh := width/4, height/4
	need := bw * bh * blockSize
	if len(data) < need {
		return nil, fmt.Errorf("dxt1: need %d bytes, have %d: %w", need, len(data), maperr.ErrInputTruncated)
	}

	out := mapdata.NewRaster(width, height)

	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			off := (by*bw + bx) * blockSize
			var block [8]byte
			copy(block[:], data[off:off+blockSize])
			pixels := DecodeBlock(block)

			for py := 0; py < 4; py++ {
				for px := 0; px < 4; px++ {
					p := pixels[py*4+px]
					out.Set(bx*4+px, by*4+py, p.R, p.G, p.B, p.A)
				}
			}
		}
	}

	return out, nil
}
