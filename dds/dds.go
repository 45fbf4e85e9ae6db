// Package dds parses DDS headers and locates face/mip data regions. It
// does not itself decompress block-compressed payloads; that is dxt1's job.
package dds

import (
	"fmt"

	"github.com/beyond-all-reason/map-parser/byteio"
	"github.com/beyond-all-reason/map-parser/maperr"
	"github.com/beyond-all-reason/map-parser/mapdata"
)

const (
	magic        = "DDS "
	headerSize   = 124
	dx10HdrBytes = 20
)

// ParseHeader verifies the magic and parses the fixed 124-byte header plus
// an optional DX10 extension. It returns the header and the byte offset
// at which face/mip pixel data begins.
func ParseHeader(data []byte) (mapdata.DDSHeader, int, error) {
	r := byteio.NewReader(data)

	magicBytes, err := r.ReadString(4)
	if err != nil {
		return mapdata.DDSHeader{}, 0, err
	}
	if magicBytes != magic {
		return mapdata.DDSHeader{}, 0, fmt.Errorf("dds: magic %q: %w", magicBytes, maperr.ErrUnsupportedDDS)
	}

	var h mapdata.DDSHeader
	// size(4) flags(8) height(12) width(16) pitch(20) depth(24) mipmapCount(28)
	if _, err := r.Read(4); err != nil { // size field, unused
		return mapdata.DDSHeader{}, 0, err
	}
	vals := make([]uint32, 6)
	for i := range vals {
		v, err := r.ReadU32()
		if err != nil {
			return mapdata.DDSHeader{}, 0, err
		}
		vals[i] = v
	}
	h.Flags, h.Height, h.Width, h.Pitch, h.Depth, h.MipMapCount = vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]

	if _, err := r.Read(44); err != nil { // reserved
		return mapdata.DDSHeader{}, 0, err
	}

	pf, err := parsePixelFormat(r)
	if err != nil {
		return mapdata.DDSHeader{}, 0, err
	}
	h.PixelFormat = pf

	caps, err := r.ReadU32()
	if err != nil {
		return mapdata.DDSHeader{}, 0, err
	}
	caps2, err := r.ReadU32()
	if err != nil {
		return mapdata.DDSHeader{}, 0, err
	}
	h.Caps, h.Caps2 = caps, caps2

	if _, err := r.Read(8); err != nil { // caps3, caps4
		return mapdata.DDSHeader{}, 0, err
	}
	if _, err := r.Read(4); err != nil { // reserved2
		return mapdata.DDSHeader{}, 0, err
	}

	offset := r.Position()
	if pf.Flags&mapdata.DDPFFourCC != 0 && pf.FourCC == "DX10" {
		if _, err := r.Read(dx10HdrBytes); err != nil {
			return mapdata.DDSHeader{}, 0, err
		}
		h.HasDX10 = true
		offset = r.Position()
	}

	return h, offset, nil
}

func parsePixelFormat(r *byteio.Reader) (mapdata.DDSPixelFormat, error) {
	if _, err := r.Read(4); err != nil { // size field, unused
		return mapdata.DDSPixelFormat{}, err
	}
	flags, err := r.ReadU32()
	if err != nil {
		return mapdata.DDSPixelFormat{}, err
	}
	fourCC, err := r.ReadString(4)
	if err != nil {
		return mapdata.DDSPixelFormat{}, err
	}
	bitCount, err := r.ReadU32()
	if err != nil {
		return mapdata.DDSPixelFormat{}, err
	}
	if _, err := r.Read(16); err != nil { // 4 channel masks
		return mapdata.DDSPixelFormat{}, err
	}
	return mapdata.DDSPixelFormat{Flags: flags, FourCC: fourCC, BitCount: bitCount}, nil
}

// blockByteSize returns the compressed block size in bytes for a
// recognized fourCC, or 0 if fourCC names an uncompressed format.
func blockByteSize(fourCC string) int {
	switch fourCC {
	case "DXT1":
		return 8
	case "DXT3", "DXT5":
		return 16
	default:
		return 0
	}
}

// MipLevelSize returns the byte size of one mip level of dimensions w x h
// for the pixel format in pf.
func MipLevelSize(w, h int, pf mapdata.DDSPixelFormat) int {
	if bs := blockByteSize(pf.FourCC); bs > 0 {
		blocksWide := (w + 3) / 4
		blocksHigh := (h + 3) / 4
		return blocksWide * blocksHigh * bs
	}
	bpp := int(pf.BitCount) / 8
	if bpp == 0 {
		bpp = 4
	}
	return w * h * bpp
}

// FaceByteSize returns the total byte size of one cubemap face's full mip
// chain (levels 0..MipMapCount-1, halving each level, floored at 1).
func FaceByteSize(h mapdata.DDSHeader) int {
	w, ht := int(h.Width), int(h.Height)
	levels := int(h.MipMapCount)
	if levels < 1 {
		levels = 1
	}
	total := 0
	for i := 0; i < levels; i++ {
		lw := maxInt(1, w>>i)
		lh := maxInt(1, ht>>i)
		total += MipLevelSize(lw, lh, h.PixelFormat)
	}
	return total
}

// cubeFaceOrder is the fixed storage order of cubemap faces in a DDS file.
var cubeFaceOrder = [6]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}

// SplitCubeFaces slices the base (largest) mip level of each of the six
// cubemap faces out of data, which must start right after the header (the
// offset ParseHeader returned). Faces come back in the fixed +X,-X,+Y,-Y,
// +Z,-Z order regardless of which subset caps2 declares present; callers
// must check h.IsCubeMap() first.
func SplitCubeFaces(data []byte, h mapdata.DDSHeader) ([6][]byte, error) {
	var faces [6][]byte

	faceSize := FaceByteSize(h)
	baseSize := MipLevelSize(int(h.Width), int(h.Height), h.PixelFormat)

	for i := range cubeFaceOrder {
		start := i * faceSize
		end := start + baseSize
		if end > len(data) {
			return faces, fmt.Errorf("dds: cube face %s needs %d bytes at offset %d, have %d: %w",
				cubeFaceOrder[i], baseSize, start, len(data), maperr.ErrInputTruncated)
		}
		faces[i] = data[start:end]
	}
	return faces, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
