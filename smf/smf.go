// Package smf parses the SMF (Spring Map File) header and its declared
// byte regions into raster layers.
package smf

import (
	"fmt"

	"github.com/beyond-all-reason/map-parser/byteio"
	"github.com/beyond-all-reason/map-parser/dxt1"
	"github.com/beyond-all-reason/map-parser/maperr"
	"github.com/beyond-all-reason/map-parser/mapdata"
)

const (
	magic          = "spring map file"
	magicFieldSize = 16 // magic is NUL-padded to 16 bytes
	miniMapSide    = 1024
)

// Layers holds the header and the raster/index regions extracted from it.
type Layers struct {
	Header           mapdata.SMFHeader
	Height           *mapdata.Raster
	HeightNormalized []float32 // same length as Height.Width*Height.Height, each in [0,1]
	Type             *mapdata.Raster
	Metal            *mapdata.Raster
	Mini             *mapdata.Raster
	TileIndices      []int32 // row-major, length (MapWidth/4)*(MapHeight/4)
}

// Parse reads the SMF header and extracts the height, type, metal, minimap
// and tile-index-map regions it declares.
func Parse(data []byte) (*Layers, error) {
	r := byteio.NewReader(data)

	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	out := &Layers{Header: header}

	if out.Height, out.HeightNormalized, err = readHeightLayer(data, header); err != nil {
		return nil, err
	}
	if out.Type, err = readChannelLayer(data, header.TypeMapIndex, int(header.MapWidth/2), int(header.MapHeight/2)); err != nil {
		return nil, err
	}
	if out.Metal, err = readChannelLayer(data, header.MetalMapIndex, int(header.MapWidth/2), int(header.MapHeight/2)); err != nil {
		return nil, err
	}
	if out.Mini, err = readMiniMap(data, header); err != nil {
		return nil, err
	}
	if out.TileIndices, header.NumOfTileFiles, header.NumOfTilesInAllFiles, header.NumOfTilesInThisFile, header.SMTFileName, err = readTileIndexMap(data, header); err != nil {
		return nil, err
	}
	out.Header = header

	return out, nil
}

func parseHeader(r *byteio.Reader) (mapdata.SMFHeader, error) {
	magicStr, err := r.ReadString(magicFieldSize)
	if err != nil {
		return mapdata.SMFHeader{}, err
	}
	if magicStr != magic {
		return mapdata.SMFHeader{}, fmt.Errorf("smf: magic %q: %w", magicStr, maperr.ErrNotASpringMap)
	}

	var h mapdata.SMFHeader
	h.Magic = magicStr

	readI32 := func(dst *int32) error {
		v, err := r.ReadI32()
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	if err := readI32(&h.Version); err != nil {
		return h, err
	}
	v, err := r.ReadU32()
	if err != nil {
		return h, err
	}
	h.ID = v

	if err := readI32(&h.MapWidth); err != nil {
		return h, err
	}
	if err := readI32(&h.MapHeight); err != nil {
		return h, err
	}
	h.MapWidthUnits = h.MapWidth / 128
	h.MapHeightUnits = h.MapHeight / 128

	if err := readI32(&h.SquareSize); err != nil {
		return h, err
	}
	if err := readI32(&h.TexelsPerSquare); err != nil {
		return h, err
	}
	if err := readI32(&h.TileSize); err != nil {
		return h, err
	}

	minDepth, err := r.ReadF32()
	if err != nil {
		return h, err
	}
	maxDepth, err := r.ReadF32()
	if err != nil {
		return h, err
	}
	h.MinDepth, h.MaxDepth = minDepth, maxDepth

	for _, dst := range []*int32{
		&h.HeightMapIndex, &h.TypeMapIndex, &h.TileIndexMapIndex,
		&h.MiniMapIndex, &h.MetalMapIndex, &h.FeatureMapIndex,
	} {
		if err := readI32(dst); err != nil {
			return h, err
		}
	}

	if err := readI32(&h.NumExtraHeaders); err != nil {
		return h, err
	}

	h.ExtraHeaders = make([]mapdata.ExtraHeader, 0, h.NumExtraHeaders)
	for i := int32(0); i < h.NumExtraHeaders; i++ {
		size, err := r.ReadI32()
		if err != nil {
			return h, err
		}
		typ, err := r.ReadI32()
		if err != nil {
			return h, err
		}
		h.ExtraHeaders = append(h.ExtraHeaders, mapdata.ExtraHeader{Type: typ, Size: size})
		if size > 8 {
			if _, err := r.Read(int(size - 8)); err != nil {
				return h, err
			}
		}
	}

	return h, nil
}

func readRegion(data []byte, offset int32, size int) ([]byte, error) {
	start := int(offset)
	if start < 0 || size < 0 || start+size > len(data) {
		return nil, fmt.Errorf("region at %d size %d exceeds buffer of %d bytes: %w", start, size, len(data), maperr.ErrBadOffset)
	}
	return data[start : start+size], nil
}

func readHeightLayer(data []byte, h mapdata.SMFHeader) (*mapdata.Raster, []float32, error) {
	w, ht := int(h.MapWidth)+1, int(h.MapHeight)+1
	region, err := readRegion(data, h.HeightMapIndex, w*ht*2)
	if err != nil {
		return nil, nil, err
	}

	norm := make([]float32, w*ht)
	raster := mapdata.NewRaster(w, ht)
	r := byteio.NewReader(region)
	for i := 0; i < w*ht; i++ {
		raw, err := r.ReadU16()
		if err != nil {
			return nil, nil, err
		}
		v := float32(raw) / 65536
		norm[i] = v
		gray := byte(255 * v)
		raster.Pix[i*4], raster.Pix[i*4+1], raster.Pix[i*4+2], raster.Pix[i*4+3] = gray, gray, gray, 255
	}
	return raster, norm, nil
}

func readChannelLayer(data []byte, offset int32, w, ht int) (*mapdata.Raster, error) {
	region, err := readRegion(data, offset, w*ht)
	if err != nil {
		return nil, err
	}
	return mapdata.NewRasterFromGray8(w, ht, region), nil
}

func readMiniMap(data []byte, h mapdata.SMFHeader) (*mapdata.Raster, error) {
	next := int32(len(data))
	if h.MetalMapIndex > h.MiniMapIndex && h.MetalMapIndex < next {
		next = h.MetalMapIndex
	}
	if h.FeatureMapIndex > h.MiniMapIndex && h.FeatureMapIndex < next {
		next = h.FeatureMapIndex
	}
	size := int(next - h.MiniMapIndex)

	region, err := readRegion(data, h.MiniMapIndex, size)
	if err != nil {
		return nil, err
	}
	return dxt1.Decode(region, miniMapSide, miniMapSide)
}

func readTileIndexMap(data []byte, h mapdata.SMFHeader) ([]int32, int32, int32, int32, string, error) {
	if int(h.TileIndexMapIndex) < 0 || int(h.TileIndexMapIndex) > len(data) {
		return nil, 0, 0, 0, "", fmt.Errorf("tile index map offset %d: %w", h.TileIndexMapIndex, maperr.ErrBadOffset)
	}
	r := byteio.NewReader(data[h.TileIndexMapIndex:])

	numTileFiles, err := r.ReadI32()
	if err != nil {
		return nil, 0, 0, 0, "", err
	}
	numTilesAll, err := r.ReadI32()
	if err != nil {
		return nil, 0, 0, 0, "", err
	}
	numTilesThis, err := r.ReadI32()
	if err != nil {
		return nil, 0, 0, 0, "", err
	}
	name, err := r.ReadUntilNull()
	if err != nil {
		return nil, 0, 0, 0, "", err
	}

	count := int(h.MapWidth/4) * int(h.MapHeight/4)
	ints, err := r.ReadInts(count, 4, false)
	if err != nil {
		return nil, 0, 0, 0, "", err
	}
	indices := make([]int32, count)
	for i, v := range ints {
		indices[i] = int32(v)
	}

	return indices, numTileFiles, numTilesAll, numTilesThis, name, nil
}

// WorldElevation maps a normalized height value v in [0,1] to world units
// using the header's min/max depth.
func WorldElevation(h mapdata.SMFHeader, v float32) float64 {
	return float64(h.MinDepth) + float64(v)*(float64(h.MaxDepth)-float64(h.MinDepth))
}
