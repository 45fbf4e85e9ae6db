package smf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/beyond-all-reason/map-parser/maperr"
	"github.com/beyond-all-reason/map-parser/mapdata"
)

// buildSMF assembles a minimal, internally-consistent SMF buffer: a
// 128x128 map (the smallest valid size), no extra headers, regions laid
// out in canonical Spring order (height, type, tileindex, minimap, metal,
// feature-empty).
func buildSMF(t *testing.T, mapWidth, mapHeight int32) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write(make([]byte, magicFieldSize-len(magic)))

	w32 := func(v int32) { binary.Write(&buf, binary.LittleEndian, v) } //nolint:errcheck
	wf32 := func(v float32) { binary.Write(&buf, binary.LittleEndian, v) } //nolint:errcheck

	w32(1)          // version
	w32(1)          // id (read as u32, value fits)
	w32(mapWidth)   // mapWidth
	w32(mapHeight)  // mapHeight
	w32(8)          // squareSize
	w32(8)          // texelsPerSquare
	w32(32)         // tileSize
	wf32(-10)       // minDepth
	wf32(100)       // maxDepth

	heightSize := (int(mapWidth) + 1) * (int(mapHeight) + 1) * 2
	typeSize := int(mapWidth/2) * int(mapHeight/2)
	metalSize := typeSize
	tileCount := int(mapWidth/4) * int(mapHeight/4)
	smtName := "tiles.smt\x00"
	tileIndexSize := 12 + len(smtName) + tileCount*4
	miniSize := (1024 / 4) * (1024 / 4) * 8

	headerFixedSize := int32(80) // computed below, verified by the offsets written

	heightOff := headerFixedSize
	typeOff := heightOff + int32(heightSize)
	tileIdxOff := typeOff + int32(typeSize)
	miniOff := tileIdxOff + int32(tileIndexSize)
	metalOff := miniOff + int32(miniSize)
	featureOff := metalOff + int32(metalSize)

	w32(heightOff)
	w32(typeOff)
	w32(tileIdxOff)
	w32(miniOff)
	w32(metalOff)
	w32(featureOff)

	w32(0) // noOfExtraHeaders

	if int32(buf.Len()) != headerFixedSize {
		t.Fatalf("header size assumption wrong: got %d want %d", buf.Len(), headerFixedSize)
	}

	buf.Write(make([]byte, heightSize))
	buf.Write(make([]byte, typeSize))

	w32(1)                        // numOfTileFiles
	w32(int32(tileCount))         // numOfTilesInAllFiles
	w32(int32(tileCount))         // numOfTilesInThisFile
	buf.WriteString(smtName)
	buf.Write(make([]byte, tileCount*4)) // all tile indices = 0

	buf.Write(make([]byte, miniSize))
	buf.Write(make([]byte, metalSize))
	// feature region intentionally empty (offset == end of buffer)

	return buf.Bytes()
}

func TestParseWellFormedSMF(t *testing.T) {
	data := buildSMF(t, 128, 128)
	layers, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if layers.Header.MapWidthUnits != 1 || layers.Header.MapHeightUnits != 1 {
		t.Errorf("unexpected units: %d %d", layers.Header.MapWidthUnits, layers.Header.MapHeightUnits)
	}
	if layers.Height.Width != 129 || layers.Height.Height != 129 {
		t.Errorf("unexpected height raster dims: %dx%d", layers.Height.Width, layers.Height.Height)
	}
	if len(layers.Height.Pix) != layers.Height.Width*layers.Height.Height*4 {
		t.Errorf("height raster buffer length mismatch")
	}
	if layers.Type.Width != 64 || layers.Type.Height != 64 {
		t.Errorf("unexpected type raster dims: %dx%d", layers.Type.Width, layers.Type.Height)
	}
	if layers.Mini.Width != 1024 || layers.Mini.Height != 1024 {
		t.Errorf("unexpected minimap dims: %dx%d", layers.Mini.Width, layers.Mini.Height)
	}
	if len(layers.TileIndices) != 32*32 {
		t.Errorf("unexpected tile index count: %d", len(layers.TileIndices))
	}
	for _, v := range layers.HeightNormalized {
		if v < 0 || v > 1 {
			t.Fatalf("height value out of [0,1]: %v", v)
			break
		}
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := buildSMF(t, 128, 128)
	data[0] = 'X'
	if _, err := Parse(data); !errors.Is(err, maperr.ErrNotASpringMap) {
		t.Errorf("expect ErrNotASpringMap, got %v", err)
	}
}

func TestParseTruncatedInput(t *testing.T) {
	// Cut well within the fixed header, before any region is read.
	data := buildSMF(t, 128, 128)[:40]
	if _, err := Parse(data); !errors.Is(err, maperr.ErrInputTruncated) {
		t.Errorf("expect ErrInputTruncated, got %v", err)
	}
}

func TestWorldElevation(t *testing.T) {
	h := mapdata.SMFHeader{MinDepth: -10, MaxDepth: 100}
	if got := WorldElevation(h, 0); got != -10 {
		t.Errorf("expect=-10 result=%v", got)
	}
	if got := WorldElevation(h, 1); got != 100 {
		t.Errorf("expect=100 result=%v", got)
	}
}
