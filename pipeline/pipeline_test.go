package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/beyond-all-reason/map-parser/config"
)

// fakeExtractor hands back a pre-built directory instead of actually
// decompressing an archive, so pipeline tests can exercise ParseMap
// without going through archive/zip or the system 7z binary.
type fakeExtractor struct {
	dir string
}

func (f fakeExtractor) Extract(ctx context.Context, path string) (string, func(), error) {
	return f.dir, func() {}, nil
}

// buildSMF is a trimmed copy of smf's own test fixture builder: a minimal,
// internally-consistent 128x128 SMF buffer with one uniform-DXT1-tile
// SMT companion.
func buildSMF(t *testing.T, minDepth, maxDepth float32) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("spring map file")
	buf.Write(make([]byte, 1)) // pad magic to 16 bytes

	w32 := func(v int32) { binary.Write(&buf, binary.LittleEndian, v) }   //nolint:errcheck
	wf32 := func(v float32) { binary.Write(&buf, binary.LittleEndian, v) } //nolint:errcheck

	mapWidth, mapHeight := int32(128), int32(128)

	w32(1)
	w32(1)
	w32(mapWidth)
	w32(mapHeight)
	w32(8)
	w32(8)
	w32(32)
	wf32(minDepth)
	wf32(maxDepth)

	heightSize := (int(mapWidth) + 1) * (int(mapHeight) + 1) * 2
	typeSize := int(mapWidth/2) * int(mapHeight/2)
	metalSize := typeSize
	tileCount := int(mapWidth/4) * int(mapHeight/4)
	smtName := "tiles.smt\x00"
	tileIndexSize := 12 + len(smtName) + tileCount*4
	miniSize := (1024 / 4) * (1024 / 4) * 8

	headerFixedSize := int32(80)
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

	w32(1)
	w32(int32(tileCount))
	w32(int32(tileCount))
	buf.WriteString(smtName)
	buf.Write(make([]byte, tileCount*4)) // all tile indices = 0

	buf.Write(make([]byte, miniSize))
	buf.Write(make([]byte, metalSize))

	return buf.Bytes()
}

// buildSMT builds a minimal SMT file: a 32-byte header declaring one
// tile, followed by one solid-red 4x4 DXT1 tile record.
func buildSMT(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("spring tile file")
	buf.Write(make([]byte, 0))
	w32 := func(v int32) { binary.Write(&buf, binary.LittleEndian, v) } //nolint:errcheck
	w32(1) // version
	w32(1) // numOfTiles
	w32(32)
	w32(0)

	var block [8]byte
	binary.LittleEndian.PutUint16(block[0:2], 0xF800) // red565
	buf.Write(block[:])

	return buf.Bytes()
}

func TestParseMapEndToEnd(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "map.smf"), buildSMF(t, -10, 100), 0o644); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "map.smt"), buildSMT(t), 0o644); err != nil {
		t.Fatalf("write smt: %v", err)
	}
	mapInfoSrc := `return { name = "Barren 2", version = "1.0", extractorRadius = 100 }`
	if err := os.WriteFile(filepath.Join(dir, "mapinfo.lua"), []byte(mapInfoSrc), 0o644); err != nil {
		t.Fatalf("write mapinfo: %v", err)
	}

	cfg := config.Default()
	log := logrus.NewEntry(logrus.New())

	m, err := ParseMap(context.Background(), log, fakeExtractor{dir: dir}, "map.sdz", cfg)
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}

	if m.ScriptName != "Barren 2 1.0" {
		t.Errorf("expect scriptName=%q, got %q", "Barren 2 1.0", m.ScriptName)
	}
	if m.Environment.ExtractorRadius != 100 {
		t.Errorf("expect extractorRadius=100, got %v", m.Environment.ExtractorRadius)
	}
	if m.Texture == nil || m.Texture.Width != 128 || m.Texture.Height != 128 {
		t.Fatalf("expect 128x128 texture, got %v", m.Texture)
	}

	r, g, b, _ := m.Texture.At(0, 0)
	if r == 248 && g == 0 && b == 0 {
		t.Errorf("expect water tint to have altered the raw tile color, got untouched %d,%d,%d", r, g, b)
	}
}

func TestParseMapSkipSMT(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "map.smf"), buildSMF(t, 10, 100), 0o644); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "map.smt"), buildSMT(t), 0o644); err != nil {
		t.Fatalf("write smt: %v", err)
	}

	cfg := config.Default()
	cfg.SkipSMT = true
	log := logrus.NewEntry(logrus.New())

	m, err := ParseMap(context.Background(), log, fakeExtractor{dir: dir}, "map.sdz", cfg)
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if m.Texture != nil {
		t.Errorf("expect nil texture with SkipSMT, got %v", m.Texture)
	}
	if m.ScriptName != "map" {
		t.Errorf("expect scriptName to fall back to SMF stem, got %q", m.ScriptName)
	}
}
