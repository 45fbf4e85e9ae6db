// Package pipeline orchestrates the archive-extraction and format
// decoders into one parsed Map value (spec.md §4.I).
package pipeline

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // resource decoding: maps/*.jpg
	_ "image/png"  // resource decoding: maps/*.png
	"os"
	"path/filepath"
	"strings"

	"github.com/Luzifer/go_helpers/v2/str"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/beyond-all-reason/map-parser/archive"
	"github.com/beyond-all-reason/map-parser/config"
	"github.com/beyond-all-reason/map-parser/dds"
	"github.com/beyond-all-reason/map-parser/dxt1"
	"github.com/beyond-all-reason/map-parser/equirect"
	"github.com/beyond-all-reason/map-parser/mapdata"
	"github.com/beyond-all-reason/map-parser/mapinfo"
	"github.com/beyond-all-reason/map-parser/maperr"
	"github.com/beyond-all-reason/map-parser/smf"
	"github.com/beyond-all-reason/map-parser/smt"
	"github.com/beyond-all-reason/map-parser/water"
)

// ParseMap runs the full pipeline over the archive at path: extraction,
// metadata, SMF, optional SMT mosaic, optional water overlay, optional
// skybox, and scriptName derivation. The temp directory extraction yields
// is always cleaned up before ParseMap returns, on every exit path.
func ParseMap(ctx context.Context, log *logrus.Entry, ex archive.Extractor, path string, cfg config.Config) (*mapdata.Map, error) {
	correlationID := uuid.Must(uuid.NewV7())
	log = log.WithField("correlation_id", correlationID.String())
	log.WithField("path", path).Debug("starting parse")

	dir, cleanup, err := ex.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	files, err := locateFiles(dir)
	if err != nil {
		return nil, err
	}

	mapInfoDict, legacyDict := parseMetadata(log, files)

	smfData, err := os.ReadFile(files.smf)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %q: %w", files.smf, err)
	}
	layers, err := smf.Parse(smfData)
	if err != nil {
		return nil, err
	}

	out := &mapdata.Map{
		FileName:    strings.TrimSuffix(filepath.Base(files.smf), filepath.Ext(files.smf)),
		MinDepth:    float64(layers.Header.MinDepth),
		MaxDepth:    float64(layers.Header.MaxDepth),
		Metadata:    mapInfoDict,
		LegacyMeta:  legacyDict,
		Header:      layers.Header,
		Height:      layers.Height,
		Type:        layers.Type,
		Metal:       layers.Metal,
		Mini:        layers.Mini,
		Features:    []mapdata.Feature{},
		Environment: buildEnvironment(mapInfoDict),
	}

	smdStarts := legacyStartPositions(legacyDict)
	merged := mapinfo.MergeStartPositions(smdStarts, mapInfoDict)
	out.StartPositions = make([]mapdata.StartPosition, len(merged))
	for i, p := range merged {
		out.StartPositions[i] = mapdata.StartPosition{X: float32(p.X), Z: float32(p.Z)}
	}

	if !cfg.SkipSMT {
		texture, err := buildTexture(log, files.smt, layers, cfg.MipmapSize)
		if err != nil {
			return nil, err
		}
		out.Texture = texture

		if cfg.Water && layers.Header.MinDepth < 0 {
			water.Apply(out.Texture, layers.HeightNormalized, int(layers.Header.MapWidth)+1, int(layers.Header.MapHeight)+1,
				cfg.MipmapSize, layers.Header.MinDepth, layers.Header.MaxDepth)
		}
	}

	if cfg.ParseResources {
		out.Resources = loadResources(log, dir, mapInfoDict, cfg.Resources)
	}

	if cfg.ParseSkybox && files.skybox != "" {
		skybox, err := buildSkybox(files.skybox, cfg.MipmapSize*64) //nolint:mnd // output width; arbitrary but fixed resolution choice
		if err != nil {
			log.WithError(err).WithField("file", files.skybox).Warn("skybox build failed, continuing without it")
		} else {
			out.Skybox = skybox
		}
	}

	out.ScriptName = deriveScriptName(mapInfoDict, out.FileName)

	log.WithField("script_name", out.ScriptName).Info("parse complete")
	return out, nil
}

type archiveFiles struct {
	smf, smt, smd, mapinfo, skybox string
}

// locateFiles globs the extracted directory for the conventional Spring
// map archive layout (spec.md §6): exactly one *.smf and *.smt, optional
// *.smd, optional mapinfo.lua, optional maps/*.dds skybox resource.
func locateFiles(dir string) (archiveFiles, error) {
	var out archiveFiles

	smfMatches, _ := filepath.Glob(filepath.Join(dir, "*.smf"))
	if len(smfMatches) == 0 {
		return out, fmt.Errorf("pipeline: no .smf in %q: %w", dir, maperr.ErrMissingSMF)
	}
	out.smf = smfMatches[0]

	smtMatches, _ := filepath.Glob(filepath.Join(dir, "*.smt"))
	if len(smtMatches) == 0 {
		return out, fmt.Errorf("pipeline: no .smt in %q: %w", dir, maperr.ErrMissingSMT)
	}
	out.smt = smtMatches[0]

	if m, _ := filepath.Glob(filepath.Join(dir, "*.smd")); len(m) > 0 {
		out.smd = m[0]
	}
	if m, _ := filepath.Glob(filepath.Join(dir, "mapinfo.lua")); len(m) > 0 {
		out.mapinfo = m[0]
	}
	if m, _ := filepath.Glob(filepath.Join(dir, "maps", "*.dds")); len(m) > 0 {
		out.skybox = m[0]
	}

	return out, nil
}

// parseMetadata prefers mapinfo.lua over the legacy .smd, per spec.md
// §4.I step 3, but parses and returns both: Map keeps each separately.
func parseMetadata(log *logrus.Entry, files archiveFiles) (mapInfoDict, legacyDict map[string]interface{}) {
	if files.mapinfo != "" {
		data, err := os.ReadFile(files.mapinfo)
		if err != nil {
			log.WithError(err).Warn("reading mapinfo.lua")
		} else if dict, err := mapinfo.ParseMapInfo(data); err != nil {
			log.WithError(err).Warn("parsing mapinfo.lua")
		} else {
			mapInfoDict = dict
		}
	}

	if files.smd != "" {
		data, err := os.ReadFile(files.smd)
		if err != nil {
			log.WithError(err).Warn("reading .smd")
		} else {
			legacyDict = mapinfo.ParseSMD(data)
		}
	}

	return mapInfoDict, legacyDict
}

func legacyStartPositions(legacyDict map[string]interface{}) []mapinfo.StartPosition {
	starts, _ := legacyDict["startPositions"].([]mapinfo.StartPosition)
	return starts
}

// buildEnvironment populates Map.Environment from mapInfo.* keys of the
// same name, per SPEC_FULL.md §3's supplemented feature.
func buildEnvironment(mapInfoDict map[string]interface{}) mapdata.Environment {
	f := func(key string) float64 {
		v, _ := mapInfoDict[key].(float64)
		return v
	}
	return mapdata.Environment{
		Gravity:         f("gravity"),
		TidalStrength:   f("tidalStrength"),
		MaxMetal:        f("maxMetal"),
		ExtractorRadius: f("extractorRadius"),
		MinWind:         f("minWind"),
		MaxWind:         f("maxWind"),
	}
}

func buildTexture(log *logrus.Entry, smtPath string, layers *smf.Layers, mipmapSize int) (*mapdata.Raster, error) {
	data, err := os.ReadFile(smtPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %q: %w", smtPath, err)
	}

	const smtHeaderSize = 32
	if len(data) < smtHeaderSize {
		return nil, fmt.Errorf("pipeline: %q: %w", smtPath, maperr.ErrInputTruncated)
	}
	header, err := smt.ParseHeader(data)
	if err != nil {
		return nil, err
	}

	cat := smt.NewCatalogue(data[smtHeaderSize:], int(header.NumOfTiles))
	mosaic, tileErrs := smt.BuildMosaic(cat, layers.TileIndices, layers.Header.MapWidthUnits, layers.Header.MapHeightUnits, int32(mipmapSize))
	for _, tileErr := range tileErrs {
		log.WithError(tileErr).Debug("recovered tile decode failure")
	}
	return mosaic, nil
}

func loadResources(log *logrus.Entry, dir string, mapInfoDict map[string]interface{}, allowlist []string) map[string]*mapdata.Raster {
	resourcesVal, ok := mapInfoDict["resources"].(map[string]interface{})
	if !ok {
		return nil
	}

	out := make(map[string]*mapdata.Raster)
	for name, v := range resourcesVal {
		if len(allowlist) > 0 && !str.StringInSlice(name, allowlist) {
			continue
		}
		relPath, ok := v.(string)
		if !ok {
			continue
		}
		raster, err := loadRasterResource(filepath.Join(dir, relPath))
		if err != nil {
			log.WithError(err).WithField("resource", name).Warn("loading resource")
			continue
		}
		out[name] = raster
	}
	return out
}

// loadRasterResource decodes a PNG or JPEG resource file into a Raster.
// BMP/TGA resources (also allowed by spec.md §6's archive layout) have no
// decoder anywhere in this module's dependency pack or the standard
// library's image registry, so they are reported as unsupported rather
// than silently skipped.
func loadRasterResource(path string) (*mapdata.Raster, error) {
	f, err := os.Open(path) //#nosec:G304 // archive-relative path from a trusted metadata dict
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("pipeline: decoding %q: %w", path, err)
	}

	b := img.Bounds()
	out := mapdata.NewRaster(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Set(x, y, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
		}
	}
	return out, nil
}

// buildSkybox parses a DDS cubemap and reprojects it to an equirectangular
// panorama of the given output width (spec.md §4.C/§4.D).
func buildSkybox(path string, outWidth int) (*mapdata.Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %q: %w", path, err)
	}

	header, dataOffset, err := dds.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if !header.IsCubeMap() {
		return nil, fmt.Errorf("pipeline: %q is not a cubemap: %w", path, maperr.ErrUnsupportedDDS)
	}
	if header.PixelFormat.FourCC != "DXT1" {
		return nil, fmt.Errorf("pipeline: %q fourCC %q: %w", path, header.PixelFormat.FourCC, maperr.ErrUnsupportedDDS)
	}

	rawFaces, err := dds.SplitCubeFaces(data[dataOffset:], header)
	if err != nil {
		return nil, err
	}

	var faces [6]*mapdata.Raster
	for i, raw := range rawFaces {
		r, err := dxt1.Decode(raw, int(header.Width), int(header.Height))
		if err != nil {
			return nil, fmt.Errorf("pipeline: cube face %d: %w", i, err)
		}
		faces[i] = r
	}

	return equirect.Project(faces, outWidth), nil
}

// deriveScriptName implements spec.md §4.I step 8.
func deriveScriptName(mapInfoDict map[string]interface{}, smfStem string) string {
	name, _ := mapInfoDict["name"].(string)
	if name == "" {
		return smfStem
	}
	version, _ := mapInfoDict["version"].(string)
	if version == "" || strings.Contains(name, version) {
		return name
	}
	return name + " " + version
}
