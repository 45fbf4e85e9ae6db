package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Luzifer/rconfig/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/beyond-all-reason/map-parser/archive"
	"github.com/beyond-all-reason/map-parser/config"
	"github.com/beyond-all-reason/map-parser/pipeline"
)

var (
	cfg = struct {
		ConfigFile     string   `flag:"config,c" default:"" description:"Path to a YAML config file overlaying the built-in defaults"`
		LogFile        string   `flag:"log-file" default:"" description:"Path to a rotating log file (in addition to stderr)"`
		LogLevel       string   `flag:"log-level" default:"info" description:"Log level (debug, info, warn, error, fatal)"`
		MipmapSize     int      `flag:"mipmap-size" default:"4" description:"Per-tile texture resolution: 4, 8, 16 or 32"`
		SkipSMT        bool     `flag:"skip-smt" default:"false" description:"Skip the texture mosaic entirely"`
		Water          bool     `flag:"water" default:"true" description:"Apply the water overlay when minDepth<0"`
		ParseResources bool     `flag:"parse-resources" default:"false" description:"Load mapInfo.resources.* as rasters"`
		Resources      []string `flag:"resources" default:"" description:"Allowlist of resource keys, used only with -parse-resources"`
		ParseSkybox    bool     `flag:"parse-skybox" default:"false" description:"Reproject a cubemap skybox to an equirectangular panorama"`
		VersionAndExit bool     `flag:"version" default:"false" description:"Prints current version and exits"`
	}{}

	version = "dev"
)

func initApp() (err error) {
	if err = rconfig.ParseAndValidate(&cfg); err != nil {
		return fmt.Errorf("parsing CLI options: %w", err)
	}

	l, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log-level: %w", err)
	}
	logrus.SetLevel(l)

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, //nolint:mnd // megabytes
			MaxBackups: 3,  //nolint:mnd
			MaxAge:     28, //nolint:mnd // days
		}
		logrus.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}

	return nil
}

// defaultCLI mirrors the `default:` tags on cfg: a flag still holding this
// value was never explicitly passed, so the YAML file (if any) is free to
// override it. An explicitly-passed flag always wins, per spec.md §6.2's
// CLI > YAML file > built-in defaults precedence.
var defaultCLI = struct {
	MipmapSize     int
	SkipSMT        bool
	Water          bool
	ParseResources bool
	ParseSkybox    bool
}{MipmapSize: 4, SkipSMT: false, Water: true, ParseResources: false, ParseSkybox: false}

func loadConfig() (config.Config, error) {
	out := config.Default()

	if cfg.ConfigFile != "" {
		var err error
		out, err = config.LoadYAML(cfg.ConfigFile, out)
		if err != nil {
			return config.Config{}, fmt.Errorf("loading config file: %w", err)
		}
	}

	out.Verbose = cfg.LogLevel == "debug"
	if cfg.MipmapSize != defaultCLI.MipmapSize {
		out.MipmapSize = cfg.MipmapSize
	}
	if cfg.SkipSMT != defaultCLI.SkipSMT {
		out.SkipSMT = cfg.SkipSMT
	}
	if cfg.Water != defaultCLI.Water {
		out.Water = cfg.Water
	}
	if cfg.ParseResources != defaultCLI.ParseResources {
		out.ParseResources = cfg.ParseResources
	}
	if len(cfg.Resources) > 0 {
		out.Resources = cfg.Resources
	}
	if cfg.ParseSkybox != defaultCLI.ParseSkybox {
		out.ParseSkybox = cfg.ParseSkybox
	}

	return out, out.Validate()
}

func main() {
	var err error
	if err = initApp(); err != nil {
		logrus.WithError(err).Fatal("initializing app")
	}

	if cfg.VersionAndExit {
		fmt.Printf("map-parser %s\n", version) //nolint:forbidigo
		os.Exit(0)
	}

	if len(rconfig.Args()) < 2 { //nolint:mnd
		logrus.Fatal("no spring map archive given")
	}
	archivePath := rconfig.Args()[1]

	pcfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("loading configuration")
	}

	log := logrus.NewEntry(logrus.StandardLogger())
	ex := archive.New(log)

	m, err := pipeline.ParseMap(context.Background(), log, ex, archivePath, pcfg)
	if err != nil {
		logrus.WithError(err).Fatal("parsing map archive")
	}

	logrus.WithFields(logrus.Fields{
		"script_name": m.ScriptName,
		"width":       m.Header.MapWidth,
		"height":      m.Header.MapHeight,
		"has_texture": m.Texture != nil,
		"has_skybox":  m.Skybox != nil,
		"resources":   len(m.Resources),
	}).Info("map parsed")
}
