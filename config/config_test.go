package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.MipmapSize != 4 || c.SkipSMT != false || c.Water != true {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("mipmapSize: 16\nwater: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := LoadYAML(path, Default())
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if c.MipmapSize != 16 {
		t.Errorf("expect mipmapSize=16, got %d", c.MipmapSize)
	}
	if c.Water != false {
		t.Errorf("expect water=false, got %v", c.Water)
	}
	if c.SkipSMT != false {
		t.Errorf("untouched field should keep default, got %v", c.SkipSMT)
	}
}

func TestValidateRejectsBadMipmapSize(t *testing.T) {
	c := Default()
	c.MipmapSize = 7
	if err := c.Validate(); err == nil {
		t.Errorf("expected validation error for mipmapSize=7")
	}
}
