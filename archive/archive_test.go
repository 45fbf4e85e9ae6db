package archive

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/beyond-all-reason/map-parser/maperr"
)

func buildTestSdz(t *testing.T, contents map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.sdz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range contents {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %q: %v", name, err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("zip write %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	return path
}

func TestClassifyPath(t *testing.T) {
	cases := map[string]Kind{
		"foo.sd7":  KindSd7,
		"foo.sdz":  KindSdz,
		"FOO.SDZ":  KindSdz,
		"foo.rar":  KindUnknown,
		"foo":      KindUnknown,
	}
	for name, want := range cases {
		got, err := ClassifyPath(name)
		if want == KindUnknown {
			if !errors.Is(err, maperr.ErrNotASpringArchive) {
				t.Errorf("%s: expect ErrNotASpringArchive, got %v", name, err)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("%s: expect=%v result=%v err=%v", name, want, got, err)
		}
	}
}

func TestExtractSdzWritesFilesAndCleansUp(t *testing.T) {
	path := buildTestSdz(t, map[string]string{
		"map.smf":      "smf-bytes",
		"maps/sky.dds": "dds-bytes",
	})

	ex := New(logrus.NewEntry(logrus.New()))
	dir, cleanup, err := ex.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	smf, err := os.ReadFile(filepath.Join(dir, "map.smf"))
	if err != nil || string(smf) != "smf-bytes" {
		t.Errorf("map.smf: content=%q err=%v", smf, err)
	}
	dds, err := os.ReadFile(filepath.Join(dir, "maps", "sky.dds"))
	if err != nil || string(dds) != "dds-bytes" {
		t.Errorf("maps/sky.dds: content=%q err=%v", dds, err)
	}

	cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected temp dir removed, stat err=%v", err)
	}
}

func TestExtractRejectsZipSlip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.sdz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../../etc/passwd")
	w.Write([]byte("pwned")) //nolint:errcheck
	zw.Close()               //nolint:errcheck
	f.Close()                //nolint:errcheck

	ex := New(logrus.NewEntry(logrus.New()))
	_, cleanup, err := ex.Extract(context.Background(), path)
	defer cleanup()
	if !errors.Is(err, maperr.ErrArchiveExtractionFailed) {
		t.Errorf("expect ErrArchiveExtractionFailed, got %v", err)
	}
}

func TestExtractRejectsUnknownSuffix(t *testing.T) {
	ex := New(logrus.NewEntry(logrus.New()))
	_, _, err := ex.Extract(context.Background(), "foo.rar")
	if !errors.Is(err, maperr.ErrNotASpringArchive) {
		t.Errorf("expect ErrNotASpringArchive, got %v", err)
	}
}
