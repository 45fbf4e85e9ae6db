// Package maperr holds the sentinel errors every decoder in this module
// wraps its failures in. Callers branch on kind with errors.Is.
package maperr

import "errors"

var (
	// ErrNotASpringArchive is returned when the input path has neither a
	// .sd7 nor a .sdz suffix.
	ErrNotASpringArchive = errors.New("not a spring archive")
	// ErrArchiveExtractionFailed wraps any failure from the archive
	// collaborator (7z/zip).
	ErrArchiveExtractionFailed = errors.New("archive extraction failed")
	// ErrMissingSMF is returned when an extracted archive has no *.smf file.
	ErrMissingSMF = errors.New("missing smf file")
	// ErrMissingSMT is returned when an extracted archive has no *.smt
	// file, whether or not a texture mosaic was requested.
	ErrMissingSMT = errors.New("missing smt file")
	// ErrNotASpringMap is returned when an SMF's magic bytes don't match.
	ErrNotASpringMap = errors.New("not a spring map file")
	// ErrInputTruncated is returned by any typed read past the end of a
	// borrowed byte slice.
	ErrInputTruncated = errors.New("input truncated")
	// ErrBadOffset is returned when a declared region offset falls outside
	// the buffer it is supposed to index into.
	ErrBadOffset = errors.New("declared offset out of bounds")
	// ErrUnsupportedDDS is returned for a DDS magic mismatch or an
	// unsupported fourCC/pixel format.
	ErrUnsupportedDDS = errors.New("unsupported dds resource")
	// ErrTileDecodeFailed is returned by a single tile decode; callers
	// recover from it locally by substituting an opaque-black tile.
	ErrTileDecodeFailed = errors.New("tile decode failed")
	// ErrMetadataParseFailed is returned when a metadata file as a whole
	// cannot be parsed (no top-level table); the pipeline recovers by
	// continuing without that metadata. Malformed individual fields are
	// omitted without an error.
	ErrMetadataParseFailed = errors.New("metadata parse failed")
)
