// Package byteio contains a cursor over a borrowed byte slice with typed
// little-endian reads, used by every binary decoder in this module.
package byteio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/beyond-all-reason/map-parser/maperr"
)

// Reader is a cursor over a byte slice it does not own. All integer reads
// are little-endian. Reads past the end of buf return maperr.ErrInputTruncated.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf in a Reader starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Position returns the current cursor offset.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of bytes remaining after the cursor.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Seek moves the cursor to an absolute offset. It does not validate the
// offset against the buffer length; the next read will fail if it is out
// of range.
func (r *Reader) Seek(abs int) {
	r.pos = abs
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.pos, len(r.buf), maperr.ErrInputTruncated)
	}
	return nil
}

// Read returns the next n bytes as a sub-slice of the underlying buffer
// and advances the cursor. The returned slice aliases buf; callers that
// need to keep it beyond the Reader's lifetime should copy it.
func (r *Reader) Read(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadI32 reads a little-endian int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadF32 reads a little-endian IEEE-754 float32.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString reads a fixed-width ASCII field of n bytes and strips
// trailing NUL bytes.
func (r *Reader) ReadString(n int) (string, error) {
	b, err := r.Read(n)
	if err != nil {
		return "", err
	}
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end]), nil
}

// ReadUntilNull reads bytes up to (and consuming) the next NUL byte,
// returning everything before it.
func (r *Reader) ReadUntilNull() (string, error) {
	start := r.pos
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(r.buf[start : r.pos-1]), nil
		}
	}
}

// ReadInts reads count integers of bytesPerInt width each, little-endian,
// signed unless unsigned is true.
func (r *Reader) ReadInts(count, bytesPerInt int, unsigned bool) ([]int64, error) {
	out := make([]int64, count)
	for i := 0; i < count; i++ {
		b, err := r.Read(bytesPerInt)
		if err != nil {
			return nil, err
		}
		var u uint64
		for j := bytesPerInt - 1; j >= 0; j-- {
			u = u<<8 | uint64(b[j])
		}
		if unsigned || bytesPerInt >= 8 {
			out[i] = int64(u)
			continue
		}
		signBit := uint64(1) << (bytesPerInt*8 - 1)
		if u >= signBit {
			out[i] = int64(u) - int64(1)<<(bytesPerInt*8)
			continue
		}
		out[i] = int64(u)
	}
	return out, nil
}
