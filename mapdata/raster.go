package mapdata

import "image"

// Raster is an opaque RGBA8 image: width, height, and a row-major byte
// buffer of size Width*Height*4. The core produces Rasters; encoding them
// to PNG/JPEG is left to the caller.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRaster allocates a zero-filled (opaque black) raster of the given
// dimensions.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// NewRasterFromGray8 expands a single-channel byte buffer to RGBA by
// broadcasting each value to R=G=B with alpha 255.
func NewRasterFromGray8(width, height int, gray []byte) *Raster {
	r := NewRaster(width, height)
	for i, v := range gray {
		o := i * 4
		r.Pix[o], r.Pix[o+1], r.Pix[o+2], r.Pix[o+3] = v, v, v, 255
	}
	return r
}

// At returns the RGBA value at (x, y).
func (r *Raster) At(x, y int) (red, green, blue, alpha byte) {
	o := (y*r.Width + x) * 4
	return r.Pix[o], r.Pix[o+1], r.Pix[o+2], r.Pix[o+3]
}

// Set writes the RGBA value at (x, y).
func (r *Raster) Set(x, y int, red, green, blue, alpha byte) {
	o := (y*r.Width + x) * 4
	r.Pix[o], r.Pix[o+1], r.Pix[o+2], r.Pix[o+3] = red, green, blue, alpha
}

// AsImage returns an *image.RGBA sharing this raster's backing array, for
// handing off to the declared image-library-surface collaborator (resize,
// flip) without a copy. Mutations through the returned image are visible
// in r.
func (r *Raster) AsImage() *image.RGBA {
	return &image.RGBA{
		Pix:    r.Pix,
		Stride: r.Width * 4,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

// FromImage converts an *image.RGBA (e.g. one returned by a bild transform,
// which allocates a fresh buffer) into a Raster. When img is tightly packed
// and anchored at the origin the Raster shares img.Pix without a copy;
// otherwise the pixels are copied into a new buffer.
func FromImage(img *image.RGBA) *Raster {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w*4 && img.Rect.Min == (image.Point{}) {
		return &Raster{Width: w, Height: h, Pix: img.Pix}
	}
	out := NewRaster(w, h)
	for y := 0; y < h; y++ {
		srcOff := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out.Pix[y*w*4:(y+1)*w*4], img.Pix[srcOff:srcOff+w*4])
	}
	return out
}

// FromBildImage copies any image.Image (notably the *image.NRGBA that
// bild/transform functions return) into a new owned Raster. Source pixels
// in this module are either fully opaque or transparent black (DXT1's
// 1-bit alpha), so the NRGBA/RGBA premultiplied-alpha distinction never
// changes a pixel's value.
func FromBildImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewRaster(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Set(x, y, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
		}
	}
	return out
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Width: r.Width, Height: r.Height, Pix: make([]byte, len(r.Pix))}
	copy(out.Pix, r.Pix)
	return out
}
