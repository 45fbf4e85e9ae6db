package mapdata

// DDSHeader holds the fields of a DDS file's fixed 124-byte header that
// this module cares about.
type DDSHeader struct {
	Flags       uint32
	Height      uint32
	Width       uint32
	Pitch       uint32
	Depth       uint32
	MipMapCount uint32

	PixelFormat DDSPixelFormat

	Caps  uint32
	Caps2 uint32

	HasDX10 bool
}

// DDSPixelFormat is the 32-byte pixel-format block embedded in DDSHeader.
type DDSPixelFormat struct {
	Flags    uint32
	FourCC   string // 4-char code, e.g. "DXT1"
	BitCount uint32
}

// DDS capability-bit constants this module inspects.
const (
	DDSCaps2CubeMap   uint32 = 0x00000200
	DDSCaps2CubeMapPX uint32 = 0x00000400
	DDSCaps2CubeMapNX uint32 = 0x00000800
	DDSCaps2CubeMapPY uint32 = 0x00001000
	DDSCaps2CubeMapNY uint32 = 0x00002000
	DDSCaps2CubeMapPZ uint32 = 0x00004000
	DDSCaps2CubeMapNZ uint32 = 0x00008000

	DDPFFourCC uint32 = 0x00000004
)

// IsCubeMap reports whether the header declares all six cubemap faces.
func (h DDSHeader) IsCubeMap() bool {
	const all = DDSCaps2CubeMap | DDSCaps2CubeMapPX | DDSCaps2CubeMapNX |
		DDSCaps2CubeMapPY | DDSCaps2CubeMapNY | DDSCaps2CubeMapPZ | DDSCaps2CubeMapNZ
	return h.Caps2&all == all
}
