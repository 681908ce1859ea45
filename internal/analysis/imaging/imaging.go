package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	_ "github.com/kolesa-team/go-webp/webp"
)

// Magic bytes for upload sniffing. WebP files start with a RIFF header.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	riffMagic = []byte("RIFF")
	webpTag   = []byte("WEBP")
)

// jpegQuality for the canonical re-encode. High enough that small print on a
// license stays legible for the vision model.
const jpegQuality = 90

// Normalized is an uploaded image reduced to the one canonical encoding the
// analysis client sends upstream: an opaque 3-channel JPEG.
type Normalized struct {
	JPEG   []byte
	Format string // source format as reported by the decoder
	Width  int
	Height int
}

// IsImageData checks for JPEG, PNG or WebP magic bytes at the start of the data.
func IsImageData(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if bytes.HasPrefix(data, jpegMagic) || bytes.HasPrefix(data, pngMagic) {
		return true
	}
	return bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], webpTag)
}

// Normalize decodes uploaded bytes and re-encodes them as an opaque RGB JPEG,
// flattening any alpha channel onto white. A failure here is the "no image"
// outcome: the caller must treat it as "no image present", not as a fault.
func Normalize(data []byte) (*Normalized, error) {
	if !IsImageData(data) {
		return nil, fmt.Errorf("imaging: data is not a JPEG, PNG or WebP image")
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode %s: %w", format, err)
	}

	bounds := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}

	return &Normalized{
		JPEG:   buf.Bytes(),
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
