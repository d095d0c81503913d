// Package imaging normalizes uploaded images: it flattens transparency onto
// white, shrinks the image into a bounding box and re-encodes it.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/nfnt/resize"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

const (
	DefaultMaxWidth    = 1920
	DefaultMaxHeight   = 1080
	DefaultJPEGQuality = 85
)

// ErrUnsupported is returned for data that is not a decodable PNG, JPEG or
// GIF image.
var ErrUnsupported = errors.New("unsupported image")

// Processor re-encodes images. The zero value uses the defaults above.
type Processor struct {
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
}

// Processed is a normalized image ready to be stored.
type Processed struct {
	Data     []byte
	Metadata gallery.Metadata
}

// Ext returns the file extension matching the encoded format.
func (p Processed) Ext() string {
	switch p.Metadata.Format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	}
	return ""
}

// Process decodes data and returns the normalized image in the same format.
func (p *Processor) Process(data []byte) (Processed, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Processed{}, fmt.Errorf("decode: %w: %w", ErrUnsupported, err)
	}

	bounds := src.Bounds()
	img := flatten(src)

	maxW, maxH := p.bounds()
	if bounds.Dx() > maxW || bounds.Dy() > maxH {
		img = resize.Thumbnail(uint(maxW), uint(maxH), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality()})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, &gif.Options{NumColors: 256})
	default:
		return Processed{}, fmt.Errorf("format %q: %w", format, ErrUnsupported)
	}
	if err != nil {
		return Processed{}, fmt.Errorf("encode %s: %w", format, err)
	}

	out := img.Bounds()
	return Processed{
		Data: buf.Bytes(),
		Metadata: gallery.Metadata{
			Format:           format,
			OriginalWidth:    bounds.Dx(),
			OriginalHeight:   bounds.Dy(),
			Width:            out.Dx(),
			Height:           out.Dy(),
			OriginalSize:     int64(len(data)),
			Size:             int64(buf.Len()),
			CompressionRatio: ratio(len(data), buf.Len()),
		},
	}, nil
}

// flatten draws img over an opaque white background.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func ratio(before, after int) float64 {
	if after == 0 {
		return 0
	}
	return math.Round(float64(before)/float64(after)*100) / 100
}

func (p *Processor) bounds() (int, int) {
	w, h := p.MaxWidth, p.MaxHeight
	if w <= 0 {
		w = DefaultMaxWidth
	}
	if h <= 0 {
		h = DefaultMaxHeight
	}
	return w, h
}

func (p *Processor) quality() int {
	if p.JPEGQuality <= 0 || p.JPEGQuality > 100 {
		return DefaultJPEGQuality
	}
	return p.JPEGQuality
}
