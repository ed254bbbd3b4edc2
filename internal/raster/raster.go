package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
)

var encoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// ReadPNG decodes the raster stored at path.
func ReadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// WritePNG encodes img to path, replacing any existing file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encoder.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// NewFrameBuffer returns a fully transparent RGBA buffer of the given size.
func NewFrameBuffer(width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// Over alpha-composites src onto dst at the origin, scaling the source alpha
// by opacity/255 on top of its per-pixel alpha.
func Over(dst draw.Image, src image.Image, opacity uint8) {
	if opacity == 0 {
		return
	}
	mask := image.NewUniform(color.Alpha{A: opacity})
	draw.DrawMask(dst, dst.Bounds(), src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}
