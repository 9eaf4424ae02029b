package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Options controls the output frame. Zero values fall back to the 16:9, 1280x720 defaults.
type Options struct {
	AspectWidth  int
	AspectHeight int
	MaxWidth     int
	MaxHeight    int
	Quality      int
}

func (o Options) withDefaults() Options {
	if o.AspectWidth <= 0 || o.AspectHeight <= 0 {
		o.AspectWidth, o.AspectHeight = 16, 9
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = 1280
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = 720
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 95
	}
	return o
}

// Pad letterboxes an encoded image onto a black canvas of the target aspect ratio
// and returns it as JPEG. The source is only ever shrunk, never enlarged.
func Pad(data []byte, opts Options) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("imaging: empty image data")
	}
	opts = opts.withDefaults()

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	bounds := src.Bounds()
	canvasW, canvasH := canvasSize(bounds.Dx(), bounds.Dy(), opts)
	fitW, fitH := fitWithin(bounds.Dx(), bounds.Dy(), canvasW, canvasH)

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	offsetX := (canvasW - fitW) / 2
	offsetY := (canvasH - fitH) / 2
	target := image.Rect(offsetX, offsetY, offsetX+fitW, offsetY+fitH)
	draw.CatmullRom.Scale(canvas, target, src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return out.Bytes(), nil
}

// canvasSize picks the frame: wide sources are bound by width, tall ones by height.
func canvasSize(w, h int, opts Options) (int, int) {
	if w*opts.AspectHeight > h*opts.AspectWidth {
		width := min(w, opts.MaxWidth)
		return width, max(1, width*opts.AspectHeight/opts.AspectWidth)
	}
	height := min(h, opts.MaxHeight)
	return max(1, height*opts.AspectWidth/opts.AspectHeight), height
}

// fitWithin scales w x h down, preserving aspect ratio, until it fits in boxW x boxH.
func fitWithin(w, h, boxW, boxH int) (int, int) {
	if w <= boxW && h <= boxH {
		return w, h
	}
	scale := min(float64(boxW)/float64(w), float64(boxH)/float64(h))
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}
