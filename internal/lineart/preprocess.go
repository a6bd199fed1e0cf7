package lineart

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// MaxInputDim bounds the longest side of any image sent to the provider.
// Downscaling keeps request sizes bounded and normalizes provider behavior.
const MaxInputDim = 1024

// Preprocess decodes a PNG or JPEG payload, downscales it to fit inside a
// MaxInputDim square preserving aspect ratio, and re-encodes it as PNG.
// Images already inside the bound are re-encoded without scaling.
func Preprocess(data []byte) ([]byte, int, int, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("preprocess: decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	outW, outH := fitWithin(w, h, MaxInputDim)

	var out image.Image = src
	if outW != w || outH != h {
		scaled := image.NewRGBA(image.Rect(0, 0, outW, outH))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, 0, 0, fmt.Errorf("preprocess: encode png: %w", err)
	}
	return buf.Bytes(), outW, outH, nil
}

// fitWithin scales (w, h) down so both sides fit inside max, preserving
// aspect ratio. Dimensions already within the bound are returned unchanged.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		scaled := h * max / w
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled
	}
	scaled := w * max / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max
}
