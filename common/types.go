// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"image"
	"image/color"
)

// ImageStagingData holds tightly packed pixel data for an image pending GPU upload.
type ImageStagingData struct {
	// Pixels is the raw texel data in row-major order, BytesPerPixel bytes per texel.
	Pixels []byte
	// Width is the width of the image in texels.
	Width uint32
	// Height is the height of the image in texels.
	Height uint32
	// BytesPerPixel is the size of one texel. Four for RGBA8 data.
	BytesPerPixel uint32
}

// Validate checks that the pixel slice matches the declared dimensions.
//
// Returns:
//   - error: an error if the data is empty or its length disagrees with the dimensions
func (d ImageStagingData) Validate() error {
	if d.Width == 0 || d.Height == 0 || d.BytesPerPixel == 0 {
		return fmt.Errorf("image staging data has zero extent (%dx%d, %d bpp)", d.Width, d.Height, d.BytesPerPixel)
	}
	want := int(d.Width * d.Height * d.BytesPerPixel)
	if len(d.Pixels) != want {
		return fmt.Errorf("image staging data holds %d bytes, want %d", len(d.Pixels), want)
	}
	return nil
}

// RGBA returns the staging data as an image.RGBA. Only four-byte texels are supported.
//
// Returns:
//   - *image.RGBA: the decoded image
//   - error: an error if the data is not RGBA8
func (d ImageStagingData) RGBA() (*image.RGBA, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.BytesPerPixel != 4 {
		return nil, fmt.Errorf("image staging data has %d bytes per pixel, want 4", d.BytesPerPixel)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(d.Width), int(d.Height)))
	copy(img.Pix, d.Pixels)
	return img, nil
}

// FloatImage is a single-channel float image in row-major order, used for
// read-back of depth and ambient targets.
type FloatImage struct {
	Width  int
	Height int
	Pix    []float32
}

// At returns the texel at (x, y), clamping coordinates to the image edge.
func (f *FloatImage) At(x, y int) float32 {
	x = Clamp(x, 0, f.Width-1)
	y = Clamp(y, 0, f.Height-1)
	return f.Pix[y*f.Width+x]
}

// Gray converts the image to 8-bit grayscale, mapping [lo, hi] to [0, 255].
//
// Parameters:
//   - lo: value mapped to black
//   - hi: value mapped to white
//
// Returns:
//   - *image.Gray: the converted image
func (f *FloatImage) Gray(lo, hi float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := Saturate((f.Pix[y*f.Width+x] - lo) / span)
			img.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}
