// Package image implements the Image data model and sanitization/
// standardization logic of spec.md §3 and §4.4.
package image

import "fprint/internal/corerr"

// Flags is the typed set of image flags (spec.md §9 design note: "model as
// a small set or record of booleans to eliminate 'flag means opposite of
// its name' bugs").
type Flags struct {
	VFlipped      bool
	HFlipped      bool
	ColorsInverted bool
	Binarized     bool
	Partial       bool
}

// Standardized reports whether none of the flip/invert flags are set
// (spec.md §3 "standardized" means none of the flip/invert flags are set).
func (f Flags) Standardized() bool {
	return !f.VFlipped && !f.HFlipped && !f.ColorsInverted
}

// Image is an 8-bit greyscale, row-major pixel buffer plus metadata
// (spec.md §3 "Image").
type Image struct {
	Width  int
	Height int
	Pixels []byte // length >= Width*Height
	Flags  Flags

	// Minutiae and BinaryPixels are optional attachments populated once
	// detection has run; nil until then (spec.md §3).
	Minutiae     interface{} // *minutiae.List, kept as interface{} to avoid an import cycle
	BinaryPixels []byte
}

// New constructs an Image, validating spec.md §8's boundary conditions:
// width and height must be positive, and len(pixels) must be at least
// width*height.
func New(width, height int, pixels []byte, flags Flags) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, corerr.EINVAL
	}
	if len(pixels) < width*height {
		return nil, corerr.EOVERFLOW
	}
	return &Image{Width: width, Height: height, Pixels: pixels, Flags: flags}, nil
}

// Sanitize applies spec.md §4.4's sanitization policy: if the driver
// declares a fixed width/height, the image's own dimensions are overwritten
// by the driver values; otherwise positive non-zero dimensions are
// required. The length >= width*height sanity check always applies.
func Sanitize(img *Image, driverWidth, driverHeight int) error {
	if driverWidth > 0 && driverHeight > 0 {
		img.Width = driverWidth
		img.Height = driverHeight
	} else if img.Width <= 0 || img.Height <= 0 {
		return corerr.EINVAL
	}
	if len(img.Pixels) < img.Width*img.Height {
		return corerr.EOVERFLOW
	}
	return nil
}

// Standardize performs, for each of {vertical flip, horizontal flip, color
// invert} declared in img.Flags, the corresponding transform and clears the
// flag. Idempotent: calling Standardize twice is a no-op the second time
// (spec.md §4.4, §8).
func Standardize(img *Image) {
	if img.Flags.VFlipped {
		flipVertical(img)
		img.Flags.VFlipped = false
	}
	if img.Flags.HFlipped {
		flipHorizontal(img)
		img.Flags.HFlipped = false
	}
	if img.Flags.ColorsInverted {
		invertColors(img)
		img.Flags.ColorsInverted = false
	}
}

func flipVertical(img *Image) {
	w, h := img.Width, img.Height
	row := make([]byte, w)
	for y := 0; y < h/2; y++ {
		top := img.Pixels[y*w : y*w+w]
		bot := img.Pixels[(h-1-y)*w : (h-1-y)*w+w]
		copy(row, top)
		copy(top, bot)
		copy(bot, row)
	}
}

func flipHorizontal(img *Image) {
	w, h := img.Width, img.Height
	for y := 0; y < h; y++ {
		row := img.Pixels[y*w : y*w+w]
		for x := 0; x < w/2; x++ {
			row[x], row[w-1-x] = row[w-1-x], row[x]
		}
	}
}

func invertColors(img *Image) {
	for i, p := range img.Pixels[:img.Width*img.Height] {
		img.Pixels[i] = 255 - p
	}
}
