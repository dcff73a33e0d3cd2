// Package pgm implements the PGM greyscale image dump format of spec.md §6.
package pgm

import (
	"bytes"
	"fmt"

	"fprint/internal/corerr"
	"fprint/internal/image"
)

// Dump writes img as a PGM (P5) image: header "P5 <W> <H> 255\n" followed
// by width*height raw greyscale bytes.
func Dump(img *image.Image) ([]byte, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, corerr.EINVAL
	}
	n := img.Width * img.Height
	if len(img.Pixels) < n {
		return nil, corerr.EOVERFLOW
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P5 %d %d 255\n", img.Width, img.Height)
	buf.Write(img.Pixels[:n])
	return buf.Bytes(), nil
}
