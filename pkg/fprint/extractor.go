package fprint

import (
	"fprint/internal/image"
	"fprint/internal/imgdev"
	"fprint/internal/minutiae"
	"fprint/internal/prune"
)

// BlockMapFunc computes the block-level ridge-flow direction, low-flow, and
// high-curvature maps spec.md §4.6 says minutiae detection is "told ... by
// its collaborator" rather than deriving itself. Ridge-flow estimation is
// explicitly out of scope for the core (spec.md §1's "external
// collaborators"); a concrete sensor driver supplies one, typically backed
// by whatever signal-processing library its own go.mod already carries.
type BlockMapFunc func(img *image.Image) *minutiae.BlockMaps

// NewMinutiaeExtractor wires together minutiae detection (internal/minutiae)
// and the false-minutiae pruning cascade (internal/prune) into an
// imgdev.Extractor, using blockMaps to supply the collaborator input each
// standardized image needs.
func NewMinutiaeExtractor(blockMaps BlockMapFunc, pruneParams prune.Params) imgdev.Extractor {
	return imgdev.ExtractorFunc(func(img *image.Image) (*minutiae.List, error) {
		blocks := blockMaps(img)
		list := minutiae.Detect(img, blocks)
		bin := minutiae.NewBinaryImage(img.Width, img.Height, binarize(img))
		prune.Run(list, blocks, bin, pruneParams)
		return list, nil
	})
}

// binarize thresholds img at its mean grey value, giving the pruning
// cascade a ridge/background bitmap to trace contours over. Sensor drivers
// needing a different threshold policy should supply their own
// imgdev.Extractor via Registration.NewExtractor instead of
// NewMinutiaeExtractor.
func binarize(img *image.Image) []byte {
	out := make([]byte, len(img.Pixels))
	if len(img.Pixels) == 0 {
		return out
	}
	sum := 0
	for _, p := range img.Pixels {
		sum += int(p)
	}
	mean := byte(sum / len(img.Pixels))
	for i, p := range img.Pixels {
		if p < mean {
			out[i] = 1
		}
	}
	return out
}
