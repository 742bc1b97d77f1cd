package domain

import "fmt"

// Vector is a fixed-dimension embedding produced by the embedding provider.
// Vectors are only comparable when produced by the same provider and model;
// the active provider identity is pinned in the index metadata at build time.
type Vector []float32

// Fuse combines up to two modality vectors into a single query or document
// vector. Both present: element-wise arithmetic mean. One present: that
// vector unchanged (identity, not a mean against zeros). Neither: ErrNoInput.
//
// The same policy is applied at ingestion time and at query time; any
// asymmetry between the two paths corrupts retrieval quality.
func Fuse(text, image Vector) (Vector, error) {
	switch {
	case text == nil && image == nil:
		return nil, ErrNoInput
	case text == nil:
		return image, nil
	case image == nil:
		return text, nil
	}

	if len(text) != len(image) {
		return nil, fmt.Errorf("%w: text %d vs image %d", ErrDimensionMismatch, len(text), len(image))
	}

	fused := make(Vector, len(text))
	for i := range text {
		fused[i] = (text[i] + image[i]) / 2
	}
	return fused, nil
}
