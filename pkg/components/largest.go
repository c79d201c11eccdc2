package components

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"voxelcc/internal/models"
)

// LargestComponent returns a mask of the connected region of segments with
// the greatest total weight.
//
// segments holds non-negative values; their integer truncation decides what
// is foreground, while the untruncated values weight each region. Binary input
// therefore ranks regions by voxel count. Ties go to the region with the lowest
// id. The background (id 0) is never selected, even when fractional voxels give
// it weight.
//
// An error wrapping ErrInvalidInput is returned for empty or malformed input,
// an invalid connectivity, negative values, or when no voxel is foreground.
func LargestComponent(segments *models.Volume, c Connectivity) (*models.Mask, error) {
	if err := validateVolume(segments); err != nil {
		return nil, err
	}
	for i, x := range segments.Data {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: value %v at index %d is not a non-negative finite number", ErrInvalidInput, x, i)
		}
	}

	lm, err := Label(segments, c)
	if err != nil {
		return nil, err
	}
	id, err := LargestLabel(lm, segments)
	if err != nil {
		return nil, err
	}
	return MaskOf(lm, id), nil
}

// LargestLabel returns the id of lm with the greatest total weight, or the
// greatest voxel count when weights is nil. Ties go to the lowest id and the
// background is never chosen. Callers that already hold a label map use it
// to avoid labeling twice.
func LargestLabel(lm *models.LabelMap, weights *models.Volume) (int, error) {
	counts, err := WeightedCounts(lm, weights)
	if err != nil {
		return 0, err
	}
	if lm.NumLabels == 0 {
		return 0, fmt.Errorf("%w: volume has no foreground voxels", ErrInvalidInput)
	}

	// skip the background bin; MaxIdx keeps the first maximum
	return floats.MaxIdx(counts[1:]) + 1, nil
}
