package components

import (
	"fmt"
	"math"

	"voxelcc/internal/models"
)

// Label finds the connected regions of v under connectivity c.
//
// Every value is truncated toward zero first; voxels whose truncated value is
// nonzero are foreground. Each foreground region receives a unique id starting
// at 1, in row-major order of its first voxel. Background voxels get 0.
//
// Time:   O(N·d), where N is the voxel count and d the number of neighbors.
// Memory: O(N) for the label map and the flood queue.
func Label(v *models.Volume, c Connectivity) (*models.LabelMap, error) {
	if err := validateVolume(v); err != nil {
		return nil, err
	}
	nb, err := newNeighborhood(v.Shape, c)
	if err != nil {
		return nil, err
	}

	foreground := make([]bool, len(v.Data))
	for i, x := range v.Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: non-finite value at index %d", ErrInvalidInput, i)
		}
		foreground[i] = math.Trunc(x) != 0
	}

	lm := &models.LabelMap{
		Shape:  append([]int(nil), v.Shape...),
		Labels: make([]int, len(v.Data)),
	}

	coords := make([]int, len(v.Shape))
	var queue []int
	for start := range v.Data {
		if !foreground[start] || lm.Labels[start] != 0 {
			continue
		}
		lm.NumLabels++
		id := lm.NumLabels
		lm.Labels[start] = id

		// BFS over the region
		queue = append(queue[:0], start)
		for qi := 0; qi < len(queue); qi++ {
			u := queue[qi]
			coords = models.Coords(v.Shape, u, coords)
			nb.visit(coords, u, func(w int) {
				if foreground[w] && lm.Labels[w] == 0 {
					lm.Labels[w] = id
					queue = append(queue, w)
				}
			})
		}
	}

	return lm, nil
}

// WeightedCounts returns, for every id 0..NumLabels, the sum of weights over
// the voxels carrying that id. A nil weights volume counts voxels.
func WeightedCounts(lm *models.LabelMap, weights *models.Volume) ([]float64, error) {
	if lm == nil {
		return nil, fmt.Errorf("%w: nil label map", ErrInvalidInput)
	}
	if weights != nil && len(weights.Data) != len(lm.Labels) {
		return nil, fmt.Errorf("%w: %d weights for %d labels", ErrInvalidInput, len(weights.Data), len(lm.Labels))
	}

	counts := make([]float64, lm.NumLabels+1)
	for i, id := range lm.Labels {
		if id < 0 || id > lm.NumLabels {
			return nil, fmt.Errorf("%w: label %d outside [0, %d]", ErrInvalidInput, id, lm.NumLabels)
		}
		if weights == nil {
			counts[id]++
		} else {
			counts[id] += weights.Data[i]
		}
	}
	return counts, nil
}

// MaskOf returns the mask of voxels carrying the given id.
func MaskOf(lm *models.LabelMap, id int) *models.Mask {
	m := models.NewMask(lm.Shape...)
	for i, l := range lm.Labels {
		m.Data[i] = l == id
	}
	return m
}
