package components

import (
	"fmt"

	"voxelcc/internal/models"
)

// Region summarizes one labeled component.
type Region struct {
	Label  int
	Voxels int
	// Weight is the summed input value; equal to Voxels when unweighted.
	Weight float64
	// Min and Max are the inclusive bounding-box corners.
	Min, Max []int
}

// Regions returns one Region per id 1..NumLabels, in ascending id order.
// weights may be nil.
func Regions(lm *models.LabelMap, weights *models.Volume) ([]Region, error) {
	counts, err := WeightedCounts(lm, weights)
	if err != nil {
		return nil, err
	}

	ndim := len(lm.Shape)
	regions := make([]Region, lm.NumLabels)
	for i := range regions {
		regions[i] = Region{
			Label:  i + 1,
			Weight: counts[i+1],
			Min:    make([]int, ndim),
			Max:    make([]int, ndim),
		}
	}

	coords := make([]int, ndim)
	for idx, id := range lm.Labels {
		if id == 0 {
			continue
		}
		r := &regions[id-1]
		coords = models.Coords(lm.Shape, idx, coords)
		if r.Voxels == 0 {
			copy(r.Min, coords)
			copy(r.Max, coords)
		} else {
			for axis, c := range coords {
				if c < r.Min[axis] {
					r.Min[axis] = c
				}
				if c > r.Max[axis] {
					r.Max[axis] = c
				}
			}
		}
		r.Voxels++
	}

	return regions, nil
}

// RemoveSmallObjects returns a copy of v with every component smaller than
// minSize voxels set to zero. Voxel values of kept components are preserved.
func RemoveSmallObjects(v *models.Volume, minSize int, c Connectivity) (*models.Volume, error) {
	lm, err := Label(v, c)
	if err != nil {
		return nil, err
	}
	out := v.Clone()
	if minSize <= 1 {
		return out, nil
	}

	sizes, err := WeightedCounts(lm, nil)
	if err != nil {
		return nil, fmt.Errorf("counting component sizes: %w", err)
	}
	for i, id := range lm.Labels {
		if id != 0 && int(sizes[id]) < minSize {
			out.Data[i] = 0
		}
	}
	return out, nil
}
