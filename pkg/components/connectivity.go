package components

import (
	"fmt"

	"voxelcc/internal/models"
)

// Connectivity is the maximum number of orthogonal hops that separate two
// neighboring voxels. It ranges from 1 (face neighbors only) to the number of
// dimensions (faces, edges and corners).
type Connectivity int

// FaceConnectivity joins voxels sharing a face.
const FaceConnectivity Connectivity = 1

// FullConnectivity returns the connectivity that includes every diagonal
// neighbor of an ndim-dimensional volume.
func FullConnectivity(ndim int) Connectivity {
	return Connectivity(ndim)
}

// Validate reports whether c is usable on an ndim-dimensional volume.
func (c Connectivity) Validate(ndim int) error {
	if ndim < 1 {
		return fmt.Errorf("%w: volume has no dimensions", ErrInvalidInput)
	}
	if c < 1 || int(c) > ndim {
		return fmt.Errorf("%w: connectivity %d outside [1, %d]", ErrInvalidInput, c, ndim)
	}
	return nil
}

// Offsets returns the neighbor displacement vectors for connectivity c in
// ndim dimensions: every vector in {-1,0,1}^ndim with between 1 and c
// nonzero entries.
func Offsets(ndim int, c Connectivity) ([][]int, error) {
	if err := c.Validate(ndim); err != nil {
		return nil, err
	}

	total := 1
	for i := 0; i < ndim; i++ {
		total *= 3
	}

	offsets := make([][]int, 0, total-1)
	for k := 0; k < total; k++ {
		d := make([]int, ndim)
		nonzero := 0
		rem := k
		for axis := ndim - 1; axis >= 0; axis-- {
			d[axis] = rem%3 - 1
			rem /= 3
			if d[axis] != 0 {
				nonzero++
			}
		}
		if nonzero == 0 || nonzero > int(c) {
			continue
		}
		offsets = append(offsets, d)
	}
	return offsets, nil
}

// neighborhood caches the offsets together with their flat index deltas for a
// given shape.
type neighborhood struct {
	shape   []int
	offsets [][]int
	deltas  []int
}

func newNeighborhood(shape []int, c Connectivity) (*neighborhood, error) {
	offsets, err := Offsets(len(shape), c)
	if err != nil {
		return nil, err
	}
	strides := models.Strides(shape)
	deltas := make([]int, len(offsets))
	for i, d := range offsets {
		for axis, step := range d {
			deltas[i] += step * strides[axis]
		}
	}
	return &neighborhood{shape: shape, offsets: offsets, deltas: deltas}, nil
}

// visit calls fn with the flat index of every in-bounds neighbor of the voxel
// at coords/idx.
func (n *neighborhood) visit(coords []int, idx int, fn func(int)) {
next:
	for i, d := range n.offsets {
		for axis, step := range d {
			c := coords[axis] + step
			if c < 0 || c >= n.shape[axis] {
				continue next
			}
		}
		fn(idx + n.deltas[i])
	}
}

// validateVolume checks that v is a non-empty, consistently shaped volume.
func validateVolume(v *models.Volume) error {
	if v == nil {
		return fmt.Errorf("%w: nil volume", ErrInvalidInput)
	}
	if len(v.Shape) == 0 {
		return fmt.Errorf("%w: volume has no dimensions", ErrInvalidInput)
	}
	for axis, s := range v.Shape {
		if s <= 0 {
			return fmt.Errorf("%w: axis %d has extent %d", ErrInvalidInput, axis, s)
		}
	}
	if n := models.NumElements(v.Shape); n != len(v.Data) {
		return fmt.Errorf("%w: shape %v holds %d voxels, data has %d", ErrInvalidInput, v.Shape, n, len(v.Data))
	}
	return nil
}
