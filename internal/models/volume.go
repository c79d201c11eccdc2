package models

import (
	"fmt"
	"image"
)

// Slice represents a single 2D plane of an acquisition with metadata
type Slice struct {
	// Image is the actual slice image data
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// Volume is an n-dimensional array of voxel values.
// Data is stored in row-major order: the last axis varies fastest, so a
// 3D stack has shape [depth, height, width] and index z*H*W + y*W + x.
type Volume struct {
	// Shape holds the extent of each axis
	Shape []int

	// Data is the flattened voxel data
	Data []float64
}

// NewVolume allocates a zero-filled volume with the given shape
func NewVolume(shape ...int) *Volume {
	return &Volume{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, NumElements(shape)),
	}
}

// NewVolumeFromData wraps data with the given shape. The data slice is not copied.
func NewVolumeFromData(data []float64, shape ...int) (*Volume, error) {
	if n := NumElements(shape); n != len(data) {
		return nil, fmt.Errorf("shape %v holds %d elements, data has %d", shape, n, len(data))
	}
	return &Volume{Shape: append([]int(nil), shape...), Data: data}, nil
}

// NDim returns the number of axes
func (v *Volume) NDim() int { return len(v.Shape) }

// Len returns the number of voxels
func (v *Volume) Len() int { return len(v.Data) }

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	return &Volume{
		Shape: append([]int(nil), v.Shape...),
		Data:  append([]float64(nil), v.Data...),
	}
}

// At returns the value at the given coordinates
func (v *Volume) At(coords ...int) float64 {
	return v.Data[Offset(v.Shape, coords)]
}

// Set stores a value at the given coordinates
func (v *Volume) Set(value float64, coords ...int) {
	v.Data[Offset(v.Shape, coords)] = value
}

// CountNonZero returns the number of voxels whose value is not zero
func (v *Volume) CountNonZero() int {
	n := 0
	for _, x := range v.Data {
		if x != 0 {
			n++
		}
	}
	return n
}

// LabelMap assigns a component id to every voxel of a volume.
// 0 is background; components are numbered 1..NumLabels.
type LabelMap struct {
	Shape     []int
	Labels    []int
	NumLabels int
}

// Mask is a boolean volume
type Mask struct {
	Shape []int
	Data  []bool
}

// NewMask allocates an all-false mask with the given shape
func NewMask(shape ...int) *Mask {
	return &Mask{
		Shape: append([]int(nil), shape...),
		Data:  make([]bool, NumElements(shape)),
	}
}

// Count returns the number of true voxels
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Data {
		if b {
			n++
		}
	}
	return n
}

// ToVolume converts the mask to a 0/1 volume
func (m *Mask) ToVolume() *Volume {
	v := &Volume{
		Shape: append([]int(nil), m.Shape...),
		Data:  make([]float64, len(m.Data)),
	}
	for i, b := range m.Data {
		if b {
			v.Data[i] = 1
		}
	}
	return v
}

// NumElements returns the product of the shape's extents.
// An empty shape holds no elements.
func NumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

// Strides returns the row-major stride of each axis
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	step := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= shape[i]
	}
	return strides
}

// Offset maps coordinates to a flat row-major index
func Offset(shape, coords []int) int {
	if len(coords) != len(shape) {
		panic(fmt.Sprintf("models: %d coordinates for %d axes", len(coords), len(shape)))
	}
	idx := 0
	for i, c := range coords {
		idx = idx*shape[i] + c
	}
	return idx
}

// Coords writes the coordinates of a flat index into dst and returns it
func Coords(shape []int, idx int, dst []int) []int {
	if cap(dst) < len(shape) {
		dst = make([]int, len(shape))
	}
	dst = dst[:len(shape)]
	for i := len(shape) - 1; i >= 0; i-- {
		dst[i] = idx % shape[i]
		idx /= shape[i]
	}
	return dst
}
