package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelcc/internal/models"
	"voxelcc/pkg/components"
	"voxelcc/pkg/preprocess"
	"voxelcc/pkg/threshold"
)

const (
	stackSize  = 12
	stackDepth = 4
)

// inBigBlock reports whether (x, y, z) belongs to the 4×4×3 block.
func inBigBlock(x, y, z int) bool {
	return z < 3 && x >= 6 && x < 10 && y >= 6 && y < 10
}

// inSmallBlock reports whether (x, y, z) belongs to the 2×2×1 block.
func inSmallBlock(x, y, z int) bool {
	return z == 0 && x >= 1 && x < 3 && y >= 1 && y < 3
}

// syntheticVolume returns a stack with a 48-voxel block and a 4-voxel block
// on a dim background.
func syntheticVolume() *models.Volume {
	v := models.NewVolume(stackDepth, stackSize, stackSize)
	for z := 0; z < stackDepth; z++ {
		for y := 0; y < stackSize; y++ {
			for x := 0; x < stackSize; x++ {
				value := 0.1
				if inBigBlock(x, y, z) || inSmallBlock(x, y, z) {
					value = 0.9
				}
				v.Set(value, z, y, x)
			}
		}
	}
	return v
}

// writeStack saves syntheticVolume as numbered PNG slices in dir.
func writeStack(t *testing.T, dir string) {
	t.Helper()
	v := syntheticVolume()
	for z := 0; z < stackDepth; z++ {
		img := image.NewGray(image.Rect(0, 0, stackSize, stackSize))
		for y := 0; y < stackSize; y++ {
			for x := 0; x < stackSize; x++ {
				img.SetGray(x, y, color.Gray{Y: uint8(v.At(z, y, x) * 255)})
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("slice_%02d.png", z))
		require.NoError(t, imaging.Save(img, path))
	}
}

func baseParams() *Params {
	return &Params{
		NumCores:     2,
		Rescale:      true,
		Method:       threshold.Otsu,
		Connectivity: components.FaceConnectivity,
	}
}

func TestProcessVolume(t *testing.T) {
	p := New(baseParams())
	require.NoError(t, p.ProcessVolume(syntheticVolume()))

	r := p.Report()
	assert.Equal(t, []int{stackDepth, stackSize, stackSize}, r.Shape)
	assert.Equal(t, 52, r.DenseVoxels)
	assert.Equal(t, 2, r.Components)
	assert.Equal(t, 48, r.LargestVoxels)
	assert.InDelta(t, 48.0/52.0, r.LargestFraction, 1e-12)
	assert.Equal(t, threshold.Otsu, r.Method)
	assert.Greater(t, r.Threshold, 0.0)
	assert.Less(t, r.Threshold, 1.0)
	assert.Len(t, r.Thresholds, len(threshold.Methods))

	mask := p.Mask()
	require.NotNil(t, mask)
	assert.True(t, mask.Data[models.Offset(mask.Shape, []int{1, 7, 7})])
	assert.False(t, mask.Data[models.Offset(mask.Shape, []int{0, 1, 1})])
	assert.Equal(t, 52, p.Binary().CountNonZero())
}

func TestProcessVolume_MinObjectSize(t *testing.T) {
	params := baseParams()
	params.MinObjectSize = 5
	p := New(params)
	require.NoError(t, p.ProcessVolume(syntheticVolume()))

	r := p.Report()
	assert.Equal(t, 48, r.DenseVoxels)
	assert.Equal(t, 1, r.Components)
	assert.Equal(t, 48, r.LargestVoxels)
	assert.InDelta(t, 1.0, r.LargestFraction, 1e-12)
}

func TestProcessVolume_NoForeground(t *testing.T) {
	v := models.NewVolume(2, 4, 4)
	for i := range v.Data {
		v.Data[i] = 0.5
	}
	err := New(baseParams()).ProcessVolume(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, components.ErrInvalidInput)

	assert.ErrorIs(t, New(baseParams()).ProcessVolume(nil), components.ErrInvalidInput)
}

func TestProcessVolume_FiltersNeedUnitRange(t *testing.T) {
	raw := syntheticVolume()
	for i := range raw.Data {
		raw.Data[i] *= 255
	}

	params := baseParams()
	params.Rescale = false
	params.Filters = preprocess.Options{MedianSize: 3}
	err := New(params).ProcessVolume(raw)
	assert.ErrorIs(t, err, preprocess.ErrOutOfRange)

	// rescaling first brings the same stack into range
	params.Rescale = true
	p := New(params)
	require.NoError(t, p.ProcessVolume(raw))
	assert.Positive(t, p.Report().LargestVoxels)
}

func TestProcessVolume_EdgeAndBilateralFilters(t *testing.T) {
	params := baseParams()
	params.Filters = preprocess.Options{
		Bilateral: preprocess.BilateralOptions{SigmaSpace: 2, SigmaColor: 0.2},
		Edge:      preprocess.EdgeSobel,
	}
	p := New(params)
	require.NoError(t, p.ProcessVolume(syntheticVolume()))

	r := p.Report()
	assert.Positive(t, r.DenseVoxels)
	assert.Positive(t, r.LargestVoxels)
	assert.LessOrEqual(t, r.LargestVoxels, r.DenseVoxels)
	assert.Equal(t, r.Components, countLabels(t, p.Binary()))
}

func countLabels(t *testing.T, v *models.Volume) int {
	t.Helper()
	lm, err := components.Label(v, components.FaceConnectivity)
	require.NoError(t, err)
	return lm.NumLabels
}

func TestProcessVolume_InvalidConnectivity(t *testing.T) {
	params := baseParams()
	params.Connectivity = 4
	err := New(params).ProcessVolume(syntheticVolume())
	assert.ErrorIs(t, err, components.ErrInvalidInput)
}

func TestProcess_FromDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tmp := t.TempDir()
	input := filepath.Join(tmp, "input")
	require.NoError(t, os.MkdirAll(input, 0755))
	writeStack(t, input)

	params := baseParams()
	params.InputDir = input
	params.Filters = preprocess.Options{GaussianSigma: 0}
	params.SaveIntermediaryResults = true
	params.IntermediaryDir = filepath.Join(tmp, "intermediary")

	p := New(params)
	require.NoError(t, p.Process())

	r := p.Report()
	assert.Equal(t, 52, r.DenseVoxels)
	assert.Equal(t, 48, r.LargestVoxels)

	for _, stage := range []string{"01_original", "02_preprocessed", "03_binary", "04_largest"} {
		_, err := os.Stat(filepath.Join(params.IntermediaryDir, stage, "slice_z_000.png"))
		assert.NoError(t, err, "stage %s", stage)
	}
}

func TestProcess_MissingDirectory(t *testing.T) {
	params := baseParams()
	params.InputDir = filepath.Join(t.TempDir(), "nope")
	assert.Error(t, New(params).Process())
}
