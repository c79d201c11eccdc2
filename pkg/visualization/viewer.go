package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"voxelcc/internal/models"
)

// Viewer extracts planes and sub-regions from a 3D volume and writes them as
// images. A 2D volume is viewed as a stack of depth 1.
type Viewer struct {
	// volume holds the voxel data, values expected in [0, 1]
	volume *models.Volume

	// dimensions of the volume
	width  int
	height int
	depth  int

	// format is the image extension used when saving sequences
	format string
}

// NewViewer creates a viewer for a 2D or 3D volume
func NewViewer(volume *models.Volume) (*Viewer, error) {
	if volume == nil {
		return nil, fmt.Errorf("nil volume")
	}
	v := &Viewer{volume: volume, format: "png"}
	switch len(volume.Shape) {
	case 2:
		v.depth, v.height, v.width = 1, volume.Shape[0], volume.Shape[1]
	case 3:
		v.depth, v.height, v.width = volume.Shape[0], volume.Shape[1], volume.Shape[2]
	default:
		return nil, fmt.Errorf("viewer needs a 2D or 3D volume, got %d dimensions", len(volume.Shape))
	}
	if v.width*v.height*v.depth != len(volume.Data) {
		return nil, fmt.Errorf("shape %v does not match %d voxels", volume.Shape, len(volume.Data))
	}
	return v, nil
}

// NewMaskViewer creates a viewer that renders a mask as black and white
func NewMaskViewer(mask *models.Mask) (*Viewer, error) {
	if mask == nil {
		return nil, fmt.Errorf("nil mask")
	}
	return NewViewer(mask.ToVolume())
}

// SetFormat selects the file extension used by SaveSliceSequence (png, jpg, tif, bmp)
func (v *Viewer) SetFormat(format string) error {
	if _, err := imaging.FormatFromExtension(format); err != nil {
		return err
	}
	v.format = strings.TrimPrefix(strings.ToLower(format), ".")
	return nil
}

func (v *Viewer) gray(idx int) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, v.volume.Data[idx]*65535)))}
}

// ExtractSlice extracts a 2D plane from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16
	plane := v.width * v.height

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(z*plane+y*v.width+position))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(z*plane+position*v.width+x))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(position*plane+y*v.width+x))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion extracts a 3D sub-volume of shape [sizeZ, sizeY, sizeX]
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.Volume, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := models.NewVolume(sizeZ, sizeY, sizeX)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := (startZ+z)*v.width*v.height + (startY+y)*v.width + startX
			dst := z*sizeX*sizeY + y*sizeX
			copy(region.Data[dst:dst+sizeX], v.volume.Data[src:src+sizeX])
		}
	}

	return region, nil
}

// SaveSlice saves an extracted plane; the format follows the file extension
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(img, filename, imaging.JPEGQuality(90))
}

// SaveSliceSequence extracts and saves every plane along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, v.format))
		if err := v.SaveSlice(img, filename); err != nil {
			return fmt.Errorf("saving %s: %w", filename, err)
		}
	}

	return nil
}
