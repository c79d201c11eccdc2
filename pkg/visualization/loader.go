package visualization

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"voxelcc/internal/models"
	"voxelcc/pkg/preprocess"
)

// ErrNoSlices indicates the input directory holds no readable slice images.
var ErrNoSlices = errors.New("no slice images found")

var sliceExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true, ".bmp": true,
}

// ListSlices returns the image files of dir sorted by the number embedded in
// their names, then by name.
func ListSlices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSlices, dir)
	}

	sort.Slice(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// LoadSlices reads every slice image of dir as grayscale and stacks them into
// a [depth, height, width] volume with values in [0, 1].
func LoadSlices(dir string) (*models.Volume, []models.Slice, error) {
	files, err := ListSlices(dir)
	if err != nil {
		return nil, nil, err
	}

	slices := make([]models.Slice, 0, len(files))
	var width, height int
	for i, name := range files {
		img, err := imaging.Open(filepath.Join(dir, name), imaging.AutoOrientation(true))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		gray := imaging.Grayscale(img)

		// all slices must share the first slice's dimensions
		bounds := gray.Bounds()
		if i == 0 {
			width, height = bounds.Dx(), bounds.Dy()
		} else if bounds.Dx() != width || bounds.Dy() != height {
			return nil, nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", name, bounds.Dx(), bounds.Dy(), width, height)
		}

		slices = append(slices, models.Slice{Image: gray, Index: i, Filename: name})
	}

	volume := models.NewVolume(len(slices), height, width)
	plane := width * height
	for i, s := range slices {
		copy(volume.Data[i*plane:], preprocess.ImageToPlane(s.Image))
	}

	return volume, slices, nil
}

// extractNumber extracts the digits of a filename as a number
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() > 0 {
		if num, err := strconv.Atoi(digits.String()); err == nil {
			return num
		}
	}
	return 0
}
