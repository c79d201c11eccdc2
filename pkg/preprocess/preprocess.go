// Package preprocess prepares voxel volumes for thresholding: intensity
// rescaling and per-plane image filters.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/disintegration/gift"
	"github.com/mdouchement/bilateral"
	"gonum.org/v1/gonum/floats"

	"voxelcc/internal/models"
)

// ErrOutOfRange indicates a plane value outside [0, 1], which the 16-bit
// filter images cannot represent.
var ErrOutOfRange = errors.New("preprocess: intensity outside [0, 1]")

// Edge detectors accepted by Options.Edge
const (
	EdgeSobel   = "sobel"
	EdgeSobelH  = "sobel_h"
	EdgeSobelV  = "sobel_v"
	EdgeRoberts = "roberts"
	EdgePrewitt = "prewitt"
	EdgeScharr  = "scharr"
)

// edgeKernels holds the 3×3 correlation kernels of every edge detector.
// Detectors with two kernels report the magnitude sqrt((a² + b²) / 2).
// The _h kernels respond to horizontal edges, the _v kernels to vertical ones.
var edgeKernels = map[string][][]float32{
	EdgeSobel:  {sobelH, sobelV},
	EdgeSobelH: {sobelH},
	EdgeSobelV: {sobelV},
	// 2×2 kernels padded so their top-left weight sits on the center pixel
	EdgeRoberts: {
		{0, 0, 0, 0, 1, 0, 0, 0, -1},
		{0, 0, 0, 0, 0, 1, 0, -1, 0},
	},
	EdgePrewitt: {
		{1.0 / 3, 1.0 / 3, 1.0 / 3, 0, 0, 0, -1.0 / 3, -1.0 / 3, -1.0 / 3},
		{1.0 / 3, 0, -1.0 / 3, 1.0 / 3, 0, -1.0 / 3, 1.0 / 3, 0, -1.0 / 3},
	},
	EdgeScharr: {
		{3.0 / 16, 10.0 / 16, 3.0 / 16, 0, 0, 0, -3.0 / 16, -10.0 / 16, -3.0 / 16},
		{3.0 / 16, 0, -3.0 / 16, 10.0 / 16, 0, -10.0 / 16, 3.0 / 16, 0, -3.0 / 16},
	},
}

var (
	sobelH = []float32{0.25, 0.5, 0.25, 0, 0, 0, -0.25, -0.5, -0.25}
	sobelV = []float32{0.25, 0, -0.25, 0.5, 0, -0.5, 0.25, 0, -0.25}
)

// EdgeNames lists the accepted Options.Edge values
func EdgeNames() []string {
	names := make([]string, 0, len(edgeKernels))
	for name := range edgeKernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BilateralOptions configures the edge-preserving bilateral smoothing.
// Both sigmas must be positive to enable it.
type BilateralOptions struct {
	// SigmaSpace is the spatial standard deviation in pixels
	SigmaSpace float64 `yaml:"sigmaSpace"`

	// SigmaColor is the intensity standard deviation on the [0, 1] scale
	SigmaColor float64 `yaml:"sigmaColor"`
}

// Enabled reports whether bilateral smoothing is configured
func (b BilateralOptions) Enabled() bool {
	return b.SigmaSpace > 0 && b.SigmaColor > 0
}

// Options selects the filters applied to every plane, in order:
// bilateral, median, gaussian blur, edge detection. Zero values disable a
// filter.
type Options struct {
	// Bilateral smooths noise while keeping intensity steps
	Bilateral BilateralOptions `yaml:"bilateral"`

	// MedianSize is the median kernel size; must be odd when set
	MedianSize int `yaml:"medianSize"`

	// GaussianSigma is the gaussian blur standard deviation in pixels
	GaussianSigma float32 `yaml:"gaussianSigma"`

	// Edge replaces each plane with an edge response, one of EdgeNames
	Edge string `yaml:"edge"`
}

// Enabled reports whether any filter is configured
func (o Options) Enabled() bool {
	return o.Bilateral.Enabled() || o.MedianSize > 1 || o.GaussianSigma > 0 || o.Edge != ""
}

// Validate checks the filter parameters
func (o Options) Validate() error {
	if o.Bilateral.SigmaSpace < 0 || o.Bilateral.SigmaColor < 0 {
		return fmt.Errorf("bilateral sigmas must be non-negative, got %v and %v",
			o.Bilateral.SigmaSpace, o.Bilateral.SigmaColor)
	}
	if o.MedianSize < 0 || (o.MedianSize > 1 && o.MedianSize%2 == 0) {
		return fmt.Errorf("median size must be a positive odd number, got %d", o.MedianSize)
	}
	if o.GaussianSigma < 0 {
		return fmt.Errorf("gaussian sigma must be non-negative, got %v", o.GaussianSigma)
	}
	if _, ok := edgeKernels[o.Edge]; o.Edge != "" && !ok {
		return fmt.Errorf("unknown edge filter %q, want one of %s", o.Edge, strings.Join(EdgeNames(), ", "))
	}
	return nil
}

// NewFilter builds the gift smoothing chain for the options. Bilateral
// smoothing and edge detection run outside the chain.
func NewFilter(opts Options) *gift.GIFT {
	g := gift.New()
	if opts.MedianSize > 1 {
		g.Add(gift.Median(opts.MedianSize, true))
	}
	if opts.GaussianSigma > 0 {
		g.Add(gift.GaussianBlur(opts.GaussianSigma))
	}
	return g
}

// Bilateral runs the bilateral filter on a single image
func Bilateral(src image.Image, opts BilateralOptions) image.Image {
	f := bilateral.New(src, opts.SigmaSpace, opts.SigmaColor)
	f.Execute()
	return f.ResultImage()
}

// EdgeResponse returns the named edge detector's response to img as a
// row-major plane of [0, 1] values.
func EdgeResponse(img image.Image, name string) ([]float64, error) {
	kernels, ok := edgeKernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown edge filter %q", name)
	}

	var magnitude []float64
	for _, k := range kernels {
		g := gift.New(gift.Convolution(k, false, false, true, 0))
		response := ImageToPlane(ApplyToImage(g, img))
		if magnitude == nil {
			magnitude = make([]float64, len(response))
		}
		for i, r := range response {
			magnitude[i] += r * r
		}
	}
	floats.Scale(1/float64(len(kernels)), magnitude)
	for i, m := range magnitude {
		magnitude[i] = math.Sqrt(m)
	}
	return magnitude, nil
}

// Rescale maps data linearly onto [0, 1]. Constant data maps to zeros.
func Rescale(data []float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if hi == lo {
		return out
	}
	copy(out, data)
	floats.AddConst(-lo, out)
	floats.Scale(1/(hi-lo), out)
	return out
}

// RescaleVolume returns a copy of v with intensities rescaled to [0, 1]
func RescaleVolume(v *models.Volume) *models.Volume {
	return &models.Volume{
		Shape: append([]int(nil), v.Shape...),
		Data:  Rescale(v.Data),
	}
}

// PlaneToImage converts a height×width plane of [0,1] values to a 16-bit image.
// Values outside [0, 1] saturate.
func PlaneToImage(plane []float64, width, height int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			value := uint16(math.Max(0, math.Min(65535, plane[y*width+x]*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// ImageToPlane converts an image to a row-major plane of [0,1] luminance values
func ImageToPlane(img image.Image) []float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			plane[y*width+x] = float64(c.Y) / 65535.0
		}
	}
	return plane
}

// ApplyToImage runs the filter chain on a single image
func ApplyToImage(g *gift.GIFT, src image.Image) *image.Gray16 {
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// ApplyToVolume filters every plane of a 2D or 3D volume whose values lie in
// [0, 1]; other values fail with ErrOutOfRange. Planes are processed by up to
// workers goroutines.
func ApplyToVolume(v *models.Volume, opts Options, workers int) (*models.Volume, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var depth, height, width int
	switch len(v.Shape) {
	case 2:
		depth, height, width = 1, v.Shape[0], v.Shape[1]
	case 3:
		depth, height, width = v.Shape[0], v.Shape[1], v.Shape[2]
	default:
		return nil, fmt.Errorf("plane filters need a 2D or 3D volume, got %d dimensions", len(v.Shape))
	}
	if !opts.Enabled() {
		return v.Clone(), nil
	}
	for i, x := range v.Data {
		if !(x >= 0 && x <= 1) {
			return nil, fmt.Errorf("%w: voxel %d is %v, rescale first", ErrOutOfRange, i, x)
		}
	}
	if workers < 1 {
		workers = 1
	}

	g := NewFilter(opts)
	out := models.NewVolume(v.Shape...)
	planeSize := width * height

	type planeResult struct {
		z    int
		data []float64
		err  error
	}
	results := make(chan planeResult)
	sem := make(chan struct{}, workers)

	for z := 0; z < depth; z++ {
		go func(z int) {
			sem <- struct{}{}
			defer func() { <-sem }()

			var src image.Image = PlaneToImage(v.Data[z*planeSize:(z+1)*planeSize], width, height)
			if opts.Bilateral.Enabled() {
				src = Bilateral(src, opts.Bilateral)
			}
			dst := ApplyToImage(g, src)
			if dst.Bounds().Dx() != width || dst.Bounds().Dy() != height {
				results <- planeResult{z: z, err: fmt.Errorf("filter changed plane %d size to %v", z, dst.Bounds())}
				return
			}
			if opts.Edge == "" {
				results <- planeResult{z: z, data: ImageToPlane(dst)}
				return
			}
			edges, err := EdgeResponse(dst, opts.Edge)
			results <- planeResult{z: z, data: edges, err: err}
		}(z)
	}

	var firstErr error
	for done := 0; done < depth; done++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		copy(out.Data[res.z*planeSize:], res.data)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return out, nil
}
