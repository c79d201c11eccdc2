package pipeline

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"voxelcc/internal/models"
	"voxelcc/pkg/components"
	"voxelcc/pkg/preprocess"
	"voxelcc/pkg/threshold"
	"voxelcc/pkg/visualization"
)

// Report holds the measurements printed at the end of a run.
type Report struct {
	// Shape of the processed volume
	Shape []int

	// Mean and StdDev of the preprocessed intensities
	Mean   float64
	StdDev float64

	// Method and Threshold used for binarization
	Method    threshold.Method
	Threshold float64

	// Thresholds lists every method's value for comparison
	Thresholds []threshold.Result

	// DenseVoxels is the foreground voxel count after binarization
	// (and small-object removal, when enabled)
	DenseVoxels int

	// Components is the number of connected components of the dense phase
	Components int

	// LargestVoxels is the voxel count of the largest component
	LargestVoxels int

	// LargestFraction is LargestVoxels / DenseVoxels
	LargestFraction float64
}

// Params holds the pipeline parameters.
type Params struct {
	// InputDir is the directory containing the 2D slices of the stack.
	// Files are ordered by the number embedded in their names.
	InputDir string

	// NumCores bounds the goroutines used for plane filtering.
	NumCores int

	// Rescale maps intensities to [0, 1] before filtering.
	Rescale bool

	// Filters are applied to every plane before thresholding.
	Filters preprocess.Options

	// Method selects the global threshold.
	Method threshold.Method

	// Connectivity is the neighbor rule used for labeling.
	Connectivity components.Connectivity

	// MinObjectSize removes smaller components before selection; 0 disables it.
	MinObjectSize int

	// SaveIntermediaryResults writes the volume after each stage.
	SaveIntermediaryResults bool

	// IntermediaryDir is where intermediary slices are written.
	IntermediaryDir string

	// Verbose prints progress to stdout.
	Verbose bool
}

// Pipeline runs load → preprocess → threshold → largest component on a
// slice stack.
//
// The process consists of several steps:
// 1. Loading the slices into a [depth, height, width] volume
// 2. Rescaling and filtering every plane
// 3. Binarizing with a global threshold
// 4. Optionally removing small objects
// 5. Selecting the largest connected component
type Pipeline struct {
	params *Params

	// mask is the largest component of the last run
	mask *models.Mask

	// binary is the dense phase of the last run
	binary *models.Volume

	report Report
}

// New creates a pipeline with the provided parameters.
func New(params *Params) *Pipeline {
	return &Pipeline{params: params}
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.params.Verbose {
		fmt.Printf(format, args...)
	}
}

// Process loads the slices of InputDir and runs every stage on them.
func (p *Pipeline) Process() error {
	p.logf("Step 1: Loading input slices...\n")
	volume, slices, err := visualization.LoadSlices(p.params.InputDir)
	if err != nil {
		return fmt.Errorf("failed to load slices: %w", err)
	}
	p.logf("Loaded %d slices with dimensions %dx%d\n", len(slices), volume.Shape[2], volume.Shape[1])

	return p.ProcessVolume(volume)
}

// ProcessVolume runs every stage after loading on an in-memory volume.
// 2D and 3D volumes can be filtered; higher dimensions require disabled filters.
func (p *Pipeline) ProcessVolume(volume *models.Volume) error {
	if volume == nil || len(volume.Data) == 0 {
		return fmt.Errorf("%w: empty volume", components.ErrInvalidInput)
	}
	p.saveStage("01_original", volume)

	p.logf("Step 2: Preprocessing...\n")
	work := volume
	if p.params.Rescale {
		work = preprocess.RescaleVolume(work)
	}
	if p.params.Filters.Enabled() {
		filtered, err := preprocess.ApplyToVolume(work, p.params.Filters, p.params.NumCores)
		if err != nil {
			return fmt.Errorf("failed to filter volume: %w", err)
		}
		work = filtered
	}
	p.saveStage("02_preprocessed", work)

	p.logf("Step 3: Thresholding (%s)...\n", p.params.Method)
	t, err := threshold.Compute(p.params.Method, work.Data)
	if err != nil {
		return fmt.Errorf("failed to compute threshold: %w", err)
	}
	all, err := threshold.All(work.Data)
	if err != nil {
		return fmt.Errorf("failed to compute thresholds: %w", err)
	}
	binary := threshold.Binarize(work, t)

	if p.params.MinObjectSize > 1 {
		p.logf("Removing objects smaller than %d voxels...\n", p.params.MinObjectSize)
		binary, err = components.RemoveSmallObjects(binary, p.params.MinObjectSize, p.params.Connectivity)
		if err != nil {
			return fmt.Errorf("failed to remove small objects: %w", err)
		}
	}
	p.saveStage("03_binary", binary)

	p.logf("Step 4: Selecting the largest connected component...\n")
	labels, err := components.Label(binary, p.params.Connectivity)
	if err != nil {
		return fmt.Errorf("failed to label dense phase: %w", err)
	}
	id, err := components.LargestLabel(labels, binary)
	if err != nil {
		return fmt.Errorf("failed to select largest component: %w", err)
	}
	mask := components.MaskOf(labels, id)
	p.saveStage("04_largest", mask.ToVolume())

	mean, std := stat.MeanStdDev(work.Data, nil)
	dense := binary.CountNonZero()
	largest := mask.Count()

	p.binary = binary
	p.mask = mask
	p.report = Report{
		Shape:           append([]int(nil), volume.Shape...),
		Mean:            mean,
		StdDev:          std,
		Method:          p.params.Method,
		Threshold:       t,
		Thresholds:      all,
		DenseVoxels:     dense,
		Components:      labels.NumLabels,
		LargestVoxels:   largest,
		LargestFraction: float64(largest) / float64(dense),
	}

	return nil
}

// Report returns the measurements of the last run.
func (p *Pipeline) Report() Report {
	return p.report
}

// Mask returns the largest component of the last run.
func (p *Pipeline) Mask() *models.Mask {
	return p.mask
}

// Binary returns the dense phase of the last run.
func (p *Pipeline) Binary() *models.Volume {
	return p.binary
}

// saveStage writes a 2D or 3D volume as z slices under IntermediaryDir/stage.
// Failures are reported as warnings.
func (p *Pipeline) saveStage(stage string, v *models.Volume) {
	if !p.params.SaveIntermediaryResults {
		return
	}
	viewer, err := visualization.NewViewer(v)
	if err != nil {
		fmt.Printf("Warning: cannot save %s: %v\n", stage, err)
		return
	}
	if err := viewer.SaveSliceSequence("z", filepath.Join(p.params.IntermediaryDir, stage)); err != nil {
		fmt.Printf("Warning: failed to save %s: %v\n", stage, err)
	}
}
