// Package components labels connected regions of n-dimensional voxel volumes
// and selects the largest one.
//
// What:
//
//   - Label assigns a unique positive id to every connected region of nonzero
//     voxels, numbering regions in row-major order of their first voxel.
//   - WeightedCounts sums the original voxel values per label id.
//   - LargestComponent returns the mask of the region with the greatest weight.
//   - Regions and RemoveSmallObjects provide per-region statistics and cleanup.
//
// Connectivity:
//
//   - Connectivity(1) joins voxels that share a face (4-neighbors in 2D,
//     6-neighbors in 3D).
//   - FullConnectivity(ndim) also joins edges and corners (8 in 2D, 26 in 3D).
//
// Values are truncated toward zero before labeling, so a voxel of 0.7 is
// background for connectivity purposes while still contributing its weight
// to whichever id it ends up under (id 0). Id 0 is never selected.
//
// Errors:
//
//   - ErrInvalidInput wraps every rejected input: empty volumes, mismatched
//     shapes, invalid connectivity, negative or non-finite values and volumes
//     with no foreground.
package components
