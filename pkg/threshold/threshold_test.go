package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelcc/internal/models"
)

// bimodal returns n values spread over [0.1, 0.3] followed by n over [0.7, 0.9].
func bimodal(n int) []float64 {
	data := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		data = append(data, 0.1+0.2*float64(i)/float64(n-1))
	}
	for i := 0; i < n; i++ {
		data = append(data, 0.7+0.2*float64(i)/float64(n-1))
	}
	return data
}

// tent returns n evenly spaced quantiles of a triangular density on
// [center-half, center+half], so every histogram bin it covers is filled.
func tent(center, half float64, n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		u := (float64(i) + 0.5) / float64(n)
		if u < 0.5 {
			data[i] = center - half + half*math.Sqrt(2*u)
		} else {
			data[i] = center + half - half*math.Sqrt(2*(1-u))
		}
	}
	return data
}

// twoPeaks is a dominant background peak on [0.1, 0.3] and a smaller
// foreground peak on [0.55, 0.85].
func twoPeaks() []float64 {
	return append(tent(0.2, 0.1, 3000), tent(0.7, 0.15, 1000)...)
}

func TestCompute_Bimodal(t *testing.T) {
	data := bimodal(100)
	for _, m := range []Method{ISODATA, Li, Mean, Otsu, Yen} {
		t.Run(string(m), func(t *testing.T) {
			th, err := Compute(m, data)
			require.NoError(t, err)
			// Otsu reports a bin center, which may sit just below the top of the low mode
			assert.Greater(t, th, 0.29)
			assert.Less(t, th, 0.7)
		})
	}
}

func TestCompute_Constant(t *testing.T) {
	data := []float64{0.4, 0.4, 0.4}
	for _, m := range Methods {
		th, err := Compute(m, data)
		require.NoError(t, err)
		assert.InDelta(t, 0.4, th, 1e-12, "method %s", m)
	}
}

func TestCompute_PeakedHistogram(t *testing.T) {
	data := twoPeaks()
	for _, m := range []Method{Minimum, Triangle} {
		t.Run(string(m), func(t *testing.T) {
			th, err := Compute(m, data)
			require.NoError(t, err)
			// the valley between the peaks spans (0.3, 0.55)
			assert.Greater(t, th, 0.29)
			assert.Less(t, th, 0.55)
		})
	}
}

func TestCompute_TriangleFollowsLongerTail(t *testing.T) {
	// the same histogram mirrored must give the mirrored threshold
	data := twoPeaks()
	mirrored := make([]float64, len(data))
	for i, x := range data {
		mirrored[i] = 1 - x
	}

	th, err := Compute(Triangle, data)
	require.NoError(t, err)
	mth, err := Compute(Triangle, mirrored)
	require.NoError(t, err)
	assert.InDelta(t, 1-th, mth, 0.8/Bins)
}

func TestCompute_MinimumNeedsTwoPeaks(t *testing.T) {
	_, err := Compute(Minimum, []float64{0.2, 0.2, 0.8, 0.8})
	assert.ErrorIs(t, err, ErrNotBimodal)
}

func TestCompute_TwoValues(t *testing.T) {
	th, err := Compute(Otsu, []float64{0.2, 0.2, 0.8, 0.8})
	require.NoError(t, err)
	assert.Greater(t, th, 0.2)
	assert.Less(t, th, 0.8)

	th, err = Compute(ISODATA, []float64{0.2, 0.2, 0.8, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, th, 1e-9)
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(Otsu, nil)
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = Compute(Method("kapur"), []float64{1})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestAll(t *testing.T) {
	results, err := All(bimodal(20))
	require.NoError(t, err)
	require.Len(t, results, len(Methods))
	for i, r := range results {
		assert.Equal(t, Methods[i], r.Method)
	}

	_, err = All(nil)
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestAll_ReportsInapplicableMethod(t *testing.T) {
	results, err := All([]float64{0.2, 0.2, 0.8, 0.8})
	require.NoError(t, err)
	require.Len(t, results, len(Methods))
	for _, r := range results {
		if r.Method == Minimum {
			assert.ErrorIs(t, r.Err, ErrNotBimodal)
			assert.True(t, math.IsNaN(r.Value))
			continue
		}
		assert.NoError(t, r.Err, "method %s", r.Method)
		assert.False(t, math.IsNaN(r.Value), "method %s", r.Method)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" OTSU ")
	require.NoError(t, err)
	assert.Equal(t, Otsu, m)

	m, err = ParseMethod("isodata")
	require.NoError(t, err)
	assert.Equal(t, ISODATA, m)

	for _, name := range []string{"minimum", "Triangle", "YEN"} {
		_, err = ParseMethod(name)
		assert.NoError(t, err, name)
	}

	_, err = ParseMethod("kapur")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestBinarize(t *testing.T) {
	v, err := models.NewVolumeFromData([]float64{0.1, 0.5, 0.51, 0.9}, 2, 2)
	require.NoError(t, err)

	b := Binarize(v, 0.5)
	assert.Equal(t, []int{2, 2}, b.Shape)
	assert.Equal(t, []float64{0, 0, 1, 1}, b.Data)
}
