// Package threshold computes global intensity thresholds and binarizes volumes.
package threshold

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"voxelcc/internal/models"
)

var (
	// ErrEmptyData indicates there are no values to threshold.
	ErrEmptyData = errors.New("threshold: no data")
	// ErrUnknownMethod indicates an unsupported method name.
	ErrUnknownMethod = errors.New("threshold: unknown method")
	// ErrNotBimodal indicates the smoothed histogram never settled on two peaks.
	ErrNotBimodal = errors.New("threshold: histogram is not bimodal")
)

// Method names a global thresholding algorithm
type Method string

const (
	Otsu     Method = "otsu"
	Mean     Method = "mean"
	ISODATA  Method = "isodata"
	Li       Method = "li"
	Minimum  Method = "minimum"
	Triangle Method = "triangle"
	Yen      Method = "yen"
)

// Methods lists every supported method in report order
var Methods = []Method{ISODATA, Li, Mean, Minimum, Otsu, Triangle, Yen}

// maxSmoothing bounds the histogram smoothing passes of the minimum method
const maxSmoothing = 10000

// Bins is the histogram resolution used by histogram-based methods
const Bins = 256

// Result pairs a method with its threshold. Err is set, and Value is NaN,
// when the method does not apply to the data.
type Result struct {
	Method Method
	Value  float64
	Err    error
}

// ParseMethod maps a case-insensitive name to a Method
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// Compute returns the threshold of data for the given method.
// Voxels strictly above the threshold are foreground.
func Compute(method Method, data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyData
	}
	switch method {
	case Otsu:
		return otsu(data), nil
	case Mean:
		return stat.Mean(data, nil), nil
	case ISODATA:
		return isodata(data), nil
	case Li:
		return li(data), nil
	case Minimum:
		return minimum(data)
	case Triangle:
		return triangle(data), nil
	case Yen:
		return yen(data), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, string(method))
	}
}

// All computes the threshold of every supported method. A method that
// cannot handle the data is reported through Result.Err instead of failing
// the whole set.
func All(data []float64) ([]Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	results := make([]Result, 0, len(Methods))
	for _, m := range Methods {
		t, err := Compute(m, data)
		if err != nil {
			results = append(results, Result{Method: m, Value: math.NaN(), Err: err})
			continue
		}
		results = append(results, Result{Method: m, Value: t})
	}
	return results, nil
}

// Binarize returns a volume holding 1 where v exceeds t and 0 elsewhere
func Binarize(v *models.Volume, t float64) *models.Volume {
	out := models.NewVolume(v.Shape...)
	for i, x := range v.Data {
		if x > t {
			out.Data[i] = 1
		}
	}
	return out
}

// histogram returns bin counts and bin centers over [min(data), max(data)].
// ok is false when the data is constant.
func histogram(data []float64) (counts, centers []float64, ok bool) {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return nil, nil, false
	}

	dividers := floats.Span(make([]float64, Bins+1), lo, hi)
	// the top divider must be strictly above the maximum
	dividers[Bins] = math.Nextafter(hi, math.Inf(1))
	counts = stat.Histogram(nil, dividers, sorted, nil)

	step := (hi - lo) / Bins
	centers = make([]float64, Bins)
	for i := range centers {
		centers[i] = lo + step*(float64(i)+0.5)
	}
	return counts, centers, true
}

// otsu maximizes the between-class variance over histogram splits.
func otsu(data []float64) float64 {
	counts, centers, ok := histogram(data)
	if !ok {
		return data[0]
	}

	n := len(counts)
	// cumulative class weights and means from the left and from the right
	w1 := make([]float64, n)
	m1 := make([]float64, n)
	var wsum, msum float64
	for i := 0; i < n; i++ {
		wsum += counts[i]
		msum += counts[i] * centers[i]
		w1[i] = wsum
		if wsum > 0 {
			m1[i] = msum / wsum
		}
	}
	w2 := make([]float64, n)
	m2 := make([]float64, n)
	wsum, msum = 0, 0
	for i := n - 1; i >= 0; i-- {
		wsum += counts[i]
		msum += counts[i] * centers[i]
		w2[i] = wsum
		if wsum > 0 {
			m2[i] = msum / wsum
		}
	}

	between := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		d := m1[i] - m2[i+1]
		between[i] = w1[i] * w2[i+1] * d * d
	}
	return centers[floats.MaxIdx(between)]
}

// isodata iterates t = (mean below + mean above) / 2 until it settles.
func isodata(data []float64) float64 {
	lo, hi := floats.Min(data), floats.Max(data)
	if lo == hi {
		return lo
	}
	tol := (hi - lo) * 1e-6

	t := stat.Mean(data, nil)
	for iter := 0; iter < 1000; iter++ {
		var below, above []float64
		for _, x := range data {
			if x > t {
				above = append(above, x)
			} else {
				below = append(below, x)
			}
		}
		if len(below) == 0 || len(above) == 0 {
			break
		}
		next := (stat.Mean(below, nil) + stat.Mean(above, nil)) / 2
		if math.Abs(next-t) <= tol {
			return next
		}
		t = next
	}
	return t
}

// li runs the iterative minimum cross-entropy method on data shifted to a
// zero minimum.
func li(data []float64) float64 {
	lo, hi := floats.Min(data), floats.Max(data)
	if lo == hi {
		return lo
	}
	tol := (hi - lo) * 1e-6

	t := stat.Mean(data, nil) - lo
	for iter := 0; iter < 1000; iter++ {
		var sumFore, sumBack float64
		var nFore, nBack int
		for _, x := range data {
			x -= lo
			if x > t {
				sumFore += x
				nFore++
			} else {
				sumBack += x
				nBack++
			}
		}
		if nFore == 0 || nBack == 0 {
			break
		}
		meanFore := sumFore / float64(nFore)
		meanBack := sumBack / float64(nBack)
		if meanBack <= 0 || meanFore <= 0 {
			break
		}
		next := (meanBack - meanFore) / (math.Log(meanBack) - math.Log(meanFore))
		if math.Abs(next-t) <= tol {
			t = next
			break
		}
		t = next
	}
	return t + lo
}

// minimum smooths the histogram with a 3-bin mean until at most two local
// maxima remain and returns the lowest bin between them.
func minimum(data []float64) (float64, error) {
	counts, centers, ok := histogram(data)
	if !ok {
		return data[0], nil
	}

	smooth := counts
	next := make([]float64, len(counts))
	var peaks []int
	for pass := 0; ; pass++ {
		if pass == maxSmoothing {
			return 0, fmt.Errorf("%w: still %d peaks after %d passes", ErrNotBimodal, len(peaks), maxSmoothing)
		}
		meanFilter3(next, smooth)
		smooth, next = next, smooth
		peaks = localMaxima(smooth)
		if len(peaks) < 3 {
			break
		}
	}
	if len(peaks) != 2 {
		return 0, fmt.Errorf("%w: found %d peaks", ErrNotBimodal, len(peaks))
	}

	valley := smooth[peaks[0] : peaks[1]+1]
	return centers[peaks[0]+floats.MinIdx(valley)], nil
}

// meanFilter3 writes the 3-bin moving average of src to dst, reflecting at
// the edges.
func meanFilter3(dst, src []float64) {
	last := len(src) - 1
	for i := range src {
		left, right := src[max(i-1, 0)], src[min(i+1, last)]
		dst[i] = (left + src[i] + right) / 3
	}
}

// localMaxima returns the first index of every plateau where h turns downward.
func localMaxima(h []float64) []int {
	var peaks []int
	rising := true
	for i := 0; i < len(h)-1; i++ {
		if rising {
			if h[i+1] < h[i] {
				rising = false
				peaks = append(peaks, i)
			}
		} else if h[i+1] > h[i] {
			rising = true
		}
	}
	return peaks
}

// triangle draws a line from the histogram peak to the end of its longer tail
// and returns the bin farthest below that line.
func triangle(data []float64) float64 {
	counts, centers, ok := histogram(data)
	if !ok {
		return data[0]
	}
	n := len(counts)

	peak := floats.MaxIdx(counts)
	height := counts[peak]
	low, high := 0, n-1
	for counts[low] == 0 {
		low++
	}
	for counts[high] == 0 {
		high--
	}

	// work on the tail to the left of the peak, mirroring when the right
	// tail is longer
	flip := peak-low < high-peak
	at := func(i int) float64 { return counts[i] }
	if flip {
		at = func(i int) float64 { return counts[n-1-i] }
		low = n - 1 - high
		peak = n - 1 - peak
	}

	width := float64(peak - low)
	norm := math.Hypot(height, width)
	h, w := height/norm, width/norm

	distance := make([]float64, peak-low)
	for x := range distance {
		distance[x] = h*float64(x) - w*at(x+low)
	}
	level := floats.MaxIdx(distance) + low
	if flip {
		level = n - 1 - level
	}
	return centers[level]
}

// yen maximizes the entropic correlation of the two classes.
func yen(data []float64) float64 {
	counts, centers, ok := histogram(data)
	if !ok {
		return data[0]
	}
	n := len(counts)

	prob := append([]float64(nil), counts...)
	floats.Scale(1/floats.Sum(prob), prob)
	cum := floats.CumSum(make([]float64, n), prob)
	sq := floats.MulTo(make([]float64, n), prob, prob)
	cumSq := floats.CumSum(make([]float64, n), sq)
	tailSq := make([]float64, n)
	var acc float64
	for i := n - 1; i >= 0; i-- {
		acc += sq[i]
		tailSq[i] = acc
	}

	crit := make([]float64, n-1)
	for i := range crit {
		num := cum[i] * (1 - cum[i])
		den := cumSq[i] * tailSq[i+1]
		if num <= 0 || den <= 0 {
			crit[i] = math.Inf(-1)
			continue
		}
		crit[i] = math.Log(num * num / den)
	}
	return centers[floats.MaxIdx(crit)]
}
