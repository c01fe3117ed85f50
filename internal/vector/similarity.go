package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/policyrag/internal/models"
)

// Metric is the distance function of a collection.
type Metric string

const (
	// MetricCosine is 1 minus cosine similarity, in [0, 2].
	MetricCosine Metric = "cosine"
	// MetricL2 is squared Euclidean distance.
	MetricL2 Metric = "l2"
)

// ParseMetric validates s as a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricCosine, MetricL2:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown distance metric %q (supported: cosine, l2)", models.ErrConfiguration, s)
	}
}

// Distance returns the distance between a and b under m. Vectors must have equal length.
func (m Metric) Distance(a, b []float32) float64 {
	if m == MetricL2 {
		return SquaredL2(a, b)
	}
	return CosineDistance(a, b)
}

// InnerProduct returns the inner product of two vectors.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - InnerProduct(a, b)/(na*nb)
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// RankNearest scores records, given in insertion order, against query and
// returns the k nearest. The sort is stable so equal distances keep insertion order.
func RankNearest(records []Record, query []float32, metric Metric, k int) []Neighbor {
	if k <= 0 || len(records) == 0 {
		return []Neighbor{}
	}
	out := make([]Neighbor, len(records))
	for i, rec := range records {
		out[i] = Neighbor{ID: rec.ID, Metadata: rec.Metadata, Distance: metric.Distance(query, rec.Vector)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// CheckDimension validates vec against a collection whose established
// dimension is want (0 when the collection is still empty).
func CheckDimension(collection string, want int, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("collection %q: empty vector", collection)
	}
	if want != 0 && want != len(vec) {
		return &models.DimensionMismatchError{Collection: collection, Want: want, Got: len(vec)}
	}
	return nil
}
