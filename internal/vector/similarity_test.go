package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/policyrag/internal/models"
)

func TestMetricDistance(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		a, b   []float32
		want   float64
	}{
		{"cosine identical", MetricCosine, []float32{1, 2}, []float32{2, 4}, 0},
		{"cosine orthogonal", MetricCosine, []float32{1, 0}, []float32{0, 3}, 1},
		{"cosine opposite", MetricCosine, []float32{1, 0}, []float32{-1, 0}, 2},
		{"cosine zero vector", MetricCosine, []float32{0, 0}, []float32{1, 0}, 1},
		{"l2", MetricL2, []float32{0, 0}, []float32{3, 4}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.metric.Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric("l2"); err != nil || m != MetricL2 {
		t.Errorf("ParseMetric(l2) = %v, %v", m, err)
	}
	if _, err := ParseMetric("ip"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("ParseMetric(ip) error = %v", err)
	}
}

func TestRankNearest(t *testing.T) {
	records := []Record{
		{ID: "a", Vector: []float32{3}},
		{ID: "b", Vector: []float32{1}},
		{ID: "c", Vector: []float32{1}},
		{ID: "d", Vector: []float32{2}},
	}
	got := RankNearest(records, []float32{0}, MetricL2, 3)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if n := RankNearest(records, []float32{0}, MetricL2, 0); len(n) != 0 {
		t.Errorf("k=0 should yield nothing, got %d", len(n))
	}
}
