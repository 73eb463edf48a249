package score

import (
	"math"
	"testing"

	"github.com/paulyokota/feedforward/internal/model"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
		ok   bool
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0, true},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0, true},
		{"opposed", []float64{1, 0}, []float64{-1, 0}, -1.0, true},
		{"missing left", nil, []float64{1, 0}, 0, false},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0, false},
		{"zero magnitude", []float64{0, 0}, []float64{1, 0}, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Cosine(tc.a, tc.b)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected %.4f, got %.4f", tc.want, got)
			}
		})
	}
}

func TestPairwiseCosine_SkipsMissingVectors(t *testing.T) {
	vectors := [][]float64{
		{1, 0},
		nil,
		{1, 0},
	}

	sims := PairwiseCosine(vectors)
	if len(sims) != 1 {
		t.Fatalf("expected 1 valid pair, got %d", len(sims))
	}
	if math.Abs(sims[0]-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0, got %.4f", sims[0])
	}
}

func TestJaccard(t *testing.T) {
	set := func(items ...string) map[string]bool {
		m := make(map[string]bool)
		for _, s := range items {
			m[s] = true
		}
		return m
	}

	cases := []struct {
		name string
		a, b map[string]bool
		want float64
	}{
		{"identical", set("cancel", "refund"), set("cancel", "refund"), 1.0},
		{"disjoint", set("cancel"), set("crash"), 0.0},
		{"half overlap", set("cancel", "refund"), set("cancel", "crash"), 1.0 / 3.0},
		{"both empty", set(), set(), 1.0},
		{"one empty", set("cancel"), set(), 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Jaccard(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected %.4f, got %.4f", tc.want, got)
			}
		})
	}
}

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		productArea string
		component   string
		want        string
	}{
		{"Pinterest Publishing", "scheduler", "pinterest"},
		{"publishing", "Instagram Stories", "instagram"},
		{"billing", "subscription", ""},
		{"FACEBOOK ads", "", "facebook"},
	}

	for _, tc := range cases {
		got := DetectPlatform(model.ThemeRecord{ProductArea: tc.productArea, Component: tc.component})
		if got != tc.want {
			t.Errorf("DetectPlatform(%q, %q): expected %q, got %q", tc.productArea, tc.component, tc.want, got)
		}
	}
}
