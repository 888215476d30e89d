package planner

import "testing"

func TestClassifySufficiency(t *testing.T) {
	cases := []struct {
		name      string
		delivered float64
		target    float64
		want      string
		wantRatio float64
	}{
		{"full intake", 16800, 16800, SufficiencySufficient, 1.0},
		{"at moderate boundary", 9500, 10000, SufficiencySufficient, 0.95},
		{"just under moderate boundary", 9499, 10000, SufficiencyModerate, 0.9499},
		{"at insufficient boundary", 8500, 10000, SufficiencyModerate, 0.85},
		{"just under insufficient boundary", 8499, 10000, SufficiencyInsufficient, 0.8499},
		{"nothing delivered", 0, 10000, SufficiencyInsufficient, 0},
		{"zero target", 500, 0, SufficiencyInsufficient, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, ratio := ClassifySufficiency(tc.delivered, tc.target)
			if status != tc.want {
				t.Fatalf("status = %q, want %q", status, tc.want)
			}
			if diff := ratio - tc.wantRatio; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("ratio = %v, want %v", ratio, tc.wantRatio)
			}
		})
	}
}
