package main

import "testing"

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		name    string
		ratios  map[string]float64
		wantErr bool
	}{
		{"defaults when unset", nil, false},
		{"configured", map[string]float64{"platinum": 0.7, "palladium": 1.0}, false},
		{"direct metal", map[string]float64{"silver": 0.5, "platinum": 0.7, "palladium": 1.0}, true},
		{"missing derived metal", map[string]float64{"platinum": 0.7}, true},
		{"unknown metal", map[string]float64{"rhodium": 2, "platinum": 0.7, "palladium": 1.0}, true},
		{"non-positive", map[string]float64{"platinum": 0, "palladium": 1.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := newEstimator(tt.ratios)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newEstimator err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(e.DerivedMetals()) != 2 {
				t.Fatalf("DerivedMetals = %v", e.DerivedMetals())
			}
		})
	}
}
