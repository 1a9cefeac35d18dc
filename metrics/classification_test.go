package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		labels  []int
		logits  []float64
		rows    int
		cols    int
		want    float64
		wantErr bool
	}{
		{
			name:   "all correct",
			labels: []int{1, 0},
			logits: []float64{0.1, 2.0, 3.0, -1.0},
			rows:   2, cols: 2,
			want: 1.0,
		},
		{
			name:   "half correct",
			labels: []int{0, 0},
			logits: []float64{0.1, 2.0, 3.0, -1.0},
			rows:   2, cols: 2,
			want: 0.5,
		},
		{
			name:   "argmax over three classes",
			labels: []int{2},
			logits: []float64{-1.0, 0.5, 0.6},
			rows:   1, cols: 3,
			want: 1.0,
		},
		{
			name:   "label length mismatch",
			labels: []int{0},
			logits: []float64{1, 0, 0, 1},
			rows:   2, cols: 2,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accuracy(tt.labels, mat.NewDense(tt.rows, tt.cols, tt.logits))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectionRate(t *testing.T) {
	tests := []struct {
		name    string
		flags   []bool
		want    float64
		wantErr bool
	}{
		{name: "none flagged", flags: []bool{false, false}, want: 0},
		{name: "all flagged", flags: []bool{true, true, true}, want: 1},
		{name: "one of four", flags: []bool{false, true, false, false}, want: 0.25},
		{name: "empty", flags: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectionRate(tt.flags)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectionRate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("DetectionRate() = %v, want %v", got, tt.want)
			}
		})
	}
}
