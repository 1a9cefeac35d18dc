package errors

import (
	"strings"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		substr string
	}{
		{
			name:   "with value",
			err:    NewConfigurationError("Generate", "numDirections must be positive", 0),
			substr: "numDirections must be positive (got: 0)",
		},
		{
			name:   "without value",
			err:    NewConfigurationError("Train", "fingerprint class count differs from classifier", nil),
			substr: "invalid configuration: fingerprint class count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.err.Error(), tt.substr) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.substr)
			}
			var cfgErr *ConfigurationError
			if !As(tt.err, &cfgErr) {
				t.Errorf("As() failed to unwrap ConfigurationError from %v", tt.err)
			}
		})
	}
}

func TestShapeMismatchError(t *testing.T) {
	err := NewShapeMismatchError("RegularizedLoss.Evaluate", []int{48}, []int{10})

	var shapeErr *ShapeMismatchError
	if !As(err, &shapeErr) {
		t.Fatalf("As() failed to unwrap ShapeMismatchError from %v", err)
	}
	if shapeErr.Expected[0] != 48 || shapeErr.Got[0] != 10 {
		t.Errorf("unexpected shape fields: expected=%v got=%v", shapeErr.Expected, shapeErr.Got)
	}
}

func TestStaleReferenceError(t *testing.T) {
	err := NewStaleReferenceError("L2Regularization")

	var staleErr *StaleReferenceError
	if !As(err, &staleErr) {
		t.Fatalf("As() failed to unwrap StaleReferenceError from %v", err)
	}
	if !strings.Contains(err.Error(), "SetupBatch") {
		t.Errorf("Error() = %q, want mention of SetupBatch", err.Error())
	}
}

func TestDimensionError(t *testing.T) {
	err := NewDimensionError("Trainer.Train", 10, 3, 1)
	if !strings.Contains(err.Error(), "axis 1 (features)") {
		t.Errorf("Error() = %q, want feature-axis message", err.Error())
	}

	err = NewDimensionError("Trainer.Train", 48, 32, 0)
	if !strings.Contains(err.Error(), "axis 0 (rows)") {
		t.Errorf("Error() = %q, want row-axis message", err.Error())
	}
}

func TestNumericalInstabilityErrorTruncatesValues(t *testing.T) {
	err := NewNumericalInstabilityError("combined_loss", []float64{1, 2, 3, 4, 5, 6, 7}, 12)
	if !strings.Contains(err.Error(), "...") {
		t.Errorf("Error() = %q, want truncated value list", err.Error())
	}
	if !strings.Contains(err.Error(), "step 12") {
		t.Errorf("Error() = %q, want step number", err.Error())
	}
}

func TestWrapPreservesType(t *testing.T) {
	inner := NewConfigurationError("Generate", "numClasses must exceed 1", 1)
	wrapped := Wrap(inner, "building fingerprint")

	var cfgErr *ConfigurationError
	if !As(wrapped, &cfgErr) {
		t.Errorf("As() failed through Wrap: %v", wrapped)
	}
	if !Is(wrapped, inner) {
		t.Errorf("Is() failed through Wrap: %v", wrapped)
	}
}
