package mathx

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, expected int
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{42, 0, 10, 10},
		{0, 0, 0, 0},
	}

	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.expected {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.expected)
		}
	}

	if got := Clamp(1.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("Clamp(1.5, 0, 1) = %v, want 1", got)
	}
	if got := Clamp("m", "a", "k"); got != "k" {
		t.Errorf("Clamp(\"m\", \"a\", \"k\") = %q, want \"k\"", got)
	}
}

func TestClampRange(t *testing.T) {
	if got := ClampRange(7); got != 7 {
		t.Errorf("ClampRange with no bounds = %d, want 7", got)
	}
	if got := ClampRange(7, 5, -2, 3); got != 5 {
		t.Errorf("ClampRange(7, 5, -2, 3) = %d, want 5", got)
	}
	if got := ClampRange(-9, 5, -2, 3); got != -2 {
		t.Errorf("ClampRange(-9, 5, -2, 3) = %d, want -2", got)
	}
	if got := ClampRange(1, 5, -2, 3); got != 1 {
		t.Errorf("ClampRange(1, 5, -2, 3) = %d, want 1", got)
	}
}

func TestLerp(t *testing.T) {
	tests := []struct {
		v0, v1, t, expected float64
	}{
		{0, 10, 0, 0},
		{0, 10, 1, 10},
		{0, 10, 0.5, 5},
		{-4, 4, 0.25, -2},
		{2, 2, 0.7, 2},
	}

	for _, tt := range tests {
		if got := Lerp(tt.v0, tt.v1, tt.t); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("Lerp(%v, %v, %v) = %v, want %v", tt.v0, tt.v1, tt.t, got, tt.expected)
		}
	}

	// t == 1 must land exactly on v1.
	var v0, v1 float32 = 0.1, 0.7
	if got := Lerp(v0, v1, 1); got != v1 {
		t.Errorf("Lerp(%v, %v, 1) = %v, want exactly %v", v0, v1, got, v1)
	}
}

func TestRoundCast(t *testing.T) {
	if got := RoundCast[int](2.5); got != 3 {
		t.Errorf("RoundCast[int](2.5) = %d, want 3", got)
	}
	if got := RoundCast[int](-2.5); got != -3 {
		t.Errorf("RoundCast[int](-2.5) = %d, want -3", got)
	}
	if got := RoundCast[uint8](254.4); got != 254 {
		t.Errorf("RoundCast[uint8](254.4) = %d, want 254", got)
	}
	if got := RoundCast[float32](1.49); got != 1 {
		t.Errorf("RoundCast[float32](1.49) = %v, want 1", got)
	}
}
