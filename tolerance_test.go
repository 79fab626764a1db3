package nqgemm

import (
	"math"
	"testing"
)

func TestFloat32NearEqual(t *testing.T) {
	tol := DefaultTolerance()

	if !Float32NearEqual(1.0, 1.0, tol) {
		t.Error("exact equality rejected")
	}
	if !Float32NearEqual(0, float32(math.Copysign(0, -1)), tol) {
		t.Error("±0 rejected")
	}
	if !Float32NearEqual(1.0, 1.0+5e-6, tol) {
		t.Error("value within relative tolerance rejected")
	}
	if Float32NearEqual(1.0, 1.1, tol) {
		t.Error("10% error accepted")
	}

	nan := float32(math.NaN())
	if !Float32NearEqual(nan, nan, tol) {
		t.Error("NaN vs NaN rejected")
	}
	if Float32NearEqual(nan, 1.0, tol) {
		t.Error("NaN vs finite accepted")
	}

	inf := float32(math.Inf(1))
	if !Float32NearEqual(inf, inf, tol) {
		t.Error("Inf vs Inf rejected")
	}
	if Float32NearEqual(inf, float32(math.Inf(-1)), tol) {
		t.Error("opposite infinities accepted")
	}
}

func TestFloat32ULPDiff(t *testing.T) {
	a := float32(1.0)
	b := math.Float32frombits(math.Float32bits(a) + 3)
	if got := Float32ULPDiff(a, b); got != 3 {
		t.Errorf("ULP diff: got %d, want 3", got)
	}
	if got := Float32ULPDiff(1.0, -1.0); got != math.MaxInt32 {
		t.Errorf("sign mismatch: got %d, want MaxInt32", got)
	}
}

func TestVerifyFloat32Array(t *testing.T) {
	exp := []float32{1, 2, 3, 4}
	got := []float32{1, 2, 3, 4}
	if r := VerifyFloat32Array(exp, got, DefaultTolerance()); r.NumErrors != 0 {
		t.Errorf("identical arrays: %v", r)
	}

	got[2] = 5
	r := VerifyFloat32Array(exp, got, DefaultTolerance())
	if r.NumErrors != 1 || r.FirstError != 2 {
		t.Errorf("single mismatch: %v", r)
	}
	if r.MaxAbsError != 2 {
		t.Errorf("max abs error: got %g, want 2", r.MaxAbsError)
	}

	if r := VerifyFloat32Array(exp, got[:2], DefaultTolerance()); r.NumErrors != len(exp) {
		t.Errorf("length mismatch must fail everything: %v", r)
	}
}
