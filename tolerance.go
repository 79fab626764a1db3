// Package nqgemm tolerance-based verification for floating-point comparisons
package nqgemm

import (
	"fmt"
	"math"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float32

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float32

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-7,
		RelTol: 1e-5,
		ULPTol: 4,
	}
}

// Fp32Tolerance covers the float-activation variant against a dense
// dequantize-and-multiply reference.
func Fp32Tolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-4,
		RelTol: 1e-3,
		ULPTol: 64,
	}
}

// Int8Tolerance is the quantization-aware band for the int8 variant: the
// reference quantizes activations the same way, so the remaining error is
// reduction ordering, not quantization noise.
func Int8Tolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-3,
		RelTol: 1e-3,
		ULPTol: 128,
	}
}

// Float32NearEqual checks if two float32 values are equal within tolerance
func Float32NearEqual(a, b float32, tol ToleranceConfig) bool {
	if math.IsNaN(float64(a)) && math.IsNaN(float64(b)) {
		return true
	}
	if math.IsInf(float64(a), 0) || math.IsInf(float64(b), 0) {
		return a == b
	}

	// Check if exactly equal (handles ±0)
	if a == b {
		return true
	}

	diff := math.Abs(float64(a - b))
	if diff <= float64(tol.AbsTol) {
		return true
	}

	larger := math.Max(math.Abs(float64(a)), math.Abs(float64(b)))
	if diff <= larger*float64(tol.RelTol) {
		return true
	}

	if tol.ULPTol > 0 && Float32ULPDiff(a, b) <= tol.ULPTol {
		return true
	}

	return false
}

// Float32ULPDiff computes the difference in ULPs between two float32 values
func Float32ULPDiff(a, b float32) int {
	aBits := math.Float32bits(a)
	bBits := math.Float32bits(b)

	// Different signs can't use simple subtraction
	if (aBits^bBits)&0x80000000 != 0 {
		return math.MaxInt32
	}

	if aBits > bBits {
		return int(aBits - bBits)
	}
	return int(bBits - aBits)
}

// VerificationResult aggregates an array comparison
type VerificationResult struct {
	MaxAbsError float32
	MaxRelError float32
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyFloat32Array compares two float32 arrays and returns detailed results
func VerifyFloat32Array(expected, actual []float32, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		return result
	}

	for i := range expected {
		if !Float32NearEqual(expected[i], actual[i], tol) {
			result.NumErrors++
			if result.FirstError == -1 {
				result.FirstError = i
			}

			absDiff := float32(math.Abs(float64(expected[i] - actual[i])))
			if absDiff > result.MaxAbsError {
				result.MaxAbsError = absDiff
			}

			if expected[i] != 0 {
				relDiff := absDiff / float32(math.Abs(float64(expected[i])))
				if relDiff > result.MaxRelError {
					result.MaxRelError = relDiff
				}
			}
		}
	}

	return result
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError,
		r.FirstError)
}
