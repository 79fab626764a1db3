// Package nqgemm reference implementations for verification
package nqgemm

import "math"

// Reference contains simple, correct implementations of the engine's
// numeric paths. These are used for testing and verification of the kernel
// implementations; they favor clarity over speed.
type Reference struct{}

// DequantizeWeights expands raw nibble-packed quantized weights into dense
// floats laid out [n][k] row-major (one row per output column).
func (Reference) DequantizeWeights(quantB []byte, scaleB []float32, zeroPointsB []byte, n, k, blkLen int) []float32 {
	bck := blockCountK(k, blkLen)
	colBytes := bck * nibbleBytes(blkLen)
	zpb := zeroPointBytes(bck)

	w := make([]float32, n*k)
	for col := 0; col < n; col++ {
		colData := quantB[col*colBytes:]
		var colZP []byte
		if zeroPointsB != nil {
			colZP = zeroPointsB[col*zpb : (col+1)*zpb]
		}

		for ki := 0; ki < k; ki++ {
			blk := ki / blkLen
			idx := ki % blkLen
			scale := scaleB[col*bck+blk]
			zp := columnZeroPoint(colZP, blk)
			q := weightNibble(colData[blk*nibbleBytes(blkLen):], idx)
			w[col*k+ki] = scale * float32(q-zp)
		}
	}
	return w
}

// Gemm computes c[m][n] = dot(a row m, w row n) + bias[n] with w laid out
// [n][k] as produced by DequantizeWeights.
func (Reference) Gemm(a []float32, lda int, w []float32, bias []float32, c []float32, ldc, m, n, k int) {
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			var sum float64
			for ki := 0; ki < k; ki++ {
				sum += float64(a[row*lda+ki]) * float64(w[col*k+ki])
			}
			if bias != nil {
				sum += float64(bias[col])
			}
			c[row*ldc+col] = float32(sum)
		}
	}
}

// QuantizeActivations round-trips activations through per-row block
// quantization (max-abs/127 scale per block) and back to float, producing
// the dense [m][k] matrix the int8 variant effectively multiplies against.
func (Reference) QuantizeActivations(a []float32, lda, m, k, blkLen int) []float32 {
	out := make([]float32, m*k)
	for row := 0; row < m; row++ {
		for kBase := 0; kBase < k; kBase += blkLen {
			count := k - kBase
			if count > blkLen {
				count = blkLen
			}

			var maxAbs float32
			for i := 0; i < count; i++ {
				if abs := float32(math.Abs(float64(a[row*lda+kBase+i]))); abs > maxAbs {
					maxAbs = abs
				}
			}

			scale := maxAbs / 127
			var inv float32
			if scale != 0 {
				inv = 1 / scale
			}

			for i := 0; i < count; i++ {
				q := math.Round(float64(a[row*lda+kBase+i] * inv))
				if q > 127 {
					q = 127
				} else if q < -127 {
					q = -127
				}
				out[row*k+kBase+i] = float32(q) * scale
			}
		}
	}
	return out
}
