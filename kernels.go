// Package nqgemm portable kernel implementations. These are the fallback
// paths installed by NewDispatchTable when no hardware-specific kernel is
// registered; specialized implementations must match their numerics.
package nqgemm

import "math"

// weightNibble decodes the idx-th 4-bit weight from a nibble-packed block.
// Two weights per byte, low nibble first.
func weightNibble(blk []byte, idx int) int {
	b := blk[idx>>1]
	if idx&1 == 0 {
		return int(b & 0x0F)
	}
	return int(b >> 4)
}

// columnZeroPoint decodes the zero point for one block of one column.
// zeroPointsB holds nibble-packed zero points for a single column; a nil
// slice means symmetric quantization with the default zero point of 8.
func columnZeroPoint(zeroPointsB []byte, blk int) int {
	if zeroPointsB == nil {
		return 8
	}
	b := zeroPointsB[blk>>1]
	if blk&1 == 0 {
		return int(b & 0x0F)
	}
	return int(b >> 4)
}

// fp32M1Kernel is the portable single-row float kernel: one activation row
// against countN packed columns, bias folded in.
func fp32M1Kernel(blkLen int, a []float32, packedB []byte, scaleB []float32, zeroPointsB []byte, c []float32, countN, countK, blockCountK int, bias []float32) {
	ldb := blockCountK * nibbleBytes(blkLen)
	zpb := zeroPointBytes(blockCountK)

	for n := 0; n < countN; n++ {
		col := packedB[n*ldb : (n+1)*ldb]
		var colZP []byte
		if zeroPointsB != nil {
			colZP = zeroPointsB[n*zpb : (n+1)*zpb]
		}

		var sum float32
		for blk := 0; blk < blockCountK; blk++ {
			scale := scaleB[n*blockCountK+blk]
			zp := columnZeroPoint(colZP, blk)

			kBase := blk * blkLen
			kEnd := kBase + blkLen
			if kEnd > countK {
				kEnd = countK
			}
			wBlk := col[blk*nibbleBytes(blkLen):]

			var acc float32
			for i := 0; i < kEnd-kBase; i++ {
				acc += a[kBase+i] * float32(weightNibble(wBlk, i)-zp)
			}
			sum += scale * acc
		}

		if bias != nil {
			sum += bias[n]
		}
		c[n] = sum
	}
}

// dequantBKernel expands countN packed columns into dense floats laid out
// [countK][countN] row-major. Rows past countK are padding and stay
// untouched; the dense kernel never reads them.
func dequantBKernel(blkLen int, dst []float32, packedB []byte, scaleB []float32, zeroPointsB []byte, countN, countK, blockCountK int) {
	ldb := blockCountK * nibbleBytes(blkLen)
	zpb := zeroPointBytes(blockCountK)

	for n := 0; n < countN; n++ {
		col := packedB[n*ldb : (n+1)*ldb]
		var colZP []byte
		if zeroPointsB != nil {
			colZP = zeroPointsB[n*zpb : (n+1)*zpb]
		}

		for blk := 0; blk < blockCountK; blk++ {
			scale := scaleB[n*blockCountK+blk]
			zp := columnZeroPoint(colZP, blk)

			kBase := blk * blkLen
			kEnd := kBase + blkLen
			if kEnd > countK {
				kEnd = countK
			}
			wBlk := col[blk*nibbleBytes(blkLen):]

			for i := 0; i < kEnd-kBase; i++ {
				dst[(kBase+i)*countN+n] = scale * float32(weightNibble(wBlk, i)-zp)
			}
		}
	}
}

// denseFloatKernelMaxRows bounds how many rows the portable dense kernel
// consumes per call. The driver loops until all rows are handled.
const denseFloatKernelMaxRows = 4

// denseFloatKernel is the portable dense fallback GEMM: c = a × b with b
// laid out [countK][countN]. Writes c (no accumulation) and returns the
// number of rows handled.
func denseFloatKernel(a, b, c []float32, countK, countM, countN, lda, ldc int) int {
	rows := countM
	if rows > denseFloatKernelMaxRows {
		rows = denseFloatKernelMaxRows
	}

	for m := 0; m < rows; m++ {
		aRow := a[m*lda:]
		cRow := c[m*ldc:]
		for n := 0; n < countN; n++ {
			var sum float32
			for k := 0; k < countK; k++ {
				sum += aRow[k] * b[k*countN+n]
			}
			cRow[n] = sum
		}
	}
	return rows
}

// int8M1Kernel is the portable single-row int8 kernel. It reads
// embedded-scale activation blocks and consumes the zero-point nibbles
// directly, so no correction pre-pass is needed on this path.
func int8M1Kernel(blkLen int, quantA []byte, packedB []byte, scaleB []float32, zeroPointsB []byte, c []float32, countN, countK, blockCountK int, bias []float32) {
	ldb := blockCountK * nibbleBytes(blkLen)
	zpb := zeroPointBytes(blockCountK)
	blkSize := q8BlkSize(blkLen)

	for n := 0; n < countN; n++ {
		col := packedB[n*ldb : (n+1)*ldb]
		var colZP []byte
		if zeroPointsB != nil {
			colZP = zeroPointsB[n*zpb : (n+1)*zpb]
		}

		var sum float32
		for blk := 0; blk < blockCountK; blk++ {
			rec := quantA[blk*blkSize : (blk+1)*blkSize]
			aScale := q8BlkScale(rec)
			aData := q8BlkData(rec, blkLen)

			bScale := scaleB[n*blockCountK+blk]
			zp := columnZeroPoint(colZP, blk)
			wBlk := col[blk*nibbleBytes(blkLen):]

			kBase := blk * blkLen
			kEnd := kBase + blkLen
			if kEnd > countK {
				kEnd = countK
			}

			var acc int32
			for i := 0; i < kEnd-kBase; i++ {
				acc += int32(int8(aData[i])) * int32(weightNibble(wBlk, i)-zp)
			}
			sum += float32(acc) * aScale * bScale
		}

		if bias != nil {
			sum += bias[n]
		}
		c[n] = sum
	}
}

// int8Kernel is the portable multi-row-capable int8 kernel. Weight nibbles
// are decoded centered at 8 and zero points are ignored; the driver's
// block-sum correction pre-pass accounts for the difference. Results
// accumulate into c, with bias added once per row.
func int8Kernel(blkLen int, quantA []byte, scaleA []float32, packedB []byte, scaleB []float32, c []float32, countM, countN, countK, blockCountK, lda, ldc int, bias []float32) {
	ldb := blockCountK * nibbleBytes(blkLen)

	for m := 0; m < countM; m++ {
		aRow := quantA[m*lda:]
		aScales := scaleA[m*blockCountK:]
		cRow := c[m*ldc:]

		for n := 0; n < countN; n++ {
			col := packedB[n*ldb : (n+1)*ldb]

			var sum float32
			for blk := 0; blk < blockCountK; blk++ {
				aData := aRow[blk*blkLen:]
				wBlk := col[blk*nibbleBytes(blkLen):]

				kBase := blk * blkLen
				kEnd := kBase + blkLen
				if kEnd > countK {
					kEnd = countK
				}

				var acc int32
				for i := 0; i < kEnd-kBase; i++ {
					acc += int32(int8(aData[i])) * int32(weightNibble(wBlk, i)-8)
				}
				sum += float32(acc) * aScales[blk] * scaleB[n*blockCountK+blk]
			}

			if bias != nil {
				sum += bias[n]
			}
			cRow[n] += sum
		}
	}
}

// blockSumCorrection writes the zero-point correction term:
// c[m][n] = dot(aSums row m, bSums column n) over blockCountK blocks.
// Write mode; the int8 kernel then accumulates the quantized dot product
// on top.
func blockSumCorrection(aSums, bSums []float32, c []float32, countM, countN, blockCountK, ldc int) {
	for m := 0; m < countM; m++ {
		aRow := aSums[m*blockCountK : (m+1)*blockCountK]
		cRow := c[m*ldc:]
		for n := 0; n < countN; n++ {
			bCol := bSums[n*blockCountK : (n+1)*blockCountK]
			var sum float32
			for blk := 0; blk < blockCountK; blk++ {
				sum += aRow[blk] * bCol[blk]
			}
			cRow[n] = sum
		}
	}
}

// addBias adds bias to a block of output rows, 4-wide chunks with a scalar
// remainder.
func addBias(bias, c []float32, countM, countN, ldc int) {
	for m := 0; m < countM; m++ {
		cRow := c[m*ldc:]
		n := 0
		for ; n+4 <= countN; n += 4 {
			cRow[n] += bias[n]
			cRow[n+1] += bias[n+1]
			cRow[n+2] += bias[n+2]
			cRow[n+3] += bias[n+3]
		}
		for ; n < countN; n++ {
			cRow[n] += bias[n]
		}
	}
}

// quantizeBlock quantizes up to blkLen values with a max-abs/127 scale,
// zero padding dst past count. Returns the scale and the integer sum of the
// quantized values.
func quantizeBlock(a []float32, count, blkLen int, dst []byte) (float32, int32) {
	var maxAbs float32
	for i := 0; i < count; i++ {
		if abs := float32(math.Abs(float64(a[i]))); abs > maxAbs {
			maxAbs = abs
		}
	}

	scale := maxAbs / 127
	var inv float32
	if scale != 0 {
		inv = 1 / scale
	}

	var sum int32
	for i := 0; i < count; i++ {
		q := int32(math.Round(float64(a[i] * inv)))
		if q > 127 {
			q = 127
		} else if q < -127 {
			q = -127
		}
		dst[i] = byte(int8(q))
		sum += q
	}
	for i := count; i < blkLen; i++ {
		dst[i] = 0
	}
	return scale, sum
}

// quantizeRow is the portable embedded-scale activation quantizer: one row
// into blockCountK embedded [scale][data] records.
func quantizeRow(blkLen int, a []float32, countK int, quantA []byte) {
	bck := blockCountK(countK, blkLen)
	blkSize := q8BlkSize(blkLen)

	for blk := 0; blk < bck; blk++ {
		kBase := blk * blkLen
		count := countK - kBase
		if count > blkLen {
			count = blkLen
		}

		rec := quantA[blk*blkSize : (blk+1)*blkSize]
		scale, _ := quantizeBlock(a[kBase:], count, blkLen, q8BlkData(rec, blkLen))
		q8BlkSetScale(rec, scale)
	}
}

// quantizeRowSplit is the portable separate-array activation quantizer. The
// stored block sum is pre-scaled (scale × Σ quantized values) so the
// correction pre-pass is a plain dot product against the weight block sums.
func quantizeRowSplit(blkLen int, a []float32, countK int, quantA []byte, scales, blockSums []float32) {
	bck := blockCountK(countK, blkLen)

	for blk := 0; blk < bck; blk++ {
		kBase := blk * blkLen
		count := countK - kBase
		if count > blkLen {
			count = blkLen
		}

		scale, sum := quantizeBlock(a[kBase:], count, blkLen, quantA[blk*blkLen:(blk+1)*blkLen])
		scales[blk] = scale
		blockSums[blk] = scale * float32(sum)
	}
}

// packQuantB relays raw nibble-packed weights into the portable
// microkernel's layout. The portable kernels read the natural
// column-by-column block order, so the relayout is a straight copy;
// hardware packers are free to interleave.
func packQuantB(n, k, blkLen int, quantB, packed []byte, pool *WorkerPool) {
	colBytes := blockCountK(k, blkLen) * nibbleBytes(blkLen)
	tryParallel(pool, n, func(col int) {
		off := col * colBytes
		copy(packed[off:off+colBytes], quantB[off:off+colBytes])
	})
}

// packQuantBWithSums packs weights and fuses the block-sum computation.
// The multi-row int8 kernel decodes nibbles centered at 8, so the sum that
// folds the zero point into the correction pre-pass is scale × (8 − zp) per
// (column, block); symmetric weights produce all-zero sums and a free
// correction pass.
func packQuantBWithSums(n, k, blkLen int, quantB, packed []byte, scaleB []float32, zeroPointsB []byte, blockSums []float32, pool *WorkerPool) {
	bck := blockCountK(k, blkLen)
	colBytes := bck * nibbleBytes(blkLen)
	zpb := zeroPointBytes(bck)

	tryParallel(pool, n, func(col int) {
		off := col * colBytes
		copy(packed[off:off+colBytes], quantB[off:off+colBytes])

		var colZP []byte
		if zeroPointsB != nil {
			colZP = zeroPointsB[col*zpb : (col+1)*zpb]
		}
		for blk := 0; blk < bck; blk++ {
			zp := columnZeroPoint(colZP, blk)
			blockSums[col*bck+blk] = scaleB[col*bck+blk] * float32(8-zp)
		}
	})
}

// computeBlockSums is the explicit block-sum pass used when no fused
// pack-and-sum routine is registered.
func computeBlockSums(n, k, blkLen int, scaleB []float32, zeroPointsB []byte, blockSums []float32) {
	bck := blockCountK(k, blkLen)
	zpb := zeroPointBytes(bck)

	for col := 0; col < n; col++ {
		var colZP []byte
		if zeroPointsB != nil {
			colZP = zeroPointsB[col*zpb : (col+1)*zpb]
		}
		for blk := 0; blk < bck; blk++ {
			zp := columnZeroPoint(colZP, blk)
			blockSums[col*bck+blk] = scaleB[col*bck+blk] * float32(8-zp)
		}
	}
}
