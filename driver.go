package nqgemm

// Per-tile compute drivers. A tile is one (rowRange, colRange) slice of one
// GEMM in the batch; tiles never overlap and columns are walked in chunks
// of 128 within a tile.

const driverChunkN = 128

// computeFp32 drives one tile of the float-activation variant.
func (dt *DispatchTable) computeFp32(blkLen, k, n int, data *GemmParams, startM, countM, startN, countN int) {
	bck := blockCountK(k, blkLen)
	ldb := bck * nibbleBytes(blkLen)
	zpb := zeroPointBytes(bck)
	lda := data.LDA
	ldc := data.LDC

	pw := newPackedWeights(data.PackedB, n, bck, blkLen, variantFp32)

	a := data.A[startM*lda:]
	packedB := pw.data[startN*ldb:]
	scaleB := data.ScaleB[startN*bck:]
	var zpB []byte
	if data.ZeroPointsB != nil {
		zpB = data.ZeroPointsB[startN*zpb:]
	}
	c := data.C[startM*ldc+startN:]
	var bias []float32
	if data.Bias != nil {
		bias = data.Bias[startN:]
	}

	if countM == 1 {
		for nOff := 0; nOff < countN; {
			chunk := min(countN-nOff, driverChunkN)

			var zpChunk []byte
			if zpB != nil {
				zpChunk = zpB[nOff*zpb:]
			}
			var biasChunk []float32
			if bias != nil {
				biasChunk = bias[nOff:]
			}

			dt.fp32M1Kernel(blkLen, a, packedB[nOff*ldb:], scaleB[nOff*bck:], zpChunk,
				c[nOff:], chunk, k, bck, biasChunk)

			if data.PostProcess != nil {
				data.PostProcess(data.C, startM, startN+nOff, 1, chunk, ldc)
			}
			nOff += chunk
		}
		return
	}

	// Multiple rows: dequantize a 32-column panel into dense float scratch
	// and run the dense fallback kernel over it in bounded row batches.
	const panelN = 32
	dequant := make([]float32, bck*blkLen*panelN)

	for nOff := 0; nOff < countN; {
		chunk := min(countN-nOff, panelN)

		var zpChunk []byte
		if zpB != nil {
			zpChunk = zpB[nOff*zpb:]
		}

		dt.dequantBKernel(blkLen, dequant, packedB[nOff*ldb:], scaleB[nOff*bck:], zpChunk,
			chunk, k, bck)

		// Index by row offset rather than re-slicing: advancing a slice
		// past the final row batch would step beyond c for every panel
		// after the first.
		for rowOff := 0; rowOff < countM; {
			cBlk := c[rowOff*ldc+nOff:]
			handled := dt.denseFloatKernel(a[rowOff*lda:], dequant, cBlk, k, countM-rowOff, chunk, lda, ldc)

			if bias != nil {
				addBias(bias[nOff:], cBlk, handled, chunk, ldc)
			}
			if data.PostProcess != nil {
				data.PostProcess(data.C, startM+rowOff, startN+nOff, handled, chunk, ldc)
			}

			rowOff += handled
		}
		nOff += chunk
	}
}

// computeInt8 drives one tile of the int8-activation variant. Which kernel
// pairing runs is decided by the populated workspace form, never by
// dereferencing an entry the quantization phase didn't prepare for.
func (dt *DispatchTable) computeInt8(blkLen, k, n int, data *GemmParams, ws quantAWorkspace, startM, countM, startN, countN int) {
	bck := ws.blockCountK
	ldaQ := ws.rowStride()
	ldb := bck * nibbleBytes(blkLen)
	zpb := zeroPointBytes(bck)
	ldc := data.LDC

	// Block-sum view re-derived from the packed base on every tile.
	pw := newPackedWeights(data.PackedB, n, bck, blkLen, variantInt8)

	quantA := ws.data[startM*ldaQ:]
	var aScales, aSums []float32
	if ws.scales != nil {
		aScales = ws.scales[startM*bck:]
		aSums = ws.blockSums[startM*bck:]
	}

	packedB := pw.data[startN*ldb:]
	scaleB := data.ScaleB[startN*bck:]
	bSums := pw.blockSums[startN*bck:]
	var zpB []byte
	if data.ZeroPointsB != nil {
		zpB = data.ZeroPointsB[startN*zpb:]
	}
	c := data.C[startM*ldc+startN:]
	var bias []float32
	if data.Bias != nil {
		bias = data.Bias[startN:]
	}

	splitForm := ws.scales != nil && dt.int8Kernel != nil

	if countM == 1 {
		if splitForm {
			for nOff := 0; nOff < countN; {
				chunk := min(countN-nOff, driverChunkN)

				var biasChunk []float32
				if bias != nil {
					biasChunk = bias[nOff:]
				}

				// Fold the zero-point bias through the block sums,
				// then accumulate the quantized dot product on top.
				blockSumCorrection(aSums[:bck], bSums[nOff*bck:], c[nOff:], 1, chunk, bck, ldc)
				dt.int8Kernel(blkLen, quantA, aScales, packedB[nOff*ldb:], scaleB[nOff*bck:],
					c[nOff:], 1, chunk, k, bck, ldaQ, ldc, biasChunk)

				if data.PostProcess != nil {
					data.PostProcess(data.C, startM, startN+nOff, 1, chunk, ldc)
				}
				nOff += chunk
			}
			return
		}

		// Single-row kernel consumes the zero points itself.
		for nOff := 0; nOff < countN; {
			chunk := min(countN-nOff, driverChunkN)

			var zpChunk []byte
			if zpB != nil {
				zpChunk = zpB[nOff*zpb:]
			}
			var biasChunk []float32
			if bias != nil {
				biasChunk = bias[nOff:]
			}

			dt.int8M1Kernel(blkLen, quantA, packedB[nOff*ldb:], scaleB[nOff*bck:], zpChunk,
				c[nOff:], chunk, k, bck, biasChunk)

			if data.PostProcess != nil {
				data.PostProcess(data.C, startM, startN+nOff, 1, chunk, ldc)
			}
			nOff += chunk
		}
		return
	}

	// Multiple rows run one at a time through the single-row-capable
	// kernel. A fused multi-row microkernel can replace this loop without
	// changing numerics; until one exists this is the whole story.
	if splitForm {
		for nOff := 0; nOff < countN; {
			chunk := min(countN-nOff, driverChunkN)

			var biasChunk []float32
			if bias != nil {
				biasChunk = bias[nOff:]
			}

			blockSumCorrection(aSums[:countM*bck], bSums[nOff*bck:], c[nOff:], countM, chunk, bck, ldc)
			for row := 0; row < countM; row++ {
				dt.int8Kernel(blkLen, quantA[row*ldaQ:], aScales[row*bck:], packedB[nOff*ldb:], scaleB[nOff*bck:],
					c[row*ldc+nOff:], 1, chunk, k, bck, ldaQ, ldc, biasChunk)
			}

			if data.PostProcess != nil {
				data.PostProcess(data.C, startM, startN+nOff, countM, chunk, ldc)
			}
			nOff += chunk
		}
		return
	}

	for nOff := 0; nOff < countN; {
		chunk := min(countN-nOff, driverChunkN)

		var zpChunk []byte
		if zpB != nil {
			zpChunk = zpB[nOff*zpb:]
		}
		var biasChunk []float32
		if bias != nil {
			biasChunk = bias[nOff:]
		}

		for row := 0; row < countM; row++ {
			dt.int8M1Kernel(blkLen, quantA[row*ldaQ:], packedB[nOff*ldb:], scaleB[nOff*bck:], zpChunk,
				c[row*ldc+nOff:], chunk, k, bck, biasChunk)
		}

		if data.PostProcess != nil {
			data.PostProcess(data.C, startM, startN+nOff, countM, chunk, ldc)
		}
		nOff += chunk
	}
}
