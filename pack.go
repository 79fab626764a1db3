package nqgemm

// blkSumAlignment pads the block-sum region to a vector-register boundary.
// The offset (not the address) is aligned so a packed buffer keeps its
// layout when copied or persisted to disk and mapped back.
const blkSumAlignment = 16

// PackedWeightsSize returns the byte size of the packed weight buffer for
// one weight matrix: the nibble-packed primary region plus, for the int8
// variant only, the alignment-padded per-(column, block) block-sum region.
// Returns 0 for configurations that do not resolve to a valid variant.
func PackedWeightsSize(n, k, blkLen int, computeType ComputeType) int {
	v := resolveVariant(4, blkLen, computeType)
	if v == variantInvalid {
		return 0
	}

	bck := blockCountK(k, blkLen)
	size := n * bck * nibbleBytes(blkLen)
	if v == variantInt8 {
		size = alignUp(size, blkSumAlignment) + n*bck*4
	}
	return size
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

// packedWeights carries sized views over a packed weight buffer: the
// nibble-packed data region and, for the int8 variant, the float block-sum
// region behind it. Views are derived from the buffer base on every call
// path rather than cached, so a caller handing the same buffer to
// concurrent batch calls always reads a consistent layout.
type packedWeights struct {
	data      []byte
	blockSums []float32
}

func newPackedWeights(buf []byte, n, bck, blkLen int, v variant) packedWeights {
	dataSize := n * bck * nibbleBytes(blkLen)
	pw := packedWeights{data: buf[:dataSize]}
	if v == variantInt8 {
		pw.blockSums = float32View(buf[alignUp(dataSize, blkSumAlignment):], n*bck)
	}
	return pw
}

// PackWeights lays quantized weights out for the microkernels, writing into
// a caller-owned buffer of at least PackedWeightsSize bytes. quantB holds
// the raw nibble-packed weights (n columns × blockCountK blocks × blkLen/2
// bytes), scaleB one float per (column, block), and zeroPointsB optional
// nibble-packed zero points (nil means symmetric quantization). For the int8
// variant the block-sum region is filled as well, through the fused
// pack-and-sum kernel when the table has one and an explicit pass otherwise.
//
// The buffer must not be repacked while a batch call reading it is in
// flight.
func (dt *DispatchTable) PackWeights(n, k, blkLen int, computeType ComputeType, quantB, packed []byte, scaleB []float32, zeroPointsB []byte, pool *WorkerPool) error {
	const op = "PackWeights"

	v := resolveVariant(4, blkLen, computeType)
	if v == variantInvalid {
		return NewInvalidArgError(op, "unsupported block length or compute type")
	}
	if n <= 0 || k <= 0 {
		return NewInvalidArgError(op, "dimensions must be positive")
	}

	bck := blockCountK(k, blkLen)
	if need := PackedWeightsSize(n, k, blkLen, computeType); len(packed) < need {
		return NewInvalidArgError(op, "packed buffer too small")
	}
	if v == variantInt8 && !isAligned(packed, 4) {
		return NewInvalidArgError(op, "packed buffer base must be 4-byte aligned")
	}
	if len(quantB) < n*bck*nibbleBytes(blkLen) {
		return NewInvalidArgError(op, "quantized weight buffer too small")
	}
	if v == variantInt8 && len(scaleB) < n*bck {
		return NewInvalidArgError(op, "scale buffer too small")
	}
	if zeroPointsB != nil && len(zeroPointsB) < n*zeroPointBytes(bck) {
		return NewInvalidArgError(op, "zero point buffer too small")
	}

	pw := newPackedWeights(packed, n, bck, blkLen, v)

	if v == variantInt8 {
		if dt.packQuantBWithSums != nil {
			dt.packQuantBWithSums(n, k, blkLen, quantB, pw.data, scaleB, zeroPointsB, pw.blockSums, pool)
			return nil
		}
		dt.packQuantB(n, k, blkLen, quantB, pw.data, pool)
		computeBlockSums(n, k, blkLen, scaleB, zeroPointsB, pw.blockSums)
		return nil
	}

	dt.packQuantB(n, k, blkLen, quantB, pw.data, pool)
	return nil
}
