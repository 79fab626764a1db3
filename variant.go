package nqgemm

// ComputeType selects the arithmetic precision mode used for activations.
type ComputeType int

const (
	// CompUndefined lets the engine pick; it is treated as CompFp32.
	CompUndefined ComputeType = iota
	// CompFp32 computes against float32 activations.
	CompFp32
	// CompInt8 dynamically quantizes activations to int8 blocks.
	CompInt8
)

func (ct ComputeType) String() string {
	switch ct {
	case CompUndefined:
		return "Undefined"
	case CompFp32:
		return "Fp32"
	case CompInt8:
		return "Int8"
	default:
		return "Unknown"
	}
}

// variant identifies the resolved numeric kernel family for a
// (bit width, block length, compute type) triple.
type variant int

const (
	variantInvalid variant = iota - 1

	variantFp32
	variantInt8
)

func (v variant) String() string {
	switch v {
	case variantFp32:
		return "BitWidth4/Fp32"
	case variantInt8:
		return "BitWidth4/Int8"
	default:
		return "Invalid"
	}
}

// supportedBlkLen reports whether blkLen is one of the block lengths the
// 4-bit kernels understand.
func supportedBlkLen(blkLen int) bool {
	switch blkLen {
	case 16, 32, 64, 128, 256:
		return true
	}
	return false
}

// resolveVariant maps the caller-visible configuration to a kernel variant.
// Only bit width 4 is supported. CompUndefined resolves to the fp32 variant.
// Everything else is variantInvalid, a sentinel that must never reach the
// compute driver.
func resolveVariant(blkBitWidth, blkLen int, computeType ComputeType) variant {
	if blkBitWidth == 4 && supportedBlkLen(blkLen) {
		switch computeType {
		case CompFp32, CompUndefined:
			return variantFp32
		case CompInt8:
			return variantInt8
		}
	}
	return variantInvalid
}

// blockCountK is the number of quantization blocks covering a K-length row.
// The last block is zero padded when K is not a multiple of blkLen.
func blockCountK(k, blkLen int) int {
	return (k + blkLen - 1) / blkLen
}

// nibbleBytes is the byte size of one nibble-packed block of blkLen weights.
func nibbleBytes(blkLen int) int {
	return blkLen / 2
}

// zeroPointBytes is the byte size of one column's nibble-packed zero points.
func zeroPointBytes(blockCountK int) int {
	return (blockCountK + 1) / 2
}
