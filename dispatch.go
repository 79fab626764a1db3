package nqgemm

// Kernel function types held by the DispatchTable. Every kernel is an
// ordinary Go function so hardware-specific implementations can be swapped
// in at construction without the engine caring which one it drives.

// Fp32M1KernelFunc computes one activation row against countN packed
// columns, writing c[n] = dot(a, dequant(column n)) + bias[n].
type Fp32M1KernelFunc func(blkLen int, a []float32, packedB []byte, scaleB []float32, zeroPointsB []byte, c []float32, countN, countK, blockCountK int, bias []float32)

// DequantBKernelFunc expands countN packed columns into a dense float
// scratch buffer laid out [countK][countN] row-major.
type DequantBKernelFunc func(blkLen int, dst []float32, packedB []byte, scaleB []float32, zeroPointsB []byte, countN, countK, blockCountK int)

// Int8M1KernelFunc computes one quantized activation row (embedded-scale
// blocks) against countN packed columns. It consumes the zero-point nibbles
// itself and writes c[n] = result + bias[n].
type Int8M1KernelFunc func(blkLen int, quantA []byte, packedB []byte, scaleB []float32, zeroPointsB []byte, c []float32, countN, countK, blockCountK int, bias []float32)

// Int8KernelFunc is the multi-row-capable int8 kernel. It decodes weight
// nibbles centered at 8 and knows nothing about zero points; the driver
// folds zero-point correction in through the block-sum pre-pass. It
// accumulates into c (c[m][n] += result, plus bias once per row). lda is the
// byte stride between quantized activation rows.
type Int8KernelFunc func(blkLen int, quantA []byte, scaleA []float32, packedB []byte, scaleB []float32, c []float32, countM, countN, countK, blockCountK, lda, ldc int, bias []float32)

// QuantizeRowFunc block-quantizes one activation row into embedded-scale
// records ([scale][blkLen bytes] per block).
type QuantizeRowFunc func(blkLen int, a []float32, countK int, quantA []byte)

// QuantizeRowSplitFunc block-quantizes one activation row into separate
// data, scale, and block-sum arrays. The stored block sum is pre-scaled:
// scale × Σ quantized values.
type QuantizeRowSplitFunc func(blkLen int, a []float32, countK int, quantA []byte, scales, blockSums []float32)

// PackQuantBFunc relays raw nibble-packed weights out into the microkernel
// layout.
type PackQuantBFunc func(n, k, blkLen int, quantB, packed []byte, pool *WorkerPool)

// PackQuantBWithSumsFunc packs weights and fuses the per-(column, block)
// block-sum computation used by the int8 correction pre-pass.
type PackQuantBWithSumsFunc func(n, k, blkLen int, quantB, packed []byte, scaleB []float32, zeroPointsB []byte, blockSums []float32, pool *WorkerPool)

// DenseFloatKernelFunc is the dense fallback GEMM kernel used by the fp32
// multi-row path: c = a × b with b laid out [countK][countN]. It handles a
// bounded number of rows per call and returns how many it consumed.
type DenseFloatKernelFunc func(a, b, c []float32, countK, countM, countN, lda, ldc int) int

// DispatchTable is the immutable set of kernels selected once from hardware
// feature detection. Presence or absence of entries determines which compute
// variants are runnable; build it with NewDispatchTable and never mutate it
// afterwards.
type DispatchTable struct {
	features CPUFeatures

	fp32M1Kernel   Fp32M1KernelFunc
	dequantBKernel DequantBKernelFunc

	int8M1Kernel Int8M1KernelFunc
	int8Kernel   Int8KernelFunc

	quantizeRow      QuantizeRowFunc
	quantizeRowSplit QuantizeRowSplitFunc

	packQuantB         PackQuantBFunc
	packQuantBWithSums PackQuantBWithSumsFunc

	denseFloatKernel DenseFloatKernelFunc
}

// NewDispatchTable builds the dispatch table for the running CPU.
func NewDispatchTable() *DispatchTable {
	return NewDispatchTableFromFeatures(cpuFeatures)
}

// NewDispatchTableFromFeatures builds a dispatch table for an explicit
// feature set. The portable fp32 kernels are always installed. The int8
// side installs exactly one quantizer/kernel pairing: the separate-scale
// quantizer with the multi-row-capable kernel when the CPU has an int8 dot
// pipeline worth feeding, otherwise the embedded-scale quantizer with the
// single-row kernel.
func NewDispatchTableFromFeatures(f CPUFeatures) *DispatchTable {
	dt := &DispatchTable{
		features:         f,
		fp32M1Kernel:     fp32M1Kernel,
		dequantBKernel:   dequantBKernel,
		denseFloatKernel: denseFloatKernel,
		packQuantB:       packQuantB,
	}

	if f.HasAVX512VNNI || f.HasDotProd || f.HasAVX2 || f.HasNEON {
		dt.int8Kernel = int8Kernel
		dt.quantizeRowSplit = quantizeRowSplit
		dt.packQuantBWithSums = packQuantBWithSums
	} else {
		dt.int8M1Kernel = int8M1Kernel
		dt.quantizeRow = quantizeRow
	}

	return dt
}

// IsAvailable reports whether the table can run the configuration. It is the
// sole pre-flight signal: callers must not invoke GemmBatch for a
// configuration this rejects and should fall back to another op
// implementation instead.
func (dt *DispatchTable) IsAvailable(blkBitWidth, blkLen int, computeType ComputeType) bool {
	switch resolveVariant(blkBitWidth, blkLen, computeType) {
	case variantFp32:
		return dt.fp32M1Kernel != nil && dt.dequantBKernel != nil
	case variantInt8:
		return (dt.int8M1Kernel != nil && dt.quantizeRow != nil) ||
			(dt.int8Kernel != nil && dt.quantizeRowSplit != nil)
	default:
		return false
	}
}

// useEmbeddedQuantA reports which activation workspace form the table's
// int8 pairing populates.
func (dt *DispatchTable) useEmbeddedQuantA() bool {
	return dt.int8Kernel == nil || dt.quantizeRowSplit == nil
}

// Features returns the feature set the table was built from.
func (dt *DispatchTable) Features() CPUFeatures {
	return dt.features
}
