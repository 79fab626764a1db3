package nqgemm

import "unsafe"

// workspaceAlignment is the required base alignment of the caller-provided
// scratch buffer for a variant.
func workspaceAlignment(v variant) int {
	switch v {
	case variantInt8:
		return q8BlkAlignment
	default:
		return 1
	}
}

// perGemmWorkspaceSize is the scratch footprint of one GEMM in a batch.
// The int8 variant stores quantized activation bytes plus one scale and one
// block sum per (row, block); the fp32 variant needs no scratch at all.
func perGemmWorkspaceSize(v variant, m, n, k, blkLen int) int {
	_ = n
	switch v {
	case variantInt8:
		bck := blockCountK(k, blkLen)
		return m * bck * (q8BlkSize(blkLen) + 4)
	default:
		return 0
	}
}

// perGemmWorkspaceStride rounds the per-GEMM size up to the variant
// alignment so consecutive batch entries stay aligned.
func perGemmWorkspaceStride(v variant, m, n, k, blkLen int) int {
	size := perGemmWorkspaceSize(v, m, n, k, blkLen)
	align := workspaceAlignment(v)
	return (size + align - 1) / align * align
}

// WorkspaceSize returns the number of scratch bytes GemmBatch needs for the
// given configuration, or 0 when none are required. The returned size
// includes alignment slack; GemmBatch realigns the buffer base at runtime.
func WorkspaceSize(m, n, k, batchCount, blkBitWidth, blkLen int, computeType ComputeType) int {
	v := resolveVariant(blkBitWidth, blkLen, computeType)

	stride := perGemmWorkspaceStride(v, m, n, k, blkLen)
	if stride == 0 {
		return 0
	}

	align := workspaceAlignment(v)
	return batchCount*stride + align - 1
}

// isAligned reports whether the slice base address is a multiple of align.
func isAligned(b []byte, align int) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%uintptr(align) == 0
}

// alignBytes advances the slice head to the next multiple of align.
func alignBytes(b []byte, align int) []byte {
	if align <= 1 || len(b) == 0 {
		return b
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	pad := int((uintptr(align) - addr%uintptr(align)) % uintptr(align))
	return b[pad:]
}

// quantAWorkspace carries sized views over one GEMM's quantized-activation
// scratch. Exactly one of the two forms is populated:
//
//   - embedded form: data holds m×blockCountK embedded-scale blocks and
//     scales/blockSums are nil;
//   - split form: data holds m×blockCountK×blkLen raw bytes and scales and
//     blockSums each hold m×blockCountK float32 values.
//
// The compute driver distinguishes the forms by checking scales for nil.
type quantAWorkspace struct {
	data      []byte
	scales    []float32
	blockSums []float32

	m, blockCountK, blkLen int
}

func newQuantAWorkspace(perGemm []byte, m, bck, blkLen int, embedded bool) quantAWorkspace {
	ws := quantAWorkspace{m: m, blockCountK: bck, blkLen: blkLen}
	if embedded {
		ws.data = perGemm[:m*bck*q8BlkSize(blkLen)]
		return ws
	}
	dataBytes := m * bck * blkLen
	ws.data = perGemm[:dataBytes]
	ws.scales = float32View(perGemm[dataBytes:], m*bck)
	ws.blockSums = float32View(perGemm[dataBytes+4*m*bck:], m*bck)
	return ws
}

// rowStride is the byte stride between consecutive quantized activation rows.
func (ws *quantAWorkspace) rowStride() int {
	if ws.scales == nil {
		return ws.blockCountK * q8BlkSize(ws.blkLen)
	}
	return ws.blockCountK * ws.blkLen
}
