package nqgemm

import "fmt"

// PostProcessFunc is invoked after each output chunk is produced. c is the
// full output matrix of the GEMM; the start/count arguments delimit the
// freshly written region.
type PostProcessFunc func(c []float32, startM, startN, countM, countN, ldc int)

// GemmParams describes one logical matrix multiply in a batch.
type GemmParams struct {
	// A holds float32 activations, row-major with row stride LDA.
	A   []float32
	LDA int

	// PackedB is the buffer produced by PackWeights, including the
	// block-sum region for the int8 variant. It is read-only for the
	// duration of any batch call. For the int8 variant the base address
	// must be 4-byte aligned so the block-sum floats can be viewed in
	// place; heap allocations and OpenPackedWeights mappings satisfy this,
	// and both PackWeights and GemmBatch reject buffers that do not.
	PackedB []byte

	// ScaleB holds one float per (column, block): n × blockCountK values.
	ScaleB []float32

	// ZeroPointsB optionally holds nibble-packed per-block zero points,
	// ceil(blockCountK/2) bytes per column. Nil means symmetric
	// quantization with zero point 8.
	ZeroPointsB []byte

	// Bias is optionally added to every output row; length n.
	Bias []float32

	// C receives the output, row-major with row stride LDC.
	C   []float32
	LDC int

	// PostProcess, when non-nil, runs after each output chunk.
	PostProcess PostProcessFunc
}

// Tile scheduling constants. Row tiles are a fixed 128 rows; column tiles
// are subdivided to a 16-column granularity only when a GEMM gets more than
// one thread's worth of work.
const (
	tileStrideM         = 128
	tileStrideNAlign    = 16
	complexityPerThread = 65536
)

func divRoundUp(a, b int) int {
	return (a + b - 1) / b
}

// GemmBatch runs batchCount matrix multiplies of shape M×K by K×N against
// packed 4-bit quantized weights. IsAvailable must have returned true for
// the configuration and workspace must hold at least WorkspaceSize bytes
// (nil is fine when the computed size is 0); both are enforced with an
// error rather than silently proceeding. A nil pool runs the batch
// sequentially with identical numerics up to floating-point reduction
// order.
func (dt *DispatchTable) GemmBatch(m, n, k, batchCount, blkBitWidth, blkLen int, computeType ComputeType, params []GemmParams, workspace []byte, pool *WorkerPool) error {
	const op = "GemmBatch"

	v := resolveVariant(blkBitWidth, blkLen, computeType)
	if v == variantInvalid {
		return NewInvalidArgError(op, fmt.Sprintf("no variant for bit width %d, block length %d, compute type %v", blkBitWidth, blkLen, computeType))
	}
	if !dt.IsAvailable(blkBitWidth, blkLen, computeType) {
		return NewCapabilityError(op, fmt.Sprintf("dispatch table cannot run variant %v", v))
	}
	if m <= 0 || n <= 0 || k <= 0 || batchCount <= 0 {
		return NewInvalidArgError(op, "dimensions and batch count must be positive")
	}
	if len(params) < batchCount {
		return NewInvalidArgError(op, "fewer descriptors than batch entries")
	}

	if v == variantInt8 {
		for gi := 0; gi < batchCount; gi++ {
			if !isAligned(params[gi].PackedB, 4) {
				return NewInvalidArgError(op, "packed weight buffer base must be 4-byte aligned")
			}
		}
	}

	stride := perGemmWorkspaceStride(v, m, n, k, blkLen)
	if stride > 0 {
		if need := WorkspaceSize(m, n, k, batchCount, blkBitWidth, blkLen, computeType); len(workspace) < need {
			return NewInvalidArgError(op, "workspace smaller than WorkspaceSize")
		}
		workspace = alignBytes(workspace, workspaceAlignment(v))
	}

	bck := blockCountK(k, blkLen)
	embedded := dt.useEmbeddedQuantA()

	// Phase one: quantize every activation row across the whole batch.
	// tryParallel returns only when the phase is complete, so compute
	// tiles always observe fully populated workspaces.
	if v == variantInt8 {
		dt.initializeWorkspaceInt8(m, k, batchCount, blkLen, params, workspace, stride, embedded, pool)
	}

	if pool == nil {
		for gi := 0; gi < batchCount; gi++ {
			data := &params[gi]
			if v == variantInt8 {
				ws := newQuantAWorkspace(workspace[gi*stride:], m, bck, blkLen, embedded)
				dt.computeInt8(blkLen, k, n, data, ws, 0, m, 0, n)
			} else {
				dt.computeFp32(blkLen, k, n, data, 0, m, 0, n)
			}
		}
		return nil
	}

	// Size the thread target from the aggregate complexity, then split
	// each GEMM into row tiles of 128 and just enough column tiles to
	// keep the target busy.
	complexity := float64(m) * float64(n) * float64(k) * float64(batchCount)
	targetThreads := int(complexity/complexityPerThread) + 1
	if maxThreads := pool.Workers() * 8; targetThreads > maxThreads {
		targetThreads = maxThreads
	}

	threadsPerGemm := targetThreads / batchCount
	if threadsPerGemm < 1 {
		threadsPerGemm = 1
	}

	nc := n
	if threadsPerGemm > 1 {
		blockedM := divRoundUp(m, tileStrideM)
		maxNC := divRoundUp(n*blockedM, threadsPerGemm)
		if maxNC < nc {
			if candidate := alignUp(maxNC, tileStrideNAlign); candidate < nc {
				nc = candidate
			}
		}
	}

	tileCountM := divRoundUp(m, tileStrideM)
	tileCountN := divRoundUp(n, nc)
	tasksPerGemm := tileCountM * tileCountN

	tryParallel(pool, tasksPerGemm*batchCount, func(tid int) {
		gi := tid / tasksPerGemm
		blk := tid % tasksPerGemm
		tileN := blk / tileCountM
		tileM := blk % tileCountM

		startM := tileM * tileStrideM
		countM := min(m-startM, tileStrideM)
		startN := tileN * nc
		countN := min(n-startN, nc)

		data := &params[gi]
		if v == variantInt8 {
			ws := newQuantAWorkspace(workspace[gi*stride:], m, bck, blkLen, embedded)
			dt.computeInt8(blkLen, k, n, data, ws, startM, countM, startN, countN)
		} else {
			dt.computeFp32(blkLen, k, n, data, startM, countM, startN, countN)
		}
	})

	return nil
}

// initializeWorkspaceInt8 block-quantizes every activation row of every
// batch entry into its per-GEMM workspace. Entries are independent and run
// in parallel when a pool is supplied.
func (dt *DispatchTable) initializeWorkspaceInt8(m, k, batchCount, blkLen int, params []GemmParams, workspace []byte, stride int, embedded bool, pool *WorkerPool) {
	bck := blockCountK(k, blkLen)

	tryParallel(pool, batchCount, func(gi int) {
		data := &params[gi]
		ws := newQuantAWorkspace(workspace[gi*stride:], m, bck, blkLen, embedded)

		if embedded {
			rowStride := ws.rowStride()
			for row := 0; row < m; row++ {
				dt.quantizeRow(blkLen, data.A[row*data.LDA:], k, ws.data[row*rowStride:])
			}
			return
		}

		for row := 0; row < m; row++ {
			dt.quantizeRowSplit(blkLen, data.A[row*data.LDA:], k,
				ws.data[row*bck*blkLen:],
				ws.scales[row*bck:(row+1)*bck],
				ws.blockSums[row*bck:(row+1)*bck])
		}
	})
}
