// Copyright ©2025 The NQGEMM Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nqgemm is a batched matrix-multiplication engine for 4-bit
// block-quantized weights against float32 or dynamically int8-quantized
// activations.
//
// The engine is hardware agnostic: all numeric kernels are ordinary Go
// functions held in an immutable DispatchTable built once from CPU feature
// detection. Callers resolve a compute variant, confirm it is runnable with
// IsAvailable, size scratch memory with WorkspaceSize, pack quantized
// weights once with PackWeights, and then drive batches through GemmBatch.
//
// Typical flow:
//
//	dt := nqgemm.NewDispatchTable()
//	if !dt.IsAvailable(4, blkLen, nqgemm.CompInt8) {
//		// fall back to another op implementation
//	}
//	packed := make([]byte, nqgemm.PackedWeightsSize(n, k, blkLen, nqgemm.CompInt8))
//	dt.PackWeights(n, k, blkLen, nqgemm.CompInt8, quantB, packed, scales, zeroPoints, pool)
//
//	ws := make([]byte, nqgemm.WorkspaceSize(m, n, k, batch, 4, blkLen, nqgemm.CompInt8))
//	err := dt.GemmBatch(m, n, k, batch, 4, blkLen, nqgemm.CompInt8, params, ws, pool)
//
// Packed weight buffers may be reused across many batch calls and can be
// persisted to disk with WritePackedWeights and mapped back read-only with
// OpenPackedWeights.
package nqgemm
