// Copyright ©2025 The NQGEMM Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nqgemm-info reports which quantized GEMM variants are runnable on
// this machine and times a small matrix multiply on each one.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"time"

	"github.com/LynnColeArt/nqgemm"
)

func main() {
	var (
		m       = flag.Int("m", 64, "Rows of the timed multiply")
		n       = flag.Int("n", 512, "Columns of the timed multiply")
		k       = flag.Int("k", 512, "Inner dimension of the timed multiply")
		iters   = flag.Int("iters", 10, "Timed iterations per variant")
		workers = flag.Int("workers", 0, "Worker count, 0 = NumCPU")
	)
	flag.Parse()

	fmt.Println("=== NQGEMM Capability Report ===")
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("GOARCH: %s\n", runtime.GOARCH)
	fmt.Printf("CPU: %d cores\n", runtime.NumCPU())
	fmt.Println(nqgemm.GetCPUInfo())

	dt := nqgemm.NewDispatchTable()

	fmt.Println("\nVariant availability (4-bit weights):")
	fmt.Printf("%-12s", "BlkLen")
	for _, ct := range []nqgemm.ComputeType{nqgemm.CompFp32, nqgemm.CompInt8} {
		fmt.Printf("%-8s", ct)
	}
	fmt.Println()
	for _, blkLen := range []int{16, 32, 64, 128, 256} {
		fmt.Printf("%-12d", blkLen)
		for _, ct := range []nqgemm.ComputeType{nqgemm.CompFp32, nqgemm.CompInt8} {
			status := "no"
			if dt.IsAvailable(4, blkLen, ct) {
				status = "yes"
			}
			fmt.Printf("%-8s", status)
		}
		fmt.Println()
	}

	pool := nqgemm.NewWorkerPool(*workers)
	defer pool.Close()

	fmt.Printf("\nTimed multiply: M=%d N=%d K=%d blkLen=32, %d iterations, %d workers\n",
		*m, *n, *k, *iters, pool.Workers())
	for _, ct := range []nqgemm.ComputeType{nqgemm.CompFp32, nqgemm.CompInt8} {
		if !dt.IsAvailable(4, 32, ct) {
			fmt.Printf("  %-6s not available\n", ct)
			continue
		}
		timeVariant(dt, pool, ct, *m, *n, *k, *iters)
	}
}

func timeVariant(dt *nqgemm.DispatchTable, pool *nqgemm.WorkerPool, ct nqgemm.ComputeType, m, n, k, iters int) {
	const blkLen = 32
	bck := (k + blkLen - 1) / blkLen
	rng := rand.New(rand.NewSource(42))

	quantB := make([]byte, n*bck*blkLen/2)
	rng.Read(quantB)
	scaleB := make([]float32, n*bck)
	for i := range scaleB {
		scaleB[i] = rng.Float32()*0.02 + 0.001
	}

	packed := make([]byte, nqgemm.PackedWeightsSize(n, k, blkLen, ct))
	if err := dt.PackWeights(n, k, blkLen, ct, quantB, packed, scaleB, nil, pool); err != nil {
		log.Fatalf("pack weights: %v", err)
	}

	a := make([]float32, m*k)
	for i := range a {
		a[i] = rng.Float32()*2 - 1
	}
	c := make([]float32, m*n)
	workspace := make([]byte, nqgemm.WorkspaceSize(m, n, k, 1, 4, blkLen, ct))

	params := []nqgemm.GemmParams{{
		A: a, LDA: k,
		PackedB: packed, ScaleB: scaleB,
		C: c, LDC: n,
	}}

	// Warm up once before timing.
	if err := dt.GemmBatch(m, n, k, 1, 4, blkLen, ct, params, workspace, pool); err != nil {
		log.Fatalf("gemm: %v", err)
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		if err := dt.GemmBatch(m, n, k, 1, 4, blkLen, ct, params, workspace, pool); err != nil {
			log.Fatalf("gemm: %v", err)
		}
	}
	elapsed := time.Since(start)

	perCall := elapsed / time.Duration(iters)
	gflops := 2 * float64(m) * float64(n) * float64(k) / perCall.Seconds() / 1e9
	fmt.Printf("  %-6s %v/call  %.2f GFLOPS\n", ct, perCall.Round(time.Microsecond), gflops)
}
