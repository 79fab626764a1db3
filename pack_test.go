package nqgemm

import (
	"math/rand"
	"testing"
)

func TestPackedWeightsSize(t *testing.T) {
	// 8 columns, k=64, blkLen=32: 2 blocks of 16 bytes per column.
	if got, want := PackedWeightsSize(8, 64, 32, CompFp32), 8*2*16; got != want {
		t.Errorf("fp32 size: got %d, want %d", got, want)
	}

	// The int8 layout appends one float per (column, block) after padding
	// the data region to 16 bytes.
	data := 8 * 2 * 16
	if got, want := PackedWeightsSize(8, 64, 32, CompInt8), alignUp(data, blkSumAlignment)+8*2*4; got != want {
		t.Errorf("int8 size: got %d, want %d", got, want)
	}

	if got := PackedWeightsSize(8, 64, 24, CompFp32); got != 0 {
		t.Errorf("unsupported block length: got %d, want 0", got)
	}
}

func TestPackWeightsCopiesData(t *testing.T) {
	const n, k, blkLen = 5, 64, 32
	rng := rand.New(rand.NewSource(11))
	quantB, scaleB, _ := makeQuantWeights(rng, n, k, blkLen, false)

	dt := NewDispatchTable()
	packed := make([]byte, PackedWeightsSize(n, k, blkLen, CompFp32))
	if err := dt.PackWeights(n, k, blkLen, CompFp32, quantB, packed, scaleB, nil, nil); err != nil {
		t.Fatalf("PackWeights: %v", err)
	}

	// The portable packer keeps the natural column order.
	for i := range quantB {
		if packed[i] != quantB[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, packed[i], quantB[i])
		}
	}
}

// The fused pack-and-sum kernel and the explicit block-sum pass must fill
// identical block-sum regions.
func TestPackWeightsBlockSums(t *testing.T) {
	const n, k, blkLen = 6, 96, 32
	bck := blockCountK(k, blkLen)
	rng := rand.New(rand.NewSource(12))
	quantB, scaleB, zeroPointsB := makeQuantWeights(rng, n, k, blkLen, true)

	for name, dt := range int8Tables() {
		t.Run(name, func(t *testing.T) {
			packed := make([]byte, PackedWeightsSize(n, k, blkLen, CompInt8))
			if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB, packed, scaleB, zeroPointsB, nil); err != nil {
				t.Fatalf("PackWeights: %v", err)
			}

			pw := newPackedWeights(packed, n, bck, blkLen, variantInt8)
			zpb := zeroPointBytes(bck)
			for col := 0; col < n; col++ {
				colZP := zeroPointsB[col*zpb : (col+1)*zpb]
				for blk := 0; blk < bck; blk++ {
					zp := columnZeroPoint(colZP, blk)
					want := scaleB[col*bck+blk] * float32(8-zp)
					if got := pw.blockSums[col*bck+blk]; got != want {
						t.Errorf("column %d block %d: got %g, want %g", col, blk, got, want)
					}
				}
			}
		})
	}
}

// Symmetric quantization folds to zero point 8, so every block sum is zero.
func TestPackWeightsSymmetricBlockSumsZero(t *testing.T) {
	const n, k, blkLen = 4, 64, 32
	bck := blockCountK(k, blkLen)
	rng := rand.New(rand.NewSource(13))
	quantB, scaleB, _ := makeQuantWeights(rng, n, k, blkLen, false)

	dt := NewDispatchTableFromFeatures(CPUFeatures{HasAVX2: true})
	packed := make([]byte, PackedWeightsSize(n, k, blkLen, CompInt8))
	if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB, packed, scaleB, nil, nil); err != nil {
		t.Fatalf("PackWeights: %v", err)
	}

	pw := newPackedWeights(packed, n, bck, blkLen, variantInt8)
	for i, s := range pw.blockSums {
		if s != 0 {
			t.Errorf("block sum %d: got %g, want 0", i, s)
		}
	}
}

// misaligned4 returns a size-byte slice whose base address is deliberately
// not 4-byte aligned.
func misaligned4(size int) []byte {
	buf := make([]byte, size+4)
	for off := 1; ; off++ {
		if !isAligned(buf[off:], 4) {
			return buf[off : off+size]
		}
	}
}

func TestPackWeightsErrors(t *testing.T) {
	dt := NewDispatchTable()
	const n, k, blkLen = 4, 64, 32
	rng := rand.New(rand.NewSource(14))
	quantB, scaleB, _ := makeQuantWeights(rng, n, k, blkLen, false)
	packed := make([]byte, PackedWeightsSize(n, k, blkLen, CompInt8))

	if err := dt.PackWeights(n, k, 24, CompFp32, quantB, packed, scaleB, nil, nil); !IsInvalidArgError(err) {
		t.Errorf("bad block length: got %v, want invalid argument", err)
	}
	if err := dt.PackWeights(0, k, blkLen, CompFp32, quantB, packed, scaleB, nil, nil); !IsInvalidArgError(err) {
		t.Errorf("n=0: got %v, want invalid argument", err)
	}
	if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB, packed[:4], scaleB, nil, nil); !IsInvalidArgError(err) {
		t.Errorf("short packed buffer: got %v, want invalid argument", err)
	}
	if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB[:4], packed, scaleB, nil, nil); !IsInvalidArgError(err) {
		t.Errorf("short weight buffer: got %v, want invalid argument", err)
	}
	if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB, packed, scaleB[:1], nil, nil); !IsInvalidArgError(err) {
		t.Errorf("short scale buffer: got %v, want invalid argument", err)
	}
	if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB, packed, scaleB, make([]byte, 1), nil); !IsInvalidArgError(err) {
		t.Errorf("short zero point buffer: got %v, want invalid argument", err)
	}

	// The int8 layout views block-sum floats in place, so the buffer base
	// must be 4-byte aligned.
	bad := misaligned4(len(packed))
	if err := dt.PackWeights(n, k, blkLen, CompInt8, quantB, bad, scaleB, nil, nil); !IsInvalidArgError(err) {
		t.Errorf("misaligned packed buffer: got %v, want invalid argument", err)
	}
	if err := dt.PackWeights(n, k, blkLen, CompFp32, quantB, bad, scaleB, nil, nil); err != nil {
		t.Errorf("fp32 has no float views, misaligned buffer must pack: %v", err)
	}
}
