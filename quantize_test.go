package nqgemm

import (
	"math"
	"math/rand"
	"testing"
)

func TestWeightNibbleOrder(t *testing.T) {
	// 0xBA packs 0xA low (index 0) and 0xB high (index 1).
	blk := []byte{0xBA, 0x21}
	want := []int{0xA, 0xB, 0x1, 0x2}
	for i, w := range want {
		if got := weightNibble(blk, i); got != w {
			t.Errorf("nibble %d: got %#x, want %#x", i, got, w)
		}
	}
}

func TestColumnZeroPointDefault(t *testing.T) {
	if got := columnZeroPoint(nil, 5); got != 8 {
		t.Errorf("nil zero points: got %d, want 8", got)
	}
	zp := []byte{0x3F}
	if got := columnZeroPoint(zp, 0); got != 0xF {
		t.Errorf("block 0: got %#x, want 0xF", got)
	}
	if got := columnZeroPoint(zp, 1); got != 0x3 {
		t.Errorf("block 1: got %#x, want 0x3", got)
	}
}

func TestQuantizeBlockScale(t *testing.T) {
	a := []float32{1, -2, 3, -6.35}
	dst := make([]byte, 8)
	scale, sum := quantizeBlock(a, len(a), 8, dst)

	wantScale := float32(6.35) / 127
	if math.Abs(float64(scale-wantScale)) > 1e-7 {
		t.Errorf("scale: got %g, want %g", scale, wantScale)
	}

	// -6.35 is the max-abs value so it must land exactly on -127.
	if int8(dst[3]) != -127 {
		t.Errorf("max-abs element: got %d, want -127", int8(dst[3]))
	}

	var wantSum int32
	for i := 0; i < len(a); i++ {
		wantSum += int32(int8(dst[i]))
	}
	if sum != wantSum {
		t.Errorf("sum: got %d, want %d", sum, wantSum)
	}

	// Padding past count must be zero.
	for i := len(a); i < 8; i++ {
		if dst[i] != 0 {
			t.Errorf("padding byte %d: got %d, want 0", i, dst[i])
		}
	}
}

func TestQuantizeBlockZeroInput(t *testing.T) {
	a := make([]float32, 16)
	dst := make([]byte, 16)
	scale, sum := quantizeBlock(a, 16, 16, dst)
	if scale != 0 || sum != 0 {
		t.Errorf("zero input: got scale %g sum %d", scale, sum)
	}
	for i, b := range dst {
		if b != 0 {
			t.Errorf("byte %d: got %d, want 0", i, b)
		}
	}
}

func TestQuantizeRowEmbedded(t *testing.T) {
	const blkLen, k = 16, 40 // final block holds 8 values
	rng := rand.New(rand.NewSource(2))

	a := make([]float32, k)
	for i := range a {
		a[i] = rng.Float32()*8 - 4
	}

	bck := blockCountK(k, blkLen)
	quantA := make([]byte, bck*q8BlkSize(blkLen))
	quantizeRow(blkLen, a, k, quantA)

	for blk := 0; blk < bck; blk++ {
		rec := quantA[blk*q8BlkSize(blkLen):]
		scale := q8BlkScale(rec)
		data := q8BlkData(rec, blkLen)

		count := min(k-blk*blkLen, blkLen)
		var maxAbs float32
		for i := 0; i < count; i++ {
			if abs := float32(math.Abs(float64(a[blk*blkLen+i]))); abs > maxAbs {
				maxAbs = abs
			}
		}
		if want := maxAbs / 127; math.Abs(float64(scale-want)) > 1e-7 {
			t.Errorf("block %d scale: got %g, want %g", blk, scale, want)
		}

		// Dequantized values must land within half a step of the input.
		for i := 0; i < count; i++ {
			back := float32(int8(data[i])) * scale
			if math.Abs(float64(back-a[blk*blkLen+i])) > float64(scale)/2+1e-6 {
				t.Errorf("block %d value %d: %g round-trips to %g", blk, i, a[blk*blkLen+i], back)
			}
		}
		for i := count; i < blkLen; i++ {
			if data[i] != 0 {
				t.Errorf("block %d padding %d: got %d, want 0", blk, i, data[i])
			}
		}
	}
}

func TestQuantizeRowSplitBlockSums(t *testing.T) {
	const blkLen, k = 32, 96
	rng := rand.New(rand.NewSource(4))

	a := make([]float32, k)
	for i := range a {
		a[i] = rng.Float32()*2 - 1
	}

	bck := blockCountK(k, blkLen)
	quantA := make([]byte, bck*blkLen)
	scales := make([]float32, bck)
	blockSums := make([]float32, bck)
	quantizeRowSplit(blkLen, a, k, quantA, scales, blockSums)

	for blk := 0; blk < bck; blk++ {
		var sum int32
		for i := 0; i < blkLen; i++ {
			sum += int32(int8(quantA[blk*blkLen+i]))
		}
		want := scales[blk] * float32(sum)
		if math.Abs(float64(blockSums[blk]-want)) > 1e-6 {
			t.Errorf("block %d sum: got %g, want %g", blk, blockSums[blk], want)
		}
	}
}

// Both quantizer forms must produce identical quantized bytes and scales;
// only the storage layout differs.
func TestQuantizerFormsAgree(t *testing.T) {
	const blkLen, k = 32, 80
	rng := rand.New(rand.NewSource(5))

	a := make([]float32, k)
	for i := range a {
		a[i] = rng.Float32()*10 - 5
	}

	bck := blockCountK(k, blkLen)
	embedded := make([]byte, bck*q8BlkSize(blkLen))
	quantizeRow(blkLen, a, k, embedded)

	split := make([]byte, bck*blkLen)
	scales := make([]float32, bck)
	sums := make([]float32, bck)
	quantizeRowSplit(blkLen, a, k, split, scales, sums)

	for blk := 0; blk < bck; blk++ {
		rec := embedded[blk*q8BlkSize(blkLen):]
		if got, want := q8BlkScale(rec), scales[blk]; got != want {
			t.Errorf("block %d scale: embedded %g, split %g", blk, got, want)
		}
		eData := q8BlkData(rec, blkLen)
		for i := 0; i < blkLen; i++ {
			if eData[i] != split[blk*blkLen+i] {
				t.Errorf("block %d byte %d: embedded %d, split %d", blk, i, eData[i], split[blk*blkLen+i])
			}
		}
	}
}

func TestQ8BlkScaleRoundTrip(t *testing.T) {
	blk := make([]byte, q8BlkSize(32))
	for _, v := range []float32{0, 1, -2.5, 3.14159e-5} {
		q8BlkSetScale(blk, v)
		if got := q8BlkScale(blk); got != v {
			t.Errorf("scale round trip: got %g, want %g", got, v)
		}
	}
}
