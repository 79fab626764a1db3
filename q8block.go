package nqgemm

import (
	"math"
	"unsafe"
)

// Embedded-scale activation block layout: one float32 scale followed by
// blkLen int8 values. This is the record the embedded-scale quantizer writes
// and the single-row int8 kernel reads.

// q8BlkSize is the byte size of one embedded-scale activation block.
func q8BlkSize(blkLen int) int {
	return 4 + blkLen
}

// q8BlkAlignment is the SIMD-register-driven alignment of the int8 variant's
// workspace. 16 bytes covers one 128-bit vector register.
const q8BlkAlignment = 16

// q8BlkScale reads the scale stored at the head of an embedded block.
func q8BlkScale(blk []byte) float32 {
	return math.Float32frombits(uint32(blk[0]) | uint32(blk[1])<<8 | uint32(blk[2])<<16 | uint32(blk[3])<<24)
}

// q8BlkSetScale stores the scale at the head of an embedded block.
func q8BlkSetScale(blk []byte, scale float32) {
	bits := math.Float32bits(scale)
	blk[0] = byte(bits)
	blk[1] = byte(bits >> 8)
	blk[2] = byte(bits >> 16)
	blk[3] = byte(bits >> 24)
}

// q8BlkData returns the quantized byte region of an embedded block.
func q8BlkData(blk []byte, blkLen int) []byte {
	return blk[4 : 4+blkLen]
}

// float32View reinterprets the head of a byte slice as n float32 values.
// The slice address must be 4-byte aligned; all engine buffers are realigned
// to q8BlkAlignment before views are taken.
func float32View(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}
