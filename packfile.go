package nqgemm

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Packed weight buffers are expensive to rebuild for large models, so they
// can be persisted once and memory-mapped read-only on later runs. The
// on-disk layout is a fixed little-endian header followed by the packed
// buffer verbatim; the payload starts at a 16-aligned file offset so the
// block-sum views land on the same offsets as the in-memory buffer.

const (
	packFileMagic      = 0x5750514e // "NQPW"
	packFileVersion    = 1
	packFileHeaderSize = 64
)

type packFileHeader struct {
	N           int
	K           int
	BlkLen      int
	ComputeType ComputeType
	PayloadSize int
}

func (h packFileHeader) encode() [packFileHeaderSize]byte {
	var buf [packFileHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:], packFileMagic)
	binary.LittleEndian.PutUint32(buf[4:], packFileVersion)
	binary.LittleEndian.PutUint64(buf[8:], uint64(h.N))
	binary.LittleEndian.PutUint64(buf[16:], uint64(h.K))
	binary.LittleEndian.PutUint32(buf[24:], uint32(h.BlkLen))
	binary.LittleEndian.PutUint32(buf[28:], uint32(h.ComputeType))
	binary.LittleEndian.PutUint64(buf[32:], uint64(h.PayloadSize))
	return buf
}

func decodePackFileHeader(buf []byte) (packFileHeader, error) {
	if len(buf) < packFileHeaderSize {
		return packFileHeader{}, fmt.Errorf("truncated header: %d bytes", len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[0:]); magic != packFileMagic {
		return packFileHeader{}, fmt.Errorf("bad magic %#x", magic)
	}
	if version := binary.LittleEndian.Uint32(buf[4:]); version != packFileVersion {
		return packFileHeader{}, fmt.Errorf("unsupported version %d", version)
	}
	return packFileHeader{
		N:           int(binary.LittleEndian.Uint64(buf[8:])),
		K:           int(binary.LittleEndian.Uint64(buf[16:])),
		BlkLen:      int(binary.LittleEndian.Uint32(buf[24:])),
		ComputeType: ComputeType(binary.LittleEndian.Uint32(buf[28:])),
		PayloadSize: int(binary.LittleEndian.Uint64(buf[32:])),
	}, nil
}

// WritePackedWeights persists a buffer produced by PackWeights.
func WritePackedWeights(path string, n, k, blkLen int, computeType ComputeType, packed []byte) error {
	const op = "WritePackedWeights"

	need := PackedWeightsSize(n, k, blkLen, computeType)
	if need == 0 {
		return NewInvalidArgError(op, "unsupported block length or compute type")
	}
	if len(packed) < need {
		return NewInvalidArgError(op, "packed buffer too small")
	}

	f, err := os.Create(path)
	if err != nil {
		return NewIOError(op, "create", err)
	}

	hdr := packFileHeader{N: n, K: k, BlkLen: blkLen, ComputeType: computeType, PayloadSize: need}.encode()
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return NewIOError(op, "write header", err)
	}
	if _, err := f.Write(packed[:need]); err != nil {
		f.Close()
		return NewIOError(op, "write payload", err)
	}
	if err := f.Close(); err != nil {
		return NewIOError(op, "close", err)
	}
	return nil
}

// PackedWeightsFile is a read-only memory-mapped packed weight buffer.
// Data is valid until Close; the mapping must outlive any batch call
// reading it.
type PackedWeightsFile struct {
	N           int
	K           int
	BlkLen      int
	ComputeType ComputeType

	f    *os.File
	m    mmap.MMap
	data []byte
}

// OpenPackedWeights maps a file written by WritePackedWeights.
func OpenPackedWeights(path string) (*PackedWeightsFile, error) {
	const op = "OpenPackedWeights"

	f, err := os.Open(path)
	if err != nil {
		return nil, NewIOError(op, "open", err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, NewIOError(op, "mmap", err)
	}

	hdr, err := decodePackFileHeader(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, NewIOError(op, "parse header", err)
	}

	if want := PackedWeightsSize(hdr.N, hdr.K, hdr.BlkLen, hdr.ComputeType); want != hdr.PayloadSize {
		m.Unmap()
		f.Close()
		return nil, NewIOError(op, fmt.Sprintf("payload size %d does not match configuration (want %d)", hdr.PayloadSize, want), nil)
	}
	if len(m) < packFileHeaderSize+hdr.PayloadSize {
		m.Unmap()
		f.Close()
		return nil, NewIOError(op, "file shorter than payload", nil)
	}

	return &PackedWeightsFile{
		N:           hdr.N,
		K:           hdr.K,
		BlkLen:      hdr.BlkLen,
		ComputeType: hdr.ComputeType,
		f:           f,
		m:           m,
		data:        m[packFileHeaderSize : packFileHeaderSize+hdr.PayloadSize],
	}, nil
}

// Data returns the mapped packed buffer, usable as GemmParams.PackedB.
func (p *PackedWeightsFile) Data() []byte {
	return p.data
}

// Close unmaps the buffer and closes the file.
func (p *PackedWeightsFile) Close() error {
	if err := p.m.Unmap(); err != nil {
		p.f.Close()
		return err
	}
	return p.f.Close()
}
