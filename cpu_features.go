package nqgemm

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks the CPU instruction set extensions the kernel selection
// logic cares about.
type CPUFeatures struct {
	HasSSE4       bool
	HasAVX2       bool
	HasFMA        bool
	HasAVX512F    bool
	HasAVX512VNNI bool
	HasNEON       bool
	HasDotProd    bool // ARMv8.2 SDOT/UDOT
}

// Global CPU feature detection
var cpuFeatures CPUFeatures

func init() {
	detectCPUFeatures()
}

// detectCPUFeatures populates the global cpuFeatures struct
func detectCPUFeatures() {
	cpuFeatures = CPUFeatures{
		HasSSE4:       cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX2:       cpu.X86.HasAVX2,
		HasFMA:        cpu.X86.HasFMA,
		HasAVX512F:    cpu.X86.HasAVX512F,
		HasAVX512VNNI: cpu.X86.HasAVX512VNNI,
		HasNEON:       runtime.GOARCH == "arm64" && cpu.ARM64.HasASIMD,
		HasDotProd:    runtime.GOARCH == "arm64" && cpu.ARM64.HasASIMDDP,
	}
}

// HasWideFloat returns true if the CPU has a wide float pipeline worth
// routing the dense fp32 fallback through.
func HasWideFloat() bool {
	return cpuFeatures.HasAVX2 && cpuFeatures.HasFMA || cpuFeatures.HasNEON
}

// HasInt8Dot returns true if the CPU can accelerate int8 dot products.
func HasInt8Dot() bool {
	return cpuFeatures.HasAVX512VNNI || cpuFeatures.HasDotProd || cpuFeatures.HasAVX2
}

// GetCPUInfo returns a string describing available CPU features
func GetCPUInfo() string {
	features := []string{}

	if cpuFeatures.HasSSE4 {
		features = append(features, "SSE4")
	}
	if cpuFeatures.HasAVX2 {
		features = append(features, "AVX2")
	}
	if cpuFeatures.HasFMA {
		features = append(features, "FMA")
	}
	if cpuFeatures.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if cpuFeatures.HasAVX512VNNI {
		features = append(features, "AVX512VNNI")
	}
	if cpuFeatures.HasNEON {
		features = append(features, "NEON")
	}
	if cpuFeatures.HasDotProd {
		features = append(features, "DOTPROD")
	}

	if len(features) == 0 {
		return "No SIMD extensions detected"
	}

	result := "CPU features: "
	for i, f := range features {
		if i > 0 {
			result += ", "
		}
		result += f
	}
	return result
}
