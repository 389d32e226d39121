package jit

import "strings"

// Dialect enumerates the fixed, closed dialect registry spec.md §4.4
// requires ("a fixed registered-dialect set", not a string-keyed plugin
// system).
type Dialect int

const (
	HostDialect Dialect = iota
	DistArrayDialect
	ElementwiseArrayDialect
	RuntimeIRDialect
	LowLevelIRDialect
)

// dialectRegistry is the closed set every Engine registers at construction.
var dialectRegistry = []Dialect{
	HostDialect,
	DistArrayDialect,
	ElementwiseArrayDialect,
	RuntimeIRDialect,
	LowLevelIRDialect,
}

// Baseline pass lists. Ordering is load-bearing per spec.md §4.4: the
// distributed passes must run before array-to-loop lowering, bufferisation
// must precede loop-to-CF lowering, and GPU mode splices kernel-outlining
// between loop generation and the final lowering.
var cpuPasses = []string{
	"dist-lowering",
	"array-to-loop",
	"bufferize",
	"loop-to-cf",
	"lower-to-llvm",
}

var gpuPasses = []string{
	"dist-lowering",
	"array-to-loop",
	"bufferize",
	"loop-to-cf",
	"gpu-kernel-outlining",
	"gpu-to-spirv",
	"gpu-runtime-binding",
	"lower-to-llvm",
}

// buildPipeline returns the pass list for cfg: the DDPT_PASSES override if
// set, otherwise the gpu or cpu baseline.
func buildPipeline(cfg Config) []string {
	if cfg.Passes != "" {
		return strings.Split(cfg.Passes, ",")
	}
	if cfg.UseGPU {
		return append([]string(nil), gpuPasses...)
	}
	return append([]string(nil), cpuPasses...)
}

// pipelineString renders the pass list the way DDPT_VERBOSE>=1 would echo
// it.
func pipelineString(passes []string) string {
	return strings.Join(passes, ",")
}
