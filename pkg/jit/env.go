// Package jit is the runtime's JIT engine: pass-pipeline assembly, a
// content-addressed compilation cache, and packed-ABI invocation (spec.md
// §4.4). There is no cgo/LLVM toolchain available in this environment, so
// "compile" here means validating and canonicalizing an *ir.Module, and
// "invoke" means running it on *ir.Interpreter — the same role gomlx's
// pure-Go simplego backend plays next to its XLA/PJRT backend.
package jit

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// ErrBadEnv is wrapped around any DDPT_* environment variable this package
// fails to parse. An invalid DDPT_OPT_LEVEL or DDPT_VERBOSE makes
// ConfigFromEnv return an error wrapping it rather than silently
// defaulting; nothing here panics.
var ErrBadEnv = errors.New("jit: invalid environment configuration")

func parseOptLevel(raw string) (int, error) {
	if raw == "" {
		return 3, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 3 {
		return 0, errors.Wrapf(ErrBadEnv, "DDPT_OPT_LEVEL=%q must be an integer 0-3", raw)
	}
	return n, nil
}

func parseVerbose(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrBadEnv, "DDPT_VERBOSE=%q must be a non-negative integer", raw)
	}
	return n, nil
}

// parseBoolish matches spec.md §6's DDPT_USE_CACHE truthy set.
func parseBoolish(raw string, defaultValue bool) bool {
	switch raw {
	case "":
		return defaultValue
	case "1", "y", "Y", "on", "ON":
		return true
	default:
		return false
	}
}

// Config is the engine's environment-derived configuration, resolved once
// at NewEngine time (spec.md §6's DDPT_* variables).
type Config struct {
	Passes   string // DDPT_PASSES override; "" means use the baseline pipeline.
	UseGPU   bool   // DDPT_USE_GPU
	UseCache bool   // DDPT_USE_CACHE, default on
	OptLevel int    // DDPT_OPT_LEVEL, 0-3, default 3
	Verbose  int    // DDPT_VERBOSE, default 0

	IdtrSO   string // DDPT_IDTR_SO, default "libidtr.so"
	GpuxSO   string // DDPT_GPUX_SO
	MLIRRoot string // MLIRROOT
	IMEXRoot string // IMEXROOT
}

// ConfigFromEnv reads the DDPT_*/MLIRROOT/IMEXROOT environment variables.
func ConfigFromEnv() (Config, error) {
	optLevel, err := parseOptLevel(os.Getenv("DDPT_OPT_LEVEL"))
	if err != nil {
		return Config{}, err
	}
	verbose, err := parseVerbose(os.Getenv("DDPT_VERBOSE"))
	if err != nil {
		return Config{}, err
	}
	idtr := os.Getenv("DDPT_IDTR_SO")
	if idtr == "" {
		idtr = "libidtr.so"
	}
	return Config{
		Passes:   os.Getenv("DDPT_PASSES"),
		UseGPU:   os.Getenv("DDPT_USE_GPU") != "",
		UseCache: parseBoolish(os.Getenv("DDPT_USE_CACHE"), true),
		OptLevel: optLevel,
		Verbose:  verbose,
		IdtrSO:   idtr,
		GpuxSO:   os.Getenv("DDPT_GPUX_SO"),
		MLIRRoot: os.Getenv("MLIRROOT"),
		IMEXRoot: os.Getenv("IMEXROOT"),
	}, nil
}
