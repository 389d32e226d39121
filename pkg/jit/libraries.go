package jit

import (
	"path/filepath"

	"github.com/ddptensor/ddpt/pkg/support/fsutil"
)

// RuntimeLibraries resolves the shared-runtime paths spec.md §6 describes:
// three always-loaded host/distributed libraries, plus a GPU runtime when
// cfg.UseGPU is set. There is no dlopen step in this interpreter-backed
// engine (see package doc); the paths are resolved and recorded purely for
// diagnostics and tests, exactly the way graph/manager.go's plugin search
// walks PJRT_PLUGIN_LIBRARY_PATH with fallbacks before ever calling dlopen.
func RuntimeLibraries(cfg Config) []string {
	libs := []string{
		"libmlir_c_runner_utils.so",
		"libmlir_runner_utils.so",
		resolveIdtr(cfg),
	}
	if cfg.UseGPU {
		libs = append(libs, resolveGpux(cfg))
	}
	return libs
}

func resolveIdtr(cfg Config) string {
	if ok, _ := fsutil.FileExists(cfg.IdtrSO); ok {
		return cfg.IdtrSO
	}
	if cfg.MLIRRoot != "" {
		root := fsutil.MustReplaceTildeInDir(cfg.MLIRRoot)
		candidate := filepath.Join(root, "lib", "libidtr.so")
		if ok, _ := fsutil.FileExists(candidate); ok {
			return candidate
		}
	}
	return cfg.IdtrSO
}

func resolveGpux(cfg Config) string {
	if cfg.GpuxSO != "" {
		if ok, _ := fsutil.FileExists(cfg.GpuxSO); ok {
			return cfg.GpuxSO
		}
	}
	if cfg.IMEXRoot != "" {
		root := fsutil.MustReplaceTildeInDir(cfg.IMEXRoot)
		fallback := filepath.Join(root, "lib", "liblevel-zero-runtime.so")
		if ok, _ := fsutil.FileExists(fallback); ok {
			return fallback
		}
		return fallback
	}
	return cfg.GpuxSO
}
