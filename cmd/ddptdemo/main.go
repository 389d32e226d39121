// Command ddptdemo drives the deferred-execution runtime through a small
// fixed pipeline — arange, full, add, neg — once per iteration, and reports
// how many modules the JIT compiled once all iterations are done. It exists to exercise pkg/runtime and pkg/ops
// end to end the way gomlx's examples/*/demo commands exercise a model:
// flags in, a progress bar during the run, a summary on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/ddptensor/ddpt/pkg/dtype"
	"github.com/ddptensor/ddpt/pkg/future"
	"github.com/ddptensor/ddpt/pkg/jit"
	"github.com/ddptensor/ddpt/pkg/ops"
	"github.com/ddptensor/ddpt/pkg/runtime"
)

var (
	flagIterations = flag.Int("iterations", 20, "Number of arange+full+add+neg batches to run.")
	flagSize       = flag.Int("size", 1024, "Length of the rank-1 arrays used each iteration.")
	flagDistribute = flag.Bool("distribute", false, "Run arrays under a distributed team instead of a local one.")
	flagFromEnv    = flag.Bool("from_env", false, "Build the JIT config from DDPT_* environment variables instead of -opt_level/-use_cache.")
	flagOptLevel   = flag.Int("opt_level", 3, "JIT optimization level (0-3), ignored with -from_env.")
	flagUseCache   = flag.Bool("use_cache", true, "Cache compiled modules by canonical IR text, ignored with -from_env.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	err := exceptions.TryCatch[error](func() {
		cfg := jit.Config{OptLevel: *flagOptLevel, UseCache: *flagUseCache}
		if *flagFromEnv {
			cfg = must.M1(jit.ConfigFromEnv())
		}
		rt := runtime.NewWithConfig(cfg)
		defer rt.Finalize()

		team := future.Team{}
		if *flagDistribute {
			team = future.NewTeam()
			klog.Infof("running under distributed team %s", team)
		}

		bar := progressbar.NewOptions(*flagIterations,
			progressbar.OptionSetDescription("ddptdemo"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("batches"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)

		start := time.Now()
		var last future.Future
		for i := 0; i < *flagIterations; i++ {
			a := ops.Arange(rt, 0, float64(*flagSize), 1, dtype.Float32, team)
			b := ops.Full(rt, []int64{int64(*flagSize)}, float64(i), dtype.Float32, team)
			sum := ops.Add(rt, a, b)
			neg := ops.Neg(rt, sum)
			ops.Drop(rt, a)
			ops.Drop(rt, b)
			ops.Drop(rt, sum)
			ops.RunBarrier(rt)
			last = neg
			must.M(bar.Add(1))
		}
		fmt.Println()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		arr := must.M1(last.Get(ctx))
		klog.Infof("last batch result: shape=%v, %d compile(s) in %s", arr.Shape(), rt.Engine.BuildCount(), time.Since(start))
	})
	if err != nil {
		klog.Errorf("ddptdemo failed:\n%+v", err)
	}
}
