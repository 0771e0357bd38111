// Command bench times repeated global-termination rounds over the in-process
// substrate and exposes optional pprof/Prometheus endpoints.
package main

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof/* handlers for the --pprof listener
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/NirjharDeb/treedone/config"
	pmet "github.com/NirjharDeb/treedone/metrics/prom"
	"github.com/NirjharDeb/treedone/pgas"
	"github.com/NirjharDeb/treedone/pgas/inproc"
	"github.com/NirjharDeb/treedone/termination"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type benchFlags struct {
	pes     int
	group   int
	branch  int
	variant string
	exit    string
	iters   int
	warmup  int
	jitter  time.Duration
	debug   bool

	pprofAddr   string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	// Environment bindings seed the defaults; flags override.
	env := config.FromEnv()
	f := benchFlags{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark global termination detection rounds",
		Long: `bench runs repeated global-termination rounds over an in-process
PGAS world (one goroutine per PE) and reports the average time per round.

Protocol state is single-shot, so every round plans, allocates, and detects
from scratch; jitter staggers each PE's completion to exercise the
non-collective entry of the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(f)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.pes, "pes", 2*runtime.GOMAXPROCS(0), "number of PEs")
	fl.IntVar(&f.group, "group", env.LeafGroupSize, "leaf group size G")
	fl.IntVar(&f.branch, "branch", env.BranchFactor, "branching factor K")
	fl.StringVar(&f.variant, "variant", env.Variant.String(), "protocol variant: star | hstar | tree | dynamic")
	fl.StringVar(&f.exit, "exit", env.Exit.String(), "exit policy: barrier | rootlast | global")
	fl.IntVar(&f.iters, "iters", 200, "timed rounds")
	fl.IntVar(&f.warmup, "warmup", 20, "untimed warmup rounds")
	fl.DurationVar(&f.jitter, "jitter", 0, "max per-PE stagger before publishing")
	fl.BoolVar(&f.debug, "debug", env.Debug, "per-PE protocol logging")
	fl.StringVar(&f.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	fl.StringVar(&f.metricsAddr, "http", "", "serve Prometheus metrics at addr; empty = disabled")
	return cmd
}

func runBench(f benchFlags) error {
	variant, err := termination.ParseVariant(f.variant)
	if err != nil {
		return fmt.Errorf("--variant %q: %w", f.variant, err)
	}
	exit, err := termination.ParseExitPolicy(f.exit)
	if err != nil {
		return fmt.Errorf("--exit %q: %w", f.exit, err)
	}
	if f.pes < 1 || f.iters < 1 || f.warmup < 0 {
		return fmt.Errorf("need --pes >= 1, --iters >= 1, --warmup >= 0")
	}

	opt := termination.Options{
		LeafGroupSize: f.group,
		BranchFactor:  f.branch,
		Variant:       variant,
		Exit:          exit,
		Debug:         f.debug,
	}

	if f.pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", f.pprofAddr)
			log.Println(http.ListenAndServe(f.pprofAddr, nil))
		}()
	}
	if f.metricsAddr != "" {
		opt.Metrics = pmet.New(nil, "treedone", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", f.metricsAddr)
			log.Println(http.ListenAndServe(f.metricsAddr, nil))
		}()
	}

	fmt.Printf("pes=%d group=%d branch=%d variant=%s exit=%s iters=%d warmup=%d jitter=%v\n",
		f.pes, f.group, f.branch, variant, exit, f.iters, f.warmup, f.jitter)

	var total time.Duration
	var lastAgg *termination.Aggregate
	for round := 0; round < f.warmup+f.iters; round++ {
		dt, agg, err := runRound(f.pes, opt, f.jitter, round)
		if err != nil {
			return err
		}
		if round >= f.warmup {
			total += dt
			if agg != nil {
				lastAgg = agg
			}
		}
	}

	avg := total / time.Duration(f.iters)
	fmt.Printf("\nResults (avg per round, root timing):\n")
	fmt.Printf("  %s termination: %.2f us/round\n", variant, float64(avg.Nanoseconds())/1e3)
	if lastAgg != nil {
		fmt.Printf("  last round elapsed: min=%.3f ms avg=%.3f ms max=%.3f ms across %d PEs\n",
			lastAgg.MinMS, lastAgg.MeanMS, lastAgg.MaxMS, lastAgg.NPes)
	}
	return nil
}

// runRound runs one full detection over a fresh world. State is single-shot
// per run, so each round re-plans and re-allocates; the timed region starts
// at the post-allocation barrier on the root.
func runRound(pes int, opt termination.Options, jitter time.Duration, round int) (time.Duration, *termination.Aggregate, error) {
	world, err := inproc.New(pes)
	if err != nil {
		return 0, nil, err
	}

	var t0 time.Time
	var dt time.Duration
	var agg *termination.Aggregate

	status, err := world.Run(func(pe pgas.PE) error {
		eng, err := termination.New(pe, opt)
		if err != nil {
			return err
		}
		root := pe.Me() == eng.Topology().Root()
		if root {
			t0 = time.Now()
		}
		if jitter > 0 {
			// Deterministic per-PE stagger; no shared RNG, no collectives.
			n := (uint64(pe.Me())*2654435761 + uint64(round)*1315423911) % uint64(jitter)
			time.Sleep(time.Duration(n))
		}
		a, err := eng.Detect()
		if err != nil {
			return err
		}
		if root {
			dt = time.Since(t0)
			agg = a
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if status != 0 {
		return 0, nil, fmt.Errorf("bench: job exited with status %d", status)
	}
	return dt, agg, nil
}
