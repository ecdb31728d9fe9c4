package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/schollz/progressbar/v3"

	"github.com/dnspick/dnspick/pkg/bench"
	"github.com/dnspick/dnspick/pkg/config"
	"github.com/dnspick/dnspick/pkg/geoip"
	"github.com/dnspick/dnspick/pkg/output"
)

func run(stdout io.Writer) int {
	log.SetHandler(cli.New(os.Stderr))

	cfg := config.LoadConfig()
	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "dnspick version %s\n", version)
		return 0
	}
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	classifier := geoip.NewClassifier(cfg.MMDBPath)
	defer classifier.Close()

	fmt.Fprintln(stdout, "dnspick", version)
	fmt.Fprintf(stdout, "Probing %d candidates across %d domains...\n", len(cfg.Candidates), len(cfg.TestDomains))

	benchmarker := bench.NewBenchmarker(cfg, classifier)
	attachProgress(benchmarker)

	results := benchmarker.Run()
	fmt.Fprintln(stdout, "---")

	if results.Len() == 0 {
		log.Error("no usable results: every candidate failed or was disqualified")
		return 1
	}

	writer, cleanup, err := output.GetWriter(cfg.OutputFile, stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cleanup()

	if cfg.OutputFile != "" {
		fmt.Fprintf(stdout, "Writing results to %s...\n", cfg.OutputFile)
	}
	if err := output.WriteResults(writer, results, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		return 1
	}
	if cfg.OutputFile != "" {
		fmt.Fprintln(stdout, "Done.")
	}
	return 0
}

// attachProgress wires a per-phase progress bar to the orchestrator hooks.
// The bar variable is written only from OnPhaseStart, which runs before the
// phase's workers exist, and read from OnCandidateDone afterwards.
func attachProgress(b *bench.Benchmarker) {
	var bar *progressbar.ProgressBar
	b.OnPhaseStart = func(phase bench.Phase, total int) {
		if bar != nil {
			_ = bar.Finish()
		}
		bar = progressbar.NewOptions64(
			int64(total),
			progressbar.OptionSetDescription(phase.String()),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stdout, "\n")
			}),
			progressbar.OptionSetWriter(os.Stdout),
		)
	}
	b.OnCandidateDone = func(bench.Phase) {
		_ = bar.Add(1)
	}
}
