// Package bench drives the two-phase probing pipeline: benchmark every
// candidate with a wide worker pool, then verify the qualifying subset for
// pollution with a narrower one.
package bench

import (
	"context"
	"sync"

	"github.com/apex/log"
	"golang.org/x/time/rate"

	"github.com/dnspick/dnspick/pkg/analysis"
	"github.com/dnspick/dnspick/pkg/config"
	"github.com/dnspick/dnspick/pkg/pollution"
)

// verifyPoolDivisor narrows the verification pool relative to the
// benchmark pool, reflecting the per-candidate query amplification of the
// five verification rounds.
const verifyPoolDivisor = 4

// Phase identifies which pipeline stage progress hooks refer to.
type Phase int

const (
	PhaseBenchmark Phase = iota
	PhaseVerification
)

// String representation for Phase.
func (p Phase) String() string {
	if p == PhaseVerification {
		return "verifying"
	}
	return "benchmarking"
}

// Benchmarker orchestrates both phases. Candidates travel through a shared
// job channel to plain worker goroutines; results are merged through the
// synchronized collector in analysis.BenchmarkResults. No ordering is
// guaranteed across candidates.
type Benchmarker struct {
	cfg        *config.Config
	classifier pollution.Classifier
	limiter    *rate.Limiter

	// OnPhaseStart and OnCandidateDone let the caller attach a progress
	// display without the pipeline knowing about one.
	OnPhaseStart    func(phase Phase, total int)
	OnCandidateDone func(phase Phase)

	Results *analysis.BenchmarkResults
}

// NewBenchmarker creates a benchmarker for the configured candidate set.
// The classifier is shared read-only across all verification workers.
func NewBenchmarker(cfg *config.Config, classifier pollution.Classifier) *Benchmarker {
	b := &Benchmarker{
		cfg:        cfg,
		classifier: classifier,
		Results:    analysis.NewBenchmarkResults(),
	}
	if cfg.RateLimit > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	return b
}

// Run executes the benchmark phase, then (unless disabled) the verification
// phase, and finalizes any record still pending so the interim state never
// reaches the report.
func (b *Benchmarker) Run() *analysis.BenchmarkResults {
	b.runBenchmarkPhase()
	if b.cfg.CheckPollution {
		b.runVerificationPhase()
	}
	b.Results.FinalizePending()
	return b.Results
}

// runBenchmarkPhase probes every candidate with the full pool width.
func (b *Benchmarker) runBenchmarkPhase() {
	candidates := b.cfg.Candidates
	b.phaseStart(PhaseBenchmark, len(candidates))

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner := NewRunner(b.cfg.Timeout, b.cfg.MinPlausibleLatency)
			for candidate := range jobs {
				b.waitForSlot()
				if res := runner.Run(candidate, b.cfg.TestDomains, b.cfg.QueryTypeFor(candidate)); res != nil {
					b.Results.Append(res)
				}
				b.candidateDone(PhaseBenchmark)
			}
		}()
	}
	for _, candidate := range candidates {
		jobs <- candidate
	}
	close(jobs)
	wg.Wait()

	log.Debugf("benchmark phase done: %d/%d candidates usable", b.Results.Len(), len(candidates))
}

// runVerificationPhase re-checks exactly the pending subset and writes the
// verdict back into each record. Workers never share a record, so no
// further synchronization is needed for the write-back.
func (b *Benchmarker) runVerificationPhase() {
	pending := b.Results.Pending()
	if len(pending) == 0 {
		return
	}
	b.phaseStart(PhaseVerification, len(pending))

	width := b.cfg.Concurrency / verifyPoolDivisor
	if width < 1 {
		width = 1
	}

	jobs := make(chan *analysis.CandidateResult)
	var wg sync.WaitGroup
	for i := 0; i < width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verifier := pollution.NewVerifier(b.classifier, b.cfg.TestDomains[0], b.cfg.Timeout)
			for res := range jobs {
				res.Pollution = verifier.Verify(res.Candidate, res.PrimaryAddresses)
				b.candidateDone(PhaseVerification)
			}
		}()
	}
	for _, res := range pending {
		jobs <- res
	}
	close(jobs)
	wg.Wait()

	log.Debugf("verification phase done: %d candidates checked", len(pending))
}

// waitForSlot blocks until the rate limiter admits another query batch.
func (b *Benchmarker) waitForSlot() {
	if b.limiter != nil {
		_ = b.limiter.Wait(context.Background())
	}
}

func (b *Benchmarker) phaseStart(phase Phase, total int) {
	if b.OnPhaseStart != nil {
		b.OnPhaseStart(phase, total)
	}
}

func (b *Benchmarker) candidateDone(phase Phase) {
	if b.OnCandidateDone != nil {
		b.OnCandidateDone(phase)
	}
}
