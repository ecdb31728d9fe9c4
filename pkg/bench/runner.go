package bench

import (
	"time"

	"github.com/miekg/dns"
	"github.com/montanaflynn/stats"

	"github.com/dnspick/dnspick/pkg/analysis"
	"github.com/dnspick/dnspick/pkg/dnsquery"
)

// pendingThreshold is the success rate a candidate must exceed to qualify
// for pollution verification.
const pendingThreshold = 0.4

// clientKey identifies a cached client within one worker.
type clientKey struct {
	server  string
	timeout time.Duration
}

// Runner benchmarks one candidate at a time. Each worker owns exactly one
// Runner, so the client cache is never shared; it is keyed by (address,
// timeout) and discarded with the worker when the pool drains.
type Runner struct {
	Timeout             time.Duration
	MinPlausibleLatency time.Duration

	clients map[clientKey]*dns.Client
}

// NewRunner returns a runner with an empty per-worker client cache.
func NewRunner(timeout, minPlausibleLatency time.Duration) *Runner {
	return &Runner{
		Timeout:             timeout,
		MinPlausibleLatency: minPlausibleLatency,
		clients:             make(map[clientKey]*dns.Client),
	}
}

// client returns the cached isolated client for server, constructing it on
// first use. Reuse is safe here because the client holds no answer cache;
// the uncached guarantee, not object lifetime, is what pollution detection
// relies on.
func (r *Runner) client(server string) *dns.Client {
	key := clientKey{server: server, timeout: r.Timeout}
	c, ok := r.clients[key]
	if !ok {
		c = dnsquery.NewIsolatedClient(r.Timeout)
		r.clients[key] = c
	}
	return c
}

// Run queries every test domain, in order, through the candidate and
// aggregates the results. It returns nil when the candidate is
// disqualified: any answer (success or failure) faster than the
// plausibility floor, or zero successful queries overall. Disqualified
// candidates contribute no record at all.
func (r *Runner) Run(candidate string, domains []string, qtype uint16) *analysis.CandidateResult {
	var (
		attempts  int
		successes int
		latencies []float64
		primary   []string
	)

	for i, domain := range domains {
		attempts++
		outcome := dnsquery.PerformQueryFunc(r.client(candidate), candidate, domain, qtype)
		if outcome.Latency < r.MinPlausibleLatency {
			// Too fast to have crossed the network: a hijacked or
			// locally synthesized answer. Drop the candidate.
			return nil
		}
		if i == 0 {
			primary = outcome.Addresses
		}
		if outcome.Success {
			successes++
			latencies = append(latencies, float64(outcome.Latency.Microseconds())/1000.0)
		}
	}

	if attempts == 0 || len(latencies) == 0 {
		return nil
	}

	res := &analysis.CandidateResult{
		Candidate:        candidate,
		Attempts:         attempts,
		Successes:        successes,
		SuccessRate:      float64(successes) / float64(attempts),
		Pollution:        analysis.Unverified,
		PrimaryAddresses: primary,
	}
	res.AvgLatencyMs, _ = stats.Mean(latencies)
	res.MinLatencyMs, _ = stats.Min(latencies)
	res.MaxLatencyMs, _ = stats.Max(latencies)

	if res.SuccessRate > pendingThreshold {
		res.Pollution = analysis.PendingVerification
	}
	return res
}
