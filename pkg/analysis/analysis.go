package analysis

import (
	"sort"
	"sync"
)

// PollutionState tracks a candidate's tamper-check status across the two
// probing phases.
type PollutionState int

const (
	// Unverified means the candidate never qualified for verification, or
	// the verification phase was skipped.
	Unverified PollutionState = iota
	// PendingVerification is the interim state set by the benchmark phase.
	// It must never survive into the final report.
	PendingVerification
	// Clean means all verification rounds returned addresses owned by the
	// expected organization.
	Clean
	// Polluted means at least one baseline address or verification round
	// failed the ownership check.
	Polluted
)

// String representation for PollutionState, used as the report label.
func (s PollutionState) String() string {
	switch s {
	case PendingVerification:
		return "pending verification"
	case Clean:
		return "clean"
	case Polluted:
		return "polluted"
	default:
		return "not tested"
	}
}

// sortRank orders states for ranking: clean candidates ahead of the rest.
func (s PollutionState) sortRank() int {
	if s == Clean {
		return 0
	}
	return 1
}

// CandidateResult holds the benchmark aggregate for a single candidate
// nameserver. It is created once when the candidate's benchmark run
// completes; only the Pollution field is mutated afterwards, by the
// verification phase.
type CandidateResult struct {
	Candidate   string
	Attempts    int
	Successes   int
	SuccessRate float64

	// Latency metrics over successful queries only, in milliseconds.
	AvgLatencyMs float64
	MinLatencyMs float64
	MaxLatencyMs float64

	Pollution PollutionState

	// PrimaryAddresses are the addresses resolved for the first test
	// domain, kept as the verification baseline. Empty when that query
	// failed.
	PrimaryAddresses []string
}

// BenchmarkResults collects candidate records as workers complete them. It
// is the only mutable structure shared across workers, so appends are
// serialized here.
type BenchmarkResults struct {
	mu      sync.Mutex
	records []*CandidateResult
}

// NewBenchmarkResults creates an empty, ready-to-append collection.
func NewBenchmarkResults() *BenchmarkResults {
	return &BenchmarkResults{}
}

// Append adds a completed candidate record. Safe for concurrent use.
func (br *BenchmarkResults) Append(res *CandidateResult) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.records = append(br.records, res)
}

// Len reports the number of collected records.
func (br *BenchmarkResults) Len() int {
	br.mu.Lock()
	defer br.mu.Unlock()
	return len(br.records)
}

// Pending returns the subset of records awaiting verification.
func (br *BenchmarkResults) Pending() []*CandidateResult {
	br.mu.Lock()
	defer br.mu.Unlock()
	var pending []*CandidateResult
	for _, res := range br.records {
		if res.Pollution == PendingVerification {
			pending = append(pending, res)
		}
	}
	return pending
}

// FinalizePending downgrades any record still marked PendingVerification to
// Unverified. Runs after both phases so the interim state never reaches the
// report.
func (br *BenchmarkResults) FinalizePending() {
	br.mu.Lock()
	defer br.mu.Unlock()
	for _, res := range br.records {
		if res.Pollution == PendingVerification {
			res.Pollution = Unverified
		}
	}
}

// Sorted returns the records ranked by success rate (descending), then
// average latency (ascending), then pollution state with clean candidates
// first.
func (br *BenchmarkResults) Sorted() []*CandidateResult {
	br.mu.Lock()
	sorted := make([]*CandidateResult, len(br.records))
	copy(sorted, br.records)
	br.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i], sorted[j]
		if ri.SuccessRate != rj.SuccessRate {
			return ri.SuccessRate > rj.SuccessRate
		}
		if ri.AvgLatencyMs != rj.AvgLatencyMs {
			return ri.AvgLatencyMs < rj.AvgLatencyMs
		}
		return ri.Pollution.sortRank() < rj.Pollution.sortRank()
	})
	return sorted
}
