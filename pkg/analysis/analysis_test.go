package analysis

import (
	"reflect"
	"sync"
	"testing"
)

func TestPollutionStateString(t *testing.T) {
	tests := []struct {
		name  string
		state PollutionState
		want  string
	}{
		{"unverified", Unverified, "not tested"},
		{"pending", PendingVerification, "pending verification"},
		{"clean", Clean, "clean"},
		{"polluted", Polluted, "polluted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBenchmarkResults_AppendConcurrently(t *testing.T) {
	br := NewBenchmarkResults()
	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			br.Append(&CandidateResult{Candidate: "1.1.1.1"})
		}()
	}
	wg.Wait()
	if got := br.Len(); got != n {
		t.Errorf("Len() = %d, want %d", got, n)
	}
}

func TestBenchmarkResults_Pending(t *testing.T) {
	br := NewBenchmarkResults()
	br.Append(&CandidateResult{Candidate: "1.1.1.1", Pollution: PendingVerification})
	br.Append(&CandidateResult{Candidate: "2.2.2.2", Pollution: Unverified})
	br.Append(&CandidateResult{Candidate: "3.3.3.3", Pollution: PendingVerification})

	pending := br.Pending()
	if len(pending) != 2 {
		t.Fatalf("Pending() returned %d records, want 2", len(pending))
	}
	for _, res := range pending {
		if res.Pollution != PendingVerification {
			t.Errorf("Pending() returned record in state %v", res.Pollution)
		}
	}
}

func TestBenchmarkResults_FinalizePending(t *testing.T) {
	br := NewBenchmarkResults()
	br.Append(&CandidateResult{Candidate: "1.1.1.1", Pollution: PendingVerification})
	br.Append(&CandidateResult{Candidate: "2.2.2.2", Pollution: Clean})
	br.Append(&CandidateResult{Candidate: "3.3.3.3", Pollution: Polluted})

	br.FinalizePending()

	for _, res := range br.Sorted() {
		if res.Pollution == PendingVerification {
			t.Errorf("record %s still pending after finalize", res.Candidate)
		}
	}
	for _, res := range br.Sorted() {
		switch res.Candidate {
		case "1.1.1.1":
			if res.Pollution != Unverified {
				t.Errorf("finalized pending record should be Unverified, got %v", res.Pollution)
			}
		case "2.2.2.2":
			if res.Pollution != Clean {
				t.Errorf("clean record must not change, got %v", res.Pollution)
			}
		case "3.3.3.3":
			if res.Pollution != Polluted {
				t.Errorf("polluted record must not change, got %v", res.Pollution)
			}
		}
	}
}

func TestBenchmarkResults_SortedRanking(t *testing.T) {
	tests := []struct {
		name    string
		records []*CandidateResult
		want    []string
	}{
		{
			"success rate dominates",
			[]*CandidateResult{
				{Candidate: "slow-reliable", SuccessRate: 1.0, AvgLatencyMs: 200},
				{Candidate: "fast-flaky", SuccessRate: 0.5, AvgLatencyMs: 10},
			},
			[]string{"slow-reliable", "fast-flaky"},
		},
		{
			"latency breaks rate ties",
			[]*CandidateResult{
				{Candidate: "slower", SuccessRate: 1.0, AvgLatencyMs: 80},
				{Candidate: "faster", SuccessRate: 1.0, AvgLatencyMs: 20},
			},
			[]string{"faster", "slower"},
		},
		{
			"clean breaks full ties",
			[]*CandidateResult{
				{Candidate: "polluted", SuccessRate: 1.0, AvgLatencyMs: 20, Pollution: Polluted},
				{Candidate: "clean", SuccessRate: 1.0, AvgLatencyMs: 20, Pollution: Clean},
				{Candidate: "untested", SuccessRate: 1.0, AvgLatencyMs: 20, Pollution: Unverified},
			},
			[]string{"clean", "polluted", "untested"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := NewBenchmarkResults()
			for _, res := range tt.records {
				br.Append(res)
			}
			var got []string
			for _, res := range br.Sorted() {
				got = append(got, res.Candidate)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sorted() order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBenchmarkResults_SortedDoesNotMutateCollection(t *testing.T) {
	br := NewBenchmarkResults()
	br.Append(&CandidateResult{Candidate: "b", SuccessRate: 0.5})
	br.Append(&CandidateResult{Candidate: "a", SuccessRate: 1.0})

	_ = br.Sorted()
	_ = br.Sorted()
	if got := br.Len(); got != 2 {
		t.Errorf("Len() = %d after sorting, want 2", got)
	}
}
