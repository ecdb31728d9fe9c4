package pollution

import (
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnspick/dnspick/pkg/analysis"
	"github.com/dnspick/dnspick/pkg/dnsquery"
)

// stubClassifier classifies by membership in a fixed set and records every
// address it was asked about.
type stubClassifier struct {
	mu      sync.Mutex
	target  map[string]bool
	queried []string
}

func newStubClassifier(targets ...string) *stubClassifier {
	c := &stubClassifier{target: make(map[string]bool)}
	for _, ip := range targets {
		c.target[ip] = true
	}
	return c
}

func (c *stubClassifier) IsTargetOrg(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queried = append(c.queried, ip)
	return c.target[ip]
}

// mockRounds replaces the query path with a scripted sequence of round
// outcomes and counts how many rounds were issued.
func mockRounds(t *testing.T, counter *int, rounds []dnsquery.Outcome) {
	t.Helper()
	original := dnsquery.PerformQueryFunc
	t.Cleanup(func() { dnsquery.PerformQueryFunc = original })

	dnsquery.PerformQueryFunc = func(client *dns.Client, server, domain string, qtype uint16) dnsquery.Outcome {
		require.Less(t, *counter, len(rounds), "more rounds issued than scripted")
		out := rounds[*counter]
		*counter++
		return out
	}
}

func cleanOutcome(addrs ...string) dnsquery.Outcome {
	return dnsquery.Outcome{Success: true, Latency: 30 * time.Millisecond, Addresses: addrs}
}

func TestVerify_EmptyBaselineIsPollutedWithoutRounds(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, nil)

	v := NewVerifier(newStubClassifier("8.8.8.8"), "google.com", time.Second)
	verdict := v.Verify("1.2.3.4", nil)

	assert.Equal(t, analysis.Polluted, verdict)
	assert.Zero(t, calls, "no rounds may be spent on an empty baseline")
}

func TestVerify_BaselineFailureShortCircuits(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, nil)

	classifier := newStubClassifier("8.8.8.8")
	v := NewVerifier(classifier, "google.com", time.Second)
	verdict := v.Verify("1.2.3.4", []string{"8.8.8.8", "203.0.113.7"})

	assert.Equal(t, analysis.Polluted, verdict)
	assert.Zero(t, calls)
	assert.Equal(t, []string{"8.8.8.8", "203.0.113.7"}, classifier.queried)
}

func TestVerify_BaselineSamplesAtMostThreeAddresses(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, []dnsquery.Outcome{
		cleanOutcome("8.8.8.8"), cleanOutcome("8.8.8.8"), cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8"), cleanOutcome("8.8.8.8"),
	})

	classifier := newStubClassifier("8.8.8.8", "8.8.4.4", "8.8.8.4")
	v := NewVerifier(classifier, "google.com", time.Second)
	// Fourth baseline address would fail classification, but only the
	// first three are sampled.
	verdict := v.Verify("1.2.3.4", []string{"8.8.8.8", "8.8.4.4", "8.8.8.4", "203.0.113.7"})

	assert.Equal(t, analysis.Clean, verdict)
	assert.NotContains(t, classifier.queried, "203.0.113.7")
}

func TestVerify_AllRoundsPassIsClean(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, []dnsquery.Outcome{
		cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8", "8.8.4.4"),
		cleanOutcome("8.8.4.4"),
		cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8"),
	})

	v := NewVerifier(newStubClassifier("8.8.8.8", "8.8.4.4"), "google.com", time.Second)
	verdict := v.Verify("1.2.3.4", []string{"8.8.8.8"})

	assert.Equal(t, analysis.Clean, verdict)
	assert.Equal(t, 5, calls, "clean verdict requires exactly five rounds")
}

func TestVerify_FailingRoundSkipsRemainingRounds(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, []dnsquery.Outcome{
		cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8", "203.0.113.7"), // round 3 returns a foreign address
		cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8"),
	})

	v := NewVerifier(newStubClassifier("8.8.8.8"), "google.com", time.Second)
	verdict := v.Verify("1.2.3.4", []string{"8.8.8.8"})

	assert.Equal(t, analysis.Polluted, verdict)
	assert.Equal(t, 3, calls, "rounds 4 and 5 must never be invoked")
}

func TestVerify_RoundQueryFailureIsPolluted(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, []dnsquery.Outcome{
		cleanOutcome("8.8.8.8"),
		{Success: false, Latency: time.Second},
	})

	v := NewVerifier(newStubClassifier("8.8.8.8"), "google.com", time.Second)
	verdict := v.Verify("1.2.3.4", []string{"8.8.8.8"})

	assert.Equal(t, analysis.Polluted, verdict)
	assert.Equal(t, 2, calls)
}

func TestVerify_DegradedClassifierIsAlwaysPolluted(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, nil)

	// A degraded classifier answers false for everything.
	v := NewVerifier(newStubClassifier(), "google.com", time.Second)
	verdict := v.Verify("1.2.3.4", []string{"8.8.8.8"})

	assert.Equal(t, analysis.Polluted, verdict)
	assert.Zero(t, calls)
}

func TestVerify_NeverReturnsInterimStates(t *testing.T) {
	calls := 0
	mockRounds(t, &calls, []dnsquery.Outcome{
		cleanOutcome("8.8.8.8"), cleanOutcome("8.8.8.8"), cleanOutcome("8.8.8.8"),
		cleanOutcome("8.8.8.8"), cleanOutcome("8.8.8.8"),
	})

	v := NewVerifier(newStubClassifier("8.8.8.8"), "google.com", time.Second)
	for _, baseline := range [][]string{nil, {"203.0.113.7"}, {"8.8.8.8"}} {
		verdict := v.Verify("1.2.3.4", baseline)
		assert.Contains(t, []analysis.PollutionState{analysis.Clean, analysis.Polluted}, verdict)
	}
}
