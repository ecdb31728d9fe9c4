// Package dnsquery issues isolated DNS queries against candidate
// nameservers. A client built here talks to exactly one server, ignores any
// system resolver configuration, and holds no answer cache, so every
// exchange reflects that server's live answer.
package dnsquery

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

// Outcome is the result of a single resolution attempt. Query errors of any
// kind (timeout, SERVFAIL, NXDOMAIN, refused connection, empty answer) fold
// into Success=false with the elapsed time preserved; no error value
// crosses this boundary.
type Outcome struct {
	Success   bool
	Latency   time.Duration
	Addresses []string
}

// NewIsolatedClient constructs a non-caching UDP client. The single timeout
// bounds dialing, writing, and reading, so it acts as both the per-attempt
// timeout and the total resolution deadline.
func NewIsolatedClient(timeout time.Duration) *dns.Client {
	return &dns.Client{
		Net:     "udp",
		Timeout: timeout,
	}
}

// exchangeFunc performs the raw message exchange. It is a variable so the
// network hop can be substituted.
var exchangeFunc = func(client *dns.Client, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error) {
	return client.Exchange(m, addr)
}

// QueryFunc is the signature of a single query attempt.
type QueryFunc func(client *dns.Client, server, domain string, qtype uint16) Outcome

// PerformQueryFunc is the query entry point used by the benchmark and
// verification paths. It is a variable so alternative implementations can
// be substituted.
var PerformQueryFunc QueryFunc = Query

// Query resolves domain through the nameserver at server (an IPv4 or IPv6
// address, port 53) and reports the outcome. Latency is wall-clock time
// around the exchange, measured on failure paths too.
func Query(client *dns.Client, server, domain string, qtype uint16) Outcome {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)

	start := time.Now()
	r, _, err := exchangeFunc(client, m, net.JoinHostPort(server, "53"))
	elapsed := time.Since(start)

	if err != nil || r == nil || r.Rcode != dns.RcodeSuccess {
		return Outcome{Latency: elapsed}
	}
	addrs := answerAddresses(r)
	if len(addrs) == 0 {
		return Outcome{Latency: elapsed}
	}
	return Outcome{Success: true, Latency: elapsed, Addresses: addrs}
}

// answerAddresses extracts A and AAAA record data from the answer section,
// preserving answer order.
func answerAddresses(r *dns.Msg) []string {
	var addrs []string
	for _, rr := range r.Answer {
		switch a := rr.(type) {
		case *dns.A:
			addrs = append(addrs, a.A.String())
		case *dns.AAAA:
			addrs = append(addrs, a.AAAA.String())
		}
	}
	return addrs
}
