package config

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultListURL is the public nameserver list used when no candidate file
// is given.
const DefaultListURL = "https://public-dns.info/nameservers.txt"

// listFetchTimeout bounds the candidate list download.
const listFetchTimeout = 15 * time.Second

// DefaultTestDomains is the canonical probe target set. The first domain is
// the primary domain: its resolved addresses seed the pollution baseline.
var DefaultTestDomains = []string{
	"google.com", "facebook.com", "amazon.com", "microsoft.com",
	"apple.com", "cloudflare.com", "alibaba.com", "baidu.com",
	"tencent.com", "netflix.com",
}

// Config holds the application configuration derived from flags and the
// candidate list source.
type Config struct {
	ListURL     string
	ListFile    string
	Mode        string // "4", "6", or "46"
	Concurrency int
	NumDomains  int
	TestDomains []string

	Timeout             time.Duration
	MinPlausibleLatency time.Duration
	RateLimit           int

	CheckPollution bool
	MMDBPath       string

	OutputFile   string
	OutputFormat string
	Verbose      bool
	ShowVersion  bool

	// Candidates is the validated, family-filtered nameserver list.
	Candidates []string
}

// LoadConfig parses flags, acquires the candidate list, and returns the
// final configuration.
func LoadConfig() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ListURL, "url", DefaultListURL, "URL of a plain-text nameserver list (one or more fields per line; first IP field is used)")
	flag.StringVar(&cfg.ListFile, "f", "", "Path to a local nameserver list file (overrides -url)")
	flag.StringVar(&cfg.Mode, "mode", "4", "Address family: 4 (IPv4), 6 (IPv6), or 46 (dual stack)")
	flag.IntVar(&cfg.Concurrency, "c", 64, "Benchmark worker pool width (1-4096)")
	flag.IntVar(&cfg.NumDomains, "domains", 3, "Number of test domains from the default set (1-10)")
	flag.DurationVar(&cfg.Timeout, "t", 300*time.Millisecond, "Per-query timeout")
	flag.DurationVar(&cfg.MinPlausibleLatency, "min-latency", 10*time.Millisecond, "Plausibility floor; any faster answer disqualifies the candidate")
	flag.IntVar(&cfg.RateLimit, "rate", 0, "Max benchmark queries per second (0 for unlimited)")
	flag.BoolVar(&cfg.CheckPollution, "check", true, "Run the pollution verification phase")
	flag.StringVar(&cfg.MMDBPath, "mmdb", "ip.mmdb", "Path to the IP ownership database (missing file disables classification)")
	flag.StringVar(&cfg.OutputFile, "o", "", "Path to output file (default stdout)")
	flag.StringVar(&cfg.OutputFormat, "format", "console", "Output format (console, csv, json)")
	flag.BoolVar(&cfg.Verbose, "v", false, "Enable verbose output")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	flag.Parse()

	if cfg.ShowVersion {
		return cfg
	}

	cfg.Concurrency = clamp(cfg.Concurrency, 1, 4096)
	cfg.NumDomains = clamp(cfg.NumDomains, 1, len(DefaultTestDomains))
	cfg.TestDomains = DefaultTestDomains[:cfg.NumDomains]

	if cfg.Mode != "4" && cfg.Mode != "6" && cfg.Mode != "46" {
		fmt.Fprintf(os.Stderr, "Error: invalid -mode %q (want 4, 6, or 46)\n", cfg.Mode)
		os.Exit(1)
	}

	candidates, err := loadCandidates(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading candidate list: %v\n", err)
		os.Exit(1)
	}
	cfg.Candidates = filterByFamily(candidates, cfg.Mode)
	if len(cfg.Candidates) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no candidates left after %s-mode filtering.\n", cfg.Mode)
		os.Exit(1)
	}

	if cfg.Verbose {
		printVerboseConfig(cfg)
	}
	return cfg
}

// loadCandidates reads the candidate list from the configured file or URL.
func loadCandidates(cfg *Config) ([]string, error) {
	if cfg.ListFile != "" {
		return readCandidateFile(cfg.ListFile)
	}
	return fetchCandidateList(cfg.ListURL)
}

// printVerboseConfig prints the effective configuration.
func printVerboseConfig(cfg *Config) {
	fmt.Println("--- Configuration ---")
	if cfg.ListFile != "" {
		fmt.Printf("Candidate File:    %s\n", cfg.ListFile)
	} else {
		fmt.Printf("Candidate URL:     %s\n", cfg.ListURL)
	}
	fmt.Printf("Candidates:        %d\n", len(cfg.Candidates))
	fmt.Printf("Address Family:    %s\n", cfg.Mode)
	fmt.Printf("Concurrency:       %d\n", cfg.Concurrency)
	fmt.Printf("Test Domains:      %v\n", cfg.TestDomains)
	fmt.Printf("Timeout:           %v\n", cfg.Timeout)
	fmt.Printf("Plausibility Floor:%v\n", cfg.MinPlausibleLatency)
	fmt.Printf("Rate Limit:        %d qps\n", cfg.RateLimit)
	fmt.Printf("Pollution Check:   %t\n", cfg.CheckPollution)
	fmt.Printf("Ownership DB:      %s\n", cfg.MMDBPath)
	fmt.Printf("Output Format:     %s\n", cfg.OutputFormat)
	if cfg.OutputFile != "" {
		fmt.Printf("Output File:       %s\n", cfg.OutputFile)
	}
	fmt.Println("---------------------")
}

// QueryTypeFor selects the record type for a candidate: A unless the run is
// IPv6-only, or dual stack and the candidate itself is an IPv6 address.
func (cfg *Config) QueryTypeFor(candidate string) uint16 {
	switch cfg.Mode {
	case "6":
		return dns.TypeAAAA
	case "46":
		ip := net.ParseIP(candidate)
		if ip != nil && ip.To4() == nil {
			return dns.TypeAAAA
		}
	}
	return dns.TypeA
}

// fetchCandidateList downloads and parses a plain-text nameserver list.
func fetchCandidateList(url string) ([]string, error) {
	client := &http.Client{Timeout: listFetchTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}
	return parseCandidateList(resp.Body)
}

// readCandidateFile parses a local nameserver list file.
func readCandidateFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseCandidateList(file)
}

// parseCandidateList extracts one candidate address per line: the first
// whitespace-separated field that parses as an IP. Lines without one are
// skipped, as are blanks and comments.
func parseCandidateList(r io.Reader) ([]string, error) {
	var candidates []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if net.ParseIP(field) != nil {
				candidates = append(candidates, field)
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no nameserver addresses found")
	}
	return candidates, nil
}

// filterByFamily keeps the candidates matching the address-family mode.
func filterByFamily(candidates []string, mode string) []string {
	if mode == "46" {
		return candidates
	}
	var filtered []string
	for _, candidate := range candidates {
		ip := net.ParseIP(candidate)
		if ip == nil {
			continue
		}
		isV4 := ip.To4() != nil
		if (mode == "4") == isV4 {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
