package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dnspick/dnspick/pkg/analysis"
	"github.com/dnspick/dnspick/pkg/config"
)

// GetWriter returns the destination writer for results: the given fallback
// (normally stdout) or a freshly created file. The cleanup function closes
// the file when one was opened.
func GetWriter(outputFile string, fallback io.Writer) (io.Writer, func(), error) {
	if outputFile == "" {
		return fallback, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file %s: %w", outputFile, err)
	}
	return f, func() { f.Close() }, nil
}

// WriteResults renders the ranked results in the configured format.
func WriteResults(writer io.Writer, results *analysis.BenchmarkResults, cfg *config.Config) error {
	switch strings.ToLower(cfg.OutputFormat) {
	case "console":
		PrintConsoleResults(writer, results, cfg)
		return nil
	case "csv":
		return WriteCSVResults(writer, results)
	case "json":
		return WriteJSONResults(writer, results)
	default:
		return fmt.Errorf("unknown output format %q", cfg.OutputFormat)
	}
}

// PrintConsoleResults formats the ranked results as an aligned table,
// followed by a summary when writing to stdout.
func PrintConsoleResults(writer io.Writer, results *analysis.BenchmarkResults, cfg *config.Config) {
	sorted := results.Sorted()

	w := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	header := []string{"DNS Server", "Success", "Avg", "Min", "Max", "Pollution"}
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	_, _ = fmt.Fprintln(w, strings.Repeat("-\t", len(header)))
	for _, res := range sorted {
		row := []string{
			res.Candidate,
			formatPercent(res.SuccessRate),
			formatMillis(res.AvgLatencyMs),
			formatMillis(res.MinLatencyMs),
			formatMillis(res.MaxLatencyMs),
			res.Pollution.String(),
		}
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()

	if writer == os.Stdout {
		printSummary(writer, sorted, cfg)
	}
}

// WriteCSVResults writes the ranked results in CSV form.
func WriteCSVResults(writer io.Writer, results *analysis.BenchmarkResults) error {
	csvWriter := csv.NewWriter(writer)
	defer csvWriter.Flush()

	header := []string{
		"Candidate", "SuccessRate",
		"AvgLatency(ms)", "MinLatency(ms)", "MaxLatency(ms)",
		"Attempts", "Successes", "Pollution",
	}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, res := range results.Sorted() {
		row := []string{
			res.Candidate,
			strconv.FormatFloat(res.SuccessRate, 'f', 3, 64),
			strconv.FormatFloat(res.AvgLatencyMs, 'f', 3, 64),
			strconv.FormatFloat(res.MinLatencyMs, 'f', 3, 64),
			strconv.FormatFloat(res.MaxLatencyMs, 'f', 3, 64),
			strconv.Itoa(res.Attempts),
			strconv.Itoa(res.Successes),
			res.Pollution.String(),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", res.Candidate, err)
		}
	}
	return csvWriter.Error()
}

// JSONCandidateResult defines the JSON serialization of one record.
type JSONCandidateResult struct {
	Candidate    string  `json:"candidate"`
	SuccessRate  float64 `json:"successRate"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	MinLatencyMs float64 `json:"minLatencyMs"`
	MaxLatencyMs float64 `json:"maxLatencyMs"`
	Attempts     int     `json:"attempts"`
	Successes    int     `json:"successes"`
	Pollution    string  `json:"pollution"`
}

// WriteJSONResults writes the ranked results as a JSON array.
func WriteJSONResults(writer io.Writer, results *analysis.BenchmarkResults) error {
	sorted := results.Sorted()
	out := make([]JSONCandidateResult, 0, len(sorted))
	for _, res := range sorted {
		out = append(out, JSONCandidateResult{
			Candidate:    res.Candidate,
			SuccessRate:  res.SuccessRate,
			AvgLatencyMs: res.AvgLatencyMs,
			MinLatencyMs: res.MinLatencyMs,
			MaxLatencyMs: res.MaxLatencyMs,
			Attempts:     res.Attempts,
			Successes:    res.Successes,
			Pollution:    res.Pollution.String(),
		})
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON results: %w", err)
	}
	return nil
}

// printSummary names the top-ranked candidate.
func printSummary(writer io.Writer, sorted []*analysis.CandidateResult, cfg *config.Config) {
	if len(sorted) == 0 {
		return
	}
	best := sorted[0]
	_, _ = fmt.Fprintln(writer, "\n--- Conclusion ---")
	_, _ = fmt.Fprintf(writer, "Best candidate: %s (%s success, %s avg, %s)\n",
		best.Candidate, formatPercent(best.SuccessRate), formatMillis(best.AvgLatencyMs), best.Pollution)
	if cfg.CheckPollution {
		clean := 0
		for _, res := range sorted {
			if res.Pollution == analysis.Clean {
				clean++
			}
		}
		_, _ = fmt.Fprintf(writer, "Clean candidates: %d of %d\n", clean, len(sorted))
	}
	_, _ = fmt.Fprintln(writer, "Note: Results are based on a snapshot in time and your current network conditions.")
}

// formatPercent renders a 0..1 rate as a percentage with one decimal.
func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100.0)
}

// formatMillis renders a millisecond value with one decimal.
func formatMillis(ms float64) string {
	return fmt.Sprintf("%.1f ms", ms)
}
