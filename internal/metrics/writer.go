package metrics

// Metrics output (CSV/JSON) and summary formatting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tonylturner/cipwire/internal/cip/codes"
)

var csvHeader = []string{"timestamp", "operation", "target", "service", "success", "rtt_ms", "status", "error"}

// Writer streams metrics to a CSV file and/or a JSON-lines file.
type Writer struct {
	csvFile   *os.File
	csvWriter *csv.Writer
	jsonFile  *os.File
	jsonEnc   *json.Encoder
}

// NewWriter opens the outputs. Either path may be empty.
func NewWriter(csvPath, jsonPath string) (*Writer, error) {
	w := &Writer{}

	if csvPath != "" {
		file, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create CSV file: %w", err)
		}
		w.csvFile = file
		w.csvWriter = csv.NewWriter(file)
		if err := w.csvWriter.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.csvWriter.Flush()
	}

	if jsonPath != "" {
		file, err := os.Create(jsonPath)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("create JSON file: %w", err)
		}
		w.jsonFile = file
		w.jsonEnc = json.NewEncoder(file)
	}

	return w, nil
}

// WriteMetric appends m to every open output.
func (w *Writer) WriteMetric(m Metric) error {
	if w.csvWriter != nil {
		record := []string{
			m.Timestamp.Format(time.RFC3339Nano),
			string(m.Operation),
			m.Target,
			m.Service,
			strconv.FormatBool(m.Success),
			formatRTT(m.RTTMs),
			strconv.Itoa(int(m.Status)),
			m.Error,
		}
		if err := w.csvWriter.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			return fmt.Errorf("flush CSV: %w", err)
		}
	}

	if w.jsonEnc != nil {
		if err := w.jsonEnc.Encode(m); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}
	return nil
}

// WriteAll writes every metric held by sink.
func (w *Writer) WriteAll(sink *Sink) error {
	for _, m := range sink.GetMetrics() {
		if err := w.WriteMetric(m); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the outputs.
func (w *Writer) Close() error {
	var errs []error
	if w.csvWriter != nil {
		w.csvWriter.Flush()
	}
	if w.csvFile != nil {
		if err := w.csvFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.jsonFile != nil {
		if err := w.jsonFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close writer: %v", errs)
	}
	return nil
}

// formatRTT formats RTT value for CSV (empty string if 0)
func formatRTT(rtt float64) string {
	if rtt == 0 {
		return ""
	}
	return strconv.FormatFloat(rtt, 'f', 3, 64)
}

// FormatSummary renders a summary for terminal output.
func FormatSummary(summary *Summary) string {
	var b strings.Builder
	if summary.TotalOperations == 0 {
		return "No operations recorded\n"
	}
	pct := func(n int) float64 { return float64(n) / float64(summary.TotalOperations) * 100 }

	fmt.Fprintf(&b, "Total Operations: %d\n", summary.TotalOperations)
	fmt.Fprintf(&b, "Successful: %d (%.1f%%)\n", summary.SuccessfulOps, pct(summary.SuccessfulOps))
	fmt.Fprintf(&b, "Failed: %d (%.1f%%)\n", summary.FailedOps, pct(summary.FailedOps))
	if summary.TimeoutCount > 0 {
		fmt.Fprintf(&b, "Timeouts: %d\n", summary.TimeoutCount)
	}

	if summary.SuccessfulOps > 0 {
		b.WriteString("\nRTT Statistics:\n")
		fmt.Fprintf(&b, "  Min: %.3f ms\n  Max: %.3f ms\n  Avg: %.3f ms\n", summary.MinRTT, summary.MaxRTT, summary.AvgRTT)
		fmt.Fprintf(&b, "  P50: %.3f ms\n  P90: %.3f ms\n  P99: %.3f ms\n", summary.P50RTT, summary.P90RTT, summary.P99RTT)
		if len(summary.RTTBuckets) > 0 {
			fmt.Fprintf(&b, "  Buckets: <1ms=%d 1-5ms=%d 5-10ms=%d 10-50ms=%d 50-100ms=%d 100-500ms=%d >500ms=%d\n",
				summary.RTTBuckets["lt_1ms"],
				summary.RTTBuckets["1_5ms"],
				summary.RTTBuckets["5_10ms"],
				summary.RTTBuckets["10_50ms"],
				summary.RTTBuckets["50_100ms"],
				summary.RTTBuckets["100_500ms"],
				summary.RTTBuckets["gt_500ms"],
			)
		}
	}

	if len(summary.StatusCounts) > 0 {
		b.WriteString("\nCIP Status Codes:\n")
		statuses := make([]uint8, 0, len(summary.StatusCounts))
		for s := range summary.StatusCounts {
			statuses = append(statuses, s)
		}
		slices.Sort(statuses)
		for _, s := range statuses {
			fmt.Fprintf(&b, "  0x%02X %s: %d\n", s, codes.StatusName(s), summary.StatusCounts[s])
		}
	}

	if len(summary.ByOperation) > 0 {
		b.WriteString("\nPer-Operation Statistics:\n")
		ops := make([]OperationType, 0, len(summary.ByOperation))
		for op := range summary.ByOperation {
			ops = append(ops, op)
		}
		slices.Sort(ops)
		for _, op := range ops {
			stats := summary.ByOperation[op]
			fmt.Fprintf(&b, "  %s: %d ops (%d success, %d failed)", op, stats.Count, stats.Success, stats.Failed)
			if stats.Success > 0 && stats.SumRTT > 0 {
				fmt.Fprintf(&b, " - RTT: min=%.3fms, max=%.3fms, avg=%.3fms", stats.MinRTT, stats.MaxRTT, stats.AvgRTT)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
