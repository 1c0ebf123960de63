package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ReadMetricsCSV reads a file written by Writer. Unknown columns are ignored;
// timestamp, operation and success are required.
func ReadMetricsCSV(path string) ([]Metric, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics CSV: %w", err)
	}
	defer file.Close()
	return readMetricsCSV(file)
}

func readMetricsCSV(r io.Reader) ([]Metric, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"timestamp", "operation", "success"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("CSV missing required column: %s", name)
		}
	}
	field := func(record []string, name string) string {
		if idx, ok := col[name]; ok && idx < len(record) {
			return record[idx]
		}
		return ""
	}

	var metrics []Metric
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", row, err)
		}

		m := Metric{
			Operation: OperationType(field(record, "operation")),
			Target:    field(record, "target"),
			Service:   field(record, "service"),
			Success:   field(record, "success") == "true",
			Error:     field(record, "error"),
		}
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, field(record, "timestamp")); err != nil {
			return nil, fmt.Errorf("CSV row %d timestamp: %w", row, err)
		}
		if v := field(record, "rtt_ms"); v != "" {
			if m.RTTMs, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("CSV row %d rtt_ms: %w", row, err)
			}
		}
		if v := field(record, "status"); v != "" {
			s, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("CSV row %d status: %w", row, err)
			}
			m.Status = uint8(s)
		}
		metrics = append(metrics, m)
	}

	if len(metrics) == 0 {
		return nil, fmt.Errorf("no data rows in CSV file")
	}
	return metrics, nil
}
