package metrics

// Metrics collection for CIP exchanges

import (
	"maps"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// OperationType classifies a recorded exchange.
type OperationType string

const (
	OperationRegisterSession OperationType = "REGISTER_SESSION"
	OperationSend            OperationType = "SEND"
	OperationConnectedSend   OperationType = "CONNECTED_SEND"
	OperationForwardOpen     OperationType = "FORWARD_OPEN"
	OperationForwardClose    OperationType = "FORWARD_CLOSE"
	OperationReadFragmented  OperationType = "READ_FRAGMENTED"
	OperationWriteFragmented OperationType = "WRITE_FRAGMENTED"
	OperationMultipleService OperationType = "MULTIPLE_SERVICE"
)

// Metric is one recorded exchange. Status is the CIP general status of the
// reply, zero when no reply was decoded.
type Metric struct {
	Timestamp time.Time
	Operation OperationType
	Target    string
	Service   string
	Success   bool
	RTTMs     float64
	Status    uint8
	Error     string
}

// Sink collects metrics and keeps a running summary. Safe for concurrent use.
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
	summary *Summary
}

// Summary contains aggregated statistics
type Summary struct {
	TotalOperations int
	SuccessfulOps   int
	FailedOps       int
	TimeoutCount    int
	MinRTT          float64
	MaxRTT          float64
	AvgRTT          float64
	P50RTT          float64
	P90RTT          float64
	P99RTT          float64
	RTTBuckets      map[string]int
	StatusCounts    map[uint8]int
	ByOperation     map[OperationType]*OperationStats
}

// OperationStats contains statistics for one operation type
type OperationStats struct {
	Count   int
	Success int
	Failed  int
	MinRTT  float64
	MaxRTT  float64
	AvgRTT  float64
	SumRTT  float64
}

func newSummary() *Summary {
	return &Summary{
		RTTBuckets:   make(map[string]int),
		StatusCounts: make(map[uint8]int),
		ByOperation:  make(map[OperationType]*OperationStats),
	}
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{summary: newSummary()}
}

// Record adds m.
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
}

// GetMetrics returns a copy of all recorded metrics
func (s *Sink) GetMetrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// GetSummary returns a snapshot of the summary with percentiles computed.
func (s *Sink) GetSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.summary, s.metrics)
}

// Summarize builds a summary for metrics loaded elsewhere (for example from CSV).
func Summarize(metrics []Metric) *Summary {
	s := &Sink{summary: newSummary()}
	for _, m := range metrics {
		s.Record(m)
	}
	return s.GetSummary()
}

func summarize(src *Summary, metrics []Metric) *Summary {
	out := *src
	out.RTTBuckets = make(map[string]int)
	out.StatusCounts = maps.Clone(src.StatusCounts)
	out.ByOperation = make(map[OperationType]*OperationStats, len(src.ByOperation))
	for op, stats := range src.ByOperation {
		cp := *stats
		out.ByOperation[op] = &cp
	}

	rtts := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		if m.Success && m.RTTMs > 0 {
			rtts = append(rtts, m.RTTMs)
			incrementBucket(out.RTTBuckets, m.RTTMs)
		}
	}
	sort.Float64s(rtts)
	out.P50RTT = percentile(rtts, 0.50)
	out.P90RTT = percentile(rtts, 0.90)
	out.P99RTT = percentile(rtts, 0.99)
	return &out
}

func (s *Sink) updateSummary(m Metric) {
	sum := s.summary
	sum.TotalOperations++
	if m.Status != 0 {
		sum.StatusCounts[m.Status]++
	}

	if m.Success {
		sum.SuccessfulOps++
	} else {
		sum.FailedOps++
		if strings.Contains(m.Error, "timeout") || strings.Contains(m.Error, "deadline exceeded") {
			sum.TimeoutCount++
		}
	}

	if m.Success && m.RTTMs > 0 {
		if sum.MinRTT == 0 || m.RTTMs < sum.MinRTT {
			sum.MinRTT = m.RTTMs
		}
		if m.RTTMs > sum.MaxRTT {
			sum.MaxRTT = m.RTTMs
		}
		total := sum.AvgRTT * float64(sum.SuccessfulOps-1)
		sum.AvgRTT = (total + m.RTTMs) / float64(sum.SuccessfulOps)
	}

	op, ok := sum.ByOperation[m.Operation]
	if !ok {
		op = &OperationStats{}
		sum.ByOperation[m.Operation] = op
	}
	op.Count++
	if !m.Success {
		op.Failed++
		return
	}
	op.Success++
	if m.RTTMs > 0 {
		if op.MinRTT == 0 || m.RTTMs < op.MinRTT {
			op.MinRTT = m.RTTMs
		}
		if m.RTTMs > op.MaxRTT {
			op.MaxRTT = m.RTTMs
		}
		op.SumRTT += m.RTTMs
		op.AvgRTT = op.SumRTT / float64(op.Success)
	}
}

func incrementBucket(buckets map[string]int, value float64) {
	switch {
	case value < 1:
		buckets["lt_1ms"]++
	case value < 5:
		buckets["1_5ms"]++
	case value < 10:
		buckets["5_10ms"]++
	case value < 50:
		buckets["10_50ms"]++
	case value < 100:
		buckets["50_100ms"]++
	case value < 500:
		buckets["100_500ms"]++
	default:
		buckets["gt_500ms"]++
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}
