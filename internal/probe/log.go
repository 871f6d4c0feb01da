package probe

import (
	"slices"
	"sort"
	"sync"

	"github.com/muurk/probekit/internal/protocol"
)

// Range is an inclusive span of sequence numbers.
type Range struct {
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// Len returns the number of sequence numbers in r.
func (r Range) Len() uint64 {
	return uint64(r.Max) - uint64(r.Min) + 1
}

// Log holds logged records ordered by sequence number, one per sequence.
type Log struct {
	mu      sync.Mutex
	records []protocol.LogRecord
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Add stores rec, replacing any record with the same sequence. It reports
// whether the sequence was new.
func (l *Log) Add(rec protocol.LogRecord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := sort.Search(len(l.records), func(i int) bool {
		return l.records[i].Sequence >= rec.Sequence
	})
	if i < len(l.records) && l.records[i].Sequence == rec.Sequence {
		l.records[i] = rec
		return false
	}
	l.records = slices.Insert(l.records, i, rec)
	return true
}

// Len returns the number of stored records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Records returns a copy of the stored records in sequence order.
func (l *Log) Records() []protocol.LogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.LogRecord, len(l.records))
	for i, rec := range l.records {
		out[i] = rec
		if rec.Prediction != nil {
			pl := *rec.Prediction
			out[i].Prediction = &pl
		}
	}
	return out
}

// Missing lists the gaps in [first, last] as ranges.
func (l *Log) Missing(first, last uint32) []Range {
	if last < first {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var gaps []Range
	next := uint64(first)
	start := sort.Search(len(l.records), func(i int) bool {
		return l.records[i].Sequence >= first
	})
	for _, rec := range l.records[start:] {
		seq := uint64(rec.Sequence)
		if seq > uint64(last) {
			break
		}
		if seq > next {
			gaps = append(gaps, Range{Min: uint32(next), Max: uint32(seq - 1)})
		}
		next = seq + 1
	}
	if next <= uint64(last) {
		gaps = append(gaps, Range{Min: uint32(next), Max: last})
	}
	return gaps
}

// PercentSynced reports how much of [first, last] is stored, 0-100. An empty
// range counts as fully synced.
func (l *Log) PercentSynced(first, last uint32) float64 {
	if last < first {
		return 100
	}
	total := Range{Min: first, Max: last}.Len()
	var missing uint64
	for _, gap := range l.Missing(first, last) {
		missing += gap.Len()
	}
	return float64(total-missing) / float64(total) * 100
}
