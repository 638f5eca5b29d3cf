package idset

import (
	"fmt"
	"slices"
	"strconv"
)

// MaxGlobCnt is the largest 48-bit global counter.
const MaxGlobCnt = uint64(1)<<48 - 1

// Mode selects how a replica's observations are compacted.
type Mode byte

const (
	// Precise keeps disjoint ranges; membership is exact.
	Precise Mode = iota
	// Coalesced keeps a single min..max range; membership may
	// over-approximate but never misses an observed counter.
	Coalesced
)

func (m Mode) String() string {
	switch m {
	case Precise:
		return "precise"
	case Coalesced:
		return "coalesced"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "precise", "":
		*m = Precise
	case "coalesced":
		*m = Coalesced
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Range is an inclusive span of global counters, Low <= High.
type Range struct {
	Low  uint64
	High uint64
}

func (r Range) Contains(id uint64) bool {
	return r.Low <= id && id <= r.High
}

// String renders the range as low:high in hex, or a single value.
func (r Range) String() string {
	if r.Low == r.High {
		return "0x" + strconv.FormatUint(r.Low, 16)
	}
	return "0x" + strconv.FormatUint(r.Low, 16) + ":0x" + strconv.FormatUint(r.High, 16)
}

// SortRanges sorts ascending by Low, keeping the relative order of
// equal lows.
func SortRanges(ranges []Range) {
	slices.SortStableFunc(ranges, func(a, b Range) int {
		switch {
		case a.Low < b.Low:
			return -1
		case a.Low > b.Low:
			return 1
		}
		return 0
	})
}

// CompactRanges restores the ordering/non-overlap invariant in place and
// returns the shortened slice. Coalesced collapses everything to one
// min..max range. Precise folds a range into its predecessor only when it
// starts inside it; touching ranges (b.Low == a.High+1) stay separate.
func CompactRanges(ranges []Range, mode Mode) []Range {
	if len(ranges) == 0 {
		return ranges
	}
	if mode == Coalesced {
		span := ranges[0]
		for _, r := range ranges[1:] {
			span.Low = min(span.Low, r.Low)
			span.High = max(span.High, r.High)
		}
		ranges[0] = span
		return ranges[:1]
	}
	SortRanges(ranges)
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if last.Contains(r.Low) {
			last.High = max(last.High, r.High)
		} else {
			out = append(out, r)
		}
	}
	return out
}

// MakeFromObservations builds a replica set from raw counters in any
// order. values is sorted in place.
func MakeFromObservations(guid GUID, values []uint64, mode Mode) ReplicaSet {
	rs := ReplicaSet{GUID: guid, Mode: mode}
	if len(values) == 0 {
		return rs
	}
	slices.Sort(values)
	if mode == Coalesced || len(values) < 3 {
		rs.Ranges = []Range{{Low: values[0], High: values[len(values)-1]}}
		return rs
	}
	run := Range{Low: values[0], High: values[0]}
	for _, v := range values[1:] {
		if v == run.High || v == run.High+1 {
			run.High = v
			continue
		}
		rs.Ranges = append(rs.Ranges, run)
		run = Range{Low: v, High: v}
	}
	rs.Ranges = append(rs.Ranges, run)
	return rs
}
