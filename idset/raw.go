package idset

// RawAccumulator collects (replica, counter) observations, then turns
// them into a compacted IDSet once. Buckets keep first-push order.
type RawAccumulator struct {
	mode    Mode
	index   map[GUID]int
	buckets []rawBucket
}

type rawBucket struct {
	guid   GUID
	values []uint64
}

func NewRawAccumulator(mode Mode) *RawAccumulator {
	return &RawAccumulator{
		mode:  mode,
		index: make(map[GUID]int),
	}
}

func (acc *RawAccumulator) Mode() Mode {
	return acc.mode
}

// Push records one observed counter for guid.
func (acc *RawAccumulator) Push(guid GUID, value uint64) {
	i, ok := acc.index[guid]
	if !ok {
		i = len(acc.buckets)
		acc.index[guid] = i
		acc.buckets = append(acc.buckets, rawBucket{guid: guid})
	}
	acc.buckets[i].values = append(acc.buckets[i].values, value&MaxGlobCnt)
}

// Len is the number of observations pushed so far.
func (acc *RawAccumulator) Len() (n int) {
	for _, b := range acc.buckets {
		n += len(b.values)
	}
	return
}

// Finalize builds one replica set per non-empty bucket with a non-zero
// GUID. The accumulator is drained and may be reused afterwards.
func (acc *RawAccumulator) Finalize() *IDSet {
	set := &IDSet{}
	for _, b := range acc.buckets {
		if b.guid.IsZero() || len(b.values) == 0 {
			continue
		}
		set.Replicas = append(set.Replicas, MakeFromObservations(b.guid, b.values, acc.mode))
	}
	acc.buckets = nil
	clear(acc.index)
	return set
}
