package mapisync

import (
	"io"
	"slices"

	"github.com/cockroachdb/pebble"

	"github.com/openchange/mapisync/idset"
)

// PebbleMergeAdaptor folds stored state records into their union.
// Operands are kept old to new.
type PebbleMergeAdaptor struct {
	key   []byte
	older [][]byte
	vals  [][]byte
}

func merger(key, value []byte) (pebble.ValueMerger, error) {
	pma := PebbleMergeAdaptor{
		key:  slices.Clone(key),
		vals: [][]byte{slices.Clone(value)},
	}
	return &pma, nil
}

func (a *PebbleMergeAdaptor) MergeNewer(value []byte) error {
	a.vals = append(a.vals, slices.Clone(value))
	return nil
}

func (a *PebbleMergeAdaptor) MergeOlder(value []byte) error {
	a.older = append(a.older, slices.Clone(value))
	return nil
}

func (a *PebbleMergeAdaptor) inputs() [][]byte {
	if len(a.older) == 0 {
		return a.vals
	}
	inputs := slices.Clone(a.older)
	slices.Reverse(inputs)
	return append(inputs, a.vals...)
}

func (a *PebbleMergeAdaptor) Finish(includesBase bool) (res []byte, cl io.Closer, err error) {
	res = MergeStateRecords(a.inputs())
	return res, nil, nil
}

// MergeStateRecords unions state records sorted old to new. Every replica
// set keeps its own mode; one present on several operands is compacted
// with the oldest operand's mode. If any operand fails to parse, the
// first bad operand is returned unchanged so readers keep seeing the
// corruption instead of a partial union.
func MergeStateRecords(inputs [][]byte) []byte {
	var acc *idset.IDSet
	for _, in := range inputs {
		set, err := ParseStateRecord(in)
		if err != nil {
			CorruptOperands.Inc()
			return slices.Clone(in)
		}
		acc = idset.Merge(acc, set)
	}
	if acc == nil {
		acc = &idset.IDSet{}
	}
	MergedOperands.Add(float64(len(inputs)))
	return StateRecord(acc)
}
