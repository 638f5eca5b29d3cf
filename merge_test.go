package mapisync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/mapisync_errors"
)

func withMode(mode idset.Mode, set *idset.IDSet) *idset.IDSet {
	set.SetMode(mode)
	return set
}

func TestMergeStateRecords(t *testing.T) {
	res := MergeStateRecords([][]byte{
		StateRecord(one(guidA, idset.Range{Low: 10, High: 20})),
		StateRecord(one(guidB, idset.Range{Low: 4, High: 4})),
		StateRecord(one(guidA, idset.Range{Low: 1, High: 3})),
	})
	set, err := ParseStateRecord(res)
	require.NoError(t, err)
	want := &idset.IDSet{Replicas: []idset.ReplicaSet{
		{GUID: guidA, Ranges: []idset.Range{{Low: 1, High: 3}, {Low: 10, High: 20}}},
		{GUID: guidB, Ranges: []idset.Range{{Low: 4, High: 4}}},
	}}
	assert.Equal(t, want, set)
}

func TestMergeStateRecords_KeepsReplicaModes(t *testing.T) {
	res := MergeStateRecords([][]byte{
		StateRecord(withMode(idset.Coalesced, one(guidA, idset.Range{Low: 10, High: 20}))),
		StateRecord(withMode(idset.Precise, one(guidB, idset.Range{Low: 1, High: 1}, idset.Range{Low: 5, High: 5}))),
		StateRecord(withMode(idset.Precise, one(guidA, idset.Range{Low: 1, High: 3}))),
		StateRecord(withMode(idset.Coalesced, one(guidB, idset.Range{Low: 9, High: 9}))),
	})
	set, err := ParseStateRecord(res)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	// the oldest operand of a replica decides its mode
	a := set.Replica(guidA)
	require.NotNil(t, a)
	assert.Equal(t, idset.Coalesced, a.Mode)
	assert.Equal(t, []idset.Range{{Low: 1, High: 20}}, a.Ranges)

	b := set.Replica(guidB)
	require.NotNil(t, b)
	assert.Equal(t, idset.Precise, b.Mode)
	assert.Equal(t, []idset.Range{{Low: 1, High: 1}, {Low: 5, High: 5}, {Low: 9, High: 9}}, b.Ranges)
}

func TestMergeStateRecords_CorruptBaseSurvives(t *testing.T) {
	base := []byte("not a record")
	res := MergeStateRecords([][]byte{
		base,
		StateRecord(one(guidA, idset.Range{Low: 1, High: 3})),
	})
	assert.Equal(t, base, res)
	_, err := ParseStateRecord(res)
	assert.ErrorIs(t, err, mapisync_errors.ErrBadStateRecord)
}

func TestMergeStateRecords_CorruptOperand(t *testing.T) {
	bad := []byte{1, 2, 3}
	res := MergeStateRecords([][]byte{
		StateRecord(one(guidA, idset.Range{Low: 10, High: 20})),
		bad,
		[]byte("also bad"),
	})
	assert.Equal(t, bad, res)
}

func TestMergeStateRecords_Empty(t *testing.T) {
	set, err := ParseStateRecord(MergeStateRecords(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestPebbleMergeAdaptor_Order(t *testing.T) {
	rec := func(mode idset.Mode, lo uint64) []byte {
		return StateRecord(withMode(mode, one(guidB, idset.Range{Low: lo, High: lo})))
	}
	vm, err := merger([]byte("k"), rec(idset.Precise, 5))
	require.NoError(t, err)
	require.NoError(t, vm.MergeOlder(rec(idset.Precise, 3)))
	require.NoError(t, vm.MergeOlder(rec(idset.Coalesced, 1)))

	a := vm.(*PebbleMergeAdaptor)
	inputs := a.inputs()
	require.Len(t, inputs, 3)
	assert.Equal(t, rec(idset.Coalesced, 1), inputs[0])
	assert.Equal(t, rec(idset.Precise, 5), inputs[2])

	res, closer, err := vm.Finish(true)
	require.NoError(t, err)
	assert.Nil(t, closer)
	set, err := ParseStateRecord(res)
	require.NoError(t, err)
	assert.Equal(t, idset.Coalesced, set.Replicas[0].Mode)
	assert.Equal(t, []idset.Range{{Low: 1, High: 5}}, set.Replicas[0].Ranges)
}
