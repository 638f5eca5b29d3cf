package idset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawAccumulator_Finalize(t *testing.T) {
	acc := NewRawAccumulator(Precise)
	assert.Equal(t, Precise, acc.Mode())
	for _, v := range []uint64{10, 5, 6} {
		acc.Push(guidB, v)
	}
	for _, v := range []uint64{7, 5, 6} {
		acc.Push(guidA, v)
	}
	acc.Push(guidB, 7)
	acc.Push(GUID0, 1)
	assert.Equal(t, 8, acc.Len())

	set := acc.Finalize()
	require.Equal(t, 2, set.Len())
	// bucket order, not GUID order
	assert.Equal(t, guidB, set.Replicas[0].GUID)
	assert.Equal(t, []Range{{5, 7}, {10, 10}}, set.Replicas[0].Ranges)
	assert.Equal(t, guidA, set.Replicas[1].GUID)
	assert.Equal(t, []Range{{5, 7}}, set.Replicas[1].Ranges)

	assert.Zero(t, acc.Len())
	assert.Zero(t, acc.Finalize().Len())
}

func TestRawAccumulator_Coalesced(t *testing.T) {
	acc := NewRawAccumulator(Coalesced)
	for _, v := range []uint64{5, 6, 7, 10} {
		acc.Push(guidA, v)
	}
	set := acc.Finalize()
	require.Equal(t, 1, set.Len())
	assert.Equal(t, []Range{{5, 10}}, set.Replicas[0].Ranges)
	assert.Equal(t, Coalesced, set.Replicas[0].Mode)
	assert.True(t, IncludesID(set, guidA, 8), "coalesced over-approximates")
}

func TestRawAccumulator_Many(t *testing.T) {
	acc := NewRawAccumulator(Precise)
	for v := uint64(0); v < 100000; v++ {
		if v%1000 != 999 {
			acc.Push(guidA, v)
		}
	}
	set := acc.Finalize()
	assert.Equal(t, 100, set.Replicas[0].Count())
	assert.True(t, IncludesID(set, guidA, 998))
	assert.False(t, IncludesID(set, guidA, 999))
	assert.True(t, IncludesID(set, guidA, 1000))
}

func TestRawAccumulator_Masks48Bits(t *testing.T) {
	acc := NewRawAccumulator(Precise)
	acc.Push(guidA, 1<<48|3)
	set := acc.Finalize()
	assert.Equal(t, []Range{{3, 3}}, set.Replicas[0].Ranges)
}
