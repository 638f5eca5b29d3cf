package idset

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const universe = 96

// randomSet fills a Precise IDSet with small counters over two replicas so
// that ranges overlap often.
func randomSet(f *fuzz.Fuzzer, guids ...GUID) *IDSet {
	acc := NewRawAccumulator(Precise)
	for _, g := range guids {
		var values []uint64
		f.Fuzz(&values)
		for _, v := range values {
			acc.Push(g, v%universe)
		}
	}
	return acc.Finalize()
}

func TestProperty_MergeIsUnion(t *testing.T) {
	f := fuzz.NewWithSeed(1001).NilChance(0).NumElements(0, 24)
	for round := 0; round < 200; round++ {
		a := randomSet(f, guidA, guidB)
		b := randomSet(f, guidB)
		m := Merge(a, b)
		for _, g := range []GUID{guidA, guidB} {
			for x := uint64(0); x < universe+2; x++ {
				want := IncludesID(a, g, x) || IncludesID(b, g, x)
				require.Equal(t, want, IncludesID(m, g, x), "round %d guid %s id %d", round, g, x)
			}
		}
	}
}

func TestProperty_PreciseNeverOverApproximates(t *testing.T) {
	f := fuzz.NewWithSeed(7).NilChance(0).NumElements(3, 40)
	for round := 0; round < 200; round++ {
		var values []uint64
		f.Fuzz(&values)
		seen := make(map[uint64]bool)
		for i := range values {
			values[i] %= universe
			seen[values[i]] = true
		}
		if len(seen) < 3 {
			continue
		}
		precise := MakeFromObservations(guidA, append([]uint64(nil), values...), Precise)
		coalesced := MakeFromObservations(guidA, append([]uint64(nil), values...), Coalesced)
		for x := uint64(0); x < universe; x++ {
			assert.Equal(t, seen[x], precise.Includes(x), "round %d id %d", round, x)
			if seen[x] {
				assert.True(t, coalesced.Includes(x), "round %d id %d", round, x)
			}
		}
	}
}

func TestProperty_CompactIdempotent(t *testing.T) {
	f := fuzz.NewWithSeed(42).NilChance(0).NumElements(0, 30)
	for round := 0; round < 200; round++ {
		var pairs [][2]uint16
		f.Fuzz(&pairs)
		ranges := make([]Range, len(pairs))
		for i, p := range pairs {
			lo, hi := uint64(p[0]%universe), uint64(p[1]%universe)
			ranges[i] = Range{Low: min(lo, hi), High: max(lo, hi)}
		}
		for _, mode := range []Mode{Precise, Coalesced} {
			once := CompactRanges(append([]Range(nil), ranges...), mode)
			want := append([]Range(nil), once...)
			assert.Equal(t, want, CompactRanges(once, mode))
		}
	}
}

func TestProperty_RoundTrip(t *testing.T) {
	f := fuzz.NewWithSeed(2024).NilChance(0).NumElements(1, 30)
	for round := 0; round < 200; round++ {
		var guid GUID
		var values []uint64
		f.Fuzz(&guid)
		f.Fuzz(&values)
		for i := range values {
			values[i] &= MaxGlobCnt
		}
		set := &IDSet{Replicas: []ReplicaSet{MakeFromObservations(guid, values, Precise)}}
		got, err := Parse(set.Serialize())
		require.NoError(t, err)
		assert.Equal(t, set, got, "round %d", round)
	}
}
