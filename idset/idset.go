package idset

import (
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/openchange/mapisync/protocol"
)

// MinIDSetLen is the shortest parseable IDSET: one GUID and an End.
const MinIDSetLen = 16 + 1

// ReplicaSet is one replica's counter ranges.
type ReplicaSet struct {
	GUID   GUID
	Ranges []Range
	Mode   Mode
}

func (rs *ReplicaSet) Count() int {
	return len(rs.Ranges)
}

// Clone returns a copy sharing no storage with rs.
func (rs ReplicaSet) Clone() ReplicaSet {
	rs.Ranges = slices.Clone(rs.Ranges)
	return rs
}

func (rs *ReplicaSet) Includes(id uint64) bool {
	for _, r := range rs.Ranges {
		if r.Contains(id) {
			return true
		}
	}
	return false
}

func (rs *ReplicaSet) String() string {
	var b strings.Builder
	b.WriteString(rs.GUID.String())
	b.WriteString(":[")
	for i, r := range rs.Ranges {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.String())
	}
	b.WriteByte(']')
	return b.String()
}

// IDSet is the multi-replica aggregate. It owns its replica sets and
// their ranges exclusively.
type IDSet struct {
	Replicas []ReplicaSet
}

func (set *IDSet) Len() int {
	if set == nil {
		return 0
	}
	return len(set.Replicas)
}

// Clone deep-copies set; nil stays nil.
func (set *IDSet) Clone() *IDSet {
	if set == nil {
		return nil
	}
	c := &IDSet{Replicas: make([]ReplicaSet, len(set.Replicas))}
	for i, rs := range set.Replicas {
		c.Replicas[i] = rs.Clone()
	}
	return c
}

// Replica returns the first replica set for guid, or nil.
func (set *IDSet) Replica(guid GUID) *ReplicaSet {
	if set == nil {
		return nil
	}
	for i := range set.Replicas {
		if set.Replicas[i].GUID == guid {
			return &set.Replicas[i]
		}
	}
	return nil
}

// SetMode assigns the compaction mode of every replica set. Parsed sets
// come off the wire without one.
func (set *IDSet) SetMode(mode Mode) {
	if set == nil {
		return
	}
	for i := range set.Replicas {
		set.Replicas[i].Mode = mode
	}
}

func (set *IDSet) String() string {
	if set == nil {
		return "{}"
	}
	parts := make([]string, len(set.Replicas))
	for i := range set.Replicas {
		parts[i] = set.Replicas[i].String()
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

// Parse decodes a whole IDSET blob. The blob carries no outer length, so
// buf must be exactly the property value. Either every record decodes or
// an error is returned.
func Parse(buf []byte) (*IDSet, error) {
	if len(buf) < MinIDSetLen {
		return nil, errors.Wrapf(ErrMalformedInput, "IDSET of %d bytes", len(buf))
	}
	set := &IDSet{}
	r := protocol.NewReader(buf)
	for r.Len() > 0 {
		at := r.Pos()
		guid, err := r.ReadGUID()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedInput, "truncated GUID at offset %d", at)
		}
		ranges, consumed, err := DecodeGlobset(r.Rest())
		if err != nil {
			return nil, errors.WithMessagef(err, "replica %s at offset %d", GUID(guid), at)
		}
		_, _ = r.ReadBytes(consumed)
		set.Replicas = append(set.Replicas, ReplicaSet{GUID: guid, Ranges: ranges})
	}
	return set, nil
}

// Serialize encodes every replica set in order, ranges as they are.
func (set *IDSet) Serialize() []byte {
	return set.AppendTo(nil)
}

func (set *IDSet) AppendTo(buf []byte) []byte {
	w := protocol.AppendingTo(buf)
	if set == nil {
		return w.Bytes()
	}
	for _, rs := range set.Replicas {
		w.AppendGUID(rs.GUID)
		writeGlobset(w, rs.Ranges)
	}
	return w.Bytes()
}

// IncludesID reports whether any replica set for guid covers id.
func IncludesID(set *IDSet, guid GUID, id uint64) bool {
	if set == nil {
		return false
	}
	for i := range set.Replicas {
		if set.Replicas[i].GUID == guid && set.Replicas[i].Includes(id) {
			return true
		}
	}
	return false
}

// Merge returns the union of a and b as a new IDSet sharing no storage
// with either. Replica sets are ordered by GUID; sets present on both
// sides are concatenated, sorted and compacted with the first one's mode.
// A nil side yields a clone of the other.
func Merge(a, b *IDSet) *IDSet {
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}
	all := make([]ReplicaSet, 0, len(a.Replicas)+len(b.Replicas))
	for _, rs := range a.Replicas {
		all = append(all, rs.Clone())
	}
	for _, rs := range b.Replicas {
		all = append(all, rs.Clone())
	}
	slices.SortStableFunc(all, func(x, y ReplicaSet) int {
		return Compare(x.GUID, y.GUID)
	})

	out := all[:0]
	var changed []bool
	for _, rs := range all {
		if n := len(out); n > 0 && out[n-1].GUID == rs.GUID {
			out[n-1].Ranges = append(out[n-1].Ranges, rs.Ranges...)
			changed[n-1] = true
			continue
		}
		out = append(out, rs)
		changed = append(changed, false)
	}
	for i := range out {
		if changed[i] {
			SortRanges(out[i].Ranges)
			out[i].Ranges = CompactRanges(out[i].Ranges, out[i].Mode)
		}
	}
	return &IDSet{Replicas: out}
}
