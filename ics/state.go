package ics

import (
	"errors"
	"fmt"

	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/protocol"
)

var (
	ErrBadStateStream     = errors.New("ics: bad state stream")
	ErrUnexpectedProperty = errors.New("ics: unexpected property in state")
)

// State is the synchronization state of one ICS context. A nil property
// was never sent; an empty IDSet was sent with zero length.
type State struct {
	IdsetGiven   *idset.IDSet
	CnsetSeen    *idset.IDSet
	CnsetSeenFAI *idset.IDSet
	CnsetRead    *idset.IDSet
}

func (st *State) slot(tag PropertyTag) **idset.IDSet {
	switch tag {
	case MetaTagIdsetGiven:
		return &st.IdsetGiven
	case MetaTagCnsetSeen:
		return &st.CnsetSeen
	case MetaTagCnsetSeenFAI:
		return &st.CnsetSeenFAI
	case MetaTagCnsetRead:
		return &st.CnsetRead
	}
	return nil
}

func (st *State) Get(tag PropertyTag) *idset.IDSet {
	if p := st.slot(tag); p != nil {
		return *p
	}
	return nil
}

func (st *State) Set(tag PropertyTag, set *idset.IDSet) error {
	p := st.slot(tag)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnexpectedProperty, tag)
	}
	*p = set
	return nil
}

// Merge returns the per-property union of st and other.
func (st *State) Merge(other *State) *State {
	if other == nil {
		other = &State{}
	}
	merged := &State{}
	for _, tag := range StateTags {
		_ = merged.Set(tag, idset.Merge(st.Get(tag), other.Get(tag)))
	}
	return merged
}

// MarshalState writes IncrSyncStateBegin, each present property as
// tag, length and IDSET, then IncrSyncStateEnd. All integers little-endian.
func MarshalState(st *State) []byte {
	w := protocol.NewWriter(64)
	w.AppendUint32LE(IncrSyncStateBegin.Uint32())
	for _, tag := range StateTags {
		set := st.Get(tag)
		if set == nil {
			continue
		}
		blob := set.Serialize()
		w.AppendUint32LE(tag.Uint32())
		w.AppendUint32LE(uint32(len(blob)))
		w.Append(blob...)
	}
	w.AppendUint32LE(IncrSyncStateEnd.Uint32())
	return w.Bytes()
}

// UnmarshalState parses a state stream. Any malformed property fails the
// whole stream.
func UnmarshalState(buf []byte) (*State, error) {
	r := protocol.NewReader(buf)
	begin, err := r.ReadUint32LE()
	if err != nil || TagFromUint32(begin) != IncrSyncStateBegin {
		return nil, fmt.Errorf("%w: missing IncrSyncStateBegin", ErrBadStateStream)
	}
	st := &State{}
	for {
		v, err := r.ReadUint32LE()
		if err != nil {
			return nil, fmt.Errorf("%w: missing IncrSyncStateEnd", ErrBadStateStream)
		}
		tag := TagFromUint32(v)
		if tag == IncrSyncStateEnd {
			if r.Len() != 0 {
				return nil, fmt.Errorf("%w: %d bytes after IncrSyncStateEnd", ErrBadStateStream, r.Len())
			}
			return st, nil
		}
		if !IsStateTag(tag) {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedProperty, tag)
		}
		if st.Get(tag) != nil {
			return nil, fmt.Errorf("%w: %s repeated", ErrBadStateStream, tag)
		}
		n, err := r.ReadUint32LE()
		if err != nil {
			return nil, fmt.Errorf("%w: %s without length", ErrBadStateStream, tag)
		}
		blob, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("%w: %s declares %d bytes, %d left", ErrBadStateStream, tag, n, r.Len())
		}
		set, err := ParseValue(blob)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		_ = st.Set(tag, set)
	}
}

// ParseValue parses one state property value; zero bytes is an empty set.
func ParseValue(blob []byte) (*idset.IDSet, error) {
	if len(blob) == 0 {
		return &idset.IDSet{}, nil
	}
	return idset.Parse(blob)
}
