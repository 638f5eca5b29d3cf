// Package ics carries IDSETs in and out of the Incremental Change
// Synchronization state: the meta-properties that hold them, the state
// stream a client downloads and uploads, and the split of 64-bit MAPI ids
// into replica and global counter.
package ics

import "fmt"

// Property data types used by the state properties.
const (
	PtypInteger32 = 0x0003
	PtypBinary    = 0x0102
)

// PropertyTag is a MAPI property tag, ID in the high word.
type PropertyTag struct {
	Type uint16
	ID   uint16
}

func (t PropertyTag) Uint32() uint32 {
	return uint32(t.ID)<<16 | uint32(t.Type)
}

func TagFromUint32(v uint32) PropertyTag {
	return PropertyTag{Type: uint16(v), ID: uint16(v >> 16)}
}

func (t PropertyTag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", t.Uint32())
}

// MetaTagIdsetGiven is typed PtypInteger32 but its value is a
// length-prefixed IDSET like the binary ones.
var MetaTagIdsetGiven = PropertyTag{PtypInteger32, 0x4017}

var MetaTagCnsetSeen = PropertyTag{PtypBinary, 0x6796}

var MetaTagCnsetSeenFAI = PropertyTag{PtypBinary, 0x67DA}

var MetaTagCnsetRead = PropertyTag{PtypBinary, 0x67D2}

// Markers around the state properties in a state stream.
var IncrSyncStateBegin = PropertyTag{PtypInteger32, 0x403A}

var IncrSyncStateEnd = PropertyTag{PtypInteger32, 0x403B}

// StateTags lists the state properties in stream order.
var StateTags = []PropertyTag{
	MetaTagIdsetGiven,
	MetaTagCnsetSeen,
	MetaTagCnsetSeenFAI,
	MetaTagCnsetRead,
}

var tagNames = map[PropertyTag]string{
	MetaTagIdsetGiven:   "MetaTagIdsetGiven",
	MetaTagCnsetSeen:    "MetaTagCnsetSeen",
	MetaTagCnsetSeenFAI: "MetaTagCnsetSeenFAI",
	MetaTagCnsetRead:    "MetaTagCnsetRead",
	IncrSyncStateBegin:  "IncrSyncStateBegin",
	IncrSyncStateEnd:    "IncrSyncStateEnd",
}

// IsStateTag reports whether t is one of StateTags.
func IsStateTag(t PropertyTag) bool {
	for _, s := range StateTags {
		if s == t {
			return true
		}
	}
	return false
}

// ParseTag accepts a property name or a hex tag like 0x67960102.
func ParseTag(s string) (PropertyTag, error) {
	for tag, name := range tagNames {
		if name == s {
			return tag, nil
		}
	}
	var v uint32
	if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
		return PropertyTag{}, fmt.Errorf("%w: %q", ErrUnexpectedProperty, s)
	}
	return TagFromUint32(v), nil
}
