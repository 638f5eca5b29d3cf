package idset

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// GUID names one replica. The bytes are kept in wire order: the first
// three fields little-endian, the trailing eight as-is.
type GUID [16]byte

var GUID0 GUID

func (g GUID) IsZero() bool {
	return g == GUID0
}

// Compare orders GUIDs field by field the way the registry form reads:
// Data1, Data2, Data3 as integers, then the node bytes.
func Compare(a, b GUID) int {
	if x, y := binary.LittleEndian.Uint32(a[0:4]), binary.LittleEndian.Uint32(b[0:4]); x != y {
		return cmpUint(uint64(x), uint64(y))
	}
	if x, y := binary.LittleEndian.Uint16(a[4:6]), binary.LittleEndian.Uint16(b[4:6]); x != y {
		return cmpUint(uint64(x), uint64(y))
	}
	if x, y := binary.LittleEndian.Uint16(a[6:8]), binary.LittleEndian.Uint16(b[6:8]); x != y {
		return cmpUint(uint64(x), uint64(y))
	}
	return bytes.Compare(a[8:], b[8:])
}

func cmpUint(x, y uint64) int {
	if x < y {
		return -1
	}
	return 1
}

func (g GUID) UUID() (u uuid.UUID) {
	u[0], u[1], u[2], u[3] = g[3], g[2], g[1], g[0]
	u[4], u[5] = g[5], g[4]
	u[6], u[7] = g[7], g[6]
	copy(u[8:], g[8:])
	return
}

func GUIDFromUUID(u uuid.UUID) (g GUID) {
	g[0], g[1], g[2], g[3] = u[3], u[2], u[1], u[0]
	g[4], g[5] = u[5], u[4]
	g[6], g[7] = u[7], u[6]
	copy(g[8:], u[8:])
	return
}

func (g GUID) String() string {
	return g.UUID().String()
}

// ParseGUID accepts the registry form, with or without braces.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID0, err
	}
	return GUIDFromUUID(u), nil
}

func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

func NewGUID() GUID {
	return GUIDFromUUID(uuid.New())
}
