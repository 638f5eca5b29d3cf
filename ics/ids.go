package ics

import "github.com/openchange/mapisync/idset"

// SplitID splits a folder, message or change id read as a little-endian
// uint64: the replica id sits in the low 16 bits and the remaining six
// bytes are the global counter, whose positional value is simply id>>16.
func SplitID(id uint64) (replID uint16, globCnt uint64) {
	return uint16(id), id >> 16
}

func MakeID(replID uint16, globCnt uint64) uint64 {
	return (globCnt&idset.MaxGlobCnt)<<16 | uint64(replID)
}

// ReplicaMapper resolves the short replica ids used inside a store to
// replica GUIDs.
type ReplicaMapper interface {
	GUIDForReplID(replID uint16) (idset.GUID, bool)
}

// ReplicaTable is an in-memory ReplicaMapper.
type ReplicaTable struct {
	byID   map[uint16]idset.GUID
	byGUID map[idset.GUID]uint16
}

func NewReplicaTable() *ReplicaTable {
	return &ReplicaTable{
		byID:   make(map[uint16]idset.GUID),
		byGUID: make(map[idset.GUID]uint16),
	}
}

func (t *ReplicaTable) Add(replID uint16, guid idset.GUID) {
	if old, ok := t.byID[replID]; ok {
		delete(t.byGUID, old)
	}
	t.byID[replID] = guid
	t.byGUID[guid] = replID
}

func (t *ReplicaTable) GUIDForReplID(replID uint16) (idset.GUID, bool) {
	g, ok := t.byID[replID]
	return g, ok
}

func (t *ReplicaTable) ReplIDForGUID(guid idset.GUID) (uint16, bool) {
	id, ok := t.byGUID[guid]
	return id, ok
}

// Observer feeds ids into a RawAccumulator, resolving replica ids on the
// way. Ids from unmapped replicas are counted in Unmapped and dropped.
type Observer struct {
	acc      *idset.RawAccumulator
	mapper   ReplicaMapper
	Unmapped int
}

func NewObserver(mode idset.Mode, mapper ReplicaMapper) *Observer {
	return &Observer{acc: idset.NewRawAccumulator(mode), mapper: mapper}
}

func (o *Observer) Observe(guid idset.GUID, globCnt uint64) {
	o.acc.Push(guid, globCnt)
}

func (o *Observer) ObserveID(id uint64) bool {
	replID, cnt := SplitID(id)
	if o.mapper == nil {
		o.Unmapped++
		return false
	}
	guid, ok := o.mapper.GUIDForReplID(replID)
	if !ok {
		o.Unmapped++
		return false
	}
	o.acc.Push(guid, cnt)
	return true
}

func (o *Observer) Len() int {
	return o.acc.Len()
}

func (o *Observer) Finalize() *idset.IDSet {
	return o.acc.Finalize()
}
