package mapisync

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/mapisync_errors"
)

func rangeCount(set *idset.IDSet) (n int) {
	for i := range set.Replicas {
		n += len(set.Replicas[i].Ranges)
	}
	return
}

func (s *Store) get(db *pebble.DB, key []byte) (*idset.IDSet, error) {
	if set, ok := s.cache.Get(string(key)); ok {
		CacheLookups.WithLabelValues("hit").Inc()
		return set, nil
	}
	CacheLookups.WithLabelValues("miss").Inc()
	gen := s.generation()
	val, closer, err := db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, mapisync_errors.ErrStateNotFound
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()
	set, err := ParseStateRecord(val)
	if err != nil {
		s.log.Warn("corrupt state record", "key", fmt.Sprintf("%x", key), "err", err)
		return nil, errors.WithMessagef(err, "state %x", key)
	}
	s.fill(string(key), set, gen)
	return set, nil
}

func digest(db *pebble.DB, key []byte) (uint64, error) {
	val, closer, err := db.Get(key)
	if err == pebble.ErrNotFound {
		return 0, mapisync_errors.ErrStateNotFound
	} else if err != nil {
		return 0, err
	}
	defer closer.Close()
	return xxhash.Sum64(val), nil
}

// GetState returns a copy of the stored set; the caller may modify it.
func (s *Store) GetState(folder uint64, tag ics.PropertyTag) (*idset.IDSet, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	set, err := s.get(db, StateKey(folder, tag))
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// Includes reports whether id of replica guid is in the stored set.
// An absent state includes nothing.
func (s *Store) Includes(folder uint64, tag ics.PropertyTag, guid idset.GUID, id uint64) (bool, error) {
	db, err := s.acquire()
	if err != nil {
		return false, err
	}
	defer s.mu.RUnlock()
	set, err := s.get(db, StateKey(folder, tag))
	if err == mapisync_errors.ErrStateNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return idset.IncludesID(set, guid, id), nil
}

// Digest hashes the stored record; states with equal digests are equal.
func (s *Store) Digest(folder uint64, tag ics.PropertyTag) (uint64, error) {
	db, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()
	return digest(db, StateKey(folder, tag))
}

// PutState overwrites the state, keeping the mode of every replica set.
// Writing the value already stored is a no-op.
func (s *Store) PutState(ctx context.Context, folder uint64, tag ics.PropertyTag, set *idset.IDSet) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	if set == nil {
		set = &idset.IDSet{}
	}
	key := StateKey(folder, tag)
	rec := StateRecord(set)
	if d, err := digest(db, key); err == nil && d == xxhash.Sum64(rec) {
		StateWrites.WithLabelValues(tag.String(), "skip").Inc()
		s.log.DebugCtx(ctx, "state unchanged", "folder", folder, "tag", tag.String())
		return nil
	}
	if err := db.Set(key, rec, s.opts.WriteOptions); err != nil {
		return err
	}
	s.invalidate(string(key))
	StateWrites.WithLabelValues(tag.String(), "put").Inc()
	StateRanges.WithLabelValues(tag.String()).Observe(float64(rangeCount(set)))
	s.log.DebugCtx(ctx, "state put", "folder", folder, "tag", tag.String(), "replicas", set.Len())
	return nil
}

// MergeState adds set to the stored state. Concurrent merges of one key
// are folded by the merge operator; none of them is lost.
func (s *Store) MergeState(ctx context.Context, folder uint64, tag ics.PropertyTag, set *idset.IDSet) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	if set == nil {
		return nil
	}
	key := StateKey(folder, tag)
	if err := db.Merge(key, StateRecord(set), s.opts.WriteOptions); err != nil {
		return err
	}
	s.invalidate(string(key))
	StateWrites.WithLabelValues(tag.String(), "merge").Inc()
	s.log.DebugCtx(ctx, "state merge", "folder", folder, "tag", tag.String(), "replicas", set.Len())
	return nil
}

func (s *Store) DeleteState(folder uint64, tag ics.PropertyTag) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	key := StateKey(folder, tag)
	if err := db.Delete(key, s.opts.WriteOptions); err != nil {
		return err
	}
	s.invalidate(string(key))
	StateWrites.WithLabelValues(tag.String(), "delete").Inc()
	return nil
}

// Folders lists every folder holding at least one state, ascending.
func (s *Store) Folders() (folders []uint64, err error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	it, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{StatePrefix},
		UpperBound: []byte{StatePrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for it.First(); it.Valid(); {
		folder, _, err := StateKeyFolderTag(it.Key())
		if err != nil {
			it.Next()
			continue
		}
		folders = append(folders, folder)
		_, hi := folderBounds(folder)
		it.SeekGE(hi)
	}
	return folders, it.Error()
}

// LoadState collects the folder's ICS state. Missing properties stay nil.
func (s *Store) LoadState(folder uint64) (*ics.State, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	st := &ics.State{}
	for _, tag := range ics.StateTags {
		set, err := s.get(db, StateKey(folder, tag))
		if err == mapisync_errors.ErrStateNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		_ = st.Set(tag, set.Clone())
	}
	return st, nil
}

// SaveState replaces the folder's ICS state in one batch. Properties that
// are nil in st are deleted.
func (s *Store) SaveState(ctx context.Context, folder uint64, st *ics.State) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	b := db.NewBatch()
	defer b.Close()
	keys := make([]string, 0, len(ics.StateTags))
	for _, tag := range ics.StateTags {
		key := StateKey(folder, tag)
		keys = append(keys, string(key))
		var err error
		if set := st.Get(tag); set != nil {
			err = b.Set(key, StateRecord(set), nil)
		} else {
			err = b.Delete(key, nil)
		}
		if err != nil {
			return err
		}
	}
	if err := b.Commit(s.opts.WriteOptions); err != nil {
		return err
	}
	s.invalidate(keys...)
	s.log.InfoCtx(ctx, "state saved", "folder", folder)
	return nil
}
