// Package mapisync keeps per-folder ICS synchronization state: for every
// folder, the IDSETs behind MetaTagIdsetGiven and the change-number sets,
// persisted in pebble. Concurrent updates to one state are folded by a
// pebble merge operator that takes the set union of the IDSETs.
package mapisync

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/mapisync_errors"
	"github.com/openchange/mapisync/protocol"
	"github.com/openchange/mapisync/utils"
)

type Options struct {
	pebble.Options

	// Name shows up in every log line of this store.
	Name string
	// CacheSize is the number of decoded states kept in memory.
	CacheSize    int
	WriteOptions *pebble.WriteOptions
	Logger       utils.Logger
}

const MergerName = "mapisync.idset"

func (o *Options) SetDefaults() {
	if o.CacheSize <= 0 {
		o.CacheSize = 1024
	}
	if o.WriteOptions == nil {
		o.WriteOptions = pebble.Sync
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
	o.Merger = &pebble.Merger{
		Name:  MergerName,
		Merge: merger,
	}
}

// Store is a sync-state database. It is safe for concurrent use.
type Store struct {
	// mu guards db; operations hold it shared, Close exclusively.
	mu   sync.RWMutex
	db   *pebble.DB
	dir  string
	opts Options
	log  utils.Logger

	// cacheMu orders cache fills against invalidations; gen counts
	// invalidations so a fill read before one is dropped.
	cacheMu  sync.Mutex
	gen      uint64
	cache    *lru.Cache[string, *idset.IDSet]
	sessions *xsync.MapOf[uuid.UUID, *Session]
}

func Open(dirname string, opts Options) (*Store, error) {
	opts.SetDefaults()
	db, err := pebble.Open(dirname, &opts.Options)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *idset.IDSet](opts.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{
		db:       db,
		dir:      dirname,
		opts:     opts,
		log:      opts.Logger,
		cache:    cache,
		sessions: xsync.NewMapOf[uuid.UUID, *Session](),
	}
	s.log.Info("store opened", "name", opts.Name, "dir", dirname)
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return mapisync_errors.ErrClosed
	}
	s.sessions.Range(func(id uuid.UUID, sess *Session) bool {
		sess.close()
		return true
	})
	s.sessions.Clear()
	err := s.db.Close()
	s.db = nil
	s.invalidateAll()
	s.log.Info("store closed", "name", s.opts.Name)
	return err
}

// acquire returns the open database with s.mu held shared; the caller
// releases it with s.mu.RUnlock.
func (s *Store) acquire() (*pebble.DB, error) {
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return nil, mapisync_errors.ErrClosed
	}
	return s.db, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Metrics reports pebble internals of the open database.
func (s *Store) Metrics() (*pebble.Metrics, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	return db.Metrics(), nil
}

func (s *Store) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// fill caches set unless an invalidation happened since gen was taken.
func (s *Store) fill(key string, set *idset.IDSet, gen uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen == gen {
		s.cache.Add(key, set)
	}
}

// invalidate must run after the write to keys has been applied.
func (s *Store) invalidate(keys ...string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	for _, key := range keys {
		s.cache.Remove(key)
	}
}

func (s *Store) invalidateAll() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	s.cache.Purge()
}

const (
	StatePrefix = 'S'
	StateKeyLen = 1 + 8 + 4
)

// StateKey is S, the folder id big-endian, then the property tag.
func StateKey(folder uint64, tag ics.PropertyTag) []byte {
	var ret = [StateKeyLen]byte{StatePrefix}
	binary.BigEndian.PutUint64(ret[1:9], folder)
	binary.BigEndian.PutUint32(ret[9:], tag.Uint32())
	return ret[:]
}

func StateKeyFolderTag(key []byte) (folder uint64, tag ics.PropertyTag, err error) {
	if len(key) != StateKeyLen || key[0] != StatePrefix {
		return 0, tag, mapisync_errors.ErrBadStateKey
	}
	folder = binary.BigEndian.Uint64(key[1:9])
	tag = ics.TagFromUint32(binary.BigEndian.Uint32(key[9:]))
	return
}

// folderBounds covers every state key of one folder.
func folderBounds(folder uint64) (lo, hi []byte) {
	lo = binary.BigEndian.AppendUint64([]byte{StatePrefix}, folder)
	if folder == ^uint64(0) {
		return lo, []byte{StatePrefix + 1}
	}
	hi = binary.BigEndian.AppendUint64([]byte{StatePrefix}, folder+1)
	return
}

// StateRecord is the stored value: S{ I{IDSET} M{mode per replica} }.
// The IDSET wire form has no room for the compaction mode, so the modes
// ride alongside, one byte per replica set in order.
func StateRecord(set *idset.IDSet) []byte {
	modes := make([]byte, set.Len())
	for i := range modes {
		modes[i] = byte(set.Replicas[i].Mode)
	}
	return protocol.Record('S',
		protocol.Record('I', set.Serialize()),
		protocol.Record('M', modes),
	)
}

// ParseStateRecord decodes a stored value, restoring each replica
// set's mode.
func ParseStateRecord(rec []byte) (*idset.IDSet, error) {
	body, rest, err := protocol.TakeWary('S', rec)
	if err != nil || len(rest) != 0 {
		return nil, mapisync_errors.ErrBadStateRecord
	}
	var blob, modes []byte
	var seen [2]bool
	for len(body) > 0 {
		lit, field, tail, err := protocol.TakeAnyWary(body)
		if err != nil {
			return nil, mapisync_errors.ErrBadStateRecord
		}
		switch {
		case lit == 'I' && !seen[0]:
			blob, seen[0] = field, true
		case lit == 'M' && !seen[1]:
			modes, seen[1] = field, true
		default:
			return nil, mapisync_errors.ErrBadStateRecord
		}
		body = tail
	}
	if !seen[0] || !seen[1] {
		return nil, mapisync_errors.ErrBadStateRecord
	}
	set, err := ics.ParseValue(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mapisync_errors.ErrBadStateRecord, err)
	}
	if len(modes) != set.Len() {
		return nil, mapisync_errors.ErrBadStateRecord
	}
	for i, m := range modes {
		mode := idset.Mode(m)
		if mode != idset.Precise && mode != idset.Coalesced {
			return nil, mapisync_errors.ErrBadStateRecord
		}
		set.Replicas[i].Mode = mode
	}
	return set, nil
}
