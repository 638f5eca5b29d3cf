package mapisync

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/mapisync_errors"
	"github.com/openchange/mapisync/utils"
)

// Session gathers the ids a client saw during one synchronization pass.
// Nothing reaches the store until CommitSession.
type Session struct {
	ID     uuid.UUID
	Folder uint64

	mode   idset.Mode
	mapper ics.ReplicaMapper

	mu     sync.Mutex
	obs    map[ics.PropertyTag]*ics.Observer
	closed bool
}

func (sess *Session) observer(tag ics.PropertyTag) (*ics.Observer, error) {
	if !ics.IsStateTag(tag) {
		return nil, ics.ErrUnexpectedProperty
	}
	if sess.closed {
		return nil, mapisync_errors.ErrSessionClosed
	}
	o, ok := sess.obs[tag]
	if !ok {
		o = ics.NewObserver(sess.mode, sess.mapper)
		sess.obs[tag] = o
	}
	return o, nil
}

// Observe records globCnt of replica guid under tag.
func (sess *Session) Observe(tag ics.PropertyTag, guid idset.GUID, globCnt uint64) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	o, err := sess.observer(tag)
	if err != nil {
		return err
	}
	o.Observe(guid, globCnt)
	return nil
}

// ObserveID records a MID, FID or CN. The result is false when the
// session's mapper does not know its replica id.
func (sess *Session) ObserveID(tag ics.PropertyTag, id uint64) (bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	o, err := sess.observer(tag)
	if err != nil {
		return false, err
	}
	return o.ObserveID(id), nil
}

func (sess *Session) close() map[ics.PropertyTag]*ics.Observer {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil
	}
	sess.closed = true
	obs := sess.obs
	sess.obs = nil
	return obs
}

// BeginSession opens a session on folder. mapper may be nil when only
// Observe is used.
func (s *Store) BeginSession(folder uint64, mode idset.Mode, mapper ics.ReplicaMapper) (*Session, error) {
	if _, err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:     id,
		Folder: folder,
		mode:   mode,
		mapper: mapper,
		obs:    make(map[ics.PropertyTag]*ics.Observer),
	}
	s.sessions.Store(id, sess)
	s.log.Debug("session begin", "session", id.String(), "folder", folder)
	return sess, nil
}

func (s *Store) Session(id uuid.UUID) (*Session, bool) {
	return s.sessions.Load(id)
}

// CommitSession merges everything the session observed into the store,
// all tags in one batch.
func (s *Store) CommitSession(ctx context.Context, id uuid.UUID) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	sess, ok := s.sessions.LoadAndDelete(id)
	if !ok {
		return mapisync_errors.ErrSessionUnknown
	}
	obs := sess.close()
	if obs == nil {
		return mapisync_errors.ErrSessionClosed
	}
	ctx = utils.WithDefaultArgs(ctx, "session", id.String(), "folder", sess.Folder)
	b := db.NewBatch()
	defer b.Close()
	var keys []string
	for _, tag := range ics.StateTags {
		o, ok := obs[tag]
		if !ok {
			continue
		}
		set := o.Finalize()
		if set.Len() == 0 {
			continue
		}
		key := StateKey(sess.Folder, tag)
		if err := b.Merge(key, StateRecord(set), nil); err != nil {
			SessionResults.WithLabelValues("error").Inc()
			return err
		}
		keys = append(keys, string(key))
		if n := o.Unmapped; n > 0 {
			s.log.WarnCtx(ctx, "unmapped replica ids skipped", "tag", tag.String(), "count", n)
		}
	}
	if err := b.Commit(s.opts.WriteOptions); err != nil {
		SessionResults.WithLabelValues("error").Inc()
		return err
	}
	s.invalidate(keys...)
	SessionResults.WithLabelValues("commit").Inc()
	s.log.InfoCtx(ctx, "session committed", "tags", len(keys))
	return nil
}

// AbortSession drops the session and everything it observed.
func (s *Store) AbortSession(id uuid.UUID) error {
	sess, ok := s.sessions.LoadAndDelete(id)
	if !ok {
		return mapisync_errors.ErrSessionUnknown
	}
	sess.close()
	SessionResults.WithLabelValues("abort").Inc()
	s.log.Debug("session aborted", "session", id.String())
	return nil
}
