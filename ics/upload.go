package ics

import (
	"errors"
	"fmt"

	"github.com/openchange/mapisync/idset"
)

// MaxStateSize bounds a single uploaded state property.
const MaxStateSize = 16 << 20

var (
	ErrUploadNotStarted = errors.New("ics: state upload not started")
	ErrUploadInProgress = errors.New("ics: state upload already in progress")
	ErrUploadOverflow   = errors.New("ics: state upload exceeds declared size")
	ErrUploadIncomplete = errors.New("ics: state upload shorter than declared size")
)

// StateUpload reassembles one state property sent in chunks, the way the
// stream begin / continue / end operations deliver it.
type StateUpload struct {
	tag     PropertyTag
	size    int
	buf     []byte
	started bool
}

func (u *StateUpload) Begin(tag PropertyTag, size uint32) error {
	if u.started {
		return ErrUploadInProgress
	}
	if !IsStateTag(tag) {
		return fmt.Errorf("%w: %s", ErrUnexpectedProperty, tag)
	}
	if size > MaxStateSize {
		return fmt.Errorf("%w: %d bytes declared", ErrUploadOverflow, size)
	}
	u.tag = tag
	u.size = int(size)
	u.buf = make([]byte, 0, size)
	u.started = true
	return nil
}

func (u *StateUpload) Continue(chunk []byte) error {
	if !u.started {
		return ErrUploadNotStarted
	}
	if len(u.buf)+len(chunk) > u.size {
		return fmt.Errorf("%w: %d+%d > %d", ErrUploadOverflow, len(u.buf), len(chunk), u.size)
	}
	u.buf = append(u.buf, chunk...)
	return nil
}

// End parses the reassembled value. The upload is reset whatever the
// outcome.
func (u *StateUpload) End() (PropertyTag, *idset.IDSet, error) {
	if !u.started {
		return PropertyTag{}, nil, ErrUploadNotStarted
	}
	tag, buf, size := u.tag, u.buf, u.size
	*u = StateUpload{}
	if len(buf) != size {
		return tag, nil, fmt.Errorf("%w: %d of %d bytes", ErrUploadIncomplete, len(buf), size)
	}
	set, err := ParseValue(buf)
	if err != nil {
		return tag, nil, err
	}
	return tag, set, nil
}

// EndInto finishes the upload and stores the value in st.
func (u *StateUpload) EndInto(st *State) error {
	tag, set, err := u.End()
	if err != nil {
		return err
	}
	return st.Set(tag, set)
}
