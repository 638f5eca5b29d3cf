package mapisync

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/pebble"
)

// StateKVString renders one stored state as folder.tag:<tab> followed by
// mode and ranges of each replica set.
func StateKVString(key, value []byte) string {
	folder, tag, err := StateKeyFolderTag(key)
	if err != nil {
		return ""
	}
	line := make([]byte, 0, 128)
	line = fmt.Appendf(line, "%016x.%s:\t", folder, tag)
	set, err := ParseStateRecord(value)
	if err != nil {
		line = fmt.Appendf(line, "corrupt %x", value)
		return string(line)
	}
	parts := make([]string, set.Len())
	for i := range set.Replicas {
		parts[i] = set.Replicas[i].Mode.String() + " " + set.Replicas[i].String()
	}
	line = append(line, '{')
	line = append(line, strings.Join(parts, "; ")...)
	line = append(line, '}')
	return string(line)
}

func (s *Store) DumpAll(writer io.Writer) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	i, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{StatePrefix},
		UpperBound: []byte{StatePrefix + 1},
	})
	if err != nil {
		return err
	}
	defer i.Close()
	for i.First(); i.Valid(); i.Next() {
		fmt.Fprintln(writer, StateKVString(i.Key(), i.Value()))
	}
	return i.Error()
}

// DumpFolder is DumpAll for the states of one folder.
func (s *Store) DumpFolder(writer io.Writer, folder uint64) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()
	lo, hi := folderBounds(folder)
	i, err := db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return err
	}
	defer i.Close()
	for i.First(); i.Valid(); i.Next() {
		fmt.Fprintln(writer, StateKVString(i.Key(), i.Value()))
	}
	return i.Error()
}
