// Provides common mapisync store errors definitions.
package mapisync_errors

import "errors"

var (
	ErrClosed         = errors.New("mapisync: no store open")
	ErrStateNotFound  = errors.New("mapisync: sync state not found")
	ErrBadStateRecord = errors.New("mapisync: bad sync state record")
	ErrBadStateKey    = errors.New("mapisync: bad sync state key")

	ErrSessionUnknown = errors.New("mapisync: sync session unknown")
	ErrSessionClosed  = errors.New("mapisync: sync session already committed or aborted")
)
