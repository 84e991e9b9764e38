package offline

import "errors"

// ErrStorageUnavailable indicates the queue database cannot be opened or
// written. Callers degrade to direct-only submission; they must not treat
// this as a transient per-record failure.
var ErrStorageUnavailable = errors.New("offline queue storage unavailable")

// ErrCorruptRecord indicates a stored record violates the queue invariant
// (missing carrier or empty target set). Such records are left in place for
// inspection and never retried automatically.
var ErrCorruptRecord = errors.New("queued record is corrupt")
