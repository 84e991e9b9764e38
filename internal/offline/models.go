package offline

import (
	"encoding/json"
	"time"
)

// Payload is one stored file: metadata plus the raw bytes needed for replay.
type Payload struct {
	Name string
	MIME string
	Size int64
	Data []byte
}

// Record is a pending job submission awaiting synchronization.
//
// A valid record always has a non-nil carrier and at least one target; the
// synchronizer treats violations as permanent local failures rather than
// retrying them.
type Record struct {
	ID        string
	CreatedAt time.Time
	Targets   []Payload
	Carrier   *Payload
	Options   json.RawMessage
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}
