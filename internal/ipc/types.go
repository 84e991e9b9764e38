// Package ipc exposes daemon control via JSON-RPC over a Unix domain socket.
package ipc

// StatusRequest asks for daemon runtime information.
type StatusRequest struct{}

// StatusResponse reports daemon runtime information.
type StatusResponse struct {
	Running             bool
	PID                 int
	Mode                string
	AutoOffline         bool
	Reachable           bool
	ChannelState        string
	ChannelRetryAttempt int
	ChannelLastError    string
	QueueCount          int
	QueueDBPath         string
	LockPath            string
	StorageAvailable    bool
	StorageDetail       string
	LinkMonitor         bool
}

// StopRequest asks the daemon to halt background services.
type StopRequest struct{}

// StopResponse acknowledges a stop.
type StopResponse struct {
	Stopped bool
}

// SetModeRequest applies a user mode toggle.
type SetModeRequest struct {
	Mode string
}

// SetModeResponse reports the resulting mode pair.
type SetModeResponse struct {
	Mode        string
	AutoOffline bool
}

// QueuedRecord summarizes one queued job without its payload bytes.
type QueuedRecord struct {
	ID          string
	CreatedAt   string
	TargetNames []string
	CarrierName string
	TotalBytes  int64
}

// QueueListRequest asks for all queued records.
type QueueListRequest struct{}

// QueueListResponse lists queued records in enqueue order.
type QueueListResponse struct {
	Records []QueuedRecord
}

// QueueRemoveRequest deletes one queued record.
type QueueRemoveRequest struct {
	ID string
}

// QueueRemoveResponse reports whether the record existed.
type QueueRemoveResponse struct {
	Removed bool
}

// QueueClearRequest deletes all queued records.
type QueueClearRequest struct{}

// QueueClearResponse reports how many records were deleted.
type QueueClearResponse struct {
	Removed int
}

// SyncNowRequest runs a blocking sync pass.
type SyncNowRequest struct{}

// SyncNowResponse reports the synced count.
type SyncNowResponse struct {
	Synced int
}

// SubmitFile carries one file's bytes across the IPC boundary.
type SubmitFile struct {
	Name string
	MIME string
	Data []byte
}

// SubmitRequest creates a job through the façade.
type SubmitRequest struct {
	Targets     []SubmitFile
	Carrier     SubmitFile
	OptionsJSON string
}

// SubmitResponse identifies the created job.
type SubmitResponse struct {
	JobID  string
	Queued bool
}

// JobsRequest lists recent backend jobs.
type JobsRequest struct {
	Limit  int
	Status string
}

// JobSummary is one backend job without its progress payload.
type JobSummary struct {
	JobID     string
	Type      string
	Status    string
	Error     string
	CreatedAt string
	UpdatedAt string
}

// JobsResponse lists backend jobs.
type JobsResponse struct {
	Jobs []JobSummary
}

// DatabaseHealthRequest asks for queue database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports queue database diagnostics.
type DatabaseHealthResponse struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test outcome.
type TestNotificationResponse struct {
	Sent    bool
	Message string
}
