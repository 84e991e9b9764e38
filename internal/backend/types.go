package backend

import "encoding/json"

// File is one payload forwarded to the backend as a multipart part.
type File struct {
	Name string
	MIME string
	Data []byte
}

// HealthStatus is the response of the root liveness probe.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// AIHealthStatus reports availability of the secondary AI provider.
type AIHealthStatus struct {
	Status    string `json:"status"`
	Provider  string `json:"provider,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// UploadResult describes one stored upload.
type UploadResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// SubmitResult is the acknowledgement for a newly created job.
type SubmitResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// OutputFile is one artifact produced by an extraction job.
type OutputFile struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}

// Job is the polled state of a pipeline job. Encapsulation jobs report
// progress as a per-phase map while extraction jobs report a single integer,
// so the field stays raw and callers decode what they need.
type Job struct {
	JobID        string          `json:"jobId"`
	Type         string          `json:"type,omitempty"`
	Status       string          `json:"status"`
	Phase        int             `json:"phase,omitempty"`
	Progress     json.RawMessage `json:"progress,omitempty"`
	Error        string          `json:"error,omitempty"`
	OutputFiles  []OutputFile    `json:"outputFiles,omitempty"`
	GeometricKey string          `json:"geometricKey,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// ScanResult reports whether a carrier image matches a registered payload.
type ScanResult struct {
	HasPayload  bool            `json:"hasPayload"`
	PayloadSize int64           `json:"payloadSize"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// GeometricKeyResult carries the polytope key material for a completed job.
type GeometricKeyResult struct {
	GeometricKey string `json:"geometricKey"`
	Metadata     struct {
		Algorithm string `json:"algorithm"`
		Timestamp string `json:"timestamp"`
	} `json:"metadata"`
}
