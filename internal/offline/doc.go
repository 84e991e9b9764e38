// Package offline persists job submissions captured while the backend is
// unreachable.
//
// Records carry the full payload bytes, not just metadata, because the
// backend needs the actual file contents when a queued submission is
// replayed. The store is an additive capability: when it cannot be opened
// the rest of the system keeps working in direct-submission mode.
package offline
