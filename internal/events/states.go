package events

// ConnectionState enumerates the lifecycle of the realtime channel.
type ConnectionState string

const (
	// StateDisconnected is the initial state before Start and after Close.
	StateDisconnected ConnectionState = "disconnected"
	// StateConnecting is the first dial attempt.
	StateConnecting ConnectionState = "connecting"
	// StateConnected means the transport is up and authenticated frames flow.
	StateConnected ConnectionState = "connected"
	// StateReconnecting means a dial attempt after a drop, with backoff.
	StateReconnecting ConnectionState = "reconnecting"
	// StateFailed means the reconnect budget is exhausted; the channel stays
	// down until recreated. Job progress remains available via HTTP polling.
	StateFailed ConnectionState = "failed"
	// StateMissingToken means no credential could be resolved; the channel
	// never dials. Terminal until reconfigured.
	StateMissingToken ConnectionState = "missing-token"
	// StateError means the server rejected the channel after connect (bad
	// token, protocol violation). Retrying with the same credential cannot
	// help, so the state is terminal until the channel is recreated.
	StateError ConnectionState = "error"
)

// Snapshot is an observable point-in-time view of the channel.
type Snapshot struct {
	State        ConnectionState
	RetryAttempt int
	LastError    string
}
