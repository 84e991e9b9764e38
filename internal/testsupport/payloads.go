package testsupport

import (
	"testing"

	"forgesync/internal/offline"
)

// TargetPayload builds a named target payload with deterministic bytes.
func TargetPayload(t *testing.T, name string, data []byte) offline.Payload {
	t.Helper()
	return offline.Payload{
		Name: name,
		MIME: "application/octet-stream",
		Size: int64(len(data)),
		Data: data,
	}
}

// CarrierPayload builds a carrier image payload with deterministic bytes.
func CarrierPayload(t *testing.T, name string, data []byte) offline.Payload {
	t.Helper()
	return offline.Payload{
		Name: name,
		MIME: "image/png",
		Size: int64(len(data)),
		Data: data,
	}
}
