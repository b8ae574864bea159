package amqp

import (
	"encoding/json"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	"github.com/SscSPs/allowance_tracker/internal/dto"
)

// SnapshotMessage carries one read-model snapshot to other processes.
// Sequence increases by one per message published by a forwarder instance.
type SnapshotMessage struct {
	Sequence    uint64               `json:"sequence"`
	Snapshot    dto.SnapshotResponse `json:"snapshot"`
	PublishedAt time.Time            `json:"publishedAt"`
}

// NewSnapshotMessage creates a message for snapshot.
func NewSnapshotMessage(seq uint64, snapshot domain.Snapshot, now time.Time) *SnapshotMessage {
	return &SnapshotMessage{
		Sequence:    seq,
		Snapshot:    dto.ToSnapshotResponse(snapshot),
		PublishedAt: now,
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON decodes a message produced by ToJSON.
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
