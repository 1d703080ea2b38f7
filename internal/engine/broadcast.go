package engine

import "github.com/google/uuid"

// Envelope is a broadcast message describing one or more signal state
// changes, in the wire format dashboard subscribers consume.
type Envelope struct {
	Type    string          `json:"type"`              // "state_update" | "batch_state_update"
	LightID uuid.UUID       `json:"light_id,omitzero"` // set for "state_update"
	State   *SignalUpdate   `json:"state,omitempty"`   // set for "state_update"
	Updates []BatchedUpdate `json:"updates,omitempty"` // set for "batch_state_update"
}

// SignalUpdate is the {status, end_time} pair clients use for countdowns.
type SignalUpdate struct {
	Status  Color   `json:"status"`
	EndTime float64 `json:"end_time"`
}

// BatchedUpdate pairs a signal with its update in a batch envelope.
type BatchedUpdate struct {
	LightID uuid.UUID    `json:"light_id"`
	State   SignalUpdate `json:"state"`
}

// SingleUpdate builds a "state_update" envelope.
func SingleUpdate(lightID uuid.UUID, state SignalUpdate) Envelope {
	return Envelope{Type: "state_update", LightID: lightID, State: &state}
}

// BatchUpdate builds a "batch_state_update" envelope.
func BatchUpdate(updates []BatchedUpdate) Envelope {
	return Envelope{Type: "batch_state_update", Updates: updates}
}

// Publisher is the Broadcast Bus contract: publish never blocks on a slow
// or dead subscriber.
type Publisher interface {
	Publish(env Envelope)
}
