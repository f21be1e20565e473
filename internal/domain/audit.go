package domain

import (
	"encoding/json"
	"time"
)

// AuditEntry is one recorded lifecycle event of a ticket channel. The audit
// trail is informational; channel metadata stays the system of record.
type AuditEntry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	ChannelID  Snowflake       `json:"channel_id"`
	ActorID    Snowflake       `json:"actor_id"`
	State      TicketState     `json:"state"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
